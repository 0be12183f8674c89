package episcope

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatsInternal carries the engine's own counters on a dedicated
// registry so the /metrics endpoint serves only what we register.
type StatsInternal struct {
	Registry         *prometheus.Registry
	ReportsBuilt     prometheus.Counter
	DetectorFailures prometheus.Counter
	NoDataResults    prometheus.Counter
	AlertsRaised     prometheus.Counter
	ReportDuration   prometheus.Histogram
	HTTPRequests     *prometheus.CounterVec
}

func NewStatsInternal() *StatsInternal {
	reg := prometheus.NewRegistry()

	s := &StatsInternal{
		Registry: reg,
		ReportsBuilt: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "episcope_reports_built_total",
			Help: "Reports assembled successfully.",
		}),
		DetectorFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "episcope_detector_failures_total",
			Help: "Report runs that ended in a failure result.",
		}),
		NoDataResults: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "episcope_no_data_results_total",
			Help: "Report runs that found no matching data.",
		}),
		AlertsRaised: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "episcope_alerts_raised_total",
			Help: "Alert events flagged by detectors.",
		}),
		ReportDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "episcope_report_duration_seconds",
			Help:    "Wall time to build one report.",
			Buckets: prometheus.DefBuckets,
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "episcope_http_requests_total",
			Help: "API requests by path.",
		}, []string{"path"}),
	}

	reg.MustRegister(
		s.ReportsBuilt,
		s.DetectorFailures,
		s.NoDataResults,
		s.AlertsRaised,
		s.ReportDuration,
		s.HTTPRequests,
	)

	return s
}

// Handler serves the attached registry on /metrics.
func (s *StatsInternal) Handler() http.Handler {
	return promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{})
}

// ObserveReport records the outcome of one report run.
func (s *StatsInternal) ObserveReport(start time.Time, success bool) {
	s.ReportDuration.Observe(time.Since(start).Seconds())
	if success {
		s.ReportsBuilt.Inc()
	} else {
		s.DetectorFailures.Inc()
	}
}
