package episcope

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	Eo "github.com/sages-health/episcope/obvy"
	Er "github.com/sages-health/episcope/report"
	Et "github.com/sages-health/episcope/types"
)

const alertRingSize = 256

// ReportRunner is the assembly surface the handlers need.
type ReportRunner interface {
	Run(req *Er.ReportRequest) *Et.ReportResult
}

// View is updated by every report run
type View struct {
	MU       sync.Mutex        // State locks to read alert data
	Assembly ReportRunner      // Report engine
	Cfg      *Er.Config        // Validated engine config
	Stats    *Eo.StatsInternal // Internal status for prometheus
	server   *http.Server      // API + metrics server
	alerts   []Et.AlertEvent   // most recent flagged points
}

func NewView(a ReportRunner, cfg *Er.Config) *View {
	return &View{
		Assembly: a,
		Cfg:      cfg,
		Stats:    Eo.NewStatsInternal(),
	}
}

// SetupMux handles all data serving:
// - Prometheus metric endpoint
// - Websocket alert feed for the frontend
// - Version for programmatic use
// - Report building and the alert snapshot
func (v *View) SetupMux() *mux.Router {
	r := mux.NewRouter()

	r.Handle("/metrics", v.Stats.Handler())
	r.HandleFunc("/ws", v.WebsocketHandler)

	// the counting middleware only wraps routes registered on the
	// subrouter itself
	api := r.PathPrefix("/api").Subrouter()
	api.Use(v.StatsMiddleware)
	api.HandleFunc("/version", v.VersionHandler)
	api.HandleFunc("/report", v.ReportHandler)
	api.HandleFunc("/alerts", v.AlertsHandler)

	return r
}

var Version = "dev"

func (v *View) VersionHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"version": Version})
}

// ReportHandler builds one report from the request's query string.
// Every query parameter except the reserved ones passes through as
// a data filter, so the drill-through URL format works unchanged.
func (v *View) ReportHandler(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	_, span := Eo.StartReportSpan(r.Context(), v.Cfg.Detector, v.Cfg.Grouping)
	defer span.End()

	req := parseReportRequest(r)
	result := v.Assembly.Run(req)

	v.Stats.ObserveReport(started, result.Success)
	if result.Success && result.GraphConfiguration == nil {
		v.Stats.NoDataResults.Inc()
	}
	if len(result.Alerts) > 0 {
		v.Stats.AlertsRaised.Add(float64(len(result.Alerts)))
		v.stashAlerts(result.Alerts)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		slog.Error("Could not encode report result", slog.Any("Error", err))
	}
}

// reserved query parameters that are not data filters
var reservedParams = map[string]bool{
	"accumulations": true,
	"yearAsSeries":  true,
	"tzRawOffset":   true,
	"tzDstSavings":  true,
}

func parseReportRequest(r *http.Request) *Er.ReportRequest {
	query := r.URL.Query()

	req := &Er.ReportRequest{
		Filters: make(map[string][]string, len(query)),
	}
	for k, vals := range query {
		if reservedParams[k] {
			continue
		}
		req.Filters[k] = vals
	}

	if accums := query.Get("accumulations"); accums != "" {
		for _, a := range strings.Split(accums, ",") {
			if a = strings.TrimSpace(a); a != "" {
				req.Accumulations = append(req.Accumulations, a)
			}
		}
	}

	req.YearAsSeries, _ = strconv.ParseBool(query.Get("yearAsSeries"))

	// client timezone offsets arrive in milliseconds
	if raw := query.Get("tzRawOffset"); raw != "" {
		tz := &Er.TimezoneInfo{}
		if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
			tz.RawOffset = time.Duration(ms) * time.Millisecond
		}
		if ms, err := strconv.ParseInt(query.Get("tzDstSavings"), 10, 64); err == nil {
			tz.DSTSavings = time.Duration(ms) * time.Millisecond
		}
		req.ClientTimezone = tz
	}

	return req
}

// AlertsHandler serves the recent-alert snapshot. An optional
// "since" parameter (epoch millis) drops alerts on older data.
func (v *View) AlertsHandler(w http.ResponseWriter, r *http.Request) {
	alerts := v.AlertSnapshot()
	if since := r.URL.Query().Get("since"); since != "" {
		if ms, err := strconv.ParseInt(since, 10, 64); err == nil {
			alerts = AlertCutoff(alerts, time.UnixMilli(ms))
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(alerts)
}

// stashAlerts appends to the alert ring, dropping the oldest
// entries past the ring size.
func (v *View) stashAlerts(events []Et.AlertEvent) {
	v.MU.Lock()
	defer v.MU.Unlock()

	v.alerts = append(v.alerts, events...)
	if overflow := len(v.alerts) - alertRingSize; overflow > 0 {
		v.alerts = v.alerts[overflow:]
	}
}

// AlertSnapshot copies the ring so callers never hold the lock.
func (v *View) AlertSnapshot() []Et.AlertEvent {
	v.MU.Lock()
	defer v.MU.Unlock()

	snap := make([]Et.AlertEvent, len(v.alerts))
	copy(snap, v.alerts)
	return snap
}

// StatsMiddleware counts API requests by path.
func (v *View) StatsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v.Stats.HTTPRequests.WithLabelValues(r.URL.Path).Inc()
		next.ServeHTTP(w, r)
	})
}

// StartServer runs the API with OTel HTTP instrumentation wrapped
// around the router. Blocks until the listener fails or closes.
func (v *View) StartServer() error {
	addr := fmt.Sprintf(":%d", v.Cfg.Port)
	v.server = &http.Server{
		Addr:    addr,
		Handler: otelhttp.NewHandler(v.SetupMux(), "episcope"),
	}

	slog.Info("Starting Episcope report endpoint...", slog.String("Port", addr))
	if err := v.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Could not start report endpoint", slog.Any("Error", err))
		return err
	}
	return nil
}
