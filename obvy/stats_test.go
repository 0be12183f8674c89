package episcope_test

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	Eo "github.com/sages-health/episcope/obvy"
)

func TestNewStatsInternal(t *testing.T) {
	stats := Eo.NewStatsInternal()
	if stats.Registry == nil {
		t.Fatal("expected an attached registry")
	}

	// two instances must not collide on registration
	other := Eo.NewStatsInternal()
	if other == stats {
		t.Error("expected distinct stats instances")
	}
}

func TestStatsInternal_Handler(t *testing.T) {
	stats := Eo.NewStatsInternal()
	stats.ReportsBuilt.Inc()
	stats.HTTPRequests.WithLabelValues("/api/report").Inc()

	r := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	stats.Handler().ServeHTTP(w, r)

	if w.Code != 200 {
		t.Fatalf("got status %d, want 200", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "episcope_reports_built_total 1") {
		t.Errorf("reports counter missing from exposition:\n%s", body)
	}
	if !strings.Contains(body, "episcope_http_requests_total") {
		t.Errorf("request counter missing from exposition:\n%s", body)
	}
}

func TestStatsInternal_ObserveReport(t *testing.T) {
	stats := Eo.NewStatsInternal()

	stats.ObserveReport(time.Now(), true)
	stats.ObserveReport(time.Now(), false)

	r := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	stats.Handler().ServeHTTP(w, r)

	body := w.Body.String()
	if !strings.Contains(body, "episcope_reports_built_total 1") {
		t.Errorf("success not counted:\n%s", body)
	}
	if !strings.Contains(body, "episcope_detector_failures_total 1") {
		t.Errorf("failure not counted:\n%s", body)
	}
	if !strings.Contains(body, "episcope_report_duration_seconds_count 2") {
		t.Errorf("duration not observed:\n%s", body)
	}
}
