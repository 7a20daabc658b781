package telemetry

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewMetrics_RegistersAndServes(t *testing.T) {
	m := NewMetrics()
	m.HostSampleRate.Set(48000)
	m.HostDropoutTotal.Inc()
	m.DriftEventsTotal.WithLabelValues("a").Inc()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "gesturedeck_host_sample_rate_hz 48000") {
		t.Fatalf("expected sample rate metric in output, got:\n%s", body)
	}
	if !strings.Contains(body, "gesturedeck_stem_drift_events_total") {
		t.Fatalf("expected drift events metric in output, got:\n%s", body)
	}
}
