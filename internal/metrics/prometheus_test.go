package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestPrometheusHandler_ExposesCounters(t *testing.T) {
	m := New()
	m.Inc(AuthFailure)
	m.Inc(AuthFailure)
	m.Inc(HeartbeatEvicted)

	rec := httptest.NewRecorder()
	PrometheusHandler(m).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Fatalf("status=%d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `signalling_server_events_total{event="auth_failure"} 2`) {
		t.Errorf("missing auth_failure counter in body:\n%s", body)
	}
	if !strings.Contains(body, `signalling_server_events_total{event="heartbeat_evicted"} 1`) {
		t.Errorf("missing heartbeat_evicted counter in body:\n%s", body)
	}
}

func TestPrometheusHandler_NilMetrics(t *testing.T) {
	rec := httptest.NewRecorder()
	PrometheusHandler(nil).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 500 {
		t.Fatalf("status=%d, want 500", rec.Code)
	}
}
