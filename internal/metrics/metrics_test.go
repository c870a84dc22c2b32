package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilCollector(t *testing.T) {
	var c *Collector

	// Must not panic.
	c.IncrementInFlight()
	c.DecrementInFlight()
	c.RecordHTTPRequest("GET", "/health", "200", time.Millisecond)
	c.RecordOrderOutcome("create-order", "applied", time.Millisecond)

	if c.Registry() != nil {
		t.Error("expected nil registry")
	}
}

func TestRecordOrderOutcome(t *testing.T) {
	c := NewCollector("test")

	c.RecordOrderOutcome("create-order", "applied", time.Millisecond)
	c.RecordOrderOutcome("create-order", "applied", time.Millisecond)
	c.RecordOrderOutcome("status-update", "failed", time.Millisecond)

	if got := testutil.ToFloat64(c.orderOutcomes.WithLabelValues("create-order", "applied")); got != 2 {
		t.Errorf("expected 2 applied creates, got %v", got)
	}
	if got := testutil.ToFloat64(c.orderOutcomes.WithLabelValues("status-update", "failed")); got != 1 {
		t.Errorf("expected 1 failed update, got %v", got)
	}
}

func TestRecordHTTPRequest(t *testing.T) {
	c := NewCollector("test")

	c.IncrementInFlight()
	if got := testutil.ToFloat64(c.httpInFlight); got != 1 {
		t.Errorf("expected 1 in flight, got %v", got)
	}
	c.DecrementInFlight()

	c.RecordHTTPRequest("GET", "/table/{table}", "200", 10*time.Millisecond)
	if got := testutil.ToFloat64(c.httpRequests.WithLabelValues("GET", "/table/{table}", "200")); got != 1 {
		t.Errorf("expected 1 request, got %v", got)
	}
}

func TestHandler(t *testing.T) {
	c := NewCollector("test")
	c.RecordOrderOutcome("create-order", "duplicate", time.Millisecond)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `test_orders_messages_total{action="create-order",outcome="duplicate"} 1`) {
		t.Error("expected order outcome series in exposition output")
	}
}
