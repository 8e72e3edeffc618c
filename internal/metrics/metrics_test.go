package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordFetch(t *testing.T) {
	before := testutil.ToFloat64(fetchesTotal.WithLabelValues("local", "error"))
	RecordFetch("local", false)
	after := testutil.ToFloat64(fetchesTotal.WithLabelValues("local", "error"))
	if after-before != 1 {
		t.Errorf("expected counter to grow by 1, grew by %v", after-before)
	}
}

func TestQueueGauges(t *testing.T) {
	SetQueueDepth(3)
	if v := testutil.ToFloat64(queueDepth); v != 3 {
		t.Errorf("expected depth 3, got %v", v)
	}
	SetOnline(false)
	if v := testutil.ToFloat64(onlineState); v != 0 {
		t.Errorf("expected offline gauge 0, got %v", v)
	}
	SetOnline(true)
	if v := testutil.ToFloat64(onlineState); v != 1 {
		t.Errorf("expected online gauge 1, got %v", v)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	RecordTransportRequest("get", 200, 10*time.Millisecond)
	RecordCacheRead(true)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	for _, name := range []string{"rested_transport_requests_total", "rested_cache_reads_total"} {
		if !strings.Contains(body, name) {
			t.Errorf("expected %s in metrics output", name)
		}
	}
}
