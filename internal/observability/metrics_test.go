package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"

	logs "github.com/danmuck/thriftsniff/internal/logging"
	"github.com/danmuck/thriftsniff/internal/testutil/testlog"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("GET", "/health", 200, 12*time.Millisecond)
	RecordPayload("binary", 64, 3*time.Microsecond)
	RecordMessage("binary", "none", "CALL", "GetItem")
	RecordDecodeError("fields", "truncated")
	RecordSinkError("nats")

	if got := testutil.ToFloat64(decodeErrors.WithLabelValues("fields", "truncated")); got < 1 {
		t.Fatalf("expected decode error counter to move, got %v", got)
	}
	logs.Logf("observability/metrics: registration idempotent and recording paths executed")
}

func TestMiddlewareRecordsRequests(t *testing.T) {
	testlog.Start(t)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger(ComponentLogger("test")), RequestMetricsMiddleware())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/ping", "200"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", w.Code)
	}
	after := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/ping", "200"))
	if after != before+1 {
		t.Fatalf("expected request counter to increase by one: before=%v after=%v", before, after)
	}
}

func TestMiddlewareBucketsUnmatchedRoutes(t *testing.T) {
	testlog.Start(t)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestMetricsMiddleware())

	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", unmatchedRoute, "404"))
	for _, path := range []string{"/wp-admin", "/.env", "/a/b/c"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}
	after := testutil.ToFloat64(httpRequests.WithLabelValues("GET", unmatchedRoute, "404"))
	if after != before+3 {
		t.Fatalf("expected unmatched counter +3: before=%v after=%v", before, after)
	}
}
