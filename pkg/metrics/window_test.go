package metrics

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcelogudines/sales/pkg/logging"
	"github.com/marcelogudines/sales/pkg/testutil"
)

func TestRequestWindowTotals(t *testing.T) {
	w := NewRequestWindow()
	w.Record("/api/v1/sales", 201, time.Millisecond)
	w.Record("/api/v1/sales", 422, time.Millisecond)
	w.Record("/api/v1/sales/:id", 404, time.Millisecond)
	w.Record("/api/v1/sales/:id", 500, time.Millisecond)

	assert.Equal(t, WindowTotals{Total: 4, ClientErrors: 2, ServerErrors: 1}, w.Totals())

	w.Reset()
	assert.Equal(t, WindowTotals{}, w.Totals())
	assert.Empty(t, w.TopRoutesByP95(3))
}

func TestTopRoutesByP95(t *testing.T) {
	w := NewRequestWindow()
	for i := 1; i <= 100; i++ {
		w.Record("/slow", 200, time.Duration(i)*10*time.Millisecond)
		w.Record("/fast", 200, time.Duration(i)*time.Millisecond)
	}
	w.Record("/once", 200, 5*time.Millisecond)

	top := w.TopRoutesByP95(2)
	require.Len(t, top, 2)
	assert.Equal(t, "/slow", top[0].Route)
	assert.Equal(t, 950*time.Millisecond, top[0].P95)
	assert.Equal(t, 990*time.Millisecond, top[0].P99)
	assert.Equal(t, 100, top[0].Count)
	assert.Equal(t, "/fast", top[1].Route)
}

func TestLogSummaryAlertsOnSlowRoutes(t *testing.T) {
	buf := &bytes.Buffer{}
	cfg := logging.DefaultConfig("sales-service")
	cfg.Output = buf
	logger := logging.New(cfg)

	w := NewRequestWindow()
	w.Record("/api/v1/sales", 200, 2*time.Second)
	w.Record("/api/v1/sales", 503, 10*time.Millisecond)

	LogSummary(w, SummaryConfig{Interval: time.Minute, AlertThreshold: time.Second, TopRoutes: 3}, logger)

	out := buf.String()
	assert.Contains(t, out, `"msg":"Request metrics summary"`)
	assert.Contains(t, out, `"5xx":1`)
	assert.Contains(t, out, `"msg":"Request latency alert"`)
	assert.Equal(t, 2, strings.Count(out, "\n"))
}

func TestRunSummaryResetsWindow(t *testing.T) {
	w := NewRequestWindow()
	w.Record("/api/v1/sales", 200, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- RunSummary(ctx, w, SummaryConfig{Interval: 10 * time.Millisecond}, testutil.TestLogger())
	}()

	testutil.AssertEventually(t, func() bool { return w.Totals().Total == 0 }, time.Second, "window was not reset")
	cancel()
	assert.NoError(t, <-done)
}

func TestRunSummaryRejectsBadInterval(t *testing.T) {
	err := RunSummary(context.Background(), NewRequestWindow(), SummaryConfig{}, testutil.TestLogger())
	assert.Error(t, err)
}

func TestMetricsHandlerExposesSaleCounters(t *testing.T) {
	m := New(DefaultConfig("sales-service"))
	m.RecordSaleOperation("create", OutcomeSuccess)
	m.RecordHTTPRequest("POST", "/api/v1/sales", 201, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Contains(t, rec.Body.String(), "sales_sale_operations_total")
	assert.Equal(t, int64(1), m.Window().Totals().Total)

	var nilMetrics *Metrics
	assert.NotPanics(t, func() { nilMetrics.RecordSaleOperation("create", OutcomeError) })
}
