package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcelogudines/sales/internal/api/contract"
	"github.com/marcelogudines/sales/internal/application"
	"github.com/marcelogudines/sales/internal/domain"
	"github.com/marcelogudines/sales/internal/infrastructure/memory"
	"github.com/marcelogudines/sales/internal/infrastructure/messaging"
	"github.com/marcelogudines/sales/pkg/cloudevents"
	"github.com/marcelogudines/sales/pkg/contracts/openapi"
	"github.com/marcelogudines/sales/pkg/idempotency"
	"github.com/marcelogudines/sales/pkg/metrics"
	"github.com/marcelogudines/sales/pkg/testutil"
)

func newTestRouter(t *testing.T, ready func() error) (*gin.Engine, *metrics.Metrics) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	validator, err := openapi.NewValidatorFromBytes(contract.OpenAPI)
	require.NoError(t, err)

	logger := testutil.TestLogger()
	m := metrics.New(metrics.DefaultConfig("sales-service"))
	publisher := messaging.NewLogPublisher(cloudevents.NewEventFactory(cloudevents.SourceSalesService), logger)
	service := application.NewSaleService(memory.NewSaleRepository(), publisher, domain.Providers{}, m, logger)

	return NewRouter(RouterConfig{
		ServiceName: "sales-service",
		Service:     service,
		Logger:      logger,
		Metrics:     m,
		OpenAPI:     validator,
		Idempotency: idempotency.DefaultConfig(idempotency.NewMemoryStore(0), logger),
		Ready:       ready,
	}), m
}

func serve(router *gin.Engine, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestProbes(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/ready", "").Code)

	notReady, _ := newTestRouter(t, func() error { return errors.New("starting") })
	w := serve(notReady, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "starting")
}

func TestMetricsCountRequests(t *testing.T) {
	router, m := newTestRouter(t, nil)

	w := serve(router, http.MethodPost, "/api/v1/sales", `{"number":"S-1"}`)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	serve(router, http.MethodGet, "/api/v1/sales/unknown", "")

	snapshot := m.Window().Totals()
	assert.Equal(t, int64(2), snapshot.Total)
	assert.Equal(t, int64(2), snapshot.ClientErrors)

	w = serve(router, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `sales_http_requests_total{method="GET",path="/api/v1/sales/:saleId",service="sales-service",status="404"} 1`)
	assert.Contains(t, w.Body.String(), `sales_sale_operations_total{operation="create",outcome="validation_failed",service="sales-service"} 1`)
}

func TestUnknownRoutesUseEnvelope(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	w := serve(router, http.MethodGet, "/api/v2/sales", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"ROUTE_NOT_FOUND"`)

	w = serve(router, http.MethodPatch, "/api/v1/sales", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"METHOD_NOT_ALLOWED"`)
}

func TestIdempotentSaleCreation(t *testing.T) {
	router, _ := newTestRouter(t, nil)
	body := `{"number":"S-7","customerId":"c-1","customerName":"Ana","branchId":"b-1","branchName":"Downtown",` +
		`"items":[{"productId":"p-1","productName":"Widget","quantity":2,"unitPrice":"3.50"}]}`

	post := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sales", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(idempotency.HeaderIdempotencyKey, "create-S-7")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	first := post()
	second := post()

	require.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, http.StatusCreated, second.Code, "retry replays the creation instead of a conflict")
	assert.Equal(t, "true", second.Header().Get(idempotency.HeaderReplayed))
	assert.Equal(t, first.Header().Get("Location"), second.Header().Get("Location"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	w := serve(router, http.MethodPost, "/api/v1/sales", body)
	assert.Equal(t, http.StatusConflict, w.Code)
}
