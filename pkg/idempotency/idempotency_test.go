package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/gin-gonic/gin"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcelogudines/sales/pkg/cloudevents"
	"github.com/marcelogudines/sales/pkg/metrics"
	"github.com/marcelogudines/sales/pkg/testutil"
)

type testServer struct {
	router  *gin.Engine
	store   *MemoryStore
	metrics *metrics.Metrics
	calls   int
	status  []int
}

func newTestServer(t *testing.T, requireKey bool) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &testServer{store: NewMemoryStore(time.Minute), metrics: metrics.New(metrics.DefaultConfig("sales-service"))}
	cfg := DefaultConfig(s.store, testutil.TestLogger())
	cfg.RequireKey = requireKey
	cfg.Metrics = s.metrics

	s.router = gin.New()
	s.router.Use(Middleware(cfg))
	handler := func(c *gin.Context) {
		s.calls++
		status := http.StatusCreated
		if len(s.status) > 0 {
			status, s.status = s.status[0], s.status[1:]
		}
		c.Header("Location", "/sales/s-1")
		c.JSON(status, gin.H{"call": s.calls})
	}
	s.router.POST("/sales", handler)
	s.router.GET("/sales", handler)
	return s
}

func (s *testServer) do(method, body, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/sales", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(HeaderIdempotencyKey, key)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error.Code
}

func TestMiddlewareReplaysCompletedRequest(t *testing.T) {
	s := newTestServer(t, false)

	first := s.do(http.MethodPost, `{"number":"S-1"}`, "key-1")
	second := s.do(http.MethodPost, `{"number":"S-1"}`, "key-1")

	assert.Equal(t, 1, s.calls)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "/sales/s-1", second.Header().Get("Location"))
	assert.Equal(t, "true", second.Header().Get(HeaderReplayed))
	assert.Empty(t, first.Header().Get(HeaderReplayed))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(s.metrics.IdempotencyRequests.WithLabelValues("sales-service", "hit")))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(s.metrics.IdempotencyRequests.WithLabelValues("sales-service", "miss")))
}

func TestMiddlewareRejectsReusedKeyWithDifferentBody(t *testing.T) {
	s := newTestServer(t, false)

	s.do(http.MethodPost, `{"number":"S-1"}`, "key-1")
	w := s.do(http.MethodPost, `{"number":"S-2"}`, "key-1")

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, CodeParameterMismatch, errorCode(t, w))
	assert.Equal(t, 1, s.calls)
}

func TestMiddlewareKeyHandling(t *testing.T) {
	tests := []struct {
		name       string
		requireKey bool
		method     string
		key        string
		wantStatus int
		wantCalls  int
	}{
		{name: "optional key absent", method: http.MethodPost, wantStatus: http.StatusCreated, wantCalls: 2},
		{name: "required key absent", requireKey: true, method: http.MethodPost, wantStatus: http.StatusBadRequest},
		{name: "invalid key", method: http.MethodPost, key: "not a key!", wantStatus: http.StatusBadRequest},
		{name: "too long key", method: http.MethodPost, key: strings.Repeat("k", DefaultMaxKeyLength+1), wantStatus: http.StatusBadRequest},
		{name: "reads are not tracked", requireKey: true, method: http.MethodGet, key: "key-1", wantStatus: http.StatusCreated, wantCalls: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, tt.requireKey)

			s.do(tt.method, `{}`, tt.key)
			w := s.do(tt.method, `{}`, tt.key)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantCalls, s.calls)
		})
	}
}

func TestMiddlewareRejectsUnreadableBody(t *testing.T) {
	s := newTestServer(t, false)

	truncated := io.MultiReader(strings.NewReader(`{"number":`), iotest.ErrReader(errors.New("connection reset")))
	req := httptest.NewRequest(http.MethodPost, "/sales", truncated)
	req.Header.Set(HeaderIdempotencyKey, "key-1")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "BAD_REQUEST", errorCode(t, w))
	assert.Zero(t, s.calls)
	assert.Zero(t, s.store.Len())

	retry := s.do(http.MethodPost, `{"number":"S-1"}`, "key-1")
	assert.Equal(t, http.StatusCreated, retry.Code)
	assert.Equal(t, 1, s.calls)
}

func TestMiddlewareDoesNotCacheServerErrors(t *testing.T) {
	s := newTestServer(t, false)
	s.status = []int{http.StatusInternalServerError, http.StatusCreated}

	first := s.do(http.MethodPost, `{}`, "key-1")
	second := s.do(http.MethodPost, `{}`, "key-1")

	assert.Equal(t, http.StatusInternalServerError, first.Code)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, 2, s.calls)
}

func TestMiddlewareRejectsConcurrentRequest(t *testing.T) {
	s := newTestServer(t, false)
	_, acquired, err := s.store.Acquire(context.Background(), &Record{
		Key:         "key-1",
		Fingerprint: ComputeFingerprint(http.MethodPost, "/sales", []byte(`{}`)),
		ExpiresAt:   time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	require.True(t, acquired)

	w := s.do(http.MethodPost, `{}`, "key-1")

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, CodeConcurrentRequest, errorCode(t, w))
	assert.Zero(t, s.calls)
}

func TestMemoryStoreLocksAndExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore(time.Minute)
	store.now = func() time.Time { return now }

	record := &Record{Key: "k", Fingerprint: "f", ExpiresAt: now.Add(time.Hour)}
	_, acquired, err := store.Acquire(ctx, record)
	require.NoError(t, err)
	assert.True(t, acquired)

	existing, acquired, err := store.Acquire(ctx, record)
	require.NoError(t, err)
	assert.False(t, acquired)
	assert.True(t, existing.IsLocked())

	now = now.Add(2 * time.Minute)
	_, acquired, err = store.Acquire(ctx, record)
	require.NoError(t, err)
	assert.True(t, acquired, "abandoned lock is taken over")

	require.NoError(t, store.Complete(ctx, "k", http.StatusOK, []byte(`{}`), nil))
	existing, acquired, err = store.Acquire(ctx, record)
	require.NoError(t, err)
	assert.False(t, acquired)
	assert.True(t, existing.IsCompleted())

	removed, err := store.Clean(ctx, now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Zero(t, store.Len())

	assert.ErrorIs(t, store.Release(ctx, "k"), ErrNotFound)
}

func TestDeduplicatingHandler(t *testing.T) {
	store := NewMessageStore(time.Hour)
	var handled int
	fail := true
	handler := DeduplicatingHandler(&ConsumerConfig{
		Topic:         "sales.events",
		ConsumerGroup: "sales-service",
		Store:         store,
		Logger:        testutil.TestLogger(),
	}, func(context.Context, *cloudevents.SalesCloudEvent) error {
		handled++
		if fail {
			fail = false
			return errors.New("transient")
		}
		return nil
	})

	event := &cloudevents.SalesCloudEvent{ID: "evt-1", Type: cloudevents.SaleCreated}
	ctx := context.Background()

	assert.Error(t, handler(ctx, event))
	assert.NoError(t, handler(ctx, event))
	assert.NoError(t, handler(ctx, event))
	assert.Equal(t, 2, handled)

	processed, err := store.IsProcessed(ctx, "evt-1", "sales.events", "other-group")
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestRunCleanupRemovesExpiredEntries(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	_, _, err := store.Acquire(context.Background(), &Record{Key: "k", ExpiresAt: time.Now().Add(-time.Second)})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- RunCleanup(ctx, 10*time.Millisecond, testutil.TestLogger(), store) }()

	testutil.AssertEventually(t, func() bool { return store.Len() == 0 }, time.Second, "expired key removed")
	cancel()
	assert.NoError(t, <-done)
}
