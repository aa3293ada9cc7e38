package metrics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/marcelogudines/sales/pkg/logging"
)

const maxSamplesPerRoute = 1024

// RouteStats summarizes the latency of one route within a window
type RouteStats struct {
	Route string
	Count int
	P95   time.Duration
	P99   time.Duration
}

// WindowTotals are the request counters of the current window
type WindowTotals struct {
	Total        int64
	ClientErrors int64
	ServerErrors int64
}

// RequestWindow counts requests between two summaries
type RequestWindow struct {
	mu      sync.Mutex
	totals  WindowTotals
	samples map[string][]time.Duration
}

// NewRequestWindow creates an empty window
func NewRequestWindow() *RequestWindow {
	return &RequestWindow{samples: make(map[string][]time.Duration)}
}

// Record adds one finished request
func (w *RequestWindow) Record(route string, status int, duration time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.totals.Total++
	switch {
	case status >= 500:
		w.totals.ServerErrors++
	case status >= 400:
		w.totals.ClientErrors++
	}

	samples := w.samples[route]
	if len(samples) >= maxSamplesPerRoute {
		samples = samples[1:]
	}
	w.samples[route] = append(samples, duration)
}

// Totals returns the counters accumulated so far
func (w *RequestWindow) Totals() WindowTotals {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.totals
}

// TopRoutesByP95 returns up to n routes ordered by descending p95 latency
func (w *RequestWindow) TopRoutesByP95(n int) []RouteStats {
	w.mu.Lock()
	stats := make([]RouteStats, 0, len(w.samples))
	for route, samples := range w.samples {
		sorted := append([]time.Duration(nil), samples...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		stats = append(stats, RouteStats{
			Route: route,
			Count: len(sorted),
			P95:   percentile(sorted, 0.95),
			P99:   percentile(sorted, 0.99),
		})
	}
	w.mu.Unlock()

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].P95 != stats[j].P95 {
			return stats[i].P95 > stats[j].P95
		}
		return stats[i].Route < stats[j].Route
	})
	if len(stats) > n {
		stats = stats[:n]
	}
	return stats
}

// Reset clears the window
func (w *RequestWindow) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.totals = WindowTotals{}
	w.samples = make(map[string][]time.Duration)
}

// percentile uses the nearest-rank method on sorted samples
func percentile(sorted []time.Duration, q float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(q*float64(len(sorted)))) - 1
	rank = min(max(rank, 0), len(sorted)-1)
	return sorted[rank]
}

// SummaryConfig controls the periodic request summary
type SummaryConfig struct {
	Interval       time.Duration
	AlertThreshold time.Duration
	TopRoutes      int
}

// RunSummary logs the window every interval and then resets it.
// It returns when ctx is done.
func RunSummary(ctx context.Context, window *RequestWindow, cfg SummaryConfig, logger *logging.Logger) error {
	if cfg.Interval <= 0 {
		return fmt.Errorf("metrics summary interval must be positive, got %s", cfg.Interval)
	}
	if cfg.TopRoutes <= 0 {
		cfg.TopRoutes = 3
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			LogSummary(window, cfg, logger)
			window.Reset()
		}
	}
}

// LogSummary writes one summary line plus an alert per slow route
func LogSummary(window *RequestWindow, cfg SummaryConfig, logger *logging.Logger) {
	totals := window.Totals()
	top := window.TopRoutesByP95(max(cfg.TopRoutes, 1))

	parts := make([]string, 0, len(top))
	for _, r := range top {
		parts = append(parts, fmt.Sprintf("%s p95=%dms p99=%dms (%d)", r.Route, r.P95.Milliseconds(), r.P99.Milliseconds(), r.Count))
	}

	logger.Info("Request metrics summary",
		"windowSeconds", int(cfg.Interval.Seconds()),
		"total", totals.Total,
		"4xx", totals.ClientErrors,
		"5xx", totals.ServerErrors,
		"top", strings.Join(parts, " ; "),
	)

	if cfg.AlertThreshold <= 0 {
		return
	}
	for _, r := range top {
		if r.P99 >= cfg.AlertThreshold {
			logger.Warn("Request latency alert",
				"route", r.Route,
				"p99Ms", r.P99.Milliseconds(),
				"count", r.Count,
				"thresholdMs", cfg.AlertThreshold.Milliseconds(),
			)
		}
	}
}
