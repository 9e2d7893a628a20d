package http

import (
	"net/http"
	"sync/atomic"

	"spendlog/internal/core"
	applog "spendlog/internal/log"
)

// handleSummary returns totals over every stored expense, ignoring any
// list filter.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	key := s.viewKey(summaryCacheKey)
	if sum, ok := s.summaryCache.Get(key); ok {
		atomic.AddInt64(&s.appMetrics.cacheHits, 1)
		NewJSONResponse().Data(sum).Write(w)
		return
	}
	atomic.AddInt64(&s.appMetrics.cacheMisses, 1)

	sum := core.Summarize(s.store.All())
	applog.FromContext(r.Context()).DebugContext(r.Context(), "Summary recomputed",
		applog.FieldOperation, applog.OpSummarize,
		"count", sum.Count,
		applog.FieldAmountCents, sum.Total.Cents)
	s.summaryCache.Set(key, sum)
	NewJSONResponse().Data(sum).Write(w)
}

// handleChart returns the pie-chart wedges for non-zero categories.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	key := s.viewKey(chartCacheKey)
	if slices, ok := s.chartCache.Get(key); ok {
		atomic.AddInt64(&s.appMetrics.cacheHits, 1)
		NewJSONResponse().Data(slices).Write(w)
		return
	}
	atomic.AddInt64(&s.appMetrics.cacheMisses, 1)

	slices := core.ChartSlices(core.TotalsByCategory(s.store.All()))
	applog.FromContext(r.Context()).DebugContext(r.Context(), "Chart recomputed",
		applog.FieldOperation, applog.OpSummarize,
		"slices", len(slices))
	s.chartCache.Set(key, slices)
	NewJSONResponse().Data(slices).Write(w)
}
