// Package http exposes the expense tracker as a JSON API.
package http

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"spendlog/internal/cache"
	"spendlog/internal/core"
	applog "spendlog/internal/log"
	"spendlog/internal/middleware/ratelimit"
	"spendlog/internal/middleware/security"
	"spendlog/internal/middleware/trace"
	"spendlog/internal/tracker"
)

const (
	summaryCacheKey = "summary"
	chartCacheKey   = "chart"
	maxBodyBytes    = 64 << 10
)

// Options tunes a Server. Zero values pick defaults.
type Options struct {
	RateLimitPerMinute int
	CacheTTL           time.Duration
	Logger             *applog.Logger
	// BlockSuspicious rejects requests the detector flags instead of only
	// logging them.
	BlockSuspicious bool
}

type Server struct {
	http.Server
	store  *tracker.Store
	logger *applog.Logger

	validate   *validator.Validate
	translator ut.Translator

	summaryCache cache.Cache[core.Summary]
	chartCache   cache.Cache[[]core.ChartSlice]
	cacheManager *cache.Manager

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware

	appMetrics   *appMetrics
	viewVersion  atomic.Int64
	shutdownOnce sync.Once
}

type appMetrics struct {
	expensesCreated int64
	expensesUpdated int64
	expensesDeleted int64
	cacheHits       int64
	cacheMisses     int64
	uptime          time.Time
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, store *tracker.Store, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.Default()
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	s := &Server{
		store:            store,
		logger:           logger.WithComponent(applog.ComponentHTTP),
		summaryCache:     cache.NewLRUCache[core.Summary](4, ttl),
		chartCache:       cache.NewLRUCache[[]core.ChartSlice](4, ttl),
		cacheManager:     cache.NewManager(logger),
		rateLimiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		securityDetector: security.NewDetector(logger),
		appMetrics:       &appMetrics{uptime: time.Now()},
	}
	s.traceMiddleware = trace.NewMiddleware(s.securityDetector.ExtractClientIP, logger)
	s.validate, s.translator = newValidator()

	if c, ok := s.summaryCache.(cache.Cleaner); ok {
		s.cacheManager.Register(c)
	}
	if c, ok := s.chartCache.(cache.Cleaner); ok {
		s.cacheManager.Register(c)
	}
	s.cacheManager.StartCleanup(5 * time.Minute)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /api/categories", s.handleCategories)
	mux.HandleFunc("GET /api/categorize", s.handleCategorize)

	mux.HandleFunc("GET /api/expenses", s.handleListExpenses)
	mux.HandleFunc("POST /api/expenses", s.handleCreateExpense)
	mux.HandleFunc("GET /api/expenses/{id}", s.handleGetExpense)
	mux.HandleFunc("PUT /api/expenses/{id}", s.handleUpdateExpense)
	mux.HandleFunc("PATCH /api/expenses/{id}", s.handleUpdateExpense)
	mux.HandleFunc("DELETE /api/expenses/{id}", s.handleDeleteExpense)

	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /api/chart", s.handleChart)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limit := s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, s.onRateLimit)

	var h http.Handler = mux
	h = limit(h)
	h = s.securityDetector.Middleware(opts.BlockSuspicious)(h)
	h = headers.Middleware(h)
	h = s.traceMiddleware.Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func newValidator() (*validator.Validate, ut.Translator) {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonFieldName)

	eng := en.New()
	trans, _ := ut.New(eng, eng).GetTranslator("en")
	if err := en_translations.RegisterDefaultTranslations(v, trans); err != nil {
		panic("register validator translations: " + err.Error())
	}
	return v, trans
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	NewJSONResponse().
		Status(http.StatusTooManyRequests).
		Error("Too many requests. Please try again later.").
		Write(w)
}

// invalidateViews drops cached aggregates after a mutation. Bumping the
// version orphans any aggregate computed concurrently with the mutation.
func (s *Server) invalidateViews() {
	s.viewVersion.Add(1)
	s.summaryCache.Purge()
	s.chartCache.Purge()
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) viewKey(name string) string {
	return name + ":" + strconv.FormatInt(s.viewVersion.Load(), 10)
}

func (m *appMetrics) record(ev tracker.EventType) {
	switch ev {
	case tracker.EventCreated:
		atomic.AddInt64(&m.expensesCreated, 1)
	case tracker.EventUpdated:
		atomic.AddInt64(&m.expensesUpdated, 1)
	case tracker.EventDeleted:
		atomic.AddInt64(&m.expensesDeleted, 1)
	}
}
