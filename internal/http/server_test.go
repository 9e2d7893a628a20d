package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"spendlog/internal/core"
	applog "spendlog/internal/log"
	"spendlog/internal/storage"
	"spendlog/internal/tracker"
)

type testEnvelope struct {
	Data         json.RawMessage   `json:"data"`
	Notification *Notification     `json:"notification"`
	Errors       map[string]string `json:"errors"`
}

// flakyKV fails every write once broken is set.
type flakyKV struct {
	*storage.MemoryKV
	broken bool
}

func (f *flakyKV) Set(ctx context.Context, key string, value []byte) error {
	if f.broken {
		return errors.New("disk full")
	}
	return f.MemoryKV.Set(ctx, key, value)
}

func newTestServer(t *testing.T, kv storage.KeyValue) *Server {
	t.Helper()
	if kv == nil {
		kv = storage.NewMemoryKV()
	}
	store, err := tracker.New(context.Background(), kv,
		tracker.WithLogger(applog.Discard()),
		tracker.WithClock(func() time.Time { return time.UnixMilli(1000) }))
	if err != nil {
		t.Fatalf("tracker.New: %v", err)
	}
	srv := NewServer(":0", store, Options{Logger: applog.Discard(), RateLimitPerMinute: 1000})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func do(t *testing.T, srv *Server, method, path, body string) (*httptest.ResponseRecorder, testEnvelope) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		if strings.HasPrefix(body, "{") {
			req.Header.Set("Content-Type", "application/json")
		} else {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)

	var env testEnvelope
	if strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
			t.Fatalf("%s %s: decode body %q: %v", method, path, rr.Body.String(), err)
		}
	}
	return rr, env
}

func decodeData[T any](t *testing.T, env testEnvelope) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(env.Data, &v); err != nil {
		t.Fatalf("decode data %s: %v", env.Data, err)
	}
	return v
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t, nil)
	for _, path := range []string{"/healthz", "/readyz"} {
		rr, _ := do(t, srv, http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
	if rr, _ := do(t, srv, http.MethodGet, "/healthz", ""); rr.Header().Get("X-Request-ID") == "" {
		t.Fatal("missing X-Request-ID header")
	}
}

func TestCreateExpense(t *testing.T) {
	srv := newTestServer(t, nil)

	rr, env := do(t, srv, http.MethodPost, "/api/expenses",
		`{"date":"2024-03-01","description":"Uber to airport","amount":12.5}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if env.Notification == nil || env.Notification.Message != "Expense added successfully!" {
		t.Fatalf("notification = %+v", env.Notification)
	}
	e := decodeData[core.Expense](t, env)
	if e.ID != "1000" || e.Category != core.Travel || e.Amount.Cents != 1250 {
		t.Fatalf("created = %+v", e)
	}
	if got := rr.Header().Get("Location"); got != "/api/expenses/1000" {
		t.Fatalf("Location = %q", got)
	}

	// Form bodies work the same way, and an explicit category wins.
	rr, env = do(t, srv, http.MethodPost, "/api/expenses",
		"date=2024-03-02&description=Pizza+night&amount=8,75&category=Entertainment")
	if rr.Code != http.StatusCreated {
		t.Fatalf("form status=%d body=%s", rr.Code, rr.Body.String())
	}
	e = decodeData[core.Expense](t, env)
	if e.Category != core.Entertainment || e.Amount.Cents != 875 || e.ID != "1001" {
		t.Fatalf("form created = %+v", e)
	}
}

func TestCreateExpenseValidation(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantCode  int
		wantField string
	}{
		{"missing description", `{"date":"2024-03-01","amount":5}`, 422, "description"},
		{"blank description", `{"date":"2024-03-01","description":"   ","amount":5}`, 422, "description"},
		{"bad date", `{"date":"2024-13-40","description":"x","amount":5}`, 422, "date"},
		{"missing date", `{"description":"x","amount":5}`, 422, "date"},
		{"zero amount", `{"date":"2024-03-01","description":"x","amount":0}`, 422, "amount"},
		{"negative amount", `{"date":"2024-03-01","description":"x","amount":-3}`, 422, "amount"},
		{"text amount", "date=2024-03-01&description=x&amount=abc", 422, "amount"},
		{"unknown category", `{"date":"2024-03-01","description":"x","amount":5,"category":"Pets"}`, 422, "category"},
		{"long description", `{"date":"2024-03-01","description":"` + strings.Repeat("a", 201) + `","amount":5}`, 422, "description"},
		{"amount above maximum", `{"date":"2024-03-01","description":"x","amount":100000000000.01}`, 422, "amount"},
		{"malformed json", `{"date":`, 400, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, nil)
			rr, env := do(t, srv, http.MethodPost, "/api/expenses", tt.body)
			if rr.Code != tt.wantCode {
				t.Fatalf("status=%d want %d body=%s", rr.Code, tt.wantCode, rr.Body.String())
			}
			if tt.wantField != "" {
				if env.Notification == nil || env.Notification.Message != "Please fill in all required fields with valid values." {
					t.Fatalf("notification = %+v", env.Notification)
				}
				if _, ok := env.Errors[tt.wantField]; !ok {
					t.Fatalf("errors = %v, want key %q", env.Errors, tt.wantField)
				}
			}
			if srv.store.Len() != 0 {
				t.Fatalf("rejected input was stored")
			}
		})
	}
}

func TestCreateExpenseMultibyteDescription(t *testing.T) {
	srv := newTestServer(t, nil)
	desc := strings.Repeat("é", 150)
	rr, env := do(t, srv, http.MethodPost, "/api/expenses",
		`{"date":"2024-03-01","description":"`+desc+`","amount":4.2}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if e := decodeData[core.Expense](t, env); e.Description != desc {
		t.Fatalf("description = %q", e.Description)
	}
}

func TestListAndFilter(t *testing.T) {
	srv := newTestServer(t, nil)
	for _, body := range []string{
		`{"date":"2024-01-10","description":"Groceries","amount":40}`,
		`{"date":"2024-02-10","description":"Netflix","amount":15}`,
		`{"date":"2024-03-10","description":"Dinner out","amount":60}`,
	} {
		if rr, _ := do(t, srv, http.MethodPost, "/api/expenses", body); rr.Code != http.StatusCreated {
			t.Fatalf("seed status=%d", rr.Code)
		}
	}

	tests := []struct {
		query     string
		wantCount int
		wantTotal int64
	}{
		{"", 3, 11500},
		{"?category=all", 3, 11500},
		{"?category=Food", 2, 10000},
		{"?category=Bills", 0, 0},
		{"?start=2024-02-01", 2, 7500},
		{"?end=2024-02-10", 2, 5500},
		{"?category=Food&start=2024-02-01&end=2024-03-31", 1, 6000},
		{"?start=2024-03-01&end=2024-01-01", 0, 0},
	}
	for _, tt := range tests {
		rr, env := do(t, srv, http.MethodGet, "/api/expenses"+tt.query, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%q status=%d", tt.query, rr.Code)
		}
		list := decodeData[expenseList](t, env)
		if list.Count != tt.wantCount || list.Total.Cents != tt.wantTotal {
			t.Errorf("%q: count=%d total=%d, want %d/%d", tt.query, list.Count, list.Total.Cents, tt.wantCount, tt.wantTotal)
		}
	}

	// Newest first
	_, env := do(t, srv, http.MethodGet, "/api/expenses", "")
	list := decodeData[expenseList](t, env)
	if list.Expenses[0].Description != "Dinner out" {
		t.Fatalf("first = %q, want most recently added", list.Expenses[0].Description)
	}

	for _, q := range []string{"?category=Pets", "?start=yesterday", "?end=2024-02-30"} {
		if rr, _ := do(t, srv, http.MethodGet, "/api/expenses"+q, ""); rr.Code != http.StatusBadRequest {
			t.Errorf("%q status=%d, want 400", q, rr.Code)
		}
	}
}

func TestGetUpdateDelete(t *testing.T) {
	srv := newTestServer(t, nil)
	do(t, srv, http.MethodPost, "/api/expenses", `{"date":"2024-03-01","description":"Coffee","amount":3.5}`)

	rr, env := do(t, srv, http.MethodGet, "/api/expenses/1000", "")
	if rr.Code != http.StatusOK || decodeData[core.Expense](t, env).Description != "Coffee" {
		t.Fatalf("get status=%d body=%s", rr.Code, rr.Body.String())
	}

	// PATCH changes only the amount.
	rr, env = do(t, srv, http.MethodPatch, "/api/expenses/1000", `{"amount":"4.25"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("patch status=%d body=%s", rr.Code, rr.Body.String())
	}
	e := decodeData[core.Expense](t, env)
	if e.Amount.Cents != 425 || e.Description != "Coffee" || e.Category != core.Food {
		t.Fatalf("patched = %+v", e)
	}
	if env.Notification == nil || env.Notification.Message != "Expense updated successfully!" {
		t.Fatalf("notification = %+v", env.Notification)
	}

	// PUT replaces everything; no category re-detects it.
	rr, env = do(t, srv, http.MethodPut, "/api/expenses/1000",
		`{"date":"2024-03-05","description":"Internet bill","amount":30}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("put status=%d body=%s", rr.Code, rr.Body.String())
	}
	e = decodeData[core.Expense](t, env)
	if e.ID != "1000" || e.Category != core.Bills || e.Date.String() != "2024-03-05" {
		t.Fatalf("replaced = %+v", e)
	}

	if rr, _ := do(t, srv, http.MethodPatch, "/api/expenses/1000", `{"description":""}`); rr.Code != 422 {
		t.Fatalf("empty description patch status=%d", rr.Code)
	}

	for _, method := range []string{http.MethodGet, http.MethodPatch, http.MethodDelete} {
		if rr, _ := do(t, srv, method, "/api/expenses/999", `{"amount":1}`); rr.Code != http.StatusNotFound {
			t.Errorf("%s unknown id status=%d, want 404", method, rr.Code)
		}
	}

	rr, env = do(t, srv, http.MethodDelete, "/api/expenses/1000", "")
	if rr.Code != http.StatusOK || env.Notification.Message != "Expense deleted successfully!" {
		t.Fatalf("delete status=%d body=%s", rr.Code, rr.Body.String())
	}
	if srv.store.Len() != 0 {
		t.Fatal("expense not deleted")
	}
}

func TestSummaryIsCachedAndInvalidated(t *testing.T) {
	srv := newTestServer(t, nil)

	_, env := do(t, srv, http.MethodGet, "/api/summary", "")
	sum := decodeData[core.Summary](t, env)
	if sum.Count != 0 || sum.Highest.Category != core.CategoryNone {
		t.Fatalf("empty summary = %+v", sum)
	}

	do(t, srv, http.MethodPost, "/api/expenses", `{"date":"2024-03-01","description":"Hotel","amount":100}`)
	do(t, srv, http.MethodPost, "/api/expenses", `{"date":"2024-03-01","description":"Lunch","amount":25}`)

	_, env = do(t, srv, http.MethodGet, "/api/summary", "")
	sum = decodeData[core.Summary](t, env)
	if sum.Count != 2 || sum.Total.Cents != 12500 || sum.Highest.Category != core.Travel {
		t.Fatalf("summary = %+v", sum)
	}

	// Filters on the list never narrow the summary.
	_, env = do(t, srv, http.MethodGet, "/api/summary?category=Food", "")
	if decodeData[core.Summary](t, env).Count != 2 {
		t.Fatal("summary should cover every expense")
	}
	if hits := srv.appMetrics.cacheHits; hits < 1 {
		t.Fatalf("cache hits = %d, want at least 1", hits)
	}

	_, env = do(t, srv, http.MethodGet, "/api/chart", "")
	chart := decodeData[[]core.ChartSlice](t, env)
	if len(chart) != 2 || chart[0].Category != core.Food || chart[0].Percent != 20 || chart[1].Percent != 80 {
		t.Fatalf("chart = %+v", chart)
	}

	do(t, srv, http.MethodDelete, "/api/expenses/1000", "")
	_, env = do(t, srv, http.MethodGet, "/api/summary", "")
	if sum := decodeData[core.Summary](t, env); sum.Count != 1 || sum.Highest.Category != core.Food {
		t.Fatalf("summary after delete = %+v", sum)
	}
}

func TestStorageFailureReturns500(t *testing.T) {
	kv := &flakyKV{MemoryKV: storage.NewMemoryKV()}
	srv := newTestServer(t, kv)
	do(t, srv, http.MethodPost, "/api/expenses", `{"date":"2024-03-01","description":"Coffee","amount":3}`)

	kv.broken = true
	if rr, _ := do(t, srv, http.MethodPost, "/api/expenses", `{"date":"2024-03-01","description":"Tea","amount":2}`); rr.Code != http.StatusInternalServerError {
		t.Fatalf("add status=%d, want 500", rr.Code)
	}
	if rr, _ := do(t, srv, http.MethodDelete, "/api/expenses/1000", ""); rr.Code != http.StatusInternalServerError {
		t.Fatalf("delete status=%d, want 500", rr.Code)
	}
	if srv.store.Len() != 1 {
		t.Fatalf("len = %d, memory must be unchanged after failed writes", srv.store.Len())
	}
}

func TestCategoriesAndCategorize(t *testing.T) {
	srv := newTestServer(t, nil)

	_, env := do(t, srv, http.MethodGet, "/api/categories", "")
	cats := decodeData[[]core.CategoryInfo](t, env)
	if len(cats) != 6 || cats[0].Name != core.Food || cats[5].Name != core.Others {
		t.Fatalf("categories = %+v", cats)
	}

	tests := []struct {
		desc     string
		wantCat  string
		wantHint bool
	}{
		{"spotify premium", "Entertainment", true},
		{"ab", "Others", false},
		{"random thing", "Others", true},
	}
	for _, tt := range tests {
		_, env := do(t, srv, http.MethodGet, "/api/categorize?description="+strings.ReplaceAll(tt.desc, " ", "+"), "")
		got := decodeData[struct {
			Category string `json:"category"`
			Hint     bool   `json:"hint"`
		}](t, env)
		if got.Category != tt.wantCat || got.Hint != tt.wantHint {
			t.Errorf("%q: got %+v", tt.desc, got)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)
	do(t, srv, http.MethodPost, "/api/expenses", `{"date":"2024-03-01","description":"Coffee","amount":3}`)

	rr, _ := do(t, srv, http.MethodGet, "/metrics", "")
	body := rr.Body.String()
	for _, want := range []string{
		`expense_operations_total{op="create"} 1`,
		"expenses_stored 1",
		"http_requests_total",
		"uptime_seconds",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, nil)
	if rr, _ := do(t, srv, http.MethodDelete, "/api/expenses", ""); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d, want 405", rr.Code)
	}
}

func TestRateLimit(t *testing.T) {
	store, err := tracker.New(context.Background(), storage.NewMemoryKV(), tracker.WithLogger(applog.Discard()))
	if err != nil {
		t.Fatal(err)
	}
	srv := NewServer(":0", store, Options{Logger: applog.Discard(), RateLimitPerMinute: 2})
	defer srv.Shutdown(context.Background())

	for i := 0; i < 2; i++ {
		if rr, _ := do(t, srv, http.MethodGet, "/healthz", ""); rr.Code != http.StatusOK {
			t.Fatalf("request %d status=%d", i, rr.Code)
		}
	}
	rr, env := do(t, srv, http.MethodGet, "/healthz", "")
	if rr.Code != http.StatusTooManyRequests || rr.Header().Get("Retry-After") == "" {
		t.Fatalf("status=%d retry-after=%q", rr.Code, rr.Header().Get("Retry-After"))
	}
	if env.Notification == nil || env.Notification.Type != NotificationError {
		t.Fatalf("notification = %+v", env.Notification)
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	srv := newTestServer(t, nil)
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("first shutdown: %v", err)
	}
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("second shutdown: %v", err)
	}
}
