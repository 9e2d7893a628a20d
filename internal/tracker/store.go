// Package tracker holds the expense collection and mirrors every change to
// a persistent key-value store.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"spendlog/internal/core"
	applog "spendlog/internal/log"
	"spendlog/internal/storage"
)

// Store is the in-memory expense collection, newest first. Construct one per
// process with New and share it by reference.
type Store struct {
	mu       sync.Mutex
	kv       storage.KeyValue
	key      string
	expenses []core.Expense
	lastID   int64
	now      func() time.Time
	notifier Notifier
	logger   *applog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithKey overrides the storage key (default storage.DefaultKey).
func WithKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// WithClock sets the time source used for id assignment.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithNotifier registers a receiver for committed changes.
func WithNotifier(n Notifier) Option {
	return func(s *Store) { s.notifier = n }
}

func WithLogger(l *applog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l.WithComponent(applog.ComponentStore)
		}
	}
}

// New loads the collection from kv. A missing key starts empty. Content that
// cannot be decoded is set aside under "<key>.corrupt" and the store starts
// empty. Only a failing read is returned as an error.
func New(ctx context.Context, kv storage.KeyValue, opts ...Option) (*Store, error) {
	if kv == nil {
		return nil, errors.New("tracker: nil key-value store")
	}
	s := &Store{
		kv:     kv,
		key:    storage.DefaultKey,
		now:    time.Now,
		logger: applog.Default().WithComponent(applog.ComponentStore),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load(ctx context.Context) error {
	raw, err := s.kv.Get(ctx, s.key)
	if errors.Is(err, storage.ErrNotFound) {
		s.expenses = []core.Expense{}
		s.logger.InfoContext(ctx, "No saved expenses, starting empty", applog.FieldStorageKey, s.key)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load expenses: %w", err)
	}

	expenses, err := storage.DecodeExpenses(raw)
	if err != nil {
		s.logger.WarnContext(ctx, "Saved expenses are malformed, resetting to empty collection",
			applog.FieldStorageKey, s.key,
			applog.FieldError, err,
			"bytes", len(raw))
		if serr := s.kv.Set(ctx, s.key+".corrupt", raw); serr != nil {
			s.logger.WarnContext(ctx, "Failed to keep a copy of malformed expenses", applog.FieldError, serr)
		}
		expenses = []core.Expense{}
	}

	s.expenses = expenses
	for _, e := range expenses {
		if n, err := strconv.ParseInt(e.ID, 10, 64); err == nil && n > s.lastID {
			s.lastID = n
		}
	}
	s.logger.InfoContext(ctx, "Expenses loaded", applog.FieldStorageKey, s.key, "count", len(expenses))
	return nil
}

// Add validates in, assigns an id and, when no category was chosen, the
// category detected from the description. The record is prepended and the
// collection persisted before Add returns.
func (s *Store) Add(ctx context.Context, in core.ExpenseInput) (core.Expense, error) {
	if err := in.Validate(); err != nil {
		return core.Expense{}, fmt.Errorf("add expense: %w", err)
	}
	category := in.Category
	if category == "" {
		category = core.Categorize(in.Description)
	}

	s.mu.Lock()
	e := core.Expense{
		ID:          s.nextID(),
		Date:        in.Date,
		Description: strings.TrimSpace(in.Description),
		Amount:      in.Amount,
		Category:    category,
	}
	next := make([]core.Expense, 0, len(s.expenses)+1)
	next = append(next, e)
	next = append(next, s.expenses...)
	if err := s.commit(ctx, next); err != nil {
		s.mu.Unlock()
		return core.Expense{}, err
	}
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Expense created",
		applog.FieldOperation, applog.OpCreate,
		applog.FieldExpenseID, e.ID,
		applog.FieldCategory, string(e.Category),
		applog.FieldAmountCents, e.Amount.Cents,
		"auto_categorized", in.Category == "")
	s.notify(ctx, EventCreated, e)
	return e, nil
}

// Update merges patch into the record with the given id. A missing id is
// not an error: it reports false and leaves the collection unchanged. An
// explicitly empty category re-runs auto-detection on the merged description.
func (s *Store) Update(ctx context.Context, id string, patch core.ExpensePatch) (core.Expense, bool, error) {
	s.mu.Lock()
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		s.logger.DebugContext(ctx, "Update of unknown expense ignored", applog.FieldExpenseID, id)
		return core.Expense{}, false, nil
	}

	merged := patch.Apply(s.expenses[idx])
	if merged.Category == "" {
		merged.Category = core.Categorize(merged.Description)
	}
	if err := merged.Validate(); err != nil {
		s.mu.Unlock()
		return core.Expense{}, true, fmt.Errorf("update expense %s: %w", id, err)
	}

	next := append([]core.Expense(nil), s.expenses...)
	next[idx] = merged
	if err := s.commit(ctx, next); err != nil {
		s.mu.Unlock()
		return core.Expense{}, true, err
	}
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Expense updated",
		applog.FieldOperation, applog.OpUpdate,
		applog.FieldExpenseID, id,
		applog.FieldCategory, string(merged.Category),
		applog.FieldAmountCents, merged.Amount.Cents)
	s.notify(ctx, EventUpdated, merged)
	return merged, true, nil
}

// Delete removes the record with the given id. A missing id reports false.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		s.logger.DebugContext(ctx, "Delete of unknown expense ignored", applog.FieldExpenseID, id)
		return false, nil
	}

	removed := s.expenses[idx]
	next := make([]core.Expense, 0, len(s.expenses)-1)
	next = append(next, s.expenses[:idx]...)
	next = append(next, s.expenses[idx+1:]...)
	if err := s.commit(ctx, next); err != nil {
		s.mu.Unlock()
		return false, err
	}
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Expense deleted",
		applog.FieldOperation, applog.OpDelete,
		applog.FieldExpenseID, id)
	s.notify(ctx, EventDeleted, removed)
	return true, nil
}

// All returns a copy of the collection, most recently added first.
func (s *Store) All() []core.Expense {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Expense(nil), s.expenses...)
}

// Get returns the record with the given id.
func (s *Store) Get(id string) (core.Expense, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx := s.indexOf(id); idx >= 0 {
		return s.expenses[idx], true
	}
	return core.Expense{}, false
}

// Len returns the number of stored expenses.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.expenses)
}

// Filter returns the records matching f in display order.
func (s *Store) Filter(f core.Filter) []core.Expense {
	return core.FilterExpenses(s.All(), f)
}

// commit persists next and, only on success, makes it the live collection.
// Callers hold s.mu.
func (s *Store) commit(ctx context.Context, next []core.Expense) error {
	data, err := storage.EncodeExpenses(next)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, s.key, data); err != nil {
		s.logger.ErrorContext(ctx, "Failed to persist expenses", applog.FieldStorageKey, s.key, applog.FieldError, err)
		return fmt.Errorf("persist expenses: %w", err)
	}
	s.expenses = next
	return nil
}

// nextID derives an id from the creation time in milliseconds, bumping it
// past the last issued id and any existing id. Callers hold s.mu.
func (s *Store) nextID() string {
	candidate := s.now().UnixMilli()
	if candidate <= s.lastID {
		candidate = s.lastID + 1
	}
	for s.indexOf(strconv.FormatInt(candidate, 10)) >= 0 {
		candidate++
	}
	s.lastID = candidate
	return strconv.FormatInt(candidate, 10)
}

func (s *Store) indexOf(id string) int {
	for i, e := range s.expenses {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) notify(ctx context.Context, typ EventType, e core.Expense) {
	if s.notifier == nil {
		return
	}
	ev := Event{Type: typ, ExpenseID: e.ID, Expense: e, Timestamp: s.now()}
	if err := s.notifier.Notify(ctx, ev); err != nil {
		// Don't fail the operation - the change is already persisted
		s.logger.WarnContext(ctx, "Failed to deliver change notification",
			"event", string(typ),
			applog.FieldExpenseID, e.ID,
			applog.FieldError, err)
	}
}

// Ping checks that the backing store is readable.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.kv.Get(ctx, s.key)
	if err == nil || errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	return err
}
