package worker

import (
	"context"
	"sort"
	"sync"
	"time"

	"spendlog/internal/amqp"
	"spendlog/internal/core"
	applog "spendlog/internal/log"
	"spendlog/internal/tracker"
)

// DigestWorker rebuilds a read-only copy of the expense collection from
// change events and periodically logs its summary. It never touches the
// store itself.
type DigestWorker struct {
	mu       sync.Mutex
	mirror   map[string]core.Expense
	lastSeen map[string]time.Time
	counts   map[tracker.EventType]int64
	skipped  int64

	notifier tracker.Notifier
	logger   *applog.Logger
}

func NewDigestWorker(logger *applog.Logger) *DigestWorker {
	if logger == nil {
		logger = applog.Default()
	}
	logger = logger.WithComponent(applog.ComponentWorker)
	return &DigestWorker{
		mirror:   make(map[string]core.Expense),
		lastSeen: make(map[string]time.Time),
		counts:   make(map[tracker.EventType]int64),
		notifier: tracker.LogNotifier{Logger: logger.Logger.With(applog.FieldComponent, applog.ComponentWorker)},
		logger:   logger,
	}
}

// HandleChange applies one change message. Messages older than the last one
// applied for the same expense are dropped, so redeliveries and reordering
// cannot resurrect a deleted record.
func (w *DigestWorker) HandleChange(ctx context.Context, msg *amqp.ChangeMessage) error {
	w.mu.Lock()
	if seen, ok := w.lastSeen[msg.ExpenseID]; ok && msg.Timestamp.Before(seen) {
		w.skipped++
		w.mu.Unlock()
		fields := applog.NewFields().
			WithOperation(applog.OpConsume).
			WithExpense(msg.ExpenseID, msg.Expense.Description, msg.Expense.Amount.Cents, string(msg.Expense.Category))
		w.logger.DebugContext(ctx, "Skipping stale change", append(fields.ToSlice(), "event", string(msg.Type))...)
		return nil
	}
	w.lastSeen[msg.ExpenseID] = msg.Timestamp

	switch msg.Type {
	case tracker.EventCreated, tracker.EventUpdated:
		w.mirror[msg.ExpenseID] = msg.Expense
	case tracker.EventDeleted:
		delete(w.mirror, msg.ExpenseID)
	}
	w.counts[msg.Type]++
	w.mu.Unlock()

	return w.notifier.Notify(ctx, msg.Event())
}

// Summary aggregates the mirrored collection.
func (w *DigestWorker) Summary() core.Summary {
	w.mu.Lock()
	expenses := make([]core.Expense, 0, len(w.mirror))
	for _, e := range w.mirror {
		expenses = append(expenses, e)
	}
	w.mu.Unlock()

	sort.Slice(expenses, func(i, j int) bool { return expenses[i].ID > expenses[j].ID })
	return core.Summarize(expenses)
}

// Counts returns how many events of each type were applied.
func (w *DigestWorker) Counts() map[tracker.EventType]int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[tracker.EventType]int64, len(w.counts))
	for k, v := range w.counts {
		out[k] = v
	}
	return out
}

// LogDigest writes the current summary at info level.
func (w *DigestWorker) LogDigest(ctx context.Context) {
	sum := w.Summary()
	counts := w.Counts()

	w.mu.Lock()
	skipped := w.skipped
	w.mu.Unlock()

	args := []any{
		"expenses", sum.Count,
		"total", sum.Total.String(),
		"highest_category", string(sum.Highest.Category),
		"created", counts[tracker.EventCreated],
		"updated", counts[tracker.EventUpdated],
		"deleted", counts[tracker.EventDeleted],
		"stale_skipped", skipped,
	}
	for _, row := range sum.ByCategory {
		args = append(args, "total_"+string(row.Category), row.Amount.String())
	}
	w.logger.InfoContext(ctx, "Spending digest", args...)
}

// Run logs a digest every interval until ctx is cancelled, and once more on
// the way out. A non-positive interval only logs the final digest.
func (w *DigestWorker) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		<-ctx.Done()
		w.LogDigest(context.WithoutCancel(ctx))
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.LogDigest(context.WithoutCancel(ctx))
			return nil
		case <-ticker.C:
			w.LogDigest(ctx)
		}
	}
}
