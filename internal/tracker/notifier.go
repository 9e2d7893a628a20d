package tracker

import (
	"context"
	"log/slog"
	"time"

	"spendlog/internal/core"
)

// EventType names a change to the collection.
type EventType string

const (
	EventCreated EventType = "expense.created"
	EventUpdated EventType = "expense.updated"
	EventDeleted EventType = "expense.deleted"
)

// Event describes a committed change. Expense holds the record after the
// change, or the removed record for deletes.
type Event struct {
	Type      EventType    `json:"type"`
	ExpenseID string       `json:"expense_id"`
	Expense   core.Expense `json:"expense"`
	Timestamp time.Time    `json:"timestamp"`
}

// Message is the user-facing notification text for the event.
func (e Event) Message() string {
	switch e.Type {
	case EventCreated:
		return "Expense added successfully!"
	case EventUpdated:
		return "Expense updated successfully!"
	case EventDeleted:
		return "Expense deleted successfully!"
	default:
		return ""
	}
}

// Notifier receives committed changes. Notify errors never undo a change.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, ev Event) error

func (f NotifierFunc) Notify(ctx context.Context, ev Event) error { return f(ctx, ev) }

// LogNotifier writes every event to a structured logger.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Notify(ctx context.Context, ev Event) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, ev.Message(),
		"event", string(ev.Type),
		"expense_id", ev.ExpenseID,
		"category", string(ev.Expense.Category),
		"amount_cents", ev.Expense.Amount.Cents)
	return nil
}

// MultiNotifier fans an event out to several notifiers and reports the
// first error after all of them ran.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, ev Event) error {
	var first error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}
