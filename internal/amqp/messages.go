package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"spendlog/internal/core"
	"spendlog/internal/tracker"
)

// ChangeMessage is the wire form of a committed expense change. It carries
// the full record so consumers never read back from the store.
type ChangeMessage struct {
	Type      tracker.EventType `json:"type"`
	ExpenseID string            `json:"expense_id"`
	Expense   core.Expense      `json:"expense"`
	Timestamp time.Time         `json:"timestamp"`
}

var ErrInvalidMessage = errors.New("invalid change message")

// NewChangeMessage converts a store event into its wire form.
func NewChangeMessage(ev tracker.Event) *ChangeMessage {
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return &ChangeMessage{
		Type:      ev.Type,
		ExpenseID: ev.ExpenseID,
		Expense:   ev.Expense,
		Timestamp: ts.UTC(),
	}
}

// Event converts the message back into a store event.
func (m *ChangeMessage) Event() tracker.Event {
	return tracker.Event{
		Type:      m.Type,
		ExpenseID: m.ExpenseID,
		Expense:   m.Expense,
		Timestamp: m.Timestamp,
	}
}

// ToJSON converts the message to JSON bytes
func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ChangeMessageFromJSON decodes and checks a message body.
func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	switch msg.Type {
	case tracker.EventCreated, tracker.EventUpdated, tracker.EventDeleted:
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidMessage, msg.Type)
	}
	if msg.ExpenseID == "" {
		return nil, fmt.Errorf("%w: missing expense_id", ErrInvalidMessage)
	}
	return &msg, nil
}
