package storage

import (
	"encoding/json"
	"fmt"

	"spendlog/internal/core"
)

// EncodeExpenses serializes the collection as a JSON array of
// {id, date, description, amount, category} objects, in order.
func EncodeExpenses(expenses []core.Expense) ([]byte, error) {
	if expenses == nil {
		expenses = []core.Expense{}
	}
	b, err := json.Marshal(expenses)
	if err != nil {
		return nil, fmt.Errorf("encode expenses: %w", err)
	}
	return b, nil
}

// DecodeExpenses parses a stored collection. A JSON null decodes to an
// empty collection.
func DecodeExpenses(data []byte) ([]core.Expense, error) {
	var expenses []core.Expense
	if err := json.Unmarshal(data, &expenses); err != nil {
		return nil, fmt.Errorf("decode expenses: %w", err)
	}
	if expenses == nil {
		expenses = []core.Expense{}
	}
	return expenses, nil
}
