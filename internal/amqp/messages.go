package amqp

import (
	"encoding/json"
	"time"

	"expensetracker/internal/core"
)

// Event types published after successful writes.
const (
	EventCreated = "expense.created"
	EventUpdated = "expense.updated"
	EventDeleted = "expense.deleted"
)

// ExpenseBody mirrors the HTTP representation of an expense.
type ExpenseBody struct {
	ID       string  `json:"_id"`
	Title    string  `json:"title"`
	Amount   float64 `json:"amount"`
	Date     string  `json:"date"`
	Category *string `json:"category"`
}

// ExpenseEvent announces a change to one expense. Deletions carry only the id.
type ExpenseEvent struct {
	Type      string       `json:"type"`
	ID        string       `json:"id"`
	Expense   *ExpenseBody `json:"expense,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// NewExpenseEvent builds a created or updated event carrying the full record.
func NewExpenseEvent(eventType string, e core.Expense) *ExpenseEvent {
	return &ExpenseEvent{
		Type: eventType,
		ID:   e.ID,
		Expense: &ExpenseBody{
			ID:       e.ID,
			Title:    e.Title,
			Amount:   e.Amount,
			Date:     e.FormattedDate(),
			Category: e.Category,
		},
		Timestamp: time.Now().UTC(),
	}
}

// NewDeletedEvent builds a deletion event for id.
func NewDeletedEvent(id string) *ExpenseEvent {
	return &ExpenseEvent{
		Type:      EventDeleted,
		ID:        id,
		Timestamp: time.Now().UTC(),
	}
}

func (m *ExpenseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ExpenseEventFromJSON(data []byte) (*ExpenseEvent, error) {
	var m ExpenseEvent
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
