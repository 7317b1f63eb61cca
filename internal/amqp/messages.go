package amqp

import (
	"encoding/json"
	"time"

	"expenses/internal/core"
)

type EventType string

const (
	EventExpenseCreated EventType = "expense.created"
	EventExpenseUpdated EventType = "expense.updated"
	EventExpenseDeleted EventType = "expense.deleted"
)

// EventTypes lists every routing key the queue is bound to.
var EventTypes = []EventType{EventExpenseCreated, EventExpenseUpdated, EventExpenseDeleted}

// ExpenseEvent announces a committed expense write. Consumers fetch the
// expense itself if they need more than the ids.
type ExpenseEvent struct {
	Type       EventType `json:"type"`
	ExpenseID  int64     `json:"expense_id"`
	UserID     int64     `json:"user_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

func NewExpenseEvent(t EventType, e core.Expense) ExpenseEvent {
	return ExpenseEvent{
		Type:       t,
		ExpenseID:  e.ID,
		UserID:     e.UserID,
		OccurredAt: time.Now().UTC(),
	}
}

// ToJSON converts the event to JSON bytes
func (e ExpenseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func ExpenseEventFromJSON(data []byte) (ExpenseEvent, error) {
	var ev ExpenseEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return ExpenseEvent{}, err
	}
	return ev, nil
}
