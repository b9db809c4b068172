package audit

import (
	"encoding/json"
	"log"
	"time"

	"github.com/shopspring/decimal"
)

type Event struct {
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"`
	AccountID int       `json:"account_id"`
	Amount    string    `json:"amount,omitempty"`
	Status    string    `json:"status"`
	Details   any       `json:"details,omitempty"`
}

// Logger emits one JSON line per ledger event so the append-only
// history can be reconciled against the audit stream.
type Logger struct{}

func NewLogger() *Logger {
	return &Logger{}
}

func (a *Logger) LogTransaction(accountID int, kind string, amount decimal.Decimal, status string) {
	a.log(Event{
		Timestamp: time.Now(),
		EventType: kind,
		AccountID: accountID,
		Amount:    amount.String(),
		Status:    status,
	})
}

func (a *Logger) LogError(accountID int, operation string, err error) {
	a.log(Event{
		Timestamp: time.Now(),
		EventType: operation,
		AccountID: accountID,
		Status:    "FAILED",
		Details:   map[string]string{"error": err.Error()},
	})
}

func (a *Logger) log(event Event) {
	data, _ := json.Marshal(event)
	log.Printf("AUDIT: %s", string(data))
}
