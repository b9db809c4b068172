package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction kinds stored alongside the signed amount. The kind is
// redundant with the sign but kept explicit for statement rendering:
// KindCredit records always carry a positive amount, KindDebit a
// negative one.
const (
	KindCredit = "CREDIT"
	KindDebit  = "DEBIT"
)

// TransactionRecord is a single row of the append-only ledger. Records
// are never updated or deleted; corrections are compensating records.
type TransactionRecord struct {
	ID        int64           `json:"id" db:"id"`
	AccountID int             `json:"account_id" db:"account_id"`
	Amount    decimal.Decimal `json:"amount" db:"amount"` // signed: + credit, - debit
	Kind      string          `json:"kind" db:"kind"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// StatementEntry is one line of a replayed statement: the record's
// amount plus the cumulative balance after applying it.
type StatementEntry struct {
	Amount          decimal.Decimal `json:"amount"`
	TransactionType string          `json:"transactionType"`
	CreatedAt       time.Time       `json:"createdAt"`
	TotalBalance    decimal.Decimal `json:"totalBalance"`
}
