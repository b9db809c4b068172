package services

import (
	"database/sql"
	"fmt"

	"github.com/atmbank/backend/internal/models"
	"github.com/shopspring/decimal"
)

// LedgerStore persists the append-only transaction ledger. There is no
// update or delete path: corrections are compensating records. All
// validation happens in the transaction processor before Append is
// reached.
type LedgerStore struct {
	db *sql.DB
}

func NewLedgerStore(db *sql.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

// Append inserts a record inside the caller's transaction and fills in
// the assigned id. Callers must hold the account row lock (see
// LockAccount) so the record becomes visible atomically with the
// balance check that justified it.
func (s *LedgerStore) Append(tx *sql.Tx, rec *models.TransactionRecord) error {
	err := tx.QueryRow(`
		INSERT INTO ledger_records (account_id, amount, kind, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		rec.AccountID, rec.Amount, rec.Kind, rec.CreatedAt).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("%w: append ledger record: %v", ErrPersistence, err)
	}
	return nil
}

// ListByAccount returns a fresh snapshot of the account's records in
// statement order: created_at ascending, ties broken by id.
func (s *LedgerStore) ListByAccount(accountID int) ([]models.TransactionRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, account_id, amount, kind, created_at
		FROM ledger_records
		WHERE account_id = $1
		ORDER BY created_at, id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("%w: list ledger records: %v", ErrPersistence, err)
	}
	defer rows.Close()

	var records []models.TransactionRecord
	for rows.Next() {
		var rec models.TransactionRecord
		if err := rows.Scan(&rec.ID, &rec.AccountID, &rec.Amount, &rec.Kind, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan ledger record: %v", ErrPersistence, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list ledger records: %v", ErrPersistence, err)
	}
	return records, nil
}

// LockAccount takes a FOR UPDATE lock on the account's user row,
// serializing concurrent credit/debit flows for the same account. The
// lock is held until the surrounding transaction commits.
func (s *LedgerStore) LockAccount(tx *sql.Tx, accountID int) error {
	var id int
	err := tx.QueryRow(`SELECT id FROM users WHERE id = $1 FOR UPDATE`, accountID).Scan(&id)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: account %d", ErrNotFound, accountID)
	}
	if err != nil {
		return fmt.Errorf("%w: lock account: %v", ErrPersistence, err)
	}
	return nil
}

// BalanceTx sums the account's signed amounts within the caller's
// transaction. With the account row locked this is the authoritative
// pre-append balance.
func (s *LedgerStore) BalanceTx(tx *sql.Tx, accountID int) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := tx.QueryRow(`
		SELECT COALESCE(SUM(amount), 0) FROM ledger_records WHERE account_id = $1`,
		accountID).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: sum ledger records: %v", ErrPersistence, err)
	}
	return sum, nil
}
