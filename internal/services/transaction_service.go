package services

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/atmbank/backend/internal/audit"
	"github.com/atmbank/backend/internal/models"
	"github.com/shopspring/decimal"
)

// TransactionService is the sole writer to the ledger for credit/debit
// flows. The insufficient-funds check and the append run under one
// database transaction holding the account row lock, so two concurrent
// debits can never both observe the same pre-debit balance.
type TransactionService struct {
	db     *sql.DB
	ledger *LedgerStore
	audit  *audit.Logger
	mailer Mailer
}

// AmountRequest carries the single amount field of credit/debit calls.
type AmountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func NewTransactionService(db *sql.DB, mailer Mailer) *TransactionService {
	return &TransactionService{
		db:     db,
		ledger: NewLedgerStore(db),
		audit:  audit.NewLogger(),
		mailer: mailer,
	}
}

// Credit validates and appends a credit record, returning the committed
// record and the resulting balance.
func (ts *TransactionService) Credit(accountID int, amount decimal.Decimal) (*models.TransactionRecord, decimal.Decimal, error) {
	if !amount.IsPositive() {
		return nil, decimal.Zero, ErrInvalidAmount
	}

	tx, err := ts.db.Begin()
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("%w: begin credit: %v", ErrPersistence, err)
	}
	defer tx.Rollback()

	if err := ts.ledger.LockAccount(tx, accountID); err != nil {
		return nil, decimal.Zero, err
	}

	balance, err := ts.ledger.BalanceTx(tx, accountID)
	if err != nil {
		return nil, decimal.Zero, err
	}

	rec := &models.TransactionRecord{
		AccountID: accountID,
		Amount:    amount,
		Kind:      models.KindCredit,
		CreatedAt: time.Now().UTC(),
	}
	if err := ts.ledger.Append(tx, rec); err != nil {
		return nil, decimal.Zero, err
	}

	if err := tx.Commit(); err != nil {
		return nil, decimal.Zero, fmt.Errorf("%w: commit credit: %v", ErrPersistence, err)
	}

	newBalance := balance.Add(amount)
	ts.audit.LogTransaction(accountID, models.KindCredit, amount, "SUCCESS")
	return rec, newBalance, nil
}

// Debit validates, checks funds under the account lock and appends a
// debit record. The ledger is untouched when the debit is rejected.
func (ts *TransactionService) Debit(accountID int, amount decimal.Decimal) (*models.TransactionRecord, decimal.Decimal, error) {
	if !amount.IsPositive() {
		return nil, decimal.Zero, ErrInvalidAmount
	}

	tx, err := ts.db.Begin()
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("%w: begin debit: %v", ErrPersistence, err)
	}
	defer tx.Rollback()

	if err := ts.ledger.LockAccount(tx, accountID); err != nil {
		return nil, decimal.Zero, err
	}

	balance, err := ts.ledger.BalanceTx(tx, accountID)
	if err != nil {
		return nil, decimal.Zero, err
	}

	if balance.LessThan(amount) {
		return nil, balance, ErrInsufficientFunds
	}

	rec := &models.TransactionRecord{
		AccountID: accountID,
		Amount:    amount.Neg(),
		Kind:      models.KindDebit,
		CreatedAt: time.Now().UTC(),
	}
	if err := ts.ledger.Append(tx, rec); err != nil {
		return nil, decimal.Zero, err
	}

	if err := tx.Commit(); err != nil {
		return nil, decimal.Zero, fmt.Errorf("%w: commit debit: %v", ErrPersistence, err)
	}

	newBalance := balance.Sub(amount)
	ts.audit.LogTransaction(accountID, models.KindDebit, amount, "SUCCESS")
	return rec, newBalance, nil
}

// Balance recomputes the current balance from a fresh ledger snapshot.
func (ts *TransactionService) Balance(accountID int) (decimal.Decimal, error) {
	records, err := ts.ledger.ListByAccount(accountID)
	if err != nil {
		return decimal.Zero, err
	}
	return SumAmounts(records), nil
}

// GetBalance handles GET /user/balance
func (ts *TransactionService) GetBalance(w http.ResponseWriter, r *http.Request) {
	user, err := ts.currentUser(r)
	if err != nil {
		SendErrorResponse(w, "User not found or not authenticated", http.StatusUnauthorized, nil)
		return
	}

	balance, err := ts.Balance(user.ID)
	if err != nil {
		log.Printf("[TRANSACTION] Balance enquiry failed for user %d: %v", user.ID, err)
		SendErrorResponse(w, "Failed to fetch balance", http.StatusInternalServerError, nil)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"username": user.Username,
		"balance":  balance,
	})
}

// PostCredit handles POST /user/credit
func (ts *TransactionService) PostCredit(w http.ResponseWriter, r *http.Request) {
	user, err := ts.currentUser(r)
	if err != nil {
		SendErrorResponse(w, "User not found or not authenticated", http.StatusUnauthorized, nil)
		return
	}

	var req AmountRequest
	if err := DecodeJSONBody(w, r, &req); err != nil {
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}

	rec, newBalance, err := ts.Credit(user.ID, req.Amount)
	if err != nil {
		ts.rejectTransaction(w, user.ID, "CREDIT", err)
		return
	}

	go ts.sendCreditAlert(user.Email, req.Amount, newBalance)

	WriteJSON(w, http.StatusOK, map[string]any{
		"message":         fmt.Sprintf("Credit successful. %s, your new total amount: %s", user.Username, newBalance),
		"creditedAmount":  req.Amount,
		"transactionDate": rec.CreatedAt,
	})
}

// PostDebit handles POST /user/debit
func (ts *TransactionService) PostDebit(w http.ResponseWriter, r *http.Request) {
	user, err := ts.currentUser(r)
	if err != nil {
		SendErrorResponse(w, "User not found or not authenticated", http.StatusUnauthorized, nil)
		return
	}

	var req AmountRequest
	if err := DecodeJSONBody(w, r, &req); err != nil {
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}

	rec, newBalance, err := ts.Debit(user.ID, req.Amount)
	if err != nil {
		ts.rejectTransaction(w, user.ID, "DEBIT", err)
		return
	}

	go ts.sendDebitAlert(user.Email, req.Amount, newBalance)

	WriteJSON(w, http.StatusOK, map[string]any{
		"message":         fmt.Sprintf("Debit successful. %s, your remaining total amount: %s", user.Username, newBalance),
		"debitedAmount":   req.Amount,
		"transactionDate": rec.CreatedAt,
	})
}

func (ts *TransactionService) rejectTransaction(w http.ResponseWriter, accountID int, operation string, err error) {
	switch {
	case errors.Is(err, ErrInvalidAmount):
		SendErrorResponse(w, "Amount must be greater than zero", http.StatusBadRequest, nil)
	case errors.Is(err, ErrInsufficientFunds):
		SendErrorResponse(w, "Insufficient balance for the debit", http.StatusBadRequest, nil)
	case errors.Is(err, ErrNotFound):
		SendErrorResponse(w, "User not found", http.StatusNotFound, nil)
	default:
		log.Printf("[TRANSACTION] %s failed for account %d: %v", operation, accountID, err)
		ts.audit.LogError(accountID, operation, err)
		SendErrorResponse(w, "Failed to process transaction", http.StatusInternalServerError, nil)
	}
}

func (ts *TransactionService) currentUser(r *http.Request) (*models.User, error) {
	userID, ok := r.Context().Value("userID").(int)
	if !ok {
		return nil, ErrUnauthorized
	}

	var user models.User
	err := ts.db.QueryRow(`SELECT id, username, email FROM users WHERE id = $1`, userID).
		Scan(&user.ID, &user.Username, &user.Email)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: user %d", ErrNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: fetch user: %v", ErrPersistence, err)
	}
	return &user, nil
}

func (ts *TransactionService) sendCreditAlert(email string, amount, balance decimal.Decimal) {
	body := fmt.Sprintf("Dear customer,\n\n"+
		"An amount of %s has been credited to your account.\n"+
		"Your new balance is %s.\n\n"+
		"Thank you for banking with us.", amount, balance)
	if err := ts.mailer.Send(email, "Credit Alert", body); err != nil {
		log.Printf("[TRANSACTION] Credit alert delivery failed: %v", err)
	}
}

func (ts *TransactionService) sendDebitAlert(email string, amount, balance decimal.Decimal) {
	body := fmt.Sprintf("Dear customer,\n\n"+
		"An amount of %s has been debited from your account.\n"+
		"Your remaining balance is %s.\n\n"+
		"Thank you for banking with us.", amount, balance)
	if err := ts.mailer.Send(email, "Debit Alert", body); err != nil {
		log.Printf("[TRANSACTION] Debit alert delivery failed: %v", err)
	}
}
