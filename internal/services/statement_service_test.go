package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/atmbank/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expectLedgerList(dbmock sqlmock.Sqlmock, rows *sqlmock.Rows) {
	dbmock.ExpectQuery(`SELECT id, account_id, amount, kind, created_at\s+FROM ledger_records`).
		WithArgs(1).
		WillReturnRows(rows)
}

func TestStatementService_GetHistory(t *testing.T) {
	db, dbmock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewStatementService(db)
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("replays running balance in order", func(t *testing.T) {
		expectUserLookup(dbmock)
		expectLedgerList(dbmock, sqlmock.NewRows([]string{"id", "account_id", "amount", "kind", "created_at"}).
			AddRow(1, 1, "100", models.KindCredit, base).
			AddRow(2, 1, "-30", models.KindDebit, base.Add(time.Minute)).
			AddRow(3, 1, "5.50", models.KindCredit, base.Add(2*time.Minute)))

		w := httptest.NewRecorder()
		service.GetHistory(w, authedRequest("GET", "/api/user/history", nil))

		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Message      string `json:"message"`
			Transactions []struct {
				Amount          string `json:"amount"`
				TransactionType string `json:"transactionType"`
				TotalBalance    string `json:"totalBalance"`
			} `json:"transactions"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "Transaction history retrieved successfully", resp.Message)
		require.Len(t, resp.Transactions, 3)

		assert.Equal(t, "100", resp.Transactions[0].TotalBalance)
		assert.Equal(t, "70", resp.Transactions[1].TotalBalance)
		assert.Equal(t, "75.5", resp.Transactions[2].TotalBalance)
		assert.Equal(t, models.KindDebit, resp.Transactions[1].TransactionType)
		assert.Equal(t, "-30", resp.Transactions[1].Amount)
		assert.NoError(t, dbmock.ExpectationsWereMet())
	})

	t.Run("empty ledger", func(t *testing.T) {
		expectUserLookup(dbmock)
		expectLedgerList(dbmock, sqlmock.NewRows([]string{"id", "account_id", "amount", "kind", "created_at"}))

		w := httptest.NewRecorder()
		service.GetHistory(w, authedRequest("GET", "/api/user/history", nil))

		require.Equal(t, http.StatusOK, w.Code)
		var resp map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "No transactions found for this user", resp["message"])
		assert.Empty(t, resp["transactions"])
	})

	t.Run("missing auth context", func(t *testing.T) {
		w := httptest.NewRecorder()
		service.GetHistory(w, httptest.NewRequest("GET", "/api/user/history", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestStatementService_GetPDF(t *testing.T) {
	db, dbmock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewStatementService(db)
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	expectUserLookup(dbmock)
	expectLedgerList(dbmock, sqlmock.NewRows([]string{"id", "account_id", "amount", "kind", "created_at"}).
		AddRow(1, 1, "250", models.KindCredit, base).
		AddRow(2, 1, "-40", models.KindDebit, base.Add(time.Hour)))

	w := httptest.NewRecorder()
	service.GetPDF(w, authedRequest("GET", "/api/user/pdf", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "TransactionHistory.pdf")

	body := w.Body.Bytes()
	require.Greater(t, len(body), 4)
	assert.Equal(t, "%PDF", string(body[:4]))
	assert.NoError(t, dbmock.ExpectationsWereMet())
}

func TestRenderStatementPDF_Empty(t *testing.T) {
	body, err := renderStatementPDF("alice", nil)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(body[:4]))
}
