package services

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestAdminService_GetAllUsers(t *testing.T) {
	db, dbmock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewAdminService(db)

	t.Run("lists accounts with positive balances", func(t *testing.T) {
		dbmock.ExpectQuery(`SELECT u.id, u.username, u.email, SUM\(l.amount\) AS balance`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email", "balance"}).
				AddRow(1, "alice", "alice@example.com", "150.25").
				AddRow(3, "carol", "carol@example.com", "20"))

		w := httptest.NewRecorder()
		service.GetAllUsers(w, httptest.NewRequest("GET", "/api/admin/all-users", nil))

		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Users []struct {
				Username string `json:"username"`
				Balance  string `json:"balance"`
			} `json:"users"`
			Count int `json:"count"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 2, resp.Count)
		require.Len(t, resp.Users, 2)
		assert.Equal(t, "alice", resp.Users[0].Username)
		assert.Equal(t, "150.25", resp.Users[0].Balance)
		assert.NoError(t, dbmock.ExpectationsWereMet())
	})

	t.Run("no qualifying accounts", func(t *testing.T) {
		dbmock.ExpectQuery(`SELECT u.id, u.username, u.email, SUM\(l.amount\) AS balance`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email", "balance"}))

		w := httptest.NewRecorder()
		service.GetAllUsers(w, httptest.NewRequest("GET", "/api/admin/all-users", nil))

		require.Equal(t, http.StatusOK, w.Code)
		var resp map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, float64(0), resp["count"])
		assert.Empty(t, resp["users"])
	})
}

// buildWorkbook renders an in-memory xlsx with a header row plus the
// given customer rows.
func buildWorkbook(t *testing.T, rows [][]string) []byte {
	t.Helper()
	wb := excelize.NewFile()
	sheet := wb.GetSheetName(0)
	require.NoError(t, wb.SetSheetRow(sheet, "A1", &[]string{"Name", "Age", "Pincode"}))
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		require.NoError(t, err)
		require.NoError(t, wb.SetSheetRow(sheet, cell, &row))
	}
	var buf bytes.Buffer
	require.NoError(t, wb.Write(&buf))
	return buf.Bytes()
}

func uploadRequest(t *testing.T, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	r := httptest.NewRequest("POST", "/api/admin/import", &body)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return r
}

func TestImportService_ImportExcel(t *testing.T) {
	t.Run("imports new rows and skips duplicates", func(t *testing.T) {
		db, dbmock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		workbook := buildWorkbook(t, [][]string{
			{"Ravi", "34", "560001"},
			{"Meena", "28", "110011"},
		})

		dbmock.ExpectQuery(`SELECT EXISTS`).
			WithArgs("Ravi", "34", "560001").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		dbmock.ExpectExec(`INSERT INTO imported_customers`).
			WithArgs("Ravi", "34", "560001").
			WillReturnResult(sqlmock.NewResult(1, 1))
		dbmock.ExpectQuery(`SELECT EXISTS`).
			WithArgs("Meena", "28", "110011").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		w := httptest.NewRecorder()
		NewImportService(db).ImportExcel(w, uploadRequest(t, "customers.xlsx", workbook))

		require.Equal(t, http.StatusOK, w.Code)
		var resp map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "Data imported successfully", resp["message"])
		assert.Equal(t, float64(1), resp["count"])
		assert.NoError(t, dbmock.ExpectationsWereMet())
	})

	t.Run("rejects non-excel uploads", func(t *testing.T) {
		db, _, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		w := httptest.NewRecorder()
		NewImportService(db).ImportExcel(w, uploadRequest(t, "customers.csv", []byte("Name,Age,Pincode")))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("rejects missing file field", func(t *testing.T) {
		db, _, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		r := httptest.NewRequest("POST", "/api/admin/import", nil)
		w := httptest.NewRecorder()
		NewImportService(db).ImportExcel(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
