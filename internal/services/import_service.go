package services

import (
	"database/sql"
	"log"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ImportService loads customer reference rows from an uploaded Excel
// workbook. Rows already present are skipped, so re-uploading the same
// sheet is harmless.
type ImportService struct {
	db *sql.DB
}

func NewImportService(db *sql.DB) *ImportService {
	return &ImportService{db: db}
}

// ImportExcel handles POST /admin/import with a multipart "file" field.
func (s *ImportService) ImportExcel(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		SendErrorResponse(w, "Please upload an Excel file", http.StatusBadRequest, nil)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		SendErrorResponse(w, "Please upload an Excel file", http.StatusBadRequest, nil)
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext != ".xls" && ext != ".xlsx" {
		SendErrorResponse(w, "Only Excel files (.xls, .xlsx) are allowed", http.StatusBadRequest, nil)
		return
	}

	workbook, err := excelize.OpenReader(file)
	if err != nil {
		SendErrorResponse(w, "Failed to read Excel file", http.StatusBadRequest, nil)
		return
	}
	defer workbook.Close()

	sheets := workbook.GetSheetList()
	if len(sheets) == 0 {
		SendErrorResponse(w, "Workbook contains no sheets", http.StatusBadRequest, nil)
		return
	}

	rows, err := workbook.GetRows(sheets[0])
	if err != nil {
		SendErrorResponse(w, "Failed to read Excel file", http.StatusBadRequest, nil)
		return
	}

	imported := 0
	for i, row := range rows {
		if i == 0 || len(row) < 3 { // header row
			continue
		}
		name := strings.TrimSpace(row[0])
		age := strings.TrimSpace(row[1])
		pincode := strings.TrimSpace(row[2])
		if name == "" {
			continue
		}

		var exists bool
		err := s.db.QueryRow(`
			SELECT EXISTS (
				SELECT 1 FROM imported_customers
				WHERE name = $1 AND age = $2 AND pincode = $3
			)`, name, age, pincode).Scan(&exists)
		if err != nil {
			log.Printf("[IMPORT] Dedup check failed: %v", err)
			SendErrorResponse(w, "Import failed", http.StatusInternalServerError, nil)
			return
		}
		if exists {
			continue
		}

		if _, err := s.db.Exec(`
			INSERT INTO imported_customers (name, age, pincode)
			VALUES ($1, $2, $3)`, name, age, pincode); err != nil {
			log.Printf("[IMPORT] Row insert failed: %v", err)
			SendErrorResponse(w, "Import failed", http.StatusInternalServerError, nil)
			return
		}
		imported++
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Data imported successfully",
		"count":   imported,
	})
}
