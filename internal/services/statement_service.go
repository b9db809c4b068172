package services

import (
	"bytes"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/atmbank/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jung-kurt/gofpdf"
	qrcode "github.com/skip2/go-qrcode"
)

// StatementService renders derived ledger views: the JSON transaction
// history and the downloadable PDF statement.
type StatementService struct {
	db     *sql.DB
	ledger *LedgerStore
}

func NewStatementService(db *sql.DB) *StatementService {
	return &StatementService{
		db:     db,
		ledger: NewLedgerStore(db),
	}
}

// GetHistory handles GET /user/history
func (s *StatementService) GetHistory(w http.ResponseWriter, r *http.Request) {
	user, err := s.currentUser(r)
	if err != nil {
		SendErrorResponse(w, "User not found or not authenticated", http.StatusUnauthorized, nil)
		return
	}

	entries, err := s.statement(user.ID)
	if err != nil {
		log.Printf("[STATEMENT] History fetch failed for user %d: %v", user.ID, err)
		SendErrorResponse(w, "Failed to fetch transaction history", http.StatusInternalServerError, nil)
		return
	}

	if len(entries) == 0 {
		WriteJSON(w, http.StatusOK, map[string]any{
			"message":      "No transactions found for this user",
			"transactions": []models.StatementEntry{},
		})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"message":      "Transaction history retrieved successfully",
		"transactions": entries,
	})
}

// GetPDF handles GET /user/pdf and streams the statement as a PDF. A QR
// code carrying the statement reference is stamped in the footer so a
// printed copy can be matched back to the export.
func (s *StatementService) GetPDF(w http.ResponseWriter, r *http.Request) {
	user, err := s.currentUser(r)
	if err != nil {
		SendErrorResponse(w, "User not found or not authenticated", http.StatusUnauthorized, nil)
		return
	}

	entries, err := s.statement(user.ID)
	if err != nil {
		log.Printf("[STATEMENT] PDF build failed for user %d: %v", user.ID, err)
		SendErrorResponse(w, "Failed to build statement", http.StatusInternalServerError, nil)
		return
	}

	pdfBytes, err := renderStatementPDF(user.Username, entries)
	if err != nil {
		log.Printf("[STATEMENT] PDF render failed for user %d: %v", user.ID, err)
		SendErrorResponse(w, "Failed to build statement", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="TransactionHistory.pdf"`)
	w.Write(pdfBytes)
}

func (s *StatementService) statement(accountID int) ([]models.StatementEntry, error) {
	records, err := s.ledger.ListByAccount(accountID)
	if err != nil {
		return nil, err
	}
	return BuildStatement(records), nil
}

func (s *StatementService) currentUser(r *http.Request) (*models.User, error) {
	userID, ok := r.Context().Value("userID").(int)
	if !ok {
		return nil, ErrUnauthorized
	}

	var user models.User
	err := s.db.QueryRow(`SELECT id, username, email FROM users WHERE id = $1`, userID).
		Scan(&user.ID, &user.Username, &user.Email)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: user %d", ErrNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: fetch user: %v", ErrPersistence, err)
	}
	return &user, nil
}

func renderStatementPDF(username string, entries []models.StatementEntry) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "Transaction History")
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, fmt.Sprintf("User: %s", username))
	pdf.Ln(8)
	pdf.Cell(0, 8, fmt.Sprintf("Date: %s", time.Now().Format("02-01-2006")))
	pdf.Ln(12)

	headers := []string{"Amount", "Transaction Type", "Date", "Total Balance"}
	colWidth := 190.0 / float64(len(headers))

	pdf.SetFont("Helvetica", "B", 11)
	for _, h := range headers {
		pdf.CellFormat(colWidth, 8, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	for _, entry := range entries {
		pdf.CellFormat(colWidth, 7, entry.Amount.String(), "1", 0, "R", false, 0, "")
		pdf.CellFormat(colWidth, 7, entry.TransactionType, "1", 0, "C", false, 0, "")
		pdf.CellFormat(colWidth, 7, entry.CreatedAt.Format("2006-01-02 15:04:05"), "1", 0, "C", false, 0, "")
		pdf.CellFormat(colWidth, 7, entry.TotalBalance.String(), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	// Statement reference QR in the footer, replacing a static logo.
	reference := fmt.Sprintf("atmbank:statement:%s:%s", username, uuid.NewString())
	qrPNG, err := qrcode.Encode(reference, qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("encode statement qr: %w", err)
	}

	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("statement-qr", opts, bytes.NewReader(qrPNG))
	pdf.ImageOptions("statement-qr", 170, 260, 25, 25, false, opts, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render statement pdf: %w", err)
	}
	return buf.Bytes(), nil
}
