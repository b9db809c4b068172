package services

import (
	"database/sql"
	"log"
	"net/http"

	"github.com/shopspring/decimal"
)

// AdminService exposes the back-office views.
type AdminService struct {
	db *sql.DB
}

type accountSummary struct {
	ID       int             `json:"id"`
	Username string          `json:"username"`
	Email    string          `json:"email"`
	Balance  decimal.Decimal `json:"balance"`
}

func NewAdminService(db *sql.DB) *AdminService {
	return &AdminService{db: db}
}

// GetAllUsers handles GET /admin/all-users: every account whose derived
// balance is positive.
func (s *AdminService) GetAllUsers(w http.ResponseWriter, r *http.Request) {
	rows, err := s.db.Query(`
		SELECT u.id, u.username, u.email, SUM(l.amount) AS balance
		FROM users u
		JOIN ledger_records l ON l.account_id = u.id
		GROUP BY u.id, u.username, u.email
		HAVING SUM(l.amount) > 0
		ORDER BY u.id`)
	if err != nil {
		log.Printf("[ADMIN] User listing failed: %v", err)
		SendErrorResponse(w, "Failed to fetch users", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	summaries := []accountSummary{}
	for rows.Next() {
		var s accountSummary
		if err := rows.Scan(&s.ID, &s.Username, &s.Email, &s.Balance); err != nil {
			log.Printf("[ADMIN] User row scan failed: %v", err)
			SendErrorResponse(w, "Failed to fetch users", http.StatusInternalServerError, nil)
			return
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		log.Printf("[ADMIN] User listing failed: %v", err)
		SendErrorResponse(w, "Failed to fetch users", http.StatusInternalServerError, nil)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"users": summaries,
		"count": len(summaries),
	})
}
