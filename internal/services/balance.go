package services

import (
	"sort"

	"github.com/atmbank/backend/internal/models"
	"github.com/shopspring/decimal"
)

// Pure derived views over a ledger snapshot. Balance is never stored as
// mutable state; it is always recomputed from the records, so a cached
// balance can never drift from the transaction history.

// SumAmounts returns the sum of signed amounts. An empty snapshot sums
// to zero, not an error.
func SumAmounts(records []models.TransactionRecord) decimal.Decimal {
	total := decimal.Zero
	for _, rec := range records {
		total = total.Add(rec.Amount)
	}
	return total
}

// BuildStatement replays records in chronological order (created_at,
// ties broken by id) and accumulates a running balance. The final
// entry's TotalBalance always equals SumAmounts over the same snapshot.
func BuildStatement(records []models.TransactionRecord) []models.StatementEntry {
	ordered := make([]models.TransactionRecord, len(records))
	copy(ordered, records)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].ID < ordered[j].ID
		}
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	entries := make([]models.StatementEntry, 0, len(ordered))
	running := decimal.Zero
	for _, rec := range ordered {
		running = running.Add(rec.Amount)
		entries = append(entries, models.StatementEntry{
			Amount:          rec.Amount,
			TransactionType: rec.Kind,
			CreatedAt:       rec.CreatedAt,
			TotalBalance:    running,
		})
	}
	return entries
}
