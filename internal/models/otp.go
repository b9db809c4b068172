package models

import "time"

// OTP challenge lifecycle. A single tagged status replaces the usual
// active/deleted boolean pair so the illegal combination cannot exist.
// Rows are never removed; superseded and expired challenges stay for
// audit and rate-limit accounting.
const (
	OtpStatusActive     = "ACTIVE"
	OtpStatusSuperseded = "SUPERSEDED"
	OtpStatusExpired    = "EXPIRED"
	OtpStatusVerified   = "VERIFIED"
)

// OtpChallenge is one outstanding (or retired) second-factor code for a
// username. At most one ACTIVE challenge exists per username at any time.
type OtpChallenge struct {
	ID        int       `json:"id" db:"id"`
	Username  string    `json:"username" db:"username"`
	Code      string    `json:"-" db:"code"`
	Status    string    `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
}
