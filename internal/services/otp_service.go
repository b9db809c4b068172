package services

import (
	"crypto/rand"
	"database/sql"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/atmbank/backend/internal/models"
)

const (
	otpLength     = 6
	otpTTL        = 5 * time.Minute
	otpRateWindow = 10 * time.Minute
	otpRateLimit  = 5
)

// OTPService owns the second-factor challenge lifecycle. Issuance and
// verification for a username run under the user row lock so the
// rate-limit count and the single-active-challenge invariant cannot be
// broken by concurrent logins.
type OTPService struct {
	db     *sql.DB
	mailer Mailer
	now    func() time.Time
}

func NewOTPService(db *sql.DB, mailer Mailer) *OTPService {
	return &OTPService{
		db:     db,
		mailer: mailer,
		now:    time.Now,
	}
}

// Issue supersedes any active challenge for the username, persists a
// fresh zero-padded 6-digit code valid for 5 minutes and emails it.
// Every issuance within the 10-minute window counts against the limit,
// superseded ones included; the 6th attempt fails with ErrRateLimited.
// A delivery failure leaves the committed challenge active and is
// surfaced as ErrDelivery.
func (s *OTPService) Issue(userID int, username, email string) error {
	now := s.now().UTC()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: begin otp issue: %v", ErrPersistence, err)
	}
	defer tx.Rollback()

	// Serializes concurrent logins for the same user.
	var lockedID int
	if err := tx.QueryRow(`SELECT id FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&lockedID); err != nil {
		return fmt.Errorf("%w: lock user: %v", ErrPersistence, err)
	}

	var recent int
	err = tx.QueryRow(`
		SELECT COUNT(*) FROM otp_challenges
		WHERE username = $1 AND created_at >= $2`,
		username, now.Add(-otpRateWindow)).Scan(&recent)
	if err != nil {
		return fmt.Errorf("%w: count recent challenges: %v", ErrPersistence, err)
	}
	if recent >= otpRateLimit {
		return ErrRateLimited
	}

	_, err = tx.Exec(`
		UPDATE otp_challenges SET status = $1, updated_at = $2
		WHERE username = $3 AND status = $4`,
		models.OtpStatusSuperseded, now, username, models.OtpStatusActive)
	if err != nil {
		return fmt.Errorf("%w: supersede challenge: %v", ErrPersistence, err)
	}

	code, err := generateOTPCode()
	if err != nil {
		return fmt.Errorf("generate otp code: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO otp_challenges (username, code, status, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		username, code, models.OtpStatusActive, now, now, now.Add(otpTTL))
	if err != nil {
		return fmt.Errorf("%w: insert challenge: %v", ErrPersistence, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit otp issue: %v", ErrPersistence, err)
	}

	log.Printf("[OTP] Challenge issued for user %s", username)

	if err := s.mailer.Send(email, "Your OTP Code", "Your OTP code is: "+code); err != nil {
		// Challenge stays active; the caller can retry delivery by
		// logging in again within the rate limit.
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	return nil
}

// Verify consumes the active challenge matching (username, code). An
// unknown or already-consumed code fails with ErrUnauthorized, a stale
// one with ErrOtpExpired. A verified code cannot be replayed.
func (s *OTPService) Verify(username, code string) error {
	now := s.now().UTC()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: begin otp verify: %v", ErrPersistence, err)
	}
	defer tx.Rollback()

	var ch models.OtpChallenge
	err = tx.QueryRow(`
		SELECT id, expires_at FROM otp_challenges
		WHERE username = $1 AND code = $2 AND status = $3`,
		username, code, models.OtpStatusActive).Scan(&ch.ID, &ch.ExpiresAt)
	if err == sql.ErrNoRows {
		return ErrUnauthorized
	}
	if err != nil {
		return fmt.Errorf("%w: fetch challenge: %v", ErrPersistence, err)
	}

	if now.After(ch.ExpiresAt) {
		if _, err := tx.Exec(`UPDATE otp_challenges SET status = $1, updated_at = $2 WHERE id = $3`,
			models.OtpStatusExpired, now, ch.ID); err != nil {
			return fmt.Errorf("%w: expire challenge: %v", ErrPersistence, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("%w: commit otp verify: %v", ErrPersistence, err)
		}
		return ErrOtpExpired
	}

	if _, err := tx.Exec(`UPDATE otp_challenges SET status = $1, updated_at = $2 WHERE id = $3`,
		models.OtpStatusVerified, now, ch.ID); err != nil {
		return fmt.Errorf("%w: consume challenge: %v", ErrPersistence, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit otp verify: %v", ErrPersistence, err)
	}

	log.Printf("[OTP] Challenge verified for user %s", username)
	return nil
}

// generateOTPCode draws uniformly from [0, 10^6) and zero-pads, so
// codes with leading zeros are valid.
func generateOTPCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < otpLength; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpLength, n), nil
}
