package services

import (
	"context"
	cryptorand "crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/spf13/viper"
	"golang.org/x/crypto/argon2"
)

type AuthService struct {
	db        *sql.DB
	redis     *redis.Client
	otp       *OTPService
	validator *ValidationHelper
}

// RegisterRequest represents the registration request payload
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3" example:"alice"`
	Email    string `json:"email" validate:"required,email" example:"alice@example.com"`
	Password string `json:"password" validate:"required,min=6" example:"password123"`
}

// LoginRequest represents the login request payload
type LoginRequest struct {
	Username string `json:"username" validate:"required" example:"alice"`
	Password string `json:"password" validate:"required" example:"password123"`
}

// VerifyOtpRequest represents the second-factor login payload
type VerifyOtpRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	Otp      string `json:"otp" validate:"required,len=6,numeric"`
}

// ResetPasswordRequest represents the password change payload
type ResetPasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=6"`
}

// AddRoleRequest represents the role creation payload
type AddRoleRequest struct {
	Role string `json:"role" validate:"required,min=2"`
}

// AssignRoleRequest represents the role assignment payload
type AssignRoleRequest struct {
	Username string `json:"username" validate:"required"`
	Role     string `json:"role" validate:"required"`
}

func NewAuthService(db *sql.DB, redisClient *redis.Client, mailer Mailer) *AuthService {
	return &AuthService{
		db:        db,
		redis:     redisClient,
		otp:       NewOTPService(db, mailer),
		validator: NewValidationHelper(),
	}
}

// Register handles POST /account/register
func (s *AuthService) Register(w http.ResponseWriter, r *http.Request) {
	log.Printf("[AUTH] Registration attempt from IP: %s", r.RemoteAddr)

	var req RegisterRequest
	if err := DecodeJSONBody(w, r, &req); err != nil {
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	hashedPassword, err := hashPassword(req.Password)
	if err != nil {
		log.Printf("[AUTH] Password hashing failed for %s: %v", req.Username, err)
		SendErrorResponse(w, "An internal error occurred", http.StatusInternalServerError, nil)
		return
	}

	var userID int
	err = s.db.QueryRow(`
		INSERT INTO users (username, email, password, created_at)
		VALUES ($1, $2, $3, NOW()) RETURNING id`,
		req.Username, strings.ToLower(req.Email), hashedPassword).Scan(&userID)
	if err != nil {
		log.Printf("[AUTH] User creation failed for %s: %v", req.Username, err)
		SendErrorResponse(w, "Username or email already exists", http.StatusBadRequest, nil)
		return
	}

	log.Printf("[AUTH] User registered - ID: %d, Username: %s", userID, req.Username)
	WriteJSON(w, http.StatusOK, map[string]string{"message": "User registered successfully"})
}

// Login handles POST /account/login. A correct password triggers OTP
// issuance and email dispatch; the session token is only issued by
// VerifyOTP.
func (s *AuthService) Login(w http.ResponseWriter, r *http.Request) {
	log.Printf("[AUTH] Login attempt from IP: %s", r.RemoteAddr)

	var req LoginRequest
	if err := DecodeJSONBody(w, r, &req); err != nil {
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	userID, email, ok := s.checkCredentials(w, req.Username, req.Password)
	if !ok {
		return
	}

	if err := s.otp.Issue(userID, req.Username, email); err != nil {
		switch {
		case errors.Is(err, ErrRateLimited):
			SendErrorResponse(w, "You have reached the maximum OTP generation limit. Please try again later", http.StatusTooManyRequests, nil)
		case errors.Is(err, ErrDelivery):
			log.Printf("[AUTH] OTP delivery failed for %s: %v", req.Username, err)
			SendErrorResponse(w, "Failed to send OTP email", http.StatusBadGateway, nil)
		default:
			log.Printf("[AUTH] OTP issuance failed for %s: %v", req.Username, err)
			SendErrorResponse(w, "Failed to generate OTP", http.StatusInternalServerError, nil)
		}
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"message": "OTP sent to your email",
		"success": true,
	})
}

// VerifyOTP handles POST /account/verify-otp and issues the bearer
// token on success.
func (s *AuthService) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req VerifyOtpRequest
	if err := DecodeJSONBody(w, r, &req); err != nil {
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	userID, _, ok := s.checkCredentials(w, req.Username, req.Password)
	if !ok {
		return
	}

	if err := s.otp.Verify(req.Username, req.Otp); err != nil {
		switch {
		case errors.Is(err, ErrOtpExpired):
			SendErrorResponse(w, "OTP has expired", http.StatusUnauthorized, nil)
		case errors.Is(err, ErrUnauthorized):
			SendErrorResponse(w, "Invalid OTP", http.StatusUnauthorized, nil)
		default:
			log.Printf("[AUTH] OTP verification failed for %s: %v", req.Username, err)
			SendErrorResponse(w, "Failed to verify OTP", http.StatusInternalServerError, nil)
		}
		return
	}

	roles, err := s.fetchRoles(userID)
	if err != nil {
		log.Printf("[AUTH] Role lookup failed for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to generate token", http.StatusInternalServerError, nil)
		return
	}

	token, err := generateJWT(userID, req.Username, roles)
	if err != nil {
		log.Printf("[AUTH] JWT generation failed for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to generate token", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[AUTH] Login completed for user %d", userID)
	WriteJSON(w, http.StatusOK, map[string]string{"token": token})
}

// Logout handles POST /account/logout by blacklisting the token id
// until the token's natural expiry.
func (s *AuthService) Logout(w http.ResponseWriter, r *http.Request) {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") && s.redis != nil {
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			return []byte(viper.GetString("jwt.secret_key")), nil
		})
		if err == nil && token.Valid {
			if claims, ok := token.Claims.(jwt.MapClaims); ok {
				jti, _ := claims["jti"].(string)
				ttl := time.Duration(viper.GetInt("jwt.expiry_minutes")) * time.Minute
				if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
					ttl = time.Until(exp.Time)
				}
				if jti != "" && ttl > 0 {
					key := fmt.Sprintf("blacklist:%s", jti)
					if err := s.redis.Set(context.Background(), key, "1", ttl).Err(); err != nil {
						log.Printf("[AUTH] Failed to blacklist token: %v", err)
					}
				}
			}
		}
	}

	WriteJSON(w, http.StatusOK, map[string]string{"message": "Logout successful"})
}

// ResetPassword handles POST /user/reset-password for an authenticated
// user.
func (s *AuthService) ResetPassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(int)
	if !ok {
		SendErrorResponse(w, "User not authenticated", http.StatusUnauthorized, nil)
		return
	}

	var req ResetPasswordRequest
	if err := DecodeJSONBody(w, r, &req); err != nil {
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	var hashedPassword string
	err := s.db.QueryRow(`SELECT password FROM users WHERE id = $1`, userID).Scan(&hashedPassword)
	if err != nil {
		SendErrorResponse(w, "User not found", http.StatusNotFound, nil)
		return
	}

	if !verifyPassword(req.OldPassword, hashedPassword) {
		SendErrorResponse(w, "Old password is incorrect", http.StatusBadRequest, nil)
		return
	}

	newHash, err := hashPassword(req.NewPassword)
	if err != nil {
		log.Printf("[AUTH] Password hashing failed for user %d: %v", userID, err)
		SendErrorResponse(w, "An internal error occurred", http.StatusInternalServerError, nil)
		return
	}

	if _, err := s.db.Exec(`UPDATE users SET password = $1 WHERE id = $2`, newHash, userID); err != nil {
		log.Printf("[AUTH] Password update failed for user %d: %v", userID, err)
		SendErrorResponse(w, "Password reset failed", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[AUTH] Password reset for user %d", userID)
	WriteJSON(w, http.StatusOK, map[string]string{"message": "Password reset successful"})
}

// AddRole handles POST /account/add-role
func (s *AuthService) AddRole(w http.ResponseWriter, r *http.Request) {
	var req AddRoleRequest
	if err := DecodeJSONBody(w, r, &req); err != nil {
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	var exists bool
	if err := s.db.QueryRow(`SELECT EXISTS (SELECT 1 FROM roles WHERE name = $1)`, req.Role).Scan(&exists); err != nil {
		SendErrorResponse(w, "Failed to add role", http.StatusInternalServerError, nil)
		return
	}
	if exists {
		SendErrorResponse(w, "Role already exists", http.StatusBadRequest, nil)
		return
	}

	if _, err := s.db.Exec(`INSERT INTO roles (name) VALUES ($1)`, req.Role); err != nil {
		log.Printf("[AUTH] Role creation failed for %s: %v", req.Role, err)
		SendErrorResponse(w, "Failed to add role", http.StatusInternalServerError, nil)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"message": "Role added successfully"})
}

// AssignRole handles POST /account/assign-role
func (s *AuthService) AssignRole(w http.ResponseWriter, r *http.Request) {
	var req AssignRoleRequest
	if err := DecodeJSONBody(w, r, &req); err != nil {
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	var userID int
	err := s.db.QueryRow(`SELECT id FROM users WHERE username = $1`, req.Username).Scan(&userID)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "User not found", http.StatusBadRequest, nil)
		return
	}
	if err != nil {
		SendErrorResponse(w, "Failed to assign role", http.StatusInternalServerError, nil)
		return
	}

	var roleID int
	err = s.db.QueryRow(`SELECT id FROM roles WHERE name = $1`, req.Role).Scan(&roleID)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "Role not found", http.StatusBadRequest, nil)
		return
	}
	if err != nil {
		SendErrorResponse(w, "Failed to assign role", http.StatusInternalServerError, nil)
		return
	}

	_, err = s.db.Exec(`
		INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, userID, roleID)
	if err != nil {
		log.Printf("[AUTH] Role assignment failed for %s: %v", req.Username, err)
		SendErrorResponse(w, "Failed to assign role", http.StatusInternalServerError, nil)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"message": "Role assigned successfully"})
}

// checkCredentials verifies username/password and writes the error
// response itself when the check fails.
func (s *AuthService) checkCredentials(w http.ResponseWriter, username, password string) (int, string, bool) {
	var userID int
	var email, hashedPassword string
	err := s.db.QueryRow(`SELECT id, email, password FROM users WHERE username = $1`, username).
		Scan(&userID, &email, &hashedPassword)
	if err != nil {
		log.Printf("[AUTH] User not found: %s", username)
		SendErrorResponse(w, "Invalid username", http.StatusUnauthorized, nil)
		return 0, "", false
	}

	if !verifyPassword(password, hashedPassword) {
		log.Printf("[AUTH] Invalid password for user: %s", username)
		SendErrorResponse(w, "Invalid password", http.StatusUnauthorized, nil)
		return 0, "", false
	}

	return userID, email, true
}

func (s *AuthService) fetchRoles(userID int) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT r.name FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch roles: %v", ErrPersistence, err)
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("%w: scan role: %v", ErrPersistence, err)
		}
		roles = append(roles, name)
	}
	return roles, rows.Err()
}

func generateJWT(userID int, username string, roles []string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":    username,
		"nameid": userID,
		"jti":    uuid.NewString(),
		"roles":  roles,
		"iss":    viper.GetString("jwt.issuer"),
		"exp":    time.Now().Add(time.Duration(viper.GetInt("jwt.expiry_minutes")) * time.Minute).Unix(),
	})

	return token.SignedString([]byte(viper.GetString("jwt.secret_key")))
}

func hashPassword(password string) (string, error) {
	salt := make([]byte, viper.GetInt("argon2.salt_length"))
	if _, err := cryptorand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt,
		uint32(viper.GetInt("argon2.time")),
		uint32(viper.GetInt("argon2.memory")),
		uint8(viper.GetInt("argon2.threads")),
		uint32(viper.GetInt("argon2.key_length")))
	return fmt.Sprintf("%s$%s", base64.StdEncoding.EncodeToString(salt), base64.StdEncoding.EncodeToString(hash)), nil
}

func verifyPassword(password, hashedPassword string) bool {
	parts := strings.Split(hashedPassword, "$")
	if len(parts) != 2 {
		return false
	}

	salt, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return false
	}

	hash, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return false
	}

	computedHash := argon2.IDKey([]byte(password), salt,
		uint32(viper.GetInt("argon2.time")),
		uint32(viper.GetInt("argon2.memory")),
		uint8(viper.GetInt("argon2.threads")),
		uint32(viper.GetInt("argon2.key_length")))
	return string(hash) == string(computedHash)
}
