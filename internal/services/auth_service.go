package services

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/eve-tsu/eve-kasse/internal/config"
)

// AuthService handles user registration and login.
type AuthService struct {
	db        *sql.DB
	validator *ValidationHelper
}

func NewAuthService(db *sql.DB) *AuthService {
	return &AuthService{db: db, validator: NewValidationHelper()}
}

type RegisterRequest struct {
	Name     string `json:"name" validate:"required,min=3,max=16"`
	Email    string `json:"email" validate:"required,email,max=64"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Timezone string `json:"timezone" validate:"max=32"`
}

type LoginRequest struct {
	Name     string `json:"name" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Register creates a user account.
func (s *AuthService) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}
	if req.Timezone == "" {
		req.Timezone = "Europe/Berlin"
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		SendErrorResponse(w, "Failed to process password", http.StatusInternalServerError, nil)
		return
	}

	var userID int
	err = s.db.QueryRowContext(r.Context(), `
		INSERT INTO users (name, email, timezone, password)
		VALUES ($1, $2, $3, $4)
		RETURNING "user"`,
		req.Name, req.Email, req.Timezone, string(hash)).Scan(&userID)
	if err != nil {
		config.GetLogger().WithError(err).Warn("user registration failed")
		SendErrorResponse(w, "Name or email already taken", http.StatusConflict, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{"id": userID, "name": req.Name})
}

// Login verifies credentials and issues a bearer token.
func (s *AuthService) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	var (
		userID  int
		hash    string
		enabled bool
	)
	err := s.db.QueryRowContext(r.Context(), `
		SELECT "user", password, enabled FROM users WHERE name = $1`,
		req.Name).Scan(&userID, &hash, &enabled)
	if err != nil || !enabled {
		SendErrorResponse(w, "Invalid credentials", http.StatusUnauthorized, nil)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)) != nil {
		SendErrorResponse(w, "Invalid credentials", http.StatusUnauthorized, nil)
		return
	}

	expiry := time.Now().Add(time.Duration(expiryHours()) * time.Hour)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     expiry.Unix(),
	})
	signed, err := token.SignedString([]byte(viper.GetString("jwt.secret_key")))
	if err != nil {
		SendErrorResponse(w, "Failed to issue token", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(TokenResponse{Token: signed, ExpiresAt: expiry})
}

func expiryHours() int {
	viper.SetDefault("jwt.expiry_hours", 24)
	return viper.GetInt("jwt.expiry_hours")
}
