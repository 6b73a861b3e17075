package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestAuthService_Register(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewAuthService(db)

	mock.ExpectQuery("INSERT INTO users").
		WithArgs("jane", "jane@example.com", "Europe/Berlin", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"user"}).AddRow(7))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register",
		strings.NewReader(`{"name": "jane", "email": "jane@example.com", "password": "correct horse"}`))
	service.Register(w, r)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthService_RegisterValidation(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewAuthService(db)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register",
		strings.NewReader(`{"name": "jane", "email": "not-an-email", "password": "short"}`))
	service.Register(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthService_Login(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	viper.Set("jwt.secret_key", "test-secret")
	defer viper.Set("jwt.secret_key", "")

	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)

	service := NewAuthService(db)

	mock.ExpectQuery(`SELECT "user", password, enabled FROM users`).
		WithArgs("jane").
		WillReturnRows(sqlmock.NewRows([]string{"user", "password", "enabled"}).
			AddRow(7, string(hash), true))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
		strings.NewReader(`{"name": "jane", "password": "correct horse"}`))
	service.Login(w, r)

	require.Equal(t, http.StatusOK, w.Code)

	var resp TokenResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))

	token, err := jwt.Parse(resp.Token, func(*jwt.Token) (any, error) {
		return []byte("test-secret"), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	require.NoError(t, err)
	claims := token.Claims.(jwt.MapClaims)
	assert.Equal(t, float64(7), claims["user_id"])
}

func TestAuthService_LoginWrongPassword(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)

	service := NewAuthService(db)

	mock.ExpectQuery(`SELECT "user", password, enabled FROM users`).
		WithArgs("jane").
		WillReturnRows(sqlmock.NewRows([]string{"user", "password", "enabled"}).
			AddRow(7, string(hash), true))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
		strings.NewReader(`{"name": "jane", "password": "wrong"}`))
	service.Login(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthService_LoginDisabledAccount(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewAuthService(db)

	mock.ExpectQuery(`SELECT "user", password, enabled FROM users`).
		WithArgs("jane").
		WillReturnRows(sqlmock.NewRows([]string{"user", "password", "enabled"}).
			AddRow(7, "irrelevant", false))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
		strings.NewReader(`{"name": "jane", "password": "correct horse"}`))
	service.Login(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
