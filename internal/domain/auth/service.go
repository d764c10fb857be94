// Package auth registers local accounts and logs them in, issuing bearer
// tokens. The conversation core only ever sees the resulting user id.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	pkgauth "github.com/matiasleandrokruk/hubrag/pkg/auth"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

var (
	// ErrInvalidCredentials covers both an unknown email and a wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrEmailAlreadyExists is returned by Signup for a taken email.
	ErrEmailAlreadyExists = errors.New("email already registered")
	// ErrInvalidInput is returned for a malformed email or a short password.
	ErrInvalidInput = errors.New("invalid signup input")
)

// Credentials is the body of signup and login.
type Credentials struct {
	Email    string
	Password string
}

// Result is returned by a successful Signup or Login.
type Result struct {
	Token  string
	UserID string
	Email  string
}

// TokenIssuer mints a token for a user id.
type TokenIssuer interface {
	Issue(userID string) (string, error)
}

// Service is backed by the user_account table.
type Service struct {
	db     *sql.DB
	tokens TokenIssuer
}

// NewService creates a Service.
func NewService(db *sql.DB, tokens TokenIssuer) *Service {
	return &Service{db: db, tokens: tokens}
}

// Signup creates an account and returns a token for it.
func (s *Service) Signup(ctx context.Context, in Credentials) (*Result, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if len(in.Password) < MinPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, MinPasswordLength)
	}

	hash, err := pkgauth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("auth: signup: new id: %w", err)
	}
	userID := id.String()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO user_account (id, email, password_hash, created_at)
		VALUES (?, ?, ?, ?)
	`, userID, email, hash, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailAlreadyExists
		}
		return nil, fmt.Errorf("auth: signup: insert: %w", err)
	}

	return s.result(userID, email)
}

// Login verifies credentials. Any failure to find or match the account is
// reported as ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, in Credentials) (*Result, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))

	var userID, hash string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, password_hash
		FROM user_account
		WHERE email = ?
		LIMIT 1
	`, email).Scan(&userID, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("auth: login: %w", err)
	}

	if !pkgauth.VerifyPassword(hash, in.Password) {
		return nil, ErrInvalidCredentials
	}
	return s.result(userID, email)
}

func (s *Service) result(userID, email string) (*Result, error) {
	token, err := s.tokens.Issue(userID)
	if err != nil {
		return nil, fmt.Errorf("auth: issue token: %w", err)
	}
	return &Result{Token: token, UserID: userID, Email: email}, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: email %q", ErrInvalidInput, raw)
	}
	return email, nil
}

func isUniqueViolation(err error) bool {
	var se *moderncsqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	if se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return true
	}
	// Primary code only when extended result codes are off.
	return se.Code() == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), "UNIQUE")
}
