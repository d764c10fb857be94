package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/matiasleandrokruk/hubrag/internal/domain/apperr"
	domainauth "github.com/matiasleandrokruk/hubrag/internal/domain/auth"
)

// AuthService is implemented by *domainauth.Service.
type AuthService interface {
	Signup(ctx context.Context, in domainauth.Credentials) (*domainauth.Result, error)
	Login(ctx context.Context, in domainauth.Credentials) (*domainauth.Result, error)
}

// AuthHandler serves the public signup and login routes.
type AuthHandler struct {
	auth AuthService
}

func NewAuthHandler(auth AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// CredentialsRequest is the body of signup and login.
type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse is returned by signup and login.
type TokenResponse struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// Signup handles POST /api/auth/signup. Every rejection is a 400.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	req, ok := readCredentials(w, r)
	if !ok {
		return
	}
	res, err := h.auth.Signup(r.Context(), domainauth.Credentials{Email: req.Email, Password: req.Password})
	switch {
	case errors.Is(err, domainauth.ErrEmailAlreadyExists):
		writeError(w, http.StatusBadRequest, apperr.InvalidRequest, "email already registered")
		return
	case errors.Is(err, domainauth.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, apperr.InvalidRequest, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, apperr.Internal, "signup failed")
		return
	}
	writeJSON(w, http.StatusOK, TokenResponse{Token: res.Token, UserID: res.UserID, Email: res.Email})
}

// Login handles POST /api/auth/login. Wrong email and wrong password look the same.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := readCredentials(w, r)
	if !ok {
		return
	}
	res, err := h.auth.Login(r.Context(), domainauth.Credentials{Email: req.Email, Password: req.Password})
	if errors.Is(err, domainauth.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, apperr.Unauthenticated, "Invalid email or password")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, apperr.Internal, "login failed")
		return
	}
	writeJSON(w, http.StatusOK, TokenResponse{Token: res.Token, UserID: res.UserID, Email: res.Email})
}

func readCredentials(w http.ResponseWriter, r *http.Request) (CredentialsRequest, bool) {
	var req CredentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, apperr.InvalidRequest, "invalid request body")
		return req, false
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, apperr.InvalidRequest, "email and password are required")
		return req, false
	}
	return req, true
}
