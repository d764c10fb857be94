package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	domainauth "github.com/matiasleandrokruk/hubrag/internal/domain/auth"
	"github.com/matiasleandrokruk/hubrag/internal/infra/sqlite"
	pkgauth "github.com/matiasleandrokruk/hubrag/pkg/auth"
)

func newAuthHandler(t *testing.T) (*AuthHandler, *pkgauth.Issuer) {
	t.Helper()
	ctx := context.Background()
	db, err := sqlite.NewDB(ctx, sqlite.MemoryPath)
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if _, err := sqlite.MigrateUp(ctx, db); err != nil {
		t.Fatalf("MigrateUp: %v", err)
	}
	issuer, _ := pkgauth.NewIssuer("test-secret-key-32-chars-min!!!", time.Hour)
	return NewAuthHandler(domainauth.NewService(db, issuer)), issuer
}

func postJSON(h http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&e); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return e
}

func TestAuthHandler_SignupThenLogin(t *testing.T) {
	t.Parallel()
	h, issuer := newAuthHandler(t)

	rr := postJSON(h.Signup, "/api/auth/signup", `{"email":"alice@example.com","password":"secret123"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("signup status = %d body = %s", rr.Code, rr.Body)
	}
	var signed TokenResponse
	if err := json.NewDecoder(rr.Body).Decode(&signed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if signed.Email != "alice@example.com" || signed.UserID == "" {
		t.Errorf("signup response = %+v", signed)
	}
	if claims, err := issuer.Parse(signed.Token); err != nil || claims.UserID != signed.UserID {
		t.Errorf("token claims = %+v, %v", claims, err)
	}

	rr = postJSON(h.Login, "/api/auth/login", `{"email":"alice@example.com","password":"secret123"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("login status = %d body = %s", rr.Code, rr.Body)
	}
	var logged TokenResponse
	json.NewDecoder(rr.Body).Decode(&logged) //nolint:errcheck
	if logged.UserID != signed.UserID {
		t.Errorf("login user = %q; want %q", logged.UserID, signed.UserID)
	}
}

func TestAuthHandler_SignupErrors(t *testing.T) {
	t.Parallel()
	h, _ := newAuthHandler(t)
	postJSON(h.Signup, "/api/auth/signup", `{"email":"bob@example.com","password":"secret123"}`)

	tests := map[string]string{
		"malformed json":  `{"email":`,
		"missing fields":  `{}`,
		"bad email":       `{"email":"bob","password":"secret123"}`,
		"short password":  `{"email":"new@example.com","password":"123"}`,
		"duplicate email": `{"email":"bob@example.com","password":"secret123"}`,
	}
	for name, body := range tests {
		rr := postJSON(h.Signup, "/api/auth/signup", body)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d; want 400", name, rr.Code)
			continue
		}
		if e := decodeError(t, rr); e.Code != "InvalidRequest" || e.Error == "" {
			t.Errorf("%s: body = %+v", name, e)
		}
	}
}

func TestAuthHandler_LoginInvalidCredentials(t *testing.T) {
	t.Parallel()
	h, _ := newAuthHandler(t)
	postJSON(h.Signup, "/api/auth/signup", `{"email":"carol@example.com","password":"secret123"}`)

	for _, body := range []string{
		`{"email":"carol@example.com","password":"wrong-one"}`,
		`{"email":"ghost@example.com","password":"secret123"}`,
	} {
		rr := postJSON(h.Login, "/api/auth/login", body)
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("status = %d; want 401", rr.Code)
			continue
		}
		if e := decodeError(t, rr); e.Error != "Invalid email or password" || e.Code != "Unauthenticated" {
			t.Errorf("body = %+v", e)
		}
	}
}
