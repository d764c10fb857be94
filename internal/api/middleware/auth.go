// Package middleware holds the HTTP middleware of the API: bearer
// authentication, request logging and the CORS allow-list.
package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/matiasleandrokruk/hubrag/internal/api/ctxkeys"
	"github.com/matiasleandrokruk/hubrag/internal/domain/apperr"
	pkgauth "github.com/matiasleandrokruk/hubrag/pkg/auth"
)

// TokenParser resolves a bearer token to its claims. *pkgauth.Issuer satisfies it.
type TokenParser interface {
	Parse(token string) (*pkgauth.Claims, error)
}

// AuthMiddleware rejects requests without a valid "Authorization: Bearer <token>"
// with 401 and injects ctxkeys.UserID for the rest.
func AuthMiddleware(tokens TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearerToken(r)
			if token == "" {
				writeUnauthorized(w, "missing or invalid Authorization header")
				return
			}

			claims, err := tokens.Parse(token)
			if err != nil {
				writeUnauthorized(w, "could not validate credentials")
				return
			}

			reportUser(r.Context(), claims.UserID)
			ctx := ctxkeys.WithValue(r.Context(), ctxkeys.UserID, claims.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractBearerToken returns "" for a missing header, another scheme or an empty token.
func extractBearerToken(r *http.Request) string {
	const prefix = "Bearer "
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, prefix))
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{ //nolint:errcheck
		"error": message,
		"code":  string(apperr.Unauthenticated),
	})
}
