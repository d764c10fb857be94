package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/matiasleandrokruk/hubrag/internal/api/ctxkeys"
	"github.com/matiasleandrokruk/hubrag/internal/domain/apperr"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string      `json:"error"`
	Code  apperr.Code `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"failed to encode response","code":"Internal"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, code apperr.Code, message string) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// writeAppError maps a classified error to its status. Anything else is a 500
// with a generic message so causes never leak to clients.
func writeAppError(w http.ResponseWriter, err error) {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		writeError(w, apperr.HTTPStatus(ae.Code), ae.Code, ae.Message)
		return
	}
	writeError(w, http.StatusInternalServerError, apperr.Internal, "internal error")
}

// decodeJSON reads a bounded JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}

// requireUser returns the authenticated user id or writes 401.
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := ctxkeys.String(r.Context(), ctxkeys.UserID)
	if !ok {
		writeError(w, http.StatusUnauthorized, apperr.Unauthenticated, "authentication required")
		return "", false
	}
	return userID, true
}
