package handlers

import (
	"context"
	"net/http"

	"github.com/matiasleandrokruk/hubrag/internal/domain/apperr"
	"github.com/matiasleandrokruk/hubrag/internal/domain/chat"
	"github.com/matiasleandrokruk/hubrag/internal/domain/conversation"
)

// Conversation is the part of *conversation.Orchestrator the chat routes need.
type Conversation interface {
	Ask(ctx context.Context, req conversation.Request) (*conversation.Outcome, error)
	History(ctx context.Context, userID string) (chat.Session, error)
}

// ChatHandler serves the authenticated chat routes.
type ChatHandler struct {
	conv Conversation
}

func NewChatHandler(conv Conversation) *ChatHandler {
	return &ChatHandler{conv: conv}
}

// MessageRequest is the body of POST /api/chat/message. UseRAG defaults to true.
type MessageRequest struct {
	Message string `json:"message"`
	UseRAG  *bool  `json:"use_rag"`
}

// MessageResponse carries the answer and the history to render. On a
// degraded answer the history holds only the current exchange.
type MessageResponse struct {
	Response    string         `json:"response"`
	ChatHistory []chat.Message `json:"chat_history"`
	Warnings    []string       `json:"warnings,omitempty"`
}

// History handles GET /api/chat/history.
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	session, err := h.conv.History(r.Context(), userID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session.Document())
}

// Message handles POST /api/chat/message.
//
// Response codes:
//   - 200 OK: answered, possibly degraded (warnings set)
//   - 400 Bad Request: malformed body or empty message
//   - 401 Unauthorized: no user in context
//   - 403/503: the question could not be stored
//   - 502 Bad Gateway: the model failed after retries
func (h *ChatHandler) Message(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req MessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, apperr.InvalidRequest, "invalid request body")
		return
	}
	useRAG := true
	if req.UseRAG != nil {
		useRAG = *req.UseRAG
	}

	out, err := h.conv.Ask(r.Context(), conversation.Request{
		UserID:   userID,
		Question: req.Message,
		UseRAG:   useRAG,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{
		Response:    out.Answer,
		ChatHistory: chat.Messages(out.History),
		Warnings:    out.Warnings,
	})
}
