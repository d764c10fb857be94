// Package api assembles the HTTP surface: public health and auth routes and
// the bearer-protected chat routes.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matiasleandrokruk/hubrag/internal/api/handlers"
	apimiddleware "github.com/matiasleandrokruk/hubrag/internal/api/middleware"
	"github.com/matiasleandrokruk/hubrag/internal/infra/logging"
)

// DefaultRequestTimeout bounds a request when RouterDeps leaves it unset.
const DefaultRequestTimeout = 120 * time.Second

// RouterDeps are the services behind the routes.
type RouterDeps struct {
	Conversation   handlers.Conversation
	Auth           handlers.AuthService
	Tokens         apimiddleware.TokenParser
	Log            *logging.Logger
	AllowedOrigins []string
	RequestTimeout time.Duration
}

// NewRouter builds the chi router.
func NewRouter(d RouterDeps) *chi.Mux {
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = DefaultRequestTimeout
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apimiddleware.RequestLogger(d.Log))
	r.Use(middleware.Recoverer)
	r.Use(apimiddleware.CORS(d.AllowedOrigins))
	r.Use(middleware.Timeout(d.RequestTimeout))

	// ===== PUBLIC =====

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`)) //nolint:errcheck
	})
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"message":"Welcome to the Huberman Lab RAG API"}`)) //nolint:errcheck
	})

	authHandler := handlers.NewAuthHandler(d.Auth)
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/signup", authHandler.Signup) // POST /api/auth/signup
		r.Post("/login", authHandler.Login)   // POST /api/auth/login
	})

	// ===== PROTECTED =====

	chatHandler := handlers.NewChatHandler(d.Conversation)
	r.Route("/api/chat", func(r chi.Router) {
		r.Use(apimiddleware.AuthMiddleware(d.Tokens))
		r.Get("/history", chatHandler.History)  // GET /api/chat/history
		r.Post("/message", chatHandler.Message) // POST /api/chat/message
	})

	return r
}
