package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/capitalize-ai/campuschat/internal/middleware"
	"github.com/capitalize-ai/campuschat/internal/service"
	"github.com/capitalize-ai/campuschat/pkg/logger"
)

// RouterConfig wires services and policy into the HTTP API.
type RouterConfig struct {
	Conversations *service.ConversationService
	Messages      *service.MessageService
	Health        *HealthHandler
	Logger        *logger.Logger

	// JWTSecret enables bearer authentication when non-empty.
	JWTSecret string

	// RateLimitRequests per RateLimitWindow; zero disables rate limiting.
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// NewRouter builds the conversation API.
func NewRouter(cfg RouterConfig) http.Handler {
	health := cfg.Health
	if health == nil {
		health = NewHealthHandler()
	}
	conversations := NewConversationHandler(cfg.Conversations, cfg.Logger)
	messages := NewMessageHandler(cfg.Messages, conversations, cfg.Logger)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS())

	// Health endpoints (no auth required)
	r.Get("/health", health.Health)
	r.Get("/ready", health.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		if cfg.RateLimitRequests > 0 {
			r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
		}

		r.Post("/conversation", conversations.Create)
		r.Post("/chat", conversations.Create)
		r.Get("/recent-chats", conversations.ListRecent)

		r.Route("/chat/{id}", func(r chi.Router) {
			r.Get("/", conversations.Get)
			r.Delete("/", conversations.Close)
			r.Post("/message", messages.Append)
		})
	})

	return r
}
