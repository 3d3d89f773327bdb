package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cloo-solutions/leadline/internal/api"
	"github.com/cloo-solutions/leadline/internal/api/handlers"
	"github.com/cloo-solutions/leadline/internal/api/middleware"
)

type RouterConfig struct {
	Authenticator    middleware.TenantAuthenticator
	KnowledgeHandler *handlers.KnowledgeHandler
	ChatHandler      *handlers.ChatHandler
	LeadHandler      *handlers.LeadHandler
	UsageHandler     *handlers.UsageHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 5 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(cfg.Authenticator))

		r.Route("/knowledge", func(r chi.Router) {
			r.Post("/", cfg.KnowledgeHandler.Create)
			r.Get("/", cfg.KnowledgeHandler.List)
			r.Post("/uploads", cfg.KnowledgeHandler.InitUpload)
			r.Get("/{id}", cfg.KnowledgeHandler.Get)
			r.Delete("/{id}", cfg.KnowledgeHandler.Delete)
			r.Post("/{id}/reprocess", cfg.KnowledgeHandler.Reprocess)
		})

		r.Get("/widget/init", cfg.ChatHandler.Init)

		r.Route("/widget/conversations", func(r chi.Router) {
			r.Post("/", cfg.ChatHandler.Start)
			r.Get("/{id}/messages", cfg.ChatHandler.History)
			r.Post("/{id}/messages", cfg.ChatHandler.SendMessage)
			r.Post("/{id}/stream", cfg.ChatHandler.StreamMessage)
			r.Post("/{id}/close", cfg.ChatHandler.Close)
		})

		r.Route("/leads", func(r chi.Router) {
			r.Get("/", cfg.LeadHandler.List)
			r.Get("/{id}", cfg.LeadHandler.Get)
			r.Patch("/{id}/status", cfg.LeadHandler.UpdateStatus)
			r.Post("/{id}/score", cfg.LeadHandler.AdjustScore)
		})

		r.Get("/usage", cfg.UsageHandler.Get)
	})

	return r
}
