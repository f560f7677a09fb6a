/**
 * @description
 * Chi router for the engine-service. Applies logging, recovery, timeout, and
 * CORS middleware, and groups the authenticated routes behind the bearer
 * auth middleware.
 */
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new Chi router and registers the engine routes.
func NewRouter(h *Handler, jwtSecret string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Engine service is healthy"))
	})

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(jwtSecret))

		r.Post("/activation/recompute", h.handleRecomputeActivation)
		r.Post("/connectivity/sync", h.handleSyncConnectivity)

		r.Get("/notifications", h.handleListNotifications)
		r.Get("/notifications/unread-count", h.handleUnreadCount)
		r.Post("/notifications/read", h.handleMarkRead)
		r.Post("/notifications/read-all", h.handleMarkAllRead)

		r.Post("/events/post-published", h.handlePostPublished)
		r.Post("/events/purchase-completed", h.handlePurchaseCompleted)
		r.Post("/events/request-delivered", h.handleRequestDelivered)

		r.Post("/internal/sweep/renewals", h.handleRunRenewalSweep)
	})

	return r
}
