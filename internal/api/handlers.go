/**
 * @description
 * HTTP handlers for the engine's surface: activation recompute, connectivity
 * sync, the notification center, the fanout entry points, and the manual
 * sweep trigger. Handlers parse requests, call the service layer, and write
 * JSON responses.
 */
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/fanforge/engine-service/internal/domain"
)

// ActivationRecomputer recomputes a creator's activation snapshot.
type ActivationRecomputer interface {
	Recompute(ctx context.Context, userID string) domain.ActivationSnapshot
}

// ConnectivitySyncer refreshes a user's payment connectivity from the provider.
type ConnectivitySyncer interface {
	SyncForUser(ctx context.Context, userID string) (domain.ConnectivitySnapshot, error)
}

// NotificationCenter is the read/mark surface behind the notification UI.
type NotificationCenter interface {
	List(ctx context.Context, userID string, opts domain.NotificationListOptions) ([]domain.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, userID string, ids []uuid.UUID) (int64, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

// FanoutEntryPoints are the synchronous HTTP triggers for domain events.
type FanoutEntryPoints interface {
	MemberPostPublished(ctx context.Context, ev domain.PostPublishedEvent) error
	PurchaseCompleted(ctx context.Context, orderID string) error
	RequestDelivered(ctx context.Context, requestID string) error
}

// SweepRunner runs one renewal sweep pass.
type SweepRunner interface {
	Run(ctx context.Context) domain.SweepResult
}

// Handler holds the services the handlers interact with.
type Handler struct {
	activation    ActivationRecomputer
	connectivity  ConnectivitySyncer
	notifications NotificationCenter
	fanout        FanoutEntryPoints
	sweep         SweepRunner
	logger        *slog.Logger
}

// NewHandler creates a new Handler.
func NewHandler(activation ActivationRecomputer, connectivity ConnectivitySyncer, notifications NotificationCenter, fanout FanoutEntryPoints, sweep SweepRunner, logger *slog.Logger) *Handler {
	return &Handler{
		activation:    activation,
		connectivity:  connectivity,
		notifications: notifications,
		fanout:        fanout,
		sweep:         sweep,
		logger:        logger,
	}
}

// handleRecomputeActivation recomputes the caller's activation snapshot.
func (h *Handler) handleRecomputeActivation(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	snapshot := h.activation.Recompute(r.Context(), userID)
	respondWithJSON(w, http.StatusOK, snapshot)
}

// handleSyncConnectivity refreshes the caller's payment connectivity.
func (h *Handler) handleSyncConnectivity(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	snapshot, err := h.connectivity.SyncForUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrNoExternalAccount) {
			respondWithError(w, http.StatusConflict, "No payment account connected yet")
			return
		}
		h.logger.Error("connectivity sync failed", "user_id", userID, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Could not sync payment status")
		return
	}

	respondWithJSON(w, http.StatusOK, snapshot)
}

// handleListNotifications lists the caller's notifications.
func (h *Handler) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	limit, err := parseOptionalPositiveInt(r.URL.Query().Get("limit"), 50)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid limit")
		return
	}
	offset, err := parseOptionalPositiveInt(r.URL.Query().Get("offset"), 0)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid offset")
		return
	}

	opts := domain.NotificationListOptions{
		UnreadOnly: r.URL.Query().Get("unread_only") == "true",
		Limit:      limit,
		Offset:     offset,
	}

	items, err := h.notifications.List(r.Context(), userID, opts)
	if err != nil {
		h.logger.Error("failed to list notifications", "user_id", userID, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Could not retrieve notifications")
		return
	}

	respondWithJSON(w, http.StatusOK, items)
}

// handleUnreadCount returns the caller's unread badge count.
func (h *Handler) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	count, err := h.notifications.UnreadCount(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to count unread notifications", "user_id", userID, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Could not retrieve unread count")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]int{"unread": count})
}

// handleMarkRead marks specific notification ids read for the caller.
func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		IDs []string `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ids := make([]uuid.UUID, 0, len(req.IDs))
	for _, raw := range req.IDs {
		id, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid notification id")
			return
		}
		ids = append(ids, id)
	}

	updated, err := h.notifications.MarkRead(r.Context(), userID, ids)
	if err != nil {
		h.logger.Error("failed to mark notifications read", "user_id", userID, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Could not update notifications")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]int64{"updated": updated})
}

// handleMarkAllRead marks every unread notification read for the caller.
func (h *Handler) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	updated, err := h.notifications.MarkAllRead(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to mark all notifications read", "user_id", userID, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Could not update notifications")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]int64{"updated": updated})
}

// handlePostPublished triggers member-post fanout for a product.
func (h *Handler) handlePostPublished(w http.ResponseWriter, r *http.Request) {
	var ev domain.PostPublishedEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if ev.ProductID == "" {
		respondWithError(w, http.StatusBadRequest, "product_id is required")
		return
	}

	if err := h.fanout.MemberPostPublished(r.Context(), ev); err != nil {
		h.fanoutError(w, "post_published", err)
		return
	}
	respondWithJSON(w, http.StatusAccepted, map[string]string{"status": "dispatched"})
}

// handlePurchaseCompleted triggers purchase fanout for an order.
func (h *Handler) handlePurchaseCompleted(w http.ResponseWriter, r *http.Request) {
	var ev domain.PurchaseCompletedEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if ev.OrderID == "" {
		respondWithError(w, http.StatusBadRequest, "order_id is required")
		return
	}

	if err := h.fanout.PurchaseCompleted(r.Context(), ev.OrderID); err != nil {
		h.fanoutError(w, "purchase_completed", err)
		return
	}
	respondWithJSON(w, http.StatusAccepted, map[string]string{"status": "dispatched"})
}

// handleRequestDelivered triggers request-delivered fanout.
func (h *Handler) handleRequestDelivered(w http.ResponseWriter, r *http.Request) {
	var ev domain.RequestDeliveredEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if ev.RequestID == "" {
		respondWithError(w, http.StatusBadRequest, "request_id is required")
		return
	}

	if err := h.fanout.RequestDelivered(r.Context(), ev.RequestID); err != nil {
		h.fanoutError(w, "request_delivered", err)
		return
	}
	respondWithJSON(w, http.StatusAccepted, map[string]string{"status": "dispatched"})
}

// handleRunRenewalSweep runs the renewal sweep on demand.
func (h *Handler) handleRunRenewalSweep(w http.ResponseWriter, r *http.Request) {
	result := h.sweep.Run(r.Context())
	respondWithJSON(w, http.StatusOK, result)
}

func (h *Handler) fanoutError(w http.ResponseWriter, event string, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		respondWithError(w, http.StatusNotFound, "Referenced entity not found")
		return
	}
	h.logger.Error("fanout dispatch failed", "event", event, "error", err)
	respondWithError(w, http.StatusInternalServerError, "Could not dispatch event")
}

func parseOptionalPositiveInt(raw string, defaultValue int) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if value < 0 {
		return 0, errors.New("must be >= 0")
	}
	return value, nil
}

// respondWithJSON is a helper function to write JSON responses.
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}
