/**
 * @description
 * RabbitMQ event handlers. The routing layer publishes domain events to the
 * topic exchange; each handler unmarshals the payload and hands it to the
 * fanout engine. Handlers return true to ack and false to nack-and-requeue,
 * so only retryable infrastructure failures are requeued.
 */
package app

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/fanforge/engine-service/internal/domain"
)

// consumerTimeout bounds the synchronous part of event handling (audience
// resolution); deliveries themselves run detached.
const consumerTimeout = 30 * time.Second

// EventDispatcher is the fanout surface the consumers drive.
type EventDispatcher interface {
	MemberPostPublished(ctx context.Context, ev domain.PostPublishedEvent) error
	PurchaseCompleted(ctx context.Context, orderID string) error
	RequestDelivered(ctx context.Context, requestID string) error
}

// EventHandler processes domain events from the message broker.
type EventHandler struct {
	fanout EventDispatcher
	logger *slog.Logger
}

// NewEventHandler creates a new handler bound to the fanout engine.
func NewEventHandler(fanout EventDispatcher, logger *slog.Logger) *EventHandler {
	return &EventHandler{fanout: fanout, logger: logger}
}

// HandlePostPublished processes content.post.published events.
func (h *EventHandler) HandlePostPublished(body []byte) bool {
	var ev domain.PostPublishedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		h.logger.Error("malformed post published event, acking", "error", err)
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), consumerTimeout)
	defer cancel()

	return h.ackFor("post_published", h.fanout.MemberPostPublished(ctx, ev))
}

// HandlePurchaseCompleted processes order.purchase.completed events.
func (h *EventHandler) HandlePurchaseCompleted(body []byte) bool {
	var ev domain.PurchaseCompletedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		h.logger.Error("malformed purchase completed event, acking", "error", err)
		return true
	}
	if ev.OrderID == "" {
		h.logger.Error("purchase completed event missing order id, acking")
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), consumerTimeout)
	defer cancel()

	return h.ackFor("purchase_completed", h.fanout.PurchaseCompleted(ctx, ev.OrderID))
}

// HandleRequestDelivered processes request.delivered events.
func (h *EventHandler) HandleRequestDelivered(body []byte) bool {
	var ev domain.RequestDeliveredEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		h.logger.Error("malformed request delivered event, acking", "error", err)
		return true
	}
	if ev.RequestID == "" {
		h.logger.Error("request delivered event missing request id, acking")
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), consumerTimeout)
	defer cancel()

	return h.ackFor("request_delivered", h.fanout.RequestDelivered(ctx, ev.RequestID))
}

// ackFor maps a fanout entry point's error to an ack decision. Unknown ids
// are acked to avoid requeue loops; anything else is retryable.
func (h *EventHandler) ackFor(event string, err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, domain.ErrNotFound) {
		h.logger.Error("event references unknown entity, acking to avoid requeue loop", "event", event, "error", err)
		return true
	}
	h.logger.Error("event handling failed, requeueing", "event", event, "error", err)
	return false
}
