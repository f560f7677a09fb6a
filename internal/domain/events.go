/**
 * @description
 * Event payloads exchanged with the routing layer over RabbitMQ and emitted
 * by the fanout engine. Events carry the minimal identifiers needed to
 * re-derive the audience server-side; a caller-supplied audience list is
 * never trusted.
 */
package domain

import "time"

// Routing keys on the fanforge.events topic exchange.
const (
	RoutingKeyPostPublished       = "content.post.published"
	RoutingKeyPurchaseCompleted   = "order.purchase.completed"
	RoutingKeyRequestDelivered    = "request.delivered"
	RoutingKeyNotificationCreated = "engine.notification.created"
)

// PostPublishedEvent announces new content on a membership product.
type PostPublishedEvent struct {
	CreatorID string `json:"creator_id"`
	ProductID string `json:"product_id"`
	PostID    string `json:"post_id"`
	Title     string `json:"title"`
}

// PurchaseCompletedEvent announces a completed checkout.
type PurchaseCompletedEvent struct {
	OrderID string `json:"order_id"`
}

// RequestDeliveredEvent announces a fulfilled custom request.
type RequestDeliveredEvent struct {
	RequestID string `json:"request_id"`
}

// NotificationCreatedEvent is published after an in-app insert so other
// services can observe deliveries. Best-effort.
type NotificationCreatedEvent struct {
	NotificationID string    `json:"notification_id"`
	UserID         string    `json:"user_id"`
	Type           string    `json:"type"`
	CreatedAt      time.Time `json:"created_at"`
}

// Order is the projection of a completed purchase used to notify its two
// parties.
type Order struct {
	ID          string
	BuyerID     string
	CreatorID   string
	ProductID   string
	ProductName string
	AmountCents int64
}

// Request is the projection of a custom request used to notify its buyer.
type Request struct {
	ID        string
	BuyerID   string
	CreatorID string
	Title     string
}
