/**
 * @description
 * Domain models for in-app notifications and their delivery preferences.
 * Notifications are never deleted by the engine; the only terminal transition
 * is read_at being set, once.
 */
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Notification types produced by the fanout engine.
const (
	TypeMemberPost        = "member_post"
	TypePurchaseReceipt   = "purchase_receipt"
	TypeSale              = "sale"
	TypeRequestDelivered  = "request_delivered"
	TypeMembershipRenewal = "membership_renewal"
)

// Notification represents one row of the notifications table.
type Notification struct {
	ID        uuid.UUID              `json:"id"`
	UserID    string                 `json:"user_id"`
	Type      string                 `json:"type"`
	Title     string                 `json:"title"`
	Body      string                 `json:"body"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	DedupeKey *string                `json:"-"`
	CreatedAt time.Time              `json:"created_at"`
	ReadAt    *time.Time             `json:"read_at,omitempty"`
}

// NotificationListOptions controls pagination for the notification center.
type NotificationListOptions struct {
	UnreadOnly bool
	Limit      int
	Offset     int
}

// MaxNotificationPageSize caps a single list request.
const MaxNotificationPageSize = 200

// PreferenceColumnForType maps a notification type to the users-table boolean
// that gates its email leg. An empty return means the type has no email leg.
func PreferenceColumnForType(notifType string) string {
	switch notifType {
	case TypeMemberPost:
		return "notify_post"
	case TypePurchaseReceipt:
		return "notify_purchase"
	case TypeSale:
		return "notify_sale"
	case TypeRequestDelivered:
		return "notify_request"
	case TypeMembershipRenewal:
		return "notify_renewal"
	default:
		return ""
	}
}

// Recipient is the minimal projection of a user needed to gate and address an
// email delivery.
type Recipient struct {
	UserID       string
	Email        string
	EmailEnabled bool
}
