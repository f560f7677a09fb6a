/**
 * @description
 * Domain models for the email durability layer. An attempt row is created
 * before dispatch and updated after; failed attempts keep status=failed with
 * the last error and are not retried by this engine.
 */
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Email delivery attempt statuses.
const (
	EmailStatusPending = "pending"
	EmailStatusSent    = "sent"
	EmailStatusFailed  = "failed"
)

// EmailDeliveryAttempt represents one row of email_delivery_attempts.
type EmailDeliveryAttempt struct {
	ID        uuid.UUID              `json:"id"`
	ToEmail   string                 `json:"to_email"`
	Subject   string                 `json:"subject"`
	Template  string                 `json:"template"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Status    string                 `json:"status"`
	Attempts  int                    `json:"attempts"`
	LastError *string                `json:"last_error,omitempty"`
	SentAt    *time.Time             `json:"sent_at,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// EmailMessage is the transport-level payload handed to the mail client.
type EmailMessage struct {
	To      string
	Subject string
	HTML    string
	Text    string
}
