/**
 * @description
 * Domain models for the canonical payment-connectivity record: the local
 * mirror of an external Stripe account's capability flags. The record is
 * owned exclusively by the connectivity sync service; the activation
 * evaluator only reads it.
 */
package domain

import "time"

// ConnectivityRecord is one row of the payment_connectivity table, keyed by
// user id.
type ConnectivityRecord struct {
	UserID           string    `json:"user_id"`
	StripeAccountID  string    `json:"stripe_account_id"`
	DetailsSubmitted bool      `json:"details_submitted"`
	ChargesEnabled   bool      `json:"charges_enabled"`
	PayoutsEnabled   bool      `json:"payouts_enabled"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Connected reports whether the record indicates a usable payment account.
func (r ConnectivityRecord) Connected() bool {
	return r.ChargesEnabled || r.DetailsSubmitted
}

// ConnectivitySnapshot is the DTO returned to callers after a sync.
type ConnectivitySnapshot struct {
	StripeAccountID  string `json:"stripe_account_id"`
	DetailsSubmitted bool   `json:"details_submitted"`
	ChargesEnabled   bool   `json:"charges_enabled"`
	PayoutsEnabled   bool   `json:"payouts_enabled"`
	Connected        bool   `json:"connected"`
}

// StripeAccount carries the capability flags retrieved from the provider.
type StripeAccount struct {
	ID               string
	DetailsSubmitted bool
	ChargesEnabled   bool
	PayoutsEnabled   bool
}
