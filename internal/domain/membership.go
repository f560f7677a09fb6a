/**
 * @description
 * Domain models for memberships (buyer-to-creator product subscriptions).
 * Memberships are produced by the checkout/webhook layer; this engine reads
 * them to derive notification audiences and renewal-reminder candidates.
 */
package domain

import "time"

// Membership statuses considered current for audience resolution.
const (
	MembershipStatusActive   = "active"
	MembershipStatusTrialing = "trialing"
)

// RenewalReminderLeadDays is how many days before period end the reminder
// sweep notifies members.
const RenewalReminderLeadDays = 3

// RenewalDedupWindow suppresses repeat renewal reminders to the same user.
const RenewalDedupWindow = 30 * 24 * time.Hour

// Membership represents one row of the memberships table.
type Membership struct {
	ID                string    `json:"id"`
	UserID            string    `json:"user_id"`
	CreatorID         string    `json:"creator_id"`
	ProductID         string    `json:"product_id"`
	Status            string    `json:"status"`
	CancelAtPeriodEnd bool      `json:"cancel_at_period_end"`
	CurrentPeriodEnd  time.Time `json:"current_period_end"`
}

// IsMembershipCurrent reports whether a membership should receive member
// content. A pending cancellation does not exclude a still-valid period.
func IsMembershipCurrent(status string, periodEnd time.Time, now time.Time) bool {
	if status != MembershipStatusActive && status != MembershipStatusTrialing {
		return false
	}
	return periodEnd.After(now)
}

// RenewalCandidate is one membership surfaced by the reminder sweep, joined
// with the product name for the notification copy and the most recent
// renewal notice for dedup.
type RenewalCandidate struct {
	MembershipID        string
	UserID              string
	CreatorID           string
	ProductID           string
	ProductName         string
	CurrentPeriodEnd    time.Time
	LastRenewalNoticeAt *time.Time
}

// DueForReminder applies the dedup window: a candidate with a renewal notice
// newer than the window is excluded. Re-running the sweep after a restart
// must not re-notify users already warned this cycle.
func (c RenewalCandidate) DueForReminder(now time.Time) bool {
	if c.LastRenewalNoticeAt == nil {
		return true
	}
	return now.Sub(*c.LastRenewalNoticeAt) > RenewalDedupWindow
}

// SweepResult is the observability summary returned by a sweep run.
type SweepResult struct {
	Processed int `json:"processed"`
	Notified  int `json:"notified"`
}
