/**
 * @description
 * This file defines the domain model for creator activation: the derived flags
 * that gate whether a creator's storefront is publicly live, and the pure
 * resolution logic that computes them from several independently-evolving
 * signals.
 *
 * @notes
 * - The connectivity priority chain is an explicit ordered list of named
 *   sources. Later sources may be stale relative to earlier ones because
 *   features were added incrementally to a running deployment, so resolution
 *   stops at the first source that reports connected.
 */
package domain

import "strings"

// MinGalleryImages is the number of gallery images required before a profile
// is considered complete when no explicit completeness flag is stored.
const MinGalleryImages = 4

// ActivationSnapshot is the result of recomputing a creator's activation state.
type ActivationSnapshot struct {
	IsActive            bool   `json:"is_active"`
	ProfileComplete     bool   `json:"profile_complete"`
	PaymentConnected    bool   `json:"payment_connected"`
	HasProduct          bool   `json:"has_product"`
	HasPublishedProduct bool   `json:"has_published_product"`
	ConnectivitySource  string `json:"connectivity_source,omitempty"`
}

// ConnectivitySignal is one named source of payment-connectivity truth.
// Present is false when the backing table or column does not exist in the
// current deployment, or when the sub-query for it failed.
type ConnectivitySignal struct {
	Source    string
	Connected bool
	Present   bool
}

// Connectivity source names, in priority order.
const (
	SourceUserFlag           = "user_flag"
	SourceProfileMirror      = "profile_mirror"
	SourceConnectivityRecord = "connectivity_record"
	SourceLegacyUserFlag     = "legacy_user_flag"
)

// ResolvePaymentConnected walks the ordered signal list and returns the first
// truthy source. Signals that are not present are skipped. When no source
// reports connected, the result is false with an empty source name.
func ResolvePaymentConnected(signals []ConnectivitySignal) (bool, string) {
	for _, sig := range signals {
		if !sig.Present {
			continue
		}
		if sig.Connected {
			return true, sig.Source
		}
	}
	return false, ""
}

// ProfileSignals carries the raw profile fields the evaluator derives
// completeness from. ExplicitComplete is nil when the deployment has no
// is_profile_complete column.
type ProfileSignals struct {
	ExplicitComplete *bool
	DisplayName      string
	Bio              string
	AvatarURL        string
	GalleryCount     int
}

// ResolveProfileComplete prefers the explicit stored flag and otherwise
// derives completeness from the four required fields.
func ResolveProfileComplete(p ProfileSignals) bool {
	if p.ExplicitComplete != nil {
		return *p.ExplicitComplete
	}
	return strings.TrimSpace(p.DisplayName) != "" &&
		strings.TrimSpace(p.Bio) != "" &&
		strings.TrimSpace(p.AvatarURL) != "" &&
		p.GalleryCount >= MinGalleryImages
}

// ComputeActive applies the activation formula. When the deployment has no
// published column, callers pass hasPublished == hasAny (permissive fallback).
func ComputeActive(profileComplete, paymentConnected, hasPublished, hasAny bool) bool {
	return profileComplete && paymentConnected && (hasPublished || hasAny)
}
