/**
 * @description
 * Payment-connectivity sync: pulls the current account capability flags from
 * Stripe, upserts the canonical connectivity record, and mirrors
 * charges_enabled into the profile's legacy boolean for old readers. This
 * service is the only writer of the connectivity table.
 */
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fanforge/engine-service/internal/domain"
)

// ConnectivityRepository defines the database operations the sync needs.
type ConnectivityRepository interface {
	GetStripeAccountID(ctx context.Context, userID string) (string, error)
	UpsertConnectivityRecord(ctx context.Context, rec domain.ConnectivityRecord) error
	MirrorProfileCharges(ctx context.Context, userID string, chargesEnabled bool) error
}

// StripeAccounts defines the provider operation the sync needs.
type StripeAccounts interface {
	GetAccount(ctx context.Context, accountID string) (*domain.StripeAccount, error)
}

// ConnectivityService syncs provider capability flags for one user at a time.
type ConnectivityService struct {
	repo   ConnectivityRepository
	stripe StripeAccounts
	caps   domain.SchemaCapabilities
	logger *slog.Logger
}

// NewConnectivityService creates the sync service.
func NewConnectivityService(repo ConnectivityRepository, stripe StripeAccounts, caps domain.SchemaCapabilities, logger *slog.Logger) *ConnectivityService {
	return &ConnectivityService{repo: repo, stripe: stripe, caps: caps, logger: logger}
}

// SyncForUser refreshes the connectivity record from the provider. It fails
// with domain.ErrNoExternalAccount when the user has not started onboarding;
// that is the only caller-facing precondition.
func (s *ConnectivityService) SyncForUser(ctx context.Context, userID string) (domain.ConnectivitySnapshot, error) {
	var snap domain.ConnectivitySnapshot

	accountID, err := s.repo.GetStripeAccountID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return snap, domain.ErrNoExternalAccount
		}
		return snap, fmt.Errorf("look up external account: %w", err)
	}
	if accountID == "" {
		return snap, domain.ErrNoExternalAccount
	}

	account, err := s.stripe.GetAccount(ctx, accountID)
	if err != nil {
		return snap, fmt.Errorf("retrieve stripe account %s: %w", accountID, err)
	}

	rec := domain.ConnectivityRecord{
		UserID:           userID,
		StripeAccountID:  account.ID,
		DetailsSubmitted: account.DetailsSubmitted,
		ChargesEnabled:   account.ChargesEnabled,
		PayoutsEnabled:   account.PayoutsEnabled,
		UpdatedAt:        time.Now().UTC(),
	}

	if s.caps.ConnectivityTable {
		if err := s.repo.UpsertConnectivityRecord(ctx, rec); err != nil {
			return snap, fmt.Errorf("upsert connectivity record: %w", err)
		}
	} else {
		s.logger.Debug("connectivity table absent, skipping upsert", "user_id", userID)
	}

	// The mirror is best-effort; the canonical table is the source of truth.
	if s.caps.ProfileChargesMirror {
		if err := s.repo.MirrorProfileCharges(ctx, userID, rec.ChargesEnabled); err != nil {
			s.logger.Debug("failed to mirror charges flag onto profile", "user_id", userID, "error", err)
		}
	}

	snap = domain.ConnectivitySnapshot{
		StripeAccountID:  rec.StripeAccountID,
		DetailsSubmitted: rec.DetailsSubmitted,
		ChargesEnabled:   rec.ChargesEnabled,
		PayoutsEnabled:   rec.PayoutsEnabled,
		Connected:        rec.Connected(),
	}
	return snap, nil
}
