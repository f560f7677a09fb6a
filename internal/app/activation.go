/**
 * @description
 * The activation evaluator: recomputes a creator's derived activation state
 * from profile, payment-connectivity, and product signals, then persists the
 * derived flags where the schema has columns for them.
 *
 * This runs on hot paths (after every profile save), so it never returns an
 * error: any failing sub-query is treated as "signal absent" and the call
 * still produces a best-effort snapshot.
 */
package app

import (
	"context"
	"errors"
	"log/slog"

	"github.com/fanforge/engine-service/internal/domain"
)

// ActivationRepository defines the database operations the evaluator needs.
type ActivationRepository interface {
	GetProfileSignals(ctx context.Context, userID string) (domain.ProfileSignals, error)
	GetUserPaymentOnboarded(ctx context.Context, userID string) (bool, error)
	GetUserLegacyChargesEnabled(ctx context.Context, userID string) (bool, error)
	GetProfileChargesMirror(ctx context.Context, userID string) (bool, error)
	GetConnectivityRecord(ctx context.Context, userID string) (*domain.ConnectivityRecord, error)
	CountProducts(ctx context.Context, creatorID string) (int, error)
	CountPublishedProducts(ctx context.Context, creatorID string) (int, error)
	UpdateActivationFlags(ctx context.Context, userID string, flags map[string]bool) error
	PromoteRoleToCreator(ctx context.Context, userID string) (bool, error)
}

// ActivationService recomputes and persists creator activation state.
type ActivationService struct {
	repo   ActivationRepository
	caps   domain.SchemaCapabilities
	logger *slog.Logger
}

// NewActivationService creates the evaluator.
func NewActivationService(repo ActivationRepository, caps domain.SchemaCapabilities, logger *slog.Logger) *ActivationService {
	return &ActivationService{repo: repo, caps: caps, logger: logger}
}

// Recompute derives the activation snapshot for a user and persists the
// derived flags. Idempotent: with no intervening writes, repeated calls
// produce identical output and identical persisted state.
func (s *ActivationService) Recompute(ctx context.Context, userID string) domain.ActivationSnapshot {
	var snap domain.ActivationSnapshot

	snap.PaymentConnected, snap.ConnectivitySource = domain.ResolvePaymentConnected(s.connectivitySignals(ctx, userID))

	profileInferred := false
	if s.caps.ProfilesTable {
		signals, err := s.repo.GetProfileSignals(ctx, userID)
		if err != nil {
			s.logSignalAbsent(userID, "profile", err)
		} else {
			snap.ProfileComplete = domain.ResolveProfileComplete(signals)
			profileInferred = signals.ExplicitComplete == nil
		}
	}

	totalProducts := 0
	publishedProducts := 0
	if s.caps.ProductsTable {
		total, err := s.repo.CountProducts(ctx, userID)
		if err != nil {
			s.logSignalAbsent(userID, "products", err)
		} else {
			totalProducts = total
		}
		if s.caps.ProductPublishedColumn {
			published, err := s.repo.CountPublishedProducts(ctx, userID)
			if err != nil {
				s.logSignalAbsent(userID, "published_products", err)
			} else {
				publishedProducts = published
			}
		} else {
			// No published column: any product counts as published.
			publishedProducts = totalProducts
		}
	}
	snap.HasProduct = totalProducts > 0
	snap.HasPublishedProduct = publishedProducts > 0

	snap.IsActive = domain.ComputeActive(snap.ProfileComplete, snap.PaymentConnected, snap.HasPublishedProduct, snap.HasProduct)

	s.persistFlags(ctx, userID, snap, profileInferred)

	if totalProducts > 0 && s.caps.UserRoleColumn {
		promoted, err := s.repo.PromoteRoleToCreator(ctx, userID)
		if err != nil {
			s.logger.Warn("role promotion failed", "user_id", userID, "error", err)
		} else if promoted {
			s.logger.Info("promoted user to creator", "user_id", userID)
		}
	}

	return snap
}

// connectivitySignals assembles the priority-ordered source list. Sources
// whose backing columns are absent, or whose sub-query failed, are marked not
// present and skipped by the resolver.
func (s *ActivationService) connectivitySignals(ctx context.Context, userID string) []domain.ConnectivitySignal {
	signals := make([]domain.ConnectivitySignal, 0, 4)

	if s.caps.UserOnboardedColumn {
		connected, err := s.repo.GetUserPaymentOnboarded(ctx, userID)
		signals = append(signals, s.signal(userID, domain.SourceUserFlag, connected, err))
	}
	if s.caps.ProfileChargesMirror {
		connected, err := s.repo.GetProfileChargesMirror(ctx, userID)
		signals = append(signals, s.signal(userID, domain.SourceProfileMirror, connected, err))
	}
	if s.caps.ConnectivityTable {
		rec, err := s.repo.GetConnectivityRecord(ctx, userID)
		connected := rec != nil && rec.Connected()
		signals = append(signals, s.signal(userID, domain.SourceConnectivityRecord, connected, err))
	}
	if s.caps.UserLegacyChargesFlag {
		connected, err := s.repo.GetUserLegacyChargesEnabled(ctx, userID)
		signals = append(signals, s.signal(userID, domain.SourceLegacyUserFlag, connected, err))
	}

	return signals
}

func (s *ActivationService) signal(userID, source string, connected bool, err error) domain.ConnectivitySignal {
	if err != nil {
		s.logSignalAbsent(userID, source, err)
		return domain.ConnectivitySignal{Source: source}
	}
	return domain.ConnectivitySignal{Source: source, Connected: connected, Present: true}
}

// persistFlags writes the derived flags onto the profile where columns exist.
// Persistence failures on derived fields are swallowed.
func (s *ActivationService) persistFlags(ctx context.Context, userID string, snap domain.ActivationSnapshot, profileInferred bool) {
	flags := map[string]bool{}
	if s.caps.ProfileActiveColumn {
		flags["active"] = snap.IsActive
	}
	if profileInferred && s.caps.ProfileCompleteColumn {
		flags["is_profile_complete"] = snap.ProfileComplete
	}
	if len(flags) == 0 {
		return
	}
	if err := s.repo.UpdateActivationFlags(ctx, userID, flags); err != nil {
		s.logger.Warn("failed to persist activation flags", "user_id", userID, "error", err)
	}
}

func (s *ActivationService) logSignalAbsent(userID, signal string, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		s.logger.Debug("activation signal absent", "user_id", userID, "signal", signal)
		return
	}
	s.logger.Debug("activation signal unavailable", "user_id", userID, "signal", signal, "error", err)
}
