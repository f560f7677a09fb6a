/**
 * @description
 * The renewal reminder sweep: a scheduled batch pass over memberships whose
 * period ends in exactly three days. Dedup happens twice: the candidate query
 * surfaces each member's most recent renewal notice inside the 30-day window
 * (re-running after a crash must not re-notify), and the insert itself
 * carries a per-membership per-day dedupe key so two overlapping sweep
 * instances cannot both send.
 */
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/fanforge/engine-service/internal/domain"
)

// SweepRepository defines the database operations the sweep needs.
type SweepRepository interface {
	ListRenewalCandidates(ctx context.Context, dueDate time.Time) ([]domain.RenewalCandidate, error)
}

// RenewalNotifier delivers one renewal reminder and reports whether it was
// actually sent or suppressed by a concurrent run.
type RenewalNotifier interface {
	NotifyRenewal(ctx context.Context, c domain.RenewalCandidate) (bool, error)
}

// SweepService runs the scheduled renewal reminder pass.
type SweepService struct {
	repo     SweepRepository
	notifier RenewalNotifier
	caps     domain.SchemaCapabilities
	logger   *slog.Logger
	now      func() time.Time
}

// NewSweepService creates the sweep.
func NewSweepService(repo SweepRepository, notifier RenewalNotifier, caps domain.SchemaCapabilities, logger *slog.Logger) *SweepService {
	return &SweepService{repo: repo, notifier: notifier, caps: caps, logger: logger, now: time.Now}
}

// Run executes one sweep pass. Per-row failures are isolated and counted;
// the only early exit is context cancellation between rows so a deploy can
// abort cleanly.
func (s *SweepService) Run(ctx context.Context) domain.SweepResult {
	var result domain.SweepResult

	if !s.caps.MembershipsTable || !s.caps.NotificationsTable {
		s.logger.Info("renewal sweep skipped: schema not provisioned",
			"memberships", s.caps.MembershipsTable,
			"notifications", s.caps.NotificationsTable,
		)
		return result
	}

	now := s.now().UTC()
	dueDate := now.AddDate(0, 0, domain.RenewalReminderLeadDays)

	candidates, err := s.repo.ListRenewalCandidates(ctx, dueDate)
	if err != nil {
		s.logger.Error("failed to list renewal candidates", "due_date", dueDate.Format("2006-01-02"), "error", err)
		return result
	}

	for _, c := range candidates {
		if ctx.Err() != nil {
			s.logger.Warn("renewal sweep aborted", "processed", result.Processed, "error", ctx.Err())
			return result
		}

		result.Processed++

		if !c.DueForReminder(now) {
			s.logger.Debug("renewal reminder suppressed by dedup window",
				"membership_id", c.MembershipID,
				"last_notice_at", c.LastRenewalNoticeAt,
			)
			continue
		}

		notified, err := s.notifier.NotifyRenewal(ctx, c)
		if err != nil {
			s.logger.Error("renewal reminder failed", "membership_id", c.MembershipID, "user_id", c.UserID, "error", err)
			continue
		}
		if notified {
			result.Notified++
		}
	}

	s.logger.Info("renewal sweep finished", "processed", result.Processed, "notified", result.Notified)
	return result
}
