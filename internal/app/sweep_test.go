package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fanforge/engine-service/internal/domain"
)

type stubSweepRepo struct {
	candidates []domain.RenewalCandidate
	err        error
	dueDates   []time.Time
}

func (s *stubSweepRepo) ListRenewalCandidates(ctx context.Context, dueDate time.Time) ([]domain.RenewalCandidate, error) {
	s.dueDates = append(s.dueDates, dueDate)
	return s.candidates, s.err
}

type stubRenewalNotifier struct {
	failFor  map[string]bool
	notified []string
}

func (n *stubRenewalNotifier) NotifyRenewal(ctx context.Context, c domain.RenewalCandidate) (bool, error) {
	if n.failFor[c.MembershipID] {
		return false, errors.New("delivery failed")
	}
	n.notified = append(n.notified, c.MembershipID)
	return true, nil
}

func newTestSweep(repo *stubSweepRepo, notifier *stubRenewalNotifier, caps domain.SchemaCapabilities) *SweepService {
	svc := NewSweepService(repo, notifier, caps, testLogger())
	svc.now = func() time.Time { return time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC) }
	return svc
}

func TestSweepRun_NotifiesDueCandidates(t *testing.T) {
	recent := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)  // 9 days ago: suppressed
	stale := time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC) // 49 days ago: due again
	repo := &stubSweepRepo{candidates: []domain.RenewalCandidate{
		{MembershipID: "m1", UserID: "u1"},
		{MembershipID: "m2", UserID: "u2", LastRenewalNoticeAt: &recent},
		{MembershipID: "m3", UserID: "u3", LastRenewalNoticeAt: &stale},
	}}
	notifier := &stubRenewalNotifier{}
	svc := newTestSweep(repo, notifier, fullCaps())

	result := svc.Run(context.Background())
	if result.Processed != 3 || result.Notified != 2 {
		t.Errorf("expected processed=3 notified=2, got %+v", result)
	}
	if len(notifier.notified) != 2 || notifier.notified[0] != "m1" || notifier.notified[1] != "m3" {
		t.Errorf("unexpected notified set: %v", notifier.notified)
	}

	// Due date is period-end exactly three days out.
	want := time.Date(2026, 3, 13, 9, 0, 0, 0, time.UTC)
	if len(repo.dueDates) != 1 || !repo.dueDates[0].Equal(want) {
		t.Errorf("expected due date %v, got %v", want, repo.dueDates)
	}
}

func TestSweepRun_FailureIsolation(t *testing.T) {
	repo := &stubSweepRepo{candidates: []domain.RenewalCandidate{
		{MembershipID: "m1", UserID: "u1"},
		{MembershipID: "m2", UserID: "u2"},
		{MembershipID: "m3", UserID: "u3"},
	}}
	notifier := &stubRenewalNotifier{failFor: map[string]bool{"m2": true}}
	svc := newTestSweep(repo, notifier, fullCaps())

	result := svc.Run(context.Background())
	if result.Processed != 3 || result.Notified != 2 {
		t.Errorf("one failing row must not stop the pass: %+v", result)
	}
}

func TestSweepRun_SchemaNotProvisioned(t *testing.T) {
	repo := &stubSweepRepo{}
	caps := fullCaps()
	caps.MembershipsTable = false
	svc := newTestSweep(repo, &stubRenewalNotifier{}, caps)

	result := svc.Run(context.Background())
	if result.Processed != 0 || result.Notified != 0 {
		t.Errorf("expected no-op result, got %+v", result)
	}
	if len(repo.dueDates) != 0 {
		t.Error("sweep must not query an unprovisioned schema")
	}
}

func TestSweepRun_QueryFailure(t *testing.T) {
	repo := &stubSweepRepo{err: errors.New("timeout")}
	svc := newTestSweep(repo, &stubRenewalNotifier{}, fullCaps())

	result := svc.Run(context.Background())
	if result.Processed != 0 {
		t.Errorf("expected empty result on query failure, got %+v", result)
	}
}

func TestSweepRun_AbortsOnCanceledContext(t *testing.T) {
	repo := &stubSweepRepo{candidates: []domain.RenewalCandidate{
		{MembershipID: "m1", UserID: "u1"},
		{MembershipID: "m2", UserID: "u2"},
	}}
	notifier := &stubRenewalNotifier{}
	svc := newTestSweep(repo, notifier, fullCaps())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := svc.Run(ctx)
	if result.Processed != 0 || len(notifier.notified) != 0 {
		t.Errorf("canceled context should abort before any row, got %+v", result)
	}
}
