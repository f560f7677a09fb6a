package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/fanforge/engine-service/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fullCaps() domain.SchemaCapabilities {
	return domain.SchemaCapabilities{
		UsersTable:             true,
		UserRoleColumn:         true,
		UserOnboardedColumn:    true,
		UserLegacyChargesFlag:  true,
		ProfilesTable:          true,
		ProfileCompleteColumn:  true,
		ProfileActiveColumn:    true,
		ProfileChargesMirror:   true,
		GalleryTable:           true,
		ProductsTable:          true,
		ProductPublishedColumn: true,
		ConnectivityTable:      true,
		MembershipsTable:       true,
		MembershipCancelColumn: true,
		NotificationsTable:     true,
		EmailAttemptsTable:     true,
	}
}

// stubActivationRepo lets each test dial in the raw signals.
type stubActivationRepo struct {
	profile       domain.ProfileSignals
	profileErr    error
	onboarded     bool
	onboardedErr  error
	legacy        bool
	legacyErr     error
	mirror        bool
	mirrorErr     error
	connectivity  *domain.ConnectivityRecord
	connErr       error
	total         int
	totalErr      error
	published     int
	publishedErr  error
	updateErr     error
	promoted      bool
	promoteErr    error
	updatedFlags  []map[string]bool
	promoteCalls  int
	updateCalls   int
}

func (s *stubActivationRepo) GetProfileSignals(ctx context.Context, userID string) (domain.ProfileSignals, error) {
	return s.profile, s.profileErr
}

func (s *stubActivationRepo) GetUserPaymentOnboarded(ctx context.Context, userID string) (bool, error) {
	return s.onboarded, s.onboardedErr
}

func (s *stubActivationRepo) GetUserLegacyChargesEnabled(ctx context.Context, userID string) (bool, error) {
	return s.legacy, s.legacyErr
}

func (s *stubActivationRepo) GetProfileChargesMirror(ctx context.Context, userID string) (bool, error) {
	return s.mirror, s.mirrorErr
}

func (s *stubActivationRepo) GetConnectivityRecord(ctx context.Context, userID string) (*domain.ConnectivityRecord, error) {
	return s.connectivity, s.connErr
}

func (s *stubActivationRepo) CountProducts(ctx context.Context, creatorID string) (int, error) {
	return s.total, s.totalErr
}

func (s *stubActivationRepo) CountPublishedProducts(ctx context.Context, creatorID string) (int, error) {
	return s.published, s.publishedErr
}

func (s *stubActivationRepo) UpdateActivationFlags(ctx context.Context, userID string, flags map[string]bool) error {
	s.updateCalls++
	s.updatedFlags = append(s.updatedFlags, flags)
	return s.updateErr
}

func (s *stubActivationRepo) PromoteRoleToCreator(ctx context.Context, userID string) (bool, error) {
	s.promoteCalls++
	return s.promoted, s.promoteErr
}

func completeProfile() domain.ProfileSignals {
	return domain.ProfileSignals{
		DisplayName:  "Ada",
		Bio:          "Painter",
		AvatarURL:    "https://cdn.example/a.png",
		GalleryCount: 5,
	}
}

func TestRecompute_NoProductsThenUnpublishedProduct(t *testing.T) {
	repo := &stubActivationRepo{
		profile:   completeProfile(),
		onboarded: true,
	}
	svc := NewActivationService(repo, fullCaps(), testLogger())

	snap := svc.Recompute(context.Background(), "user-1")
	if snap.IsActive {
		t.Fatalf("expected inactive with zero products, got %+v", snap)
	}
	if !snap.ProfileComplete || !snap.PaymentConnected {
		t.Fatalf("expected profile and payment signals set, got %+v", snap)
	}

	// Add one unpublished product: the permissive leg of the formula
	// activates on any product.
	repo.total = 1
	repo.published = 0
	snap = svc.Recompute(context.Background(), "user-1")
	if !snap.IsActive {
		t.Fatalf("expected active with one unpublished product, got %+v", snap)
	}
	if !snap.HasProduct || snap.HasPublishedProduct {
		t.Fatalf("expected has_product without has_published, got %+v", snap)
	}
}

func TestRecompute_Idempotent(t *testing.T) {
	repo := &stubActivationRepo{
		profile:   completeProfile(),
		onboarded: true,
		total:     2,
		published: 1,
		promoted:  true,
	}
	svc := NewActivationService(repo, fullCaps(), testLogger())

	first := svc.Recompute(context.Background(), "user-1")
	repo.promoted = false // second promotion attempt matches nothing
	second := svc.Recompute(context.Background(), "user-1")

	if first != second {
		t.Errorf("repeated recompute diverged: %+v vs %+v", first, second)
	}
	if len(repo.updatedFlags) != 2 {
		t.Fatalf("expected 2 flag writes, got %d", len(repo.updatedFlags))
	}
	for i, flags := range repo.updatedFlags {
		if !flags["active"] {
			t.Errorf("write %d: expected active=true, got %v", i, flags)
		}
	}
}

func TestRecompute_ConnectivityPriority(t *testing.T) {
	repo := &stubActivationRepo{
		profile:   completeProfile(),
		onboarded: false,
		mirror:    true,
		connectivity: &domain.ConnectivityRecord{
			UserID: "user-1",
		},
		total:     1,
		published: 1,
	}
	svc := NewActivationService(repo, fullCaps(), testLogger())

	snap := svc.Recompute(context.Background(), "user-1")
	if !snap.PaymentConnected {
		t.Fatal("expected mirror signal to connect")
	}
	if snap.ConnectivitySource != domain.SourceProfileMirror {
		t.Errorf("expected source %q, got %q", domain.SourceProfileMirror, snap.ConnectivitySource)
	}
}

func TestRecompute_FailedSignalTreatedAsAbsent(t *testing.T) {
	repo := &stubActivationRepo{
		profile:      completeProfile(),
		onboardedErr: errors.New("column vanished"),
		legacy:       true,
		total:        1,
		published:    1,
	}
	caps := fullCaps()
	caps.ProfileChargesMirror = false
	caps.ConnectivityTable = false
	svc := NewActivationService(repo, caps, testLogger())

	snap := svc.Recompute(context.Background(), "user-1")
	if !snap.PaymentConnected || snap.ConnectivitySource != domain.SourceLegacyUserFlag {
		t.Errorf("expected fall-through to legacy flag, got %+v", snap)
	}
}

func TestRecompute_BareSchema(t *testing.T) {
	repo := &stubActivationRepo{}
	svc := NewActivationService(repo, domain.SchemaCapabilities{}, testLogger())

	snap := svc.Recompute(context.Background(), "user-1")
	if snap.IsActive || snap.ProfileComplete || snap.PaymentConnected || snap.HasProduct {
		t.Errorf("expected all-false snapshot on bare schema, got %+v", snap)
	}
	if repo.updateCalls != 0 {
		t.Errorf("expected no flag writes on bare schema, got %d", repo.updateCalls)
	}
	if repo.promoteCalls != 0 {
		t.Errorf("expected no promotion attempt on bare schema, got %d", repo.promoteCalls)
	}
}

func TestRecompute_PermissivePublishedFallback(t *testing.T) {
	repo := &stubActivationRepo{
		profile:   completeProfile(),
		onboarded: true,
		total:     3,
	}
	caps := fullCaps()
	caps.ProductPublishedColumn = false
	svc := NewActivationService(repo, caps, testLogger())

	snap := svc.Recompute(context.Background(), "user-1")
	if !snap.HasPublishedProduct {
		t.Error("without a published column every product should count as published")
	}
	if !snap.IsActive {
		t.Errorf("expected active, got %+v", snap)
	}
}

func TestRecompute_PersistsInferredCompleteness(t *testing.T) {
	explicit := true
	repo := &stubActivationRepo{
		profile:   domain.ProfileSignals{ExplicitComplete: &explicit},
		onboarded: true,
		total:     1,
		published: 1,
	}
	svc := NewActivationService(repo, fullCaps(), testLogger())
	svc.Recompute(context.Background(), "user-1")

	if len(repo.updatedFlags) != 1 {
		t.Fatalf("expected one flag write, got %d", len(repo.updatedFlags))
	}
	if _, ok := repo.updatedFlags[0]["is_profile_complete"]; ok {
		t.Error("explicit completeness flag must not be overwritten")
	}

	// With no explicit flag the derived value is written back.
	repo.profile = completeProfile()
	repo.updatedFlags = nil
	svc.Recompute(context.Background(), "user-1")
	if len(repo.updatedFlags) != 1 {
		t.Fatalf("expected one flag write, got %d", len(repo.updatedFlags))
	}
	if v, ok := repo.updatedFlags[0]["is_profile_complete"]; !ok || !v {
		t.Errorf("expected inferred completeness persisted, got %v", repo.updatedFlags[0])
	}
}

func TestRecompute_RolePromotionOnlyWithProducts(t *testing.T) {
	repo := &stubActivationRepo{profile: completeProfile(), onboarded: true}
	svc := NewActivationService(repo, fullCaps(), testLogger())

	svc.Recompute(context.Background(), "user-1")
	if repo.promoteCalls != 0 {
		t.Errorf("expected no promotion with zero products, got %d calls", repo.promoteCalls)
	}

	repo.total = 1
	svc.Recompute(context.Background(), "user-1")
	if repo.promoteCalls != 1 {
		t.Errorf("expected one promotion attempt, got %d", repo.promoteCalls)
	}
}

func TestRecompute_PersistFailureSwallowed(t *testing.T) {
	repo := &stubActivationRepo{
		profile:   completeProfile(),
		onboarded: true,
		total:     1,
		published: 1,
		updateErr: errors.New("deadlock"),
	}
	svc := NewActivationService(repo, fullCaps(), testLogger())

	snap := svc.Recompute(context.Background(), "user-1")
	if !snap.IsActive {
		t.Errorf("snapshot must not depend on persistence success, got %+v", snap)
	}
}
