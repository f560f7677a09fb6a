package app

import (
	"context"
	"errors"
	"testing"

	"github.com/fanforge/engine-service/internal/domain"
)

type stubConnectivityRepo struct {
	accountID    string
	accountErr   error
	upsertErr    error
	mirrorErr    error
	upserted     []domain.ConnectivityRecord
	mirrored     []bool
}

func (s *stubConnectivityRepo) GetStripeAccountID(ctx context.Context, userID string) (string, error) {
	return s.accountID, s.accountErr
}

func (s *stubConnectivityRepo) UpsertConnectivityRecord(ctx context.Context, rec domain.ConnectivityRecord) error {
	s.upserted = append(s.upserted, rec)
	return s.upsertErr
}

func (s *stubConnectivityRepo) MirrorProfileCharges(ctx context.Context, userID string, chargesEnabled bool) error {
	s.mirrored = append(s.mirrored, chargesEnabled)
	return s.mirrorErr
}

type stubStripeAccounts struct {
	account *domain.StripeAccount
	err     error
}

func (s *stubStripeAccounts) GetAccount(ctx context.Context, accountID string) (*domain.StripeAccount, error) {
	return s.account, s.err
}

func TestSyncForUser_HappyPath(t *testing.T) {
	repo := &stubConnectivityRepo{accountID: "acct_123"}
	stripe := &stubStripeAccounts{account: &domain.StripeAccount{
		ID:               "acct_123",
		DetailsSubmitted: true,
		ChargesEnabled:   true,
		PayoutsEnabled:   false,
	}}
	svc := NewConnectivityService(repo, stripe, fullCaps(), testLogger())

	snap, err := svc.SyncForUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !snap.Connected || !snap.ChargesEnabled || !snap.DetailsSubmitted {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
	if len(repo.upserted) != 1 {
		t.Fatalf("expected one upsert, got %d", len(repo.upserted))
	}
	if repo.upserted[0].UserID != "user-1" || repo.upserted[0].StripeAccountID != "acct_123" {
		t.Errorf("unexpected record: %+v", repo.upserted[0])
	}
	if len(repo.mirrored) != 1 || !repo.mirrored[0] {
		t.Errorf("expected charges mirrored true, got %v", repo.mirrored)
	}
}

func TestSyncForUser_NoExternalAccount(t *testing.T) {
	for _, repo := range []*stubConnectivityRepo{
		{accountID: ""},
		{accountErr: domain.ErrNotFound},
	} {
		svc := NewConnectivityService(repo, &stubStripeAccounts{}, fullCaps(), testLogger())
		_, err := svc.SyncForUser(context.Background(), "user-1")
		if !errors.Is(err, domain.ErrNoExternalAccount) {
			t.Errorf("expected ErrNoExternalAccount, got %v", err)
		}
		if len(repo.upserted) != 0 {
			t.Error("no upsert expected without an account")
		}
	}
}

func TestSyncForUser_ProviderError(t *testing.T) {
	repo := &stubConnectivityRepo{accountID: "acct_123"}
	stripe := &stubStripeAccounts{err: errors.New("api unreachable")}
	svc := NewConnectivityService(repo, stripe, fullCaps(), testLogger())

	if _, err := svc.SyncForUser(context.Background(), "user-1"); err == nil {
		t.Fatal("expected provider error to surface")
	}
}

func TestSyncForUser_MirrorFailureSwallowed(t *testing.T) {
	repo := &stubConnectivityRepo{accountID: "acct_123", mirrorErr: errors.New("column dropped")}
	stripe := &stubStripeAccounts{account: &domain.StripeAccount{ID: "acct_123", ChargesEnabled: true}}
	svc := NewConnectivityService(repo, stripe, fullCaps(), testLogger())

	snap, err := svc.SyncForUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("mirror failure must not fail the sync: %v", err)
	}
	if !snap.Connected {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
}

func TestSyncForUser_SkipsAbsentTables(t *testing.T) {
	repo := &stubConnectivityRepo{accountID: "acct_123"}
	stripe := &stubStripeAccounts{account: &domain.StripeAccount{ID: "acct_123", ChargesEnabled: true}}
	caps := fullCaps()
	caps.ConnectivityTable = false
	caps.ProfileChargesMirror = false
	svc := NewConnectivityService(repo, stripe, caps, testLogger())

	snap, err := svc.SyncForUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.upserted) != 0 || len(repo.mirrored) != 0 {
		t.Error("expected no writes when the backing schema is absent")
	}
	if !snap.Connected {
		t.Errorf("snapshot still reflects the provider, got %+v", snap)
	}
}
