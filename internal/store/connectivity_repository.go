/**
 * @description
 * Queries backing the payment-connectivity sync: the external account lookup,
 * the canonical upsert keyed by user id, and the best-effort legacy mirror.
 */
package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/fanforge/engine-service/internal/domain"
)

// GetStripeAccountID returns the external account id on file for a user.
// An empty string means the user has not started provider onboarding.
func (r *PostgresRepository) GetStripeAccountID(ctx context.Context, userID string) (string, error) {
	var accountID *string
	query := `SELECT stripe_account_id FROM users WHERE id = $1`
	if err := r.db.QueryRow(ctx, query, userID).Scan(&accountID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	if accountID == nil {
		return "", nil
	}
	return *accountID, nil
}

// GetConnectivityRecord reads the canonical connectivity record for a user.
func (r *PostgresRepository) GetConnectivityRecord(ctx context.Context, userID string) (*domain.ConnectivityRecord, error) {
	var rec domain.ConnectivityRecord
	query := `
        SELECT user_id, stripe_account_id, details_submitted, charges_enabled, payouts_enabled, updated_at
        FROM payment_connectivity
        WHERE user_id = $1
    `
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&rec.UserID,
		&rec.StripeAccountID,
		&rec.DetailsSubmitted,
		&rec.ChargesEnabled,
		&rec.PayoutsEnabled,
		&rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// UpsertConnectivityRecord inserts or updates the connectivity record for the
// record's user. This is the only write path into the table.
func (r *PostgresRepository) UpsertConnectivityRecord(ctx context.Context, rec domain.ConnectivityRecord) error {
	query := `
        INSERT INTO payment_connectivity (user_id, stripe_account_id, details_submitted, charges_enabled, payouts_enabled, updated_at)
        VALUES ($1, $2, $3, $4, $5, NOW())
        ON CONFLICT (user_id) DO UPDATE SET
            stripe_account_id = EXCLUDED.stripe_account_id,
            details_submitted = EXCLUDED.details_submitted,
            charges_enabled = EXCLUDED.charges_enabled,
            payouts_enabled = EXCLUDED.payouts_enabled,
            updated_at = NOW()
    `
	_, err := r.db.Exec(ctx, query,
		rec.UserID,
		rec.StripeAccountID,
		rec.DetailsSubmitted,
		rec.ChargesEnabled,
		rec.PayoutsEnabled,
	)
	return err
}

// MirrorProfileCharges copies charges_enabled onto the profile's legacy
// boolean for old readers. Callers treat failure as ignorable; the canonical
// table is the source of truth going forward.
func (r *PostgresRepository) MirrorProfileCharges(ctx context.Context, userID string, chargesEnabled bool) error {
	query := `UPDATE profiles SET stripe_charges_enabled = $2 WHERE user_id = $1`
	_, err := r.db.Exec(ctx, query, userID, chargesEnabled)
	return err
}
