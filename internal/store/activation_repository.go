/**
 * @description
 * Queries backing the activation evaluator: profile signals, per-user payment
 * flags, product counts, persisted activation flags, and the one-way role
 * promotion. Every query is guarded by the capability descriptor; a missing
 * table or column yields the conservative zero answer.
 */
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/fanforge/engine-service/internal/domain"
)

// activationFlagColumns is the whitelist of profile columns the evaluator may
// persist derived flags into. Anything else is rejected before SQL is built.
var activationFlagColumns = map[string]bool{
	"active":              true,
	"is_profile_complete": true,
}

// GetProfileSignals loads the raw fields completeness is derived from. The
// explicit flag is only selected when the column exists.
func (r *PostgresRepository) GetProfileSignals(ctx context.Context, userID string) (domain.ProfileSignals, error) {
	var signals domain.ProfileSignals
	if !r.caps.ProfilesTable {
		return signals, ErrNotFound
	}

	var displayName, bio, avatarURL *string
	if r.caps.ProfileCompleteColumn {
		query := `
            SELECT display_name, bio, avatar_url, is_profile_complete
            FROM profiles
            WHERE user_id = $1
        `
		if err := r.db.QueryRow(ctx, query, userID).Scan(&displayName, &bio, &avatarURL, &signals.ExplicitComplete); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return signals, ErrNotFound
			}
			return signals, err
		}
	} else {
		query := `
            SELECT display_name, bio, avatar_url
            FROM profiles
            WHERE user_id = $1
        `
		if err := r.db.QueryRow(ctx, query, userID).Scan(&displayName, &bio, &avatarURL); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return signals, ErrNotFound
			}
			return signals, err
		}
	}

	if displayName != nil {
		signals.DisplayName = *displayName
	}
	if bio != nil {
		signals.Bio = *bio
	}
	if avatarURL != nil {
		signals.AvatarURL = *avatarURL
	}

	if r.caps.GalleryTable {
		countQuery := `SELECT COUNT(*) FROM gallery_images WHERE user_id = $1`
		if err := r.db.QueryRow(ctx, countQuery, userID).Scan(&signals.GalleryCount); err != nil {
			return signals, err
		}
	}

	return signals, nil
}

// GetUserPaymentOnboarded reads the canonical per-user onboarded flag.
func (r *PostgresRepository) GetUserPaymentOnboarded(ctx context.Context, userID string) (bool, error) {
	return r.userBoolColumn(ctx, userID, "payment_onboarded")
}

// GetUserLegacyChargesEnabled reads the legacy per-user charges flag.
func (r *PostgresRepository) GetUserLegacyChargesEnabled(ctx context.Context, userID string) (bool, error) {
	return r.userBoolColumn(ctx, userID, "charges_enabled")
}

func (r *PostgresRepository) userBoolColumn(ctx context.Context, userID, column string) (bool, error) {
	query := fmt.Sprintf(`SELECT COALESCE(%s, false) FROM users WHERE id = $1`, column)
	var value bool
	if err := r.db.QueryRow(ctx, query, userID).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrNotFound
		}
		return false, err
	}
	return value, nil
}

// GetProfileChargesMirror reads the legacy boolean mirrored onto the profile
// for old readers.
func (r *PostgresRepository) GetProfileChargesMirror(ctx context.Context, userID string) (bool, error) {
	query := `SELECT COALESCE(stripe_charges_enabled, false) FROM profiles WHERE user_id = $1`
	var value bool
	if err := r.db.QueryRow(ctx, query, userID).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrNotFound
		}
		return false, err
	}
	return value, nil
}

// CountProducts returns the total number of products owned by the creator.
func (r *PostgresRepository) CountProducts(ctx context.Context, creatorID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM products WHERE creator_id = $1`
	if err := r.db.QueryRow(ctx, query, creatorID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// CountPublishedProducts returns the number of explicitly published products.
// Callers only invoke this when the published column exists.
func (r *PostgresRepository) CountPublishedProducts(ctx context.Context, creatorID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM products WHERE creator_id = $1 AND published = true`
	if err := r.db.QueryRow(ctx, query, creatorID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// UpdateActivationFlags persists derived flags onto the profile row. Columns
// outside the whitelist are rejected; an empty flag set is a no-op.
func (r *PostgresRepository) UpdateActivationFlags(ctx context.Context, userID string, flags map[string]bool) error {
	if len(flags) == 0 {
		return nil
	}

	assignments := make([]string, 0, len(flags))
	args := []interface{}{userID}
	argPos := 2
	for column, value := range flags {
		if !activationFlagColumns[column] {
			return fmt.Errorf("refusing to set unknown activation column %q", column)
		}
		assignments = append(assignments, fmt.Sprintf("%s = $%d", column, argPos))
		args = append(args, value)
		argPos++
	}

	query := fmt.Sprintf(`UPDATE profiles SET %s WHERE user_id = $1`, strings.Join(assignments, ", "))
	_, err := r.db.Exec(ctx, query, args...)
	return err
}

// PromoteRoleToCreator flips a user's role to creator if it is not already.
// The write is idempotent and never reverted by this engine.
func (r *PostgresRepository) PromoteRoleToCreator(ctx context.Context, userID string) (bool, error) {
	query := `UPDATE users SET role = 'creator' WHERE id = $1 AND role IS DISTINCT FROM 'creator'`
	tag, err := r.db.Exec(ctx, query, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
