/**
 * @description
 * Audience-resolution queries: active members of a product, renewal-reminder
 * candidates for the sweep, and the order/request projections the purchase
 * and request events notify from.
 */
package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fanforge/engine-service/internal/domain"
)

// ListActiveMemberIDs returns the distinct buyers whose membership on the
// product is current. A pending cancellation does not exclude a still-valid
// period.
func (r *PostgresRepository) ListActiveMemberIDs(ctx context.Context, productID string) ([]string, error) {
	query := `
        SELECT DISTINCT user_id
        FROM memberships
        WHERE product_id = $1
          AND status IN ('active', 'trialing')
          AND current_period_end > NOW()
    `
	rows, err := r.db.Query(ctx, query, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var userIDs []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, err
		}
		userIDs = append(userIDs, userID)
	}
	return userIDs, rows.Err()
}

// ListRenewalCandidates returns memberships whose period ends on the given
// UTC date, joined with the member's most recent renewal notice inside the
// dedup window. The cancel_at_period_end filter only applies when the column
// exists.
func (r *PostgresRepository) ListRenewalCandidates(ctx context.Context, dueDate time.Time) ([]domain.RenewalCandidate, error) {
	query := `
        SELECT m.id, m.user_id, m.creator_id, m.product_id, COALESCE(p.name, ''), m.current_period_end, ln.last_notice
        FROM memberships m
        LEFT JOIN products p ON p.id = m.product_id
        LEFT JOIN LATERAL (
            SELECT MAX(n.created_at) AS last_notice
            FROM notifications n
            WHERE n.user_id = m.user_id
              AND n.type = 'membership_renewal'
              AND n.created_at > NOW() - INTERVAL '30 days'
        ) ln ON true
        WHERE m.status IN ('active', 'trialing')
          AND (m.current_period_end AT TIME ZONE 'UTC')::date = $1::date
    `
	if r.caps.MembershipCancelColumn {
		query += " AND m.cancel_at_period_end = false"
	}

	rows, err := r.db.Query(ctx, query, dueDate.UTC().Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []domain.RenewalCandidate
	for rows.Next() {
		var c domain.RenewalCandidate
		if err := rows.Scan(
			&c.MembershipID,
			&c.UserID,
			&c.CreatorID,
			&c.ProductID,
			&c.ProductName,
			&c.CurrentPeriodEnd,
			&c.LastRenewalNoticeAt,
		); err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// GetOrder loads the projection of a completed purchase.
func (r *PostgresRepository) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	var order domain.Order
	query := `
        SELECT o.id, o.buyer_id, o.creator_id, o.product_id, COALESCE(p.name, ''), o.amount_cents
        FROM orders o
        LEFT JOIN products p ON p.id = o.product_id
        WHERE o.id = $1
    `
	err := r.db.QueryRow(ctx, query, orderID).Scan(
		&order.ID,
		&order.BuyerID,
		&order.CreatorID,
		&order.ProductID,
		&order.ProductName,
		&order.AmountCents,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}

// GetRequest loads the projection of a custom request.
func (r *PostgresRepository) GetRequest(ctx context.Context, requestID string) (*domain.Request, error) {
	var req domain.Request
	query := `
        SELECT id, buyer_id, creator_id, COALESCE(title, '')
        FROM requests
        WHERE id = $1
    `
	err := r.db.QueryRow(ctx, query, requestID).Scan(
		&req.ID,
		&req.BuyerID,
		&req.CreatorID,
		&req.Title,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &req, nil
}
