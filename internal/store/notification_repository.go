/**
 * @description
 * Queries backing the notification store and the email durability layer.
 * Inserts support an optional dedupe key so concurrent producers of the same
 * logical notification converge on a single row, and marking read is
 * idempotent via COALESCE on read_at.
 */
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fanforge/engine-service/internal/domain"
)

// CreateNotification inserts one notification. When the item carries a dedupe
// key and a row with that key already exists, nothing is inserted and created
// is false.
func (r *PostgresRepository) CreateNotification(ctx context.Context, item domain.Notification) (bool, error) {
	metadataJSON, err := marshalMetadata(item.Metadata)
	if err != nil {
		return false, err
	}

	query := `
        INSERT INTO notifications (id, user_id, type, title, body, metadata, dedupe_key, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (dedupe_key) WHERE dedupe_key IS NOT NULL DO NOTHING
    `
	tag, err := r.db.Exec(ctx, query,
		item.ID,
		item.UserID,
		item.Type,
		item.Title,
		item.Body,
		metadataJSON,
		item.DedupeKey,
		item.CreatedAt,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// CreateNotifications inserts a batch of notifications in a single statement
// to avoid one round-trip per recipient.
func (r *PostgresRepository) CreateNotifications(ctx context.Context, items []domain.Notification) (int64, error) {
	if len(items) == 0 {
		return 0, nil
	}

	query, args, err := buildNotificationBatchInsert(items)
	if err != nil {
		return 0, err
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func buildNotificationBatchInsert(items []domain.Notification) (string, []interface{}, error) {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO notifications (id, user_id, type, title, body, metadata, dedupe_key, created_at) VALUES `)

	args := make([]interface{}, 0, len(items)*8)
	for i, item := range items {
		metadataJSON, err := marshalMetadata(item.Metadata)
		if err != nil {
			return "", nil, err
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 8
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8)
		args = append(args,
			item.ID,
			item.UserID,
			item.Type,
			item.Title,
			item.Body,
			metadataJSON,
			item.DedupeKey,
			item.CreatedAt,
		)
	}
	sb.WriteString(` ON CONFLICT (dedupe_key) WHERE dedupe_key IS NOT NULL DO NOTHING`)

	return sb.String(), args, nil
}

func marshalMetadata(metadata map[string]interface{}) ([]byte, error) {
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	return json.Marshal(metadata)
}

// ListNotifications returns a user's notifications newest-first.
func (r *PostgresRepository) ListNotifications(ctx context.Context, userID string, opts domain.NotificationListOptions) ([]domain.Notification, error) {
	query := `
        SELECT id, user_id, type, title, body, metadata, created_at, read_at
        FROM notifications
        WHERE user_id = $1
    `
	args := []interface{}{userID}
	argPos := 2

	if opts.UnreadOnly {
		query += " AND read_at IS NULL"
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, opts.Limit, opts.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.Notification, 0, opts.Limit)
	for rows.Next() {
		var item domain.Notification
		var payload []byte
		if err := rows.Scan(
			&item.ID,
			&item.UserID,
			&item.Type,
			&item.Title,
			&item.Body,
			&payload,
			&item.CreatedAt,
			&item.ReadAt,
		); err != nil {
			return nil, err
		}
		item.Metadata = map[string]interface{}{}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &item.Metadata); err != nil {
				return nil, err
			}
		}
		results = append(results, item)
	}
	return results, rows.Err()
}

// MarkNotificationsRead marks the given ids read for the user. Only unread
// rows are touched, so re-marking an already-read id changes nothing.
func (r *PostgresRepository) MarkNotificationsRead(ctx context.Context, userID string, ids []uuid.UUID) (int64, error) {
	query := `
        UPDATE notifications
        SET read_at = COALESCE(read_at, NOW())
        WHERE user_id = $1
          AND id = ANY($2)
          AND read_at IS NULL
    `
	tag, err := r.db.Exec(ctx, query, userID, ids)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// MarkAllNotificationsRead marks every unread notification read for the user.
func (r *PostgresRepository) MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error) {
	query := `
        UPDATE notifications
        SET read_at = COALESCE(read_at, NOW())
        WHERE user_id = $1
          AND read_at IS NULL
    `
	tag, err := r.db.Exec(ctx, query, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// CountUnreadNotifications returns the user's unread badge count.
func (r *PostgresRepository) CountUnreadNotifications(ctx context.Context, userID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read_at IS NULL`
	if err := r.db.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// GetRecipient loads the email address and the category's opt-in preference
// for a user. The preference is read through to_jsonb so a deployment missing
// the preference column reads as opted out rather than erroring.
func (r *PostgresRepository) GetRecipient(ctx context.Context, userID, prefColumn string) (*domain.Recipient, error) {
	query := `
        SELECT u.email, COALESCE((to_jsonb(u) ->> $2)::boolean, false)
        FROM users u
        WHERE u.id = $1
    `
	rec := domain.Recipient{UserID: userID}
	if err := r.db.QueryRow(ctx, query, userID, prefColumn).Scan(&rec.Email, &rec.EmailEnabled); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// CreateEmailAttempt records an attempt row before dispatch.
func (r *PostgresRepository) CreateEmailAttempt(ctx context.Context, attempt domain.EmailDeliveryAttempt) error {
	payloadJSON, err := marshalMetadata(attempt.Payload)
	if err != nil {
		return err
	}
	query := `
        INSERT INTO email_delivery_attempts (id, to_email, subject, template, payload, status, attempts, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, 0, NOW())
    `
	_, err = r.db.Exec(ctx, query,
		attempt.ID,
		attempt.ToEmail,
		attempt.Subject,
		attempt.Template,
		payloadJSON,
		domain.EmailStatusPending,
	)
	return err
}

// MarkEmailAttemptResult finalizes an attempt after dispatch. Attempts is
// only ever incremented; failed attempts keep their last error and are not
// retried by this engine.
func (r *PostgresRepository) MarkEmailAttemptResult(ctx context.Context, id uuid.UUID, status string, lastError *string, sentAt *time.Time) error {
	query := `
        UPDATE email_delivery_attempts
        SET status = $2,
            attempts = attempts + 1,
            last_error = $3,
            sent_at = $4
        WHERE id = $1
    `
	_, err := r.db.Exec(ctx, query, id, status, lastError, sentAt)
	return err
}
