/**
 * @description
 * The notification store service: input clamping and the read APIs behind the
 * notification center. All operations are scoped to the owning user.
 */
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fanforge/engine-service/internal/domain"
)

// NotificationRepository defines the database operations for notifications.
type NotificationRepository interface {
	CreateNotification(ctx context.Context, item domain.Notification) (bool, error)
	CreateNotifications(ctx context.Context, items []domain.Notification) (int64, error)
	ListNotifications(ctx context.Context, userID string, opts domain.NotificationListOptions) ([]domain.Notification, error)
	MarkNotificationsRead(ctx context.Context, userID string, ids []uuid.UUID) (int64, error)
	MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error)
	CountUnreadNotifications(ctx context.Context, userID string) (int, error)
}

// NotificationService backs both the fanout's in-app leg and the
// notification-center read APIs.
type NotificationService struct {
	repo   NotificationRepository
	logger *slog.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(repo NotificationRepository, logger *slog.Logger) *NotificationService {
	return &NotificationService{repo: repo, logger: logger}
}

// Create inserts a single notification and returns the row.
func (s *NotificationService) Create(ctx context.Context, userID, notifType, title, body string, metadata map[string]interface{}) (domain.Notification, error) {
	item := domain.Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      notifType,
		Title:     title,
		Body:      body,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.repo.CreateNotification(ctx, item); err != nil {
		return domain.Notification{}, err
	}
	return item, nil
}

// CreateMany inserts the same notification for many users in one statement.
func (s *NotificationService) CreateMany(ctx context.Context, userIDs []string, notifType, title, body string, metadata map[string]interface{}) (int64, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	items := make([]domain.Notification, 0, len(userIDs))
	for _, userID := range userIDs {
		items = append(items, domain.Notification{
			ID:        uuid.New(),
			UserID:    userID,
			Type:      notifType,
			Title:     title,
			Body:      body,
			Metadata:  metadata,
			CreatedAt: now,
		})
	}
	return s.repo.CreateNotifications(ctx, items)
}

// List returns a page of the user's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, userID string, opts domain.NotificationListOptions) ([]domain.Notification, error) {
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	if opts.Limit > domain.MaxNotificationPageSize {
		opts.Limit = domain.MaxNotificationPageSize
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	return s.repo.ListNotifications(ctx, userID, opts)
}

// MarkRead marks the given notification ids read. An empty id list is a
// no-op and does not touch the database. Idempotent: already-read ids count
// for nothing.
func (s *NotificationService) MarkRead(ctx context.Context, userID string, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return s.repo.MarkNotificationsRead(ctx, userID, ids)
}

// MarkAllRead marks every unread notification read for the user.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return s.repo.MarkAllNotificationsRead(ctx, userID)
}

// UnreadCount returns the user's unread badge count.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	return s.repo.CountUnreadNotifications(ctx, userID)
}
