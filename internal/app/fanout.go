/**
 * @description
 * Delivery fanout: given a domain event, resolves the audience server-side,
 * applies per-user opt-out preferences, and dispatches in-app and email
 * notifications concurrently and independently.
 *
 * Failure isolation is the point of this file. Every multi-recipient and
 * multi-channel operation uses all-settled composition: one failing delivery
 * never cancels or fails a sibling, and the triggering business operation
 * always succeeds regardless of fanout outcome.
 */
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/fanforge/engine-service/internal/domain"
)

// Email leg outcomes, recorded per delivery for observability.
const (
	emailSent          = "sent"
	emailFailed        = "failed"
	emailSkippedNoUser = "skipped:no_user"
	emailSkippedPref   = "skipped:pref_off"
	emailSkippedNone   = "skipped:no_template"
)

// deliveryTimeout bounds each recipient's in-app and email legs.
const deliveryTimeout = 15 * time.Second

// eventsExchange is the topic exchange shared with the routing layer.
const eventsExchange = "fanforge.events"

// FanoutRepository defines the database operations the fanout needs.
type FanoutRepository interface {
	ListActiveMemberIDs(ctx context.Context, productID string) ([]string, error)
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
	GetRequest(ctx context.Context, requestID string) (*domain.Request, error)
	GetRecipient(ctx context.Context, userID, prefColumn string) (*domain.Recipient, error)
	CreateNotification(ctx context.Context, item domain.Notification) (bool, error)
	CreateNotifications(ctx context.Context, items []domain.Notification) (int64, error)
	CreateEmailAttempt(ctx context.Context, attempt domain.EmailDeliveryAttempt) error
	MarkEmailAttemptResult(ctx context.Context, id uuid.UUID, status string, lastError *string, sentAt *time.Time) error
}

// Mailer sends one transactional email.
type Mailer interface {
	Send(ctx context.Context, msg domain.EmailMessage) error
}

// EventPublisher publishes engine events for other services to observe.
type EventPublisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
}

// FanoutService resolves audiences and delivers both channels.
type FanoutService struct {
	repo      FanoutRepository
	mailer    Mailer
	publisher EventPublisher
	caps      domain.SchemaCapabilities
	logger    *slog.Logger

	sem *semaphore.Weighted
	wg  sync.WaitGroup
	now func() time.Time
}

// NewFanoutService creates the fanout engine. maxConcurrent bounds the number
// of recipients being delivered to at once; publisher may be nil.
func NewFanoutService(repo FanoutRepository, mailer Mailer, publisher EventPublisher, caps domain.SchemaCapabilities, logger *slog.Logger, maxConcurrent int64) *FanoutService {
	if maxConcurrent <= 0 {
		maxConcurrent = 16
	}
	return &FanoutService{
		repo:      repo,
		mailer:    mailer,
		publisher: publisher,
		caps:      caps,
		logger:    logger,
		sem:       semaphore.NewWeighted(maxConcurrent),
		now:       time.Now,
	}
}

// Drain blocks until all in-flight background deliveries finish. Called on
// shutdown so a deploy does not drop dispatched work.
func (s *FanoutService) Drain() {
	s.wg.Wait()
}

// delivery is one recipient's unit of fanout work: one in-app insert plus one
// conditional email.
type delivery struct {
	userID    string
	notifType string
	title     string
	body      string
	metadata  map[string]interface{}
	dedupeKey *string

	// emailOnly deliveries had their in-app row written by a batched insert.
	emailOnly bool

	emailTemplate string
	emailSubject  string
	emailHTML     string
	emailText     string
}

// deliveryOutcome captures both legs' results for one recipient.
type deliveryOutcome struct {
	userID      string
	inAppOK     bool
	inAppErr    error
	emailStatus string
	emailErr    error
}

// MemberPostPublished notifies every current member of the product about new
// content. The audience is re-derived here; the event only carries ids.
func (s *FanoutService) MemberPostPublished(ctx context.Context, ev domain.PostPublishedEvent) error {
	if ev.ProductID == "" {
		return fmt.Errorf("post published event missing product id: %w", domain.ErrNotFound)
	}
	if !s.caps.MembershipsTable {
		s.logger.Debug("memberships table absent, skipping member post fanout", "product_id", ev.ProductID)
		return nil
	}

	memberIDs, err := s.repo.ListActiveMemberIDs(ctx, ev.ProductID)
	if err != nil {
		return fmt.Errorf("resolve member audience for product %s: %w", ev.ProductID, err)
	}
	if len(memberIDs) == 0 {
		return nil
	}

	title := "New post from a creator you support"
	if ev.Title != "" {
		title = fmt.Sprintf("New post: %s", ev.Title)
	}
	metadata := map[string]interface{}{
		"creator_id": ev.CreatorID,
		"product_id": ev.ProductID,
		"post_id":    ev.PostID,
	}

	// The in-app leg is one batched insert; only the emails fan out
	// per recipient.
	now := s.now().UTC()
	items := make([]domain.Notification, 0, len(memberIDs))
	deliveries := make([]delivery, 0, len(memberIDs))
	for _, memberID := range memberIDs {
		items = append(items, domain.Notification{
			ID:        uuid.New(),
			UserID:    memberID,
			Type:      domain.TypeMemberPost,
			Title:     title,
			Body:      "A creator you subscribe to published new content.",
			Metadata:  metadata,
			CreatedAt: now,
		})
		deliveries = append(deliveries, delivery{
			userID:        memberID,
			notifType:     domain.TypeMemberPost,
			emailOnly:     true,
			emailTemplate: "member_post",
			emailSubject:  title,
			emailHTML:     fmt.Sprintf("<p>A creator you support just published <strong>%s</strong>. Log in to see it.</p>", ev.Title),
			emailText:     fmt.Sprintf("A creator you support just published %q. Log in to see it.", ev.Title),
		})
	}

	s.dispatchBatch("member_post", items, deliveries)
	return nil
}

// PurchaseCompleted notifies the buyer with a receipt and the creator with a
// sale alert.
func (s *FanoutService) PurchaseCompleted(ctx context.Context, orderID string) error {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("resolve order %s: %w", orderID, err)
	}

	metadata := map[string]interface{}{
		"order_id":   order.ID,
		"product_id": order.ProductID,
	}

	deliveries := []delivery{
		{
			userID:        order.BuyerID,
			notifType:     domain.TypePurchaseReceipt,
			title:         "Your purchase is confirmed",
			body:          fmt.Sprintf("Thanks for your purchase of %s.", order.ProductName),
			metadata:      metadata,
			emailTemplate: "purchase_receipt",
			emailSubject:  "Your purchase is confirmed",
			emailHTML:     fmt.Sprintf("<p>Thanks for your purchase of <strong>%s</strong>.</p>", order.ProductName),
			emailText:     fmt.Sprintf("Thanks for your purchase of %s.", order.ProductName),
		},
		{
			userID:        order.CreatorID,
			notifType:     domain.TypeSale,
			title:         "You made a sale",
			body:          fmt.Sprintf("%s was just purchased.", order.ProductName),
			metadata:      metadata,
			emailTemplate: "sale_alert",
			emailSubject:  "You made a sale",
			emailHTML:     fmt.Sprintf("<p><strong>%s</strong> was just purchased.</p>", order.ProductName),
			emailText:     fmt.Sprintf("%s was just purchased.", order.ProductName),
		},
	}

	s.dispatch("purchase_completed", deliveries)
	return nil
}

// RequestDelivered notifies the single buyer that their request is ready.
func (s *FanoutService) RequestDelivered(ctx context.Context, requestID string) error {
	req, err := s.repo.GetRequest(ctx, requestID)
	if err != nil {
		return fmt.Errorf("resolve request %s: %w", requestID, err)
	}

	d := delivery{
		userID:    req.BuyerID,
		notifType: domain.TypeRequestDelivered,
		title:     "Your request has been delivered",
		body:      fmt.Sprintf("Your request %q is ready to view.", req.Title),
		metadata: map[string]interface{}{
			"request_id": req.ID,
			"creator_id": req.CreatorID,
		},
		emailTemplate: "request_delivered",
		emailSubject:  "Your request has been delivered",
		emailHTML:     fmt.Sprintf("<p>Your request <strong>%s</strong> is ready to view.</p>", req.Title),
		emailText:     fmt.Sprintf("Your request %q is ready to view.", req.Title),
	}

	s.dispatch("request_delivered", []delivery{d})
	return nil
}

// NotifyRenewal delivers one renewal reminder. Unlike the event entry points
// this is synchronous: the sweep owns its own scheduling and counts real
// outcomes. The in-app insert carries a per-membership per-day dedupe key so
// overlapping sweep runs converge on a single notification; when the insert
// loses that race the email leg is skipped and notified is false.
func (s *FanoutService) NotifyRenewal(ctx context.Context, c domain.RenewalCandidate) (bool, error) {
	dedupeKey := fmt.Sprintf("renewal:%s:%s", c.MembershipID, s.now().UTC().Format("2006-01-02"))
	item := domain.Notification{
		ID:        uuid.New(),
		UserID:    c.UserID,
		Type:      domain.TypeMembershipRenewal,
		Title:     "Your membership renews soon",
		Body:      fmt.Sprintf("Your membership to %s renews on %s.", c.ProductName, c.CurrentPeriodEnd.UTC().Format("January 2, 2006")),
		Metadata: map[string]interface{}{
			"membership_id": c.MembershipID,
			"product_id":    c.ProductID,
		},
		DedupeKey: &dedupeKey,
		CreatedAt: s.now().UTC(),
	}

	created, err := s.repo.CreateNotification(ctx, item)
	if err != nil {
		return false, fmt.Errorf("insert renewal notification: %w", err)
	}
	if !created {
		s.logger.Debug("renewal reminder already recorded, skipping", "membership_id", c.MembershipID)
		return false, nil
	}
	s.publishCreated(ctx, item)

	status, err := s.deliverEmail(ctx, delivery{
		userID:        c.UserID,
		notifType:     domain.TypeMembershipRenewal,
		emailTemplate: "membership_renewal",
		emailSubject:  "Your membership renews soon",
		emailHTML:     fmt.Sprintf("<p>Your membership to <strong>%s</strong> renews on %s.</p>", c.ProductName, c.CurrentPeriodEnd.UTC().Format("January 2, 2006")),
		emailText:     item.Body,
	})
	if err != nil {
		s.logger.Error("renewal reminder email failed", "user_id", c.UserID, "membership_id", c.MembershipID, "error", err)
	} else {
		s.logger.Debug("renewal reminder email outcome", "user_id", c.UserID, "status", status)
	}

	return true, nil
}

// dispatch runs a delivery batch in the background so the triggering request
// never waits on fanout. Drain joins these on shutdown.
func (s *FanoutService) dispatch(event string, deliveries []delivery) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		outcomes := s.deliverAll(context.Background(), deliveries)
		s.logOutcomes(event, outcomes)
	}()
}

// dispatchBatch writes the in-app rows in one statement, then fans the email
// legs out. A failed batch insert is logged and swallowed; the email channel
// is independent and still runs.
func (s *FanoutService) dispatchBatch(event string, items []domain.Notification, deliveries []delivery) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx := context.Background()

		insertCtx, cancel := context.WithTimeout(ctx, deliveryTimeout)
		count, err := s.repo.CreateNotifications(insertCtx, items)
		cancel()
		if err != nil {
			s.logger.Error("batched in-app insert failed", "event", event, "recipients", len(items), "error", err)
		} else {
			s.logger.Debug("batched in-app insert finished", "event", event, "inserted", count)
			for _, item := range items {
				s.publishCreated(ctx, item)
			}
		}

		outcomes := s.deliverAll(ctx, deliveries)
		s.logOutcomes(event, outcomes)
	}()
}

// deliverAll fans a batch out across a bounded worker pool and collects every
// outcome. All-settled: no outcome short-circuits another.
func (s *FanoutService) deliverAll(ctx context.Context, deliveries []delivery) []deliveryOutcome {
	outcomes := make([]deliveryOutcome, len(deliveries))
	var wg sync.WaitGroup

	for i := range deliveries {
		if err := s.sem.Acquire(ctx, 1); err != nil {
			outcomes[i] = deliveryOutcome{userID: deliveries[i].userID, inAppErr: err, emailStatus: emailFailed, emailErr: err}
			continue
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer s.sem.Release(1)
			outcomes[i] = s.deliverOne(ctx, deliveries[i])
		}(i)
	}

	wg.Wait()
	return outcomes
}

// deliverOne runs both legs for a single recipient concurrently. Each leg's
// failure is captured, never propagated to the other.
func (s *FanoutService) deliverOne(parent context.Context, d delivery) deliveryOutcome {
	ctx, cancel := context.WithTimeout(parent, deliveryTimeout)
	defer cancel()

	outcome := deliveryOutcome{userID: d.userID}
	if d.emailOnly {
		outcome.emailStatus, outcome.emailErr = s.deliverEmail(ctx, d)
		return outcome
	}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		item := domain.Notification{
			ID:        uuid.New(),
			UserID:    d.userID,
			Type:      d.notifType,
			Title:     d.title,
			Body:      d.body,
			Metadata:  d.metadata,
			DedupeKey: d.dedupeKey,
			CreatedAt: s.now().UTC(),
		}
		created, err := s.repo.CreateNotification(ctx, item)
		if err != nil {
			outcome.inAppErr = err
			return
		}
		outcome.inAppOK = created
		if created {
			s.publishCreated(ctx, item)
		}
	}()

	go func() {
		defer wg.Done()
		status, err := s.deliverEmail(ctx, d)
		outcome.emailStatus = status
		outcome.emailErr = err
	}()

	wg.Wait()
	return outcome
}

// deliverEmail runs the preference-gated email leg. A missing user or a
// disabled preference is a silent skip, never an error.
func (s *FanoutService) deliverEmail(ctx context.Context, d delivery) (string, error) {
	prefColumn := domain.PreferenceColumnForType(d.notifType)
	if prefColumn == "" || d.emailSubject == "" {
		return emailSkippedNone, nil
	}

	rec, err := s.repo.GetRecipient(ctx, d.userID, prefColumn)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return emailSkippedNoUser, nil
		}
		return emailFailed, err
	}
	if !rec.EmailEnabled {
		return emailSkippedPref, nil
	}

	attempt := domain.EmailDeliveryAttempt{
		ID:       uuid.New(),
		ToEmail:  rec.Email,
		Subject:  d.emailSubject,
		Template: d.emailTemplate,
		Payload:  d.metadata,
	}
	recorded := s.caps.EmailAttemptsTable
	if recorded {
		if err := s.repo.CreateEmailAttempt(ctx, attempt); err != nil {
			s.logger.Warn("failed to record email attempt", "user_id", d.userID, "error", err)
			recorded = false
		}
	}

	sendErr := s.mailer.Send(ctx, domain.EmailMessage{
		To:      rec.Email,
		Subject: d.emailSubject,
		HTML:    d.emailHTML,
		Text:    d.emailText,
	})

	if recorded {
		status := domain.EmailStatusSent
		var lastError *string
		var sentAt *time.Time
		if sendErr != nil {
			status = domain.EmailStatusFailed
			msg := sendErr.Error()
			lastError = &msg
		} else {
			now := s.now().UTC()
			sentAt = &now
		}
		if err := s.repo.MarkEmailAttemptResult(ctx, attempt.ID, status, lastError, sentAt); err != nil {
			s.logger.Warn("failed to finalize email attempt", "attempt_id", attempt.ID, "error", err)
		}
	}

	if sendErr != nil {
		return emailFailed, sendErr
	}
	return emailSent, nil
}

// publishCreated emits the observability event for an in-app insert.
// Best-effort: publish failures are logged and swallowed.
func (s *FanoutService) publishCreated(ctx context.Context, item domain.Notification) {
	if s.publisher == nil {
		return
	}
	ev := domain.NotificationCreatedEvent{
		NotificationID: item.ID.String(),
		UserID:         item.UserID,
		Type:           item.Type,
		CreatedAt:      item.CreatedAt,
	}
	if err := s.publisher.Publish(ctx, eventsExchange, domain.RoutingKeyNotificationCreated, ev); err != nil {
		s.logger.Debug("failed to publish notification created event", "notification_id", ev.NotificationID, "error", err)
	}
}

func (s *FanoutService) logOutcomes(event string, outcomes []deliveryOutcome) {
	var inAppFailed, emailsSent, emailsFailed, emailsSkipped int
	for _, o := range outcomes {
		if o.inAppErr != nil {
			inAppFailed++
			s.logger.Error("in-app delivery failed", "event", event, "user_id", o.userID, "error", o.inAppErr)
		}
		switch o.emailStatus {
		case emailSent:
			emailsSent++
		case emailFailed:
			emailsFailed++
			s.logger.Error("email delivery failed", "event", event, "user_id", o.userID, "error", o.emailErr)
		default:
			emailsSkipped++
		}
	}
	s.logger.Info("fanout finished",
		"event", event,
		"recipients", len(outcomes),
		"in_app_failed", inAppFailed,
		"emails_sent", emailsSent,
		"emails_failed", emailsFailed,
		"emails_skipped", emailsSkipped,
	)
}
