package app

import (
	"context"
	"errors"
	"testing"

	"github.com/fanforge/engine-service/internal/domain"
)

type stubDispatcher struct {
	postErr     error
	purchaseErr error
	requestErr  error

	posts     []domain.PostPublishedEvent
	purchases []string
	requests  []string
}

func (d *stubDispatcher) MemberPostPublished(ctx context.Context, ev domain.PostPublishedEvent) error {
	d.posts = append(d.posts, ev)
	return d.postErr
}

func (d *stubDispatcher) PurchaseCompleted(ctx context.Context, orderID string) error {
	d.purchases = append(d.purchases, orderID)
	return d.purchaseErr
}

func (d *stubDispatcher) RequestDelivered(ctx context.Context, requestID string) error {
	d.requests = append(d.requests, requestID)
	return d.requestErr
}

func TestHandlePostPublished(t *testing.T) {
	dispatcher := &stubDispatcher{}
	h := NewEventHandler(dispatcher, testLogger())

	body := []byte(`{"creator_id":"c1","product_id":"p1","post_id":"post1","title":"Hello"}`)
	if !h.HandlePostPublished(body) {
		t.Fatal("expected ack on success")
	}
	if len(dispatcher.posts) != 1 || dispatcher.posts[0].ProductID != "p1" {
		t.Errorf("unexpected dispatch: %v", dispatcher.posts)
	}
}

func TestHandlePostPublished_MalformedBodyAcked(t *testing.T) {
	dispatcher := &stubDispatcher{}
	h := NewEventHandler(dispatcher, testLogger())

	if !h.HandlePostPublished([]byte(`{not json`)) {
		t.Error("malformed payloads must be acked, not requeued")
	}
	if len(dispatcher.posts) != 0 {
		t.Error("malformed payloads must not reach the fanout")
	}
}

func TestHandlePurchaseCompleted_AckDecisions(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		wantAck bool
	}{
		{"success", nil, true},
		{"unknown order", domain.ErrNotFound, true},
		{"infrastructure failure", errors.New("db down"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dispatcher := &stubDispatcher{purchaseErr: tc.err}
			h := NewEventHandler(dispatcher, testLogger())

			ack := h.HandlePurchaseCompleted([]byte(`{"order_id":"o1"}`))
			if ack != tc.wantAck {
				t.Errorf("ack = %v, want %v", ack, tc.wantAck)
			}
		})
	}
}

func TestHandlePurchaseCompleted_MissingOrderIDAcked(t *testing.T) {
	dispatcher := &stubDispatcher{}
	h := NewEventHandler(dispatcher, testLogger())

	if !h.HandlePurchaseCompleted([]byte(`{}`)) {
		t.Error("expected ack on missing order id")
	}
	if len(dispatcher.purchases) != 0 {
		t.Error("empty order id must not reach the fanout")
	}
}

func TestHandleRequestDelivered(t *testing.T) {
	dispatcher := &stubDispatcher{}
	h := NewEventHandler(dispatcher, testLogger())

	if !h.HandleRequestDelivered([]byte(`{"request_id":"r1"}`)) {
		t.Fatal("expected ack on success")
	}
	if len(dispatcher.requests) != 1 || dispatcher.requests[0] != "r1" {
		t.Errorf("unexpected dispatch: %v", dispatcher.requests)
	}

	dispatcher.requestErr = errors.New("db down")
	if h.HandleRequestDelivered([]byte(`{"request_id":"r2"}`)) {
		t.Error("retryable failure should requeue")
	}
}
