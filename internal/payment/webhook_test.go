package payment

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v81"

	"github.com/hitoshi/thriftswipe/internal/model"
	"github.com/hitoshi/thriftswipe/internal/repository"
)

type mockEventRepo struct {
	insertFn        func(ctx context.Context, event *model.StripeEvent) error
	isProcessedFn   func(ctx context.Context, providerEventID string) (bool, error)
	markProcessedFn func(ctx context.Context, providerEventID string) error
}

func (m *mockEventRepo) Insert(ctx context.Context, event *model.StripeEvent) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, event)
	}
	return nil
}
func (m *mockEventRepo) IsProcessed(ctx context.Context, providerEventID string) (bool, error) {
	if m.isProcessedFn != nil {
		return m.isProcessedFn(ctx, providerEventID)
	}
	return true, nil
}
func (m *mockEventRepo) MarkProcessed(ctx context.Context, providerEventID string) error {
	if m.markProcessedFn != nil {
		return m.markProcessedFn(ctx, providerEventID)
	}
	return nil
}
func (m *mockEventRepo) DeleteOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	return 0, nil
}

func intentEvent(t *testing.T, eventType, intentID string) stripe.Event {
	t.Helper()
	raw, err := json.Marshal(map[string]string{"id": intentID})
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}
	return stripe.Event{
		ID:   "evt_" + intentID,
		Type: stripe.EventType(eventType),
		Data: &stripe.EventData{Raw: raw},
	}
}

// TestWebhookConsumer_Process_DuplicateEvent_Skips は処理済みイベントの
// 再配信で状態更新が行われないことを検証する。
func TestWebhookConsumer_Process_DuplicateEvent_Skips(t *testing.T) {
	eventRepo := &mockEventRepo{
		insertFn: func(ctx context.Context, event *model.StripeEvent) error {
			return repository.ErrDuplicate
		},
		isProcessedFn: func(ctx context.Context, providerEventID string) (bool, error) {
			return true, nil
		},
	}
	statusUpdated := false
	orderRepo := &mockOrderRepo{
		updateStatusByPaymentIntentFn: func(ctx context.Context, paymentIntentID string, status model.PaymentStatus) (string, error) {
			statusUpdated = true
			return "order-1", nil
		},
	}

	c := NewWebhookConsumer(eventRepo, orderRepo, &mockListingRepo{}, &mockEngagementRepo{}, &mockUserRepo{}, nil, nil)

	err := c.Process(context.Background(), intentEvent(t, "payment_intent.succeeded", "pi_1"))
	if err != nil {
		t.Fatalf("Process returned error for duplicate: %v", err)
	}
	if statusUpdated {
		t.Error("expected no status update for duplicate event")
	}
}

// TestWebhookConsumer_Process_Redelivery_AppliesUnprocessedEvent は状態反映が
// 一時的な障害で失敗した場合に、同一イベントの再配信で反映がやり直され、
// 完了後に処理済みとして記録されることを検証する。
func TestWebhookConsumer_Process_Redelivery_AppliesUnprocessedEvent(t *testing.T) {
	inserted := false
	marked := false
	eventRepo := &mockEventRepo{
		insertFn: func(ctx context.Context, event *model.StripeEvent) error {
			if inserted {
				return repository.ErrDuplicate
			}
			inserted = true
			return nil
		},
		isProcessedFn: func(ctx context.Context, providerEventID string) (bool, error) {
			return marked, nil
		},
		markProcessedFn: func(ctx context.Context, providerEventID string) error {
			marked = true
			return nil
		},
	}

	failOnce := true
	var updatedStatus model.PaymentStatus
	orderRepo := &mockOrderRepo{
		updateStatusByPaymentIntentFn: func(ctx context.Context, paymentIntentID string, status model.PaymentStatus) (string, error) {
			if failOnce {
				failOnce = false
				return "", errors.New("connection reset")
			}
			updatedStatus = status
			return "order-1", nil
		},
		listingIDsByPaymentIntentFn: func(ctx context.Context, paymentIntentID string) ([]string, error) {
			return []string{"l-1"}, nil
		},
	}

	c := NewWebhookConsumer(eventRepo, orderRepo, &mockListingRepo{}, &mockEngagementRepo{}, &mockUserRepo{}, nil, nil)

	event := intentEvent(t, "payment_intent.succeeded", "pi_1")
	if err := c.Process(context.Background(), event); err == nil {
		t.Fatal("expected first delivery to fail")
	}
	if marked {
		t.Fatal("expected event to stay unprocessed after failed delivery")
	}

	if err := c.Process(context.Background(), event); err != nil {
		t.Fatalf("Process returned error on redelivery: %v", err)
	}
	if updatedStatus != model.PaymentStatusSucceeded {
		t.Errorf("status = %s, want %s", updatedStatus, model.PaymentStatusSucceeded)
	}
	if !marked {
		t.Error("expected event to be marked processed after redelivery")
	}
}

// TestWebhookConsumer_Process_Succeeded_MarksSoldAndClearsCarts は決済成功で
// 注文がSUCCEEDEDになり、出品が売却確定し、全ユーザーのカートから
// 取り除かれることを検証する。
func TestWebhookConsumer_Process_Succeeded_MarksSoldAndClearsCarts(t *testing.T) {
	var updatedStatus model.PaymentStatus
	orderRepo := &mockOrderRepo{
		updateStatusByPaymentIntentFn: func(ctx context.Context, paymentIntentID string, status model.PaymentStatus) (string, error) {
			updatedStatus = status
			return "order-1", nil
		},
		listingIDsByPaymentIntentFn: func(ctx context.Context, paymentIntentID string) ([]string, error) {
			return []string{"l-1", "l-2"}, nil
		},
	}
	var soldIDs []string
	listingRepo := &mockListingRepo{
		markSoldFn: func(ctx context.Context, ids []string) error {
			soldIDs = ids
			return nil
		},
	}
	var clearedIDs []string
	engagementRepo := &mockEngagementRepo{
		clearCartByListingIDsFn: func(ctx context.Context, listingIDs []string) error {
			clearedIDs = listingIDs
			return nil
		},
	}

	c := NewWebhookConsumer(&mockEventRepo{}, orderRepo, listingRepo, engagementRepo, &mockUserRepo{}, nil, nil)

	err := c.Process(context.Background(), intentEvent(t, "payment_intent.succeeded", "pi_1"))
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if updatedStatus != model.PaymentStatusSucceeded {
		t.Errorf("status = %s, want %s", updatedStatus, model.PaymentStatusSucceeded)
	}
	if len(soldIDs) != 2 {
		t.Errorf("marked %d listings sold, want 2", len(soldIDs))
	}
	if len(clearedIDs) != 2 {
		t.Errorf("cleared %d listings from carts, want 2", len(clearedIDs))
	}
}

// chargeEvent はcharge.succeededイベントを生成するヘルパー。
func chargeEvent(t *testing.T, chargeID, intentID string) stripe.Event {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"id":             chargeID,
		"payment_intent": map[string]string{"id": intentID},
	})
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}
	return stripe.Event{
		ID:   "evt_" + chargeID,
		Type: stripe.EventType("charge.succeeded"),
		Data: &stripe.EventData{Raw: raw},
	}
}

// TestWebhookConsumer_Process_ChargeSucceeded_ConvergesToSucceeded は
// payment_intent.succeededの後に別イベントIDで届くcharge.succeededが、
// 同じ終端状態SUCCEEDEDへの冪等な遷移になることを検証する。
func TestWebhookConsumer_Process_ChargeSucceeded_ConvergesToSucceeded(t *testing.T) {
	var statuses []model.PaymentStatus
	orderRepo := &mockOrderRepo{
		updateStatusByPaymentIntentFn: func(ctx context.Context, paymentIntentID string, status model.PaymentStatus) (string, error) {
			if paymentIntentID != "pi_1" {
				t.Errorf("paymentIntentID = %q, want pi_1", paymentIntentID)
			}
			statuses = append(statuses, status)
			return "order-1", nil
		},
		listingIDsByPaymentIntentFn: func(ctx context.Context, paymentIntentID string) ([]string, error) {
			return []string{"l-1"}, nil
		},
	}

	c := NewWebhookConsumer(&mockEventRepo{}, orderRepo, &mockListingRepo{}, &mockEngagementRepo{}, &mockUserRepo{}, nil, nil)

	if err := c.Process(context.Background(), intentEvent(t, "payment_intent.succeeded", "pi_1")); err != nil {
		t.Fatalf("Process(payment_intent.succeeded) returned error: %v", err)
	}
	if err := c.Process(context.Background(), chargeEvent(t, "ch_1", "pi_1")); err != nil {
		t.Fatalf("Process(charge.succeeded) returned error: %v", err)
	}

	if len(statuses) != 2 {
		t.Fatalf("status updates = %d, want 2", len(statuses))
	}
	for i, s := range statuses {
		if s != model.PaymentStatusSucceeded {
			t.Errorf("status update %d = %s, want %s", i, s, model.PaymentStatusSucceeded)
		}
	}
}

// TestWebhookConsumer_Process_Failed_ReleasesListings は決済失敗で注文が
// FAILEDになり、出品がフィードに戻ることを検証する。
func TestWebhookConsumer_Process_Failed_ReleasesListings(t *testing.T) {
	var updatedStatus model.PaymentStatus
	orderRepo := &mockOrderRepo{
		updateStatusByPaymentIntentFn: func(ctx context.Context, paymentIntentID string, status model.PaymentStatus) (string, error) {
			updatedStatus = status
			return "order-1", nil
		},
		listingIDsByPaymentIntentFn: func(ctx context.Context, paymentIntentID string) ([]string, error) {
			return []string{"l-1"}, nil
		},
	}
	var released []string
	listingRepo := &mockListingRepo{
		releaseFromCheckoutFn: func(ctx context.Context, ids []string) ([]string, error) {
			released = ids
			return ids, nil
		},
	}

	c := NewWebhookConsumer(&mockEventRepo{}, orderRepo, listingRepo, &mockEngagementRepo{}, &mockUserRepo{}, nil, nil)

	err := c.Process(context.Background(), intentEvent(t, "payment_intent.payment_failed", "pi_1"))
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if updatedStatus != model.PaymentStatusFailed {
		t.Errorf("status = %s, want %s", updatedStatus, model.PaymentStatusFailed)
	}
	if len(released) != 1 || released[0] != "l-1" {
		t.Errorf("released = %v, want [l-1]", released)
	}
}

// TestWebhookConsumer_Process_UnknownIntent_Succeeds は自サービスの注文に
// 紐づかないPaymentIntentのイベントが成功扱いになることを検証する。
func TestWebhookConsumer_Process_UnknownIntent_Succeeds(t *testing.T) {
	orderRepo := &mockOrderRepo{
		updateStatusByPaymentIntentFn: func(ctx context.Context, paymentIntentID string, status model.PaymentStatus) (string, error) {
			return "", nil
		},
	}
	markSoldCalled := false
	listingRepo := &mockListingRepo{
		markSoldFn: func(ctx context.Context, ids []string) error {
			markSoldCalled = true
			return nil
		},
	}

	c := NewWebhookConsumer(&mockEventRepo{}, orderRepo, listingRepo, &mockEngagementRepo{}, &mockUserRepo{}, nil, nil)

	err := c.Process(context.Background(), intentEvent(t, "payment_intent.succeeded", "pi_unknown"))
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if markSoldCalled {
		t.Error("expected no listings to be marked sold")
	}
}

// TestWebhookConsumer_Process_UnhandledType_Succeeds は未知のイベントタイプが
// 記録だけされて成功扱いになることを検証する。
func TestWebhookConsumer_Process_UnhandledType_Succeeds(t *testing.T) {
	inserted := false
	eventRepo := &mockEventRepo{
		insertFn: func(ctx context.Context, event *model.StripeEvent) error {
			inserted = true
			return nil
		},
	}

	c := NewWebhookConsumer(eventRepo, &mockOrderRepo{}, &mockListingRepo{}, &mockEngagementRepo{}, &mockUserRepo{}, nil, nil)

	err := c.Process(context.Background(), intentEvent(t, "customer.updated", "pi_x"))
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if !inserted {
		t.Error("expected event to be logged")
	}
}
