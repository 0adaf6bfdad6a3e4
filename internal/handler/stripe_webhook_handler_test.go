package handler

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"
)

const testSigningSecret = "whsec_test_secret"

// mockStripeProcessor はStripeEventProcessorのモック実装。
type mockStripeProcessor struct {
	processFn func(ctx context.Context, event stripe.Event) error
}

func (m *mockStripeProcessor) Process(ctx context.Context, event stripe.Event) error {
	if m.processFn != nil {
		return m.processFn(ctx, event)
	}
	return nil
}

// eventPayload はライブラリが期待するapi_version付きのイベントJSONを組み立てる。
func eventPayload(eventType string) []byte {
	return []byte(fmt.Sprintf(
		`{"id": "evt_1", "api_version": %q, "type": %q, "data": {"object": {"id": "pi_1"}}}`,
		stripe.APIVersion, eventType,
	))
}

// signedWebhookRequest は正しい署名ヘッダー付きのWebhookリクエストを組み立てる。
func signedWebhookRequest(t *testing.T, payload []byte) *http.Request {
	t.Helper()
	now := time.Now()
	signature := webhook.ComputeSignature(now, payload, testSigningSecret)
	header := fmt.Sprintf("t=%d,v1=%s", now.Unix(), hex.EncodeToString(signature))

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", header)
	return req
}

func TestStripeWebhookHandler_Handle_ValidSignature_ReturnsOK(t *testing.T) {
	var processed stripe.Event
	processor := &mockStripeProcessor{
		processFn: func(ctx context.Context, event stripe.Event) error {
			processed = event
			return nil
		},
	}

	h := NewStripeWebhookHandler(processor, testSigningSecret)

	req := signedWebhookRequest(t, eventPayload("payment_intent.succeeded"))
	w := httptest.NewRecorder()

	h.Handle(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if processed.ID != "evt_1" {
		t.Errorf("processed event ID = %q, want evt_1", processed.ID)
	}
}

func TestStripeWebhookHandler_Handle_InvalidSignature_ReturnsBadRequest(t *testing.T) {
	processCalled := false
	processor := &mockStripeProcessor{
		processFn: func(ctx context.Context, event stripe.Event) error {
			processCalled = true
			return nil
		},
	}

	h := NewStripeWebhookHandler(processor, testSigningSecret)

	payload := []byte(`{"id": "evt_1", "type": "payment_intent.succeeded"}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")
	w := httptest.NewRecorder()

	h.Handle(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if processCalled {
		t.Error("expected processor not to be called for invalid signature")
	}
}

func TestStripeWebhookHandler_Handle_MissingSignature_ReturnsBadRequest(t *testing.T) {
	h := NewStripeWebhookHandler(&mockStripeProcessor{}, testSigningSecret)

	payload := []byte(`{"id": "evt_1"}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(payload))
	w := httptest.NewRecorder()

	h.Handle(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestStripeWebhookHandler_Handle_ProcessorError_ReturnsInternalError(t *testing.T) {
	// 500を返すとプロバイダが再送する。再送はイベントログの重複排除で吸収される
	processor := &mockStripeProcessor{
		processFn: func(ctx context.Context, event stripe.Event) error {
			return errors.New("db down")
		},
	}

	h := NewStripeWebhookHandler(processor, testSigningSecret)

	req := signedWebhookRequest(t, eventPayload("payment_intent.succeeded"))
	w := httptest.NewRecorder()

	h.Handle(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}
