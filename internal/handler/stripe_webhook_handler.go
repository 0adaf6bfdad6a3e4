package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"
)

// maxWebhookBodyBytes はWebhookリクエストボディの最大サイズ。
const maxWebhookBodyBytes = 64 * 1024

// StripeEventProcessor は署名検証済みの決済イベントを処理するインターフェース。
type StripeEventProcessor interface {
	Process(ctx context.Context, event stripe.Event) error
}

// StripeWebhookHandler は決済プロバイダからのWebhookを受けるHTTPハンドラー。
// 署名検証に失敗したリクエストは処理せず拒否する。
type StripeWebhookHandler struct {
	processor     StripeEventProcessor
	signingSecret string
}

// NewStripeWebhookHandler はStripeWebhookHandlerを生成する。
func NewStripeWebhookHandler(processor StripeEventProcessor, signingSecret string) *StripeWebhookHandler {
	return &StripeWebhookHandler{
		processor:     processor,
		signingSecret: signingSecret,
	}
}

// Handle はWebhookリクエストを処理する。
// POST /webhooks/stripe
//
// 処理に失敗した場合は500を返し、プロバイダの再送に任せる。
// 再送された重複イベントはイベントログで排除される。
func (h *StripeWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err != nil {
		slog.Warn("failed to read webhook body", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	event, err := webhook.ConstructEvent(payload, r.Header.Get("Stripe-Signature"), h.signingSecret)
	if err != nil {
		slog.Warn("webhook signature verification failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if err := h.processor.Process(r.Context(), event); err != nil {
		slog.Error("failed to process webhook event",
			slog.String("event_id", event.ID),
			slog.String("event_type", string(event.Type)),
			slog.String("error", err.Error()),
		)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}
