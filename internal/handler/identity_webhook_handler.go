package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	svix "github.com/svix/svix-webhooks/go"

	"github.com/hitoshi/thriftswipe/internal/user"
)

// IdentityEventApplier はIdPのユーザーイベントを適用するインターフェース。
type IdentityEventApplier interface {
	ApplyIdentityCreated(ctx context.Context, evt user.IdentityEvent) error
	ApplyIdentityUpdated(ctx context.Context, evt user.IdentityEvent) error
	ApplyIdentityDeleted(ctx context.Context, externalID string) error
}

// IdentityWebhookHandler はIdP（Clerk）からのユーザー同期Webhookを受けるHTTPハンドラー。
// Svix形式の署名（svix-id/svix-timestamp/svix-signatureヘッダー）を検証する。
type IdentityWebhookHandler struct {
	applier  IdentityEventApplier
	verifier *svix.Webhook
}

// NewIdentityWebhookHandler はIdentityWebhookHandlerを生成する。
func NewIdentityWebhookHandler(applier IdentityEventApplier, signingSecret string) (*IdentityWebhookHandler, error) {
	verifier, err := svix.NewWebhook(signingSecret)
	if err != nil {
		return nil, err
	}
	return &IdentityWebhookHandler{
		applier:  applier,
		verifier: verifier,
	}, nil
}

// identityWebhookPayload はIdPのWebhookペイロード。
type identityWebhookPayload struct {
	Type string `json:"type"`
	Data struct {
		ID             string `json:"id"`
		Username       string `json:"username"`
		ImageURL       string `json:"image_url"`
		EmailAddresses []struct {
			EmailAddress string `json:"email_address"`
		} `json:"email_addresses"`
	} `json:"data"`
}

// Handle はWebhookリクエストを処理する。
// POST /webhooks/identity
func (h *IdentityWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err != nil {
		slog.Warn("failed to read webhook body", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if err := h.verifier.Verify(payload, r.Header); err != nil {
		slog.Warn("identity webhook signature verification failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var body identityWebhookPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		slog.Warn("failed to parse identity webhook payload", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	evt := user.IdentityEvent{
		ExternalID: body.Data.ID,
		Username:   body.Data.Username,
		AvatarPath: body.Data.ImageURL,
	}
	if len(body.Data.EmailAddresses) > 0 {
		evt.Email = body.Data.EmailAddresses[0].EmailAddress
	}

	switch body.Type {
	case "user.created":
		err = h.applier.ApplyIdentityCreated(r.Context(), evt)
	case "user.updated":
		err = h.applier.ApplyIdentityUpdated(r.Context(), evt)
	case "user.deleted":
		err = h.applier.ApplyIdentityDeleted(r.Context(), body.Data.ID)
	default:
		slog.Info("unhandled identity webhook type", slog.String("type", body.Type))
		w.WriteHeader(http.StatusOK)
		return
	}

	if err != nil {
		slog.Error("failed to apply identity event",
			slog.String("type", body.Type),
			slog.String("external_id", body.Data.ID),
			slog.String("error", err.Error()),
		)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}
