package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v81"

	"github.com/hitoshi/thriftswipe/internal/mail"
	"github.com/hitoshi/thriftswipe/internal/metrics"
	"github.com/hitoshi/thriftswipe/internal/model"
	"github.com/hitoshi/thriftswipe/internal/repository"
)

// WebhookConsumer は決済プロバイダのWebhookイベントを処理する。
// 署名検証済みのイベントを受け取り、重複を排除したうえで
// 注文と出品の状態を確定させる。
type WebhookConsumer struct {
	eventRepo      repository.StripeEventRepository
	orderRepo      repository.OrderRepository
	listingRepo    repository.ListingRepository
	engagementRepo repository.EngagementRepository
	userRepo       repository.UserRepository
	mailer         mail.Sender
	collector      metrics.MetricsCollector
}

// NewWebhookConsumer はWebhookConsumerの新しいインスタンスを生成する。
func NewWebhookConsumer(
	eventRepo repository.StripeEventRepository,
	orderRepo repository.OrderRepository,
	listingRepo repository.ListingRepository,
	engagementRepo repository.EngagementRepository,
	userRepo repository.UserRepository,
	mailer mail.Sender,
	collector metrics.MetricsCollector,
) *WebhookConsumer {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &WebhookConsumer{
		eventRepo:      eventRepo,
		orderRepo:      orderRepo,
		listingRepo:    listingRepo,
		engagementRepo: engagementRepo,
		userRepo:       userRepo,
		mailer:         mailer,
		collector:      collector,
	}
}

// Process は1件のWebhookイベントを処理する。
// イベントログへ未処理として記録し、状態反映が完了してから処理済みに更新する。
// 同一イベントIDの再配信は、処理済みなら何もせず成功を返し、
// 未処理（前回の反映が途中で失敗した）なら反映をやり直す。
// 未知のイベントタイプも記録だけして成功を返す（プロバイダへの再送要求を避ける）。
func (c *WebhookConsumer) Process(ctx context.Context, event stripe.Event) error {
	c.collector.RecordWebhookEvent(string(event.Type))

	record := &model.StripeEvent{
		ID:              uuid.NewString(),
		ProviderEventID: event.ID,
		EventType:       string(event.Type),
		Payload:         event.Data.Raw,
		ReceivedAt:      time.Now(),
	}

	if err := c.eventRepo.Insert(ctx, record); err != nil {
		if !errors.Is(err, repository.ErrDuplicate) {
			return fmt.Errorf("イベントログの記録に失敗しました: %w", err)
		}
		processed, perr := c.eventRepo.IsProcessed(ctx, event.ID)
		if perr != nil {
			return fmt.Errorf("イベントログの照会に失敗しました: %w", perr)
		}
		if processed {
			c.collector.RecordWebhookDuplicate()
			slog.Info("duplicate webhook event skipped",
				slog.String("event_id", event.ID),
				slog.String("event_type", string(event.Type)),
			)
			return nil
		}
		slog.Info("retrying unprocessed webhook event",
			slog.String("event_id", event.ID),
			slog.String("event_type", string(event.Type)),
		)
	}

	if err := c.handle(ctx, event); err != nil {
		// 処理済みにしないまま返す。プロバイダの再配信で反映をやり直す。
		return err
	}

	if err := c.eventRepo.MarkProcessed(ctx, event.ID); err != nil {
		return fmt.Errorf("イベントログの更新に失敗しました: %w", err)
	}
	return nil
}

// handle はイベントタイプごとの状態反映を行う。
func (c *WebhookConsumer) handle(ctx context.Context, event stripe.Event) error {
	switch event.Type {
	case "payment_intent.created":
		slog.Info("payment intent created",
			slog.String("event_id", event.ID),
		)
		return nil

	case "payment_intent.succeeded":
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return fmt.Errorf("イベントペイロードの解析に失敗しました: %w", err)
		}
		return c.applySuccess(ctx, intent.ID)

	case "charge.succeeded":
		var charge stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			return fmt.Errorf("イベントペイロードの解析に失敗しました: %w", err)
		}
		if charge.PaymentIntent == nil {
			slog.Warn("charge without payment intent",
				slog.String("event_id", event.ID),
			)
			return nil
		}
		return c.applySuccess(ctx, charge.PaymentIntent.ID)

	case "payment_intent.payment_failed":
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return fmt.Errorf("イベントペイロードの解析に失敗しました: %w", err)
		}
		return c.applyFailure(ctx, intent.ID)

	default:
		slog.Info("unhandled webhook event type",
			slog.String("event_id", event.ID),
			slog.String("event_type", string(event.Type)),
		)
		return nil
	}
}

// applySuccess は決済成功を注文と出品に反映する。
// payment_intent.succeededとcharge.succeededの両方から呼ばれるうえ、
// 未処理イベントの再配信でも再実行されるため、
// 各更新は同じ終端状態への遷移として冪等に書いてある。
func (c *WebhookConsumer) applySuccess(ctx context.Context, paymentIntentID string) error {
	orderID, err := c.orderRepo.UpdateStatusByPaymentIntent(ctx, paymentIntentID, model.PaymentStatusSucceeded)
	if err != nil {
		return fmt.Errorf("注文の状態更新に失敗しました: %w", err)
	}
	if orderID == "" {
		// このサービスが作ったPaymentIntentではない
		slog.Warn("no order for payment intent",
			slog.String("payment_intent_id", paymentIntentID),
		)
		return nil
	}

	listingIDs, err := c.orderRepo.ListingIDsByPaymentIntent(ctx, paymentIntentID)
	if err != nil {
		return fmt.Errorf("注文明細の取得に失敗しました: %w", err)
	}

	if err := c.listingRepo.MarkSold(ctx, listingIDs); err != nil {
		return fmt.Errorf("出品の売却確定に失敗しました: %w", err)
	}

	// 売れた出品は全ユーザーのカートから取り除く
	if err := c.engagementRepo.ClearCartByListingIDs(ctx, listingIDs); err != nil {
		return fmt.Errorf("カートの整理に失敗しました: %w", err)
	}

	c.sendConfirmation(ctx, orderID)

	slog.Info("payment succeeded",
		slog.String("order_id", orderID),
		slog.Int("listings_sold", len(listingIDs)),
	)

	return nil
}

// applyFailure は決済失敗を注文に反映し、出品をフィードに戻す。
func (c *WebhookConsumer) applyFailure(ctx context.Context, paymentIntentID string) error {
	orderID, err := c.orderRepo.UpdateStatusByPaymentIntent(ctx, paymentIntentID, model.PaymentStatusFailed)
	if err != nil {
		return fmt.Errorf("注文の状態更新に失敗しました: %w", err)
	}
	if orderID == "" {
		slog.Warn("no order for payment intent",
			slog.String("payment_intent_id", paymentIntentID),
		)
		return nil
	}

	listingIDs, err := c.orderRepo.ListingIDsByPaymentIntent(ctx, paymentIntentID)
	if err != nil {
		return fmt.Errorf("注文明細の取得に失敗しました: %w", err)
	}

	released, err := c.listingRepo.ReleaseFromCheckout(ctx, listingIDs)
	if err != nil {
		return fmt.Errorf("出品の解放に失敗しました: %w", err)
	}

	slog.Info("payment failed",
		slog.String("order_id", orderID),
		slog.Int("listings_released", len(released)),
	)

	return nil
}

// sendConfirmation は購入者へ注文確認メールをベストエフォートで送信する。
func (c *WebhookConsumer) sendConfirmation(ctx context.Context, orderID string) {
	if c.mailer == nil {
		return
	}

	ord, err := c.orderRepo.FindByID(ctx, orderID)
	if err != nil || ord == nil {
		slog.Warn("failed to load order for confirmation mail",
			slog.String("order_id", orderID),
		)
		return
	}

	purchaser, err := c.userRepo.FindByID(ctx, ord.PurchaserID)
	if err != nil || purchaser == nil {
		slog.Warn("failed to load purchaser for confirmation mail",
			slog.String("order_id", orderID),
		)
		return
	}

	if err := c.mailer.SendOrderConfirmation(ctx, purchaser.Email, ord.ID, ord.Total.StringFixed(2)); err != nil {
		slog.Warn("failed to send order confirmation",
			slog.String("order_id", orderID),
			slog.String("error", err.Error()),
		)
	}
}
