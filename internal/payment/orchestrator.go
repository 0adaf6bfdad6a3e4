package payment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/thriftswipe/internal/metrics"
	"github.com/hitoshi/thriftswipe/internal/model"
	"github.com/hitoshi/thriftswipe/internal/order"
	"github.com/hitoshi/thriftswipe/internal/repository"
)

// CheckoutResult はチェックアウト開始の結果。
// モバイルSDKがPaymentSheetを表示するために必要な情報を含む。
type CheckoutResult struct {
	OrderID            string
	Total              decimal.Decimal
	PaymentIntentID    string
	ClientSecret       string
	CustomerID         string
	EphemeralKeySecret string
}

// Orchestrator はチェックアウトの一連の処理を調整する。
// 出品の確保、注文の組み立て、PaymentIntentの作成を順に行い、
// 途中で失敗した場合は確保済みの出品を解放する。
type Orchestrator struct {
	userRepo       repository.UserRepository
	listingRepo    repository.ListingRepository
	engagementRepo repository.EngagementRepository
	orderRepo      repository.OrderRepository
	orderService   *order.Service
	gateway        Gateway
	collector      metrics.MetricsCollector
	currency       string
}

// NewOrchestrator はOrchestratorの新しいインスタンスを生成する。
func NewOrchestrator(
	userRepo repository.UserRepository,
	listingRepo repository.ListingRepository,
	engagementRepo repository.EngagementRepository,
	orderRepo repository.OrderRepository,
	orderService *order.Service,
	gateway Gateway,
	collector metrics.MetricsCollector,
) *Orchestrator {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &Orchestrator{
		userRepo:       userRepo,
		listingRepo:    listingRepo,
		engagementRepo: engagementRepo,
		orderRepo:      orderRepo,
		orderService:   orderService,
		gateway:        gateway,
		collector:      collector,
		currency:       "usd",
	}
}

// Checkout はカートの内容からチェックアウトを開始する。
//
// 処理の順序が二重販売防止の要:
//  1. カート内の全出品を条件付き更新でCHECKOUTに確保する。
//     1件でも確保できなければ全件解放して409を返す。注文は作られない。
//  2. 確保に成功した場合のみ注文を組み立てる。
//  3. PaymentIntentを作成して注文に紐づける。プロバイダ障害時は
//     確保した出品を解放する。
func (o *Orchestrator) Checkout(ctx context.Context, userID string) (*CheckoutResult, error) {
	o.collector.RecordCheckoutStarted()
	start := time.Now()
	defer func() {
		o.collector.RecordCheckoutLatency(time.Since(start))
	}()

	user, err := o.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	listingIDs, err := o.engagementRepo.ListCartListingIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("カートの取得に失敗しました: %w", err)
	}
	if len(listingIDs) == 0 {
		return nil, model.NewEmptyCartError()
	}

	claimed, err := o.listingRepo.ClaimForCheckout(ctx, listingIDs)
	if err != nil {
		return nil, fmt.Errorf("出品の確保に失敗しました: %w", err)
	}
	if len(claimed) != len(listingIDs) {
		// 確保できなかった出品がある。部分的に確保した分は戻す
		o.releaseListings(ctx, claimed)
		o.collector.RecordCheckoutConflict()
		return nil, model.NewListingUnavailableError(findUnclaimedID(listingIDs, claimed))
	}

	ord, err := o.orderService.Assemble(ctx, userID, listingIDs)
	if err != nil {
		o.releaseListings(ctx, claimed)
		return nil, err
	}

	customerID, err := o.ensureCustomer(ctx, user)
	if err != nil {
		o.releaseListings(ctx, claimed)
		o.collector.RecordCheckoutFailed()
		return nil, err
	}

	// 最小通貨単位へ変換。価格は小数点以下2桁までに検証済みなので誤差は出ない
	amountMinor := ord.Total.Mul(decimal.NewFromInt(100)).IntPart()

	intent, err := o.gateway.CreatePaymentIntent(ctx, PaymentIntentInput{
		AmountMinor: amountMinor,
		Currency:    o.currency,
		CustomerID:  customerID,
		OrderID:     ord.ID,
		UserID:      userID,
	})
	if err != nil {
		o.releaseListings(ctx, claimed)
		o.collector.RecordCheckoutFailed()
		return nil, err
	}

	ephemeralKey, err := o.gateway.CreateEphemeralKey(ctx, customerID)
	if err != nil {
		o.releaseListings(ctx, claimed)
		o.collector.RecordCheckoutFailed()
		return nil, err
	}

	if err := o.orderRepo.SetPaymentIntent(ctx, ord.ID, intent.ID, model.PaymentStatusRequiresPaymentMethod); err != nil {
		o.releaseListings(ctx, claimed)
		return nil, fmt.Errorf("注文への決済情報の紐づけに失敗しました: %w", err)
	}

	return &CheckoutResult{
		OrderID:            ord.ID,
		Total:              ord.Total,
		PaymentIntentID:    intent.ID,
		ClientSecret:       intent.ClientSecret,
		CustomerID:         customerID,
		EphemeralKeySecret: ephemeralKey,
	}, nil
}

// FailCheckout はクライアントが決済を中断した注文を失敗として確定し、
// 確保していた出品をSTAGINGに戻す。購入者本人の注文のみ操作できる。
func (o *Orchestrator) FailCheckout(ctx context.Context, userID, orderID string) error {
	ord, err := o.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("注文の取得に失敗しました: %w", err)
	}
	if ord == nil || ord.PurchaserID != userID {
		return model.NewOrderNotFoundError(orderID)
	}

	var listingIDs []string
	for _, sub := range ord.SubOrders {
		for _, line := range sub.Lines {
			listingIDs = append(listingIDs, line.ListingID)
		}
	}

	released, err := o.listingRepo.ReleaseFromCheckout(ctx, listingIDs)
	if err != nil {
		return fmt.Errorf("出品の解放に失敗しました: %w", err)
	}

	if ord.PaymentIntentID != "" {
		if _, err := o.orderRepo.UpdateStatusByPaymentIntent(ctx, ord.PaymentIntentID, model.PaymentStatusFailed); err != nil {
			return fmt.Errorf("注文の状態更新に失敗しました: %w", err)
		}
	}

	slog.Info("checkout failed by client",
		slog.String("order_id", orderID),
		slog.Int("listings_released", len(released)),
	)

	return nil
}

// ensureCustomer は決済プロバイダ側の顧客を遅延作成する。
// 既に顧客IDを持つユーザーはそのまま返す。
func (o *Orchestrator) ensureCustomer(ctx context.Context, user *model.User) (string, error) {
	if user.StripeCustomerID != "" {
		return user.StripeCustomerID, nil
	}

	customerID, err := o.gateway.CreateCustomer(ctx, user.Email, user.ID)
	if err != nil {
		return "", err
	}

	if err := o.userRepo.SetStripeCustomerID(ctx, user.ID, customerID); err != nil {
		return "", fmt.Errorf("顧客IDの保存に失敗しました: %w", err)
	}

	return customerID, nil
}

// releaseListings は確保済みの出品をベストエフォートで解放する。
// 解放に失敗しても滞留回収ワーカーが後から拾う。
func (o *Orchestrator) releaseListings(ctx context.Context, ids []string) {
	if len(ids) == 0 {
		return
	}
	if _, err := o.listingRepo.ReleaseFromCheckout(ctx, ids); err != nil {
		slog.Error("failed to release claimed listings",
			slog.Int("count", len(ids)),
			slog.String("error", err.Error()),
		)
	}
}

// findUnclaimedID は確保できなかった出品IDを1件返す。
func findUnclaimedID(requested, claimed []string) string {
	claimedSet := make(map[string]bool, len(claimed))
	for _, id := range claimed {
		claimedSet[id] = true
	}
	for _, id := range requested {
		if !claimedSet[id] {
			return id
		}
	}
	return ""
}
