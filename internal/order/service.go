// Package order は注文の組み立てと照会のドメインロジックを提供する。
package order

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hitoshi/thriftswipe/internal/model"
	"github.com/hitoshi/thriftswipe/internal/repository"
)

// DefaultShippingCost は出品者ごとのサブ注文1件あたりの配送料。
var DefaultShippingCost = decimal.NewFromInt(5)

// Service は注文管理のサービス層。
type Service struct {
	orderRepo    repository.OrderRepository
	listingRepo  repository.ListingRepository
	shippingCost decimal.Decimal
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(orderRepo repository.OrderRepository, listingRepo repository.ListingRepository) *Service {
	return &Service{
		orderRepo:    orderRepo,
		listingRepo:  listingRepo,
		shippingCost: DefaultShippingCost,
	}
}

// Assemble は指定出品IDのリストから注文を組み立てて永続化する。
// 出品者ごとにSubOrderに分割し、各明細は購入時点の価格スナップショットを持つ。
// 合計 = 全明細の価格 + サブ注文ごとの配送料。
// 見つからない出品IDが1件でもあれば何も永続化せずエラーを返す。
func (s *Service) Assemble(ctx context.Context, purchaserID string, listingIDs []string) (*model.Order, error) {
	if len(listingIDs) == 0 {
		return nil, model.NewEmptyCartError()
	}

	listings, err := s.listingRepo.FindByIDs(ctx, listingIDs)
	if err != nil {
		return nil, fmt.Errorf("出品の取得に失敗しました: %w", err)
	}
	if len(listings) != len(listingIDs) {
		missing := findMissingID(listingIDs, listings)
		return nil, model.NewListingNotFoundError(missing)
	}

	now := time.Now()
	orderID := uuid.NewString()

	// 出品者の初出順でSubOrderを構築する（入力順に対して安定）
	byID := make(map[string]*model.Listing, len(listings))
	for _, l := range listings {
		byID[l.ID] = l
	}

	subIndex := make(map[string]int)
	var subOrders []model.SubOrder
	total := decimal.Zero

	for _, id := range listingIDs {
		l := byID[id]

		idx, ok := subIndex[l.SellerID]
		if !ok {
			idx = len(subOrders)
			subIndex[l.SellerID] = idx
			subOrders = append(subOrders, model.SubOrder{
				ID:           uuid.NewString(),
				OrderID:      orderID,
				SellerID:     l.SellerID,
				ShippingCost: s.shippingCost,
				CreatedAt:    now,
			})
			total = total.Add(s.shippingCost)
		}

		subOrders[idx].Lines = append(subOrders[idx].Lines, model.OrderLine{
			ID:         uuid.NewString(),
			SubOrderID: subOrders[idx].ID,
			ListingID:  l.ID,
			Price:      l.Price,
			CreatedAt:  now,
		})
		total = total.Add(l.Price)
	}

	order := &model.Order{
		ID:            orderID,
		PurchaserID:   purchaserID,
		Total:         total,
		PaymentStatus: model.PaymentStatusRequiresPaymentMethod,
		SubOrders:     subOrders,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("注文の作成に失敗しました: %w", err)
	}

	return order, nil
}

// findMissingID は取得できなかった出品IDを1件返す。
func findMissingID(requested []string, found []*model.Listing) string {
	present := make(map[string]bool, len(found))
	for _, l := range found {
		present[l.ID] = true
	}
	for _, id := range requested {
		if !present[id] {
			return id
		}
	}
	return ""
}

// Get は注文を1件取得する。購入者本人以外からの照会は未検出として扱う。
func (s *Service) Get(ctx context.Context, purchaserID, orderID string) (*model.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("注文の取得に失敗しました: %w", err)
	}
	if order == nil || order.PurchaserID != purchaserID {
		return nil, model.NewOrderNotFoundError(orderID)
	}
	return order, nil
}

// List は購入者の注文履歴を返す。
func (s *Service) List(ctx context.Context, purchaserID string) ([]*model.Order, error) {
	orders, err := s.orderRepo.ListByPurchaser(ctx, purchaserID)
	if err != nil {
		return nil, fmt.Errorf("注文履歴の取得に失敗しました: %w", err)
	}
	return orders, nil
}
