// Package listing は出品とスワイプフィードのドメインロジックを提供する。
package listing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hitoshi/thriftswipe/internal/model"
	"github.com/hitoshi/thriftswipe/internal/repository"
	"github.com/hitoshi/thriftswipe/internal/security"
)

// DefaultFeedLimit はスワイプフィードの1回あたりのデフォルト取得件数。
const DefaultFeedLimit = 30

// MaxFeedLimit はスワイプフィードの1回あたりの最大取得件数。
const MaxFeedLimit = 100

// Service は出品管理のサービス層。
type Service struct {
	listingRepo repository.ListingRepository
	sanitizer   security.ContentSanitizerService
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(listingRepo repository.ListingRepository, sanitizer security.ContentSanitizerService) *Service {
	return &Service{
		listingRepo: listingRepo,
		sanitizer:   sanitizer,
	}
}

// CreateInput は出品作成の入力。
type CreateInput struct {
	Title       string
	Description string
	Price       decimal.Decimal
	Size        string
	ImagePaths  []string
}

// validatePrice は価格の妥当性を検証する。
// 0より大きく、小数点以下2桁まで（セント単位で表現可能）であること。
func validatePrice(price decimal.Decimal) error {
	if !price.IsPositive() {
		return model.NewInvalidPriceError("価格は0より大きい必要があります")
	}
	if price.Exponent() < -2 {
		return model.NewInvalidPriceError("価格は小数点以下2桁までです")
	}
	return nil
}

// Create は新しい出品を作成する。初期状態はSTAGING。
func (s *Service) Create(ctx context.Context, sellerID string, input CreateInput) (*model.Listing, error) {
	if err := validatePrice(input.Price); err != nil {
		return nil, err
	}

	now := time.Now()
	listing := &model.Listing{
		ID:          uuid.NewString(),
		SellerID:    sellerID,
		Title:       s.sanitizer.Sanitize(input.Title),
		Description: s.sanitizer.Sanitize(input.Description),
		Price:       input.Price,
		Size:        input.Size,
		ImagePaths:  input.ImagePaths,
		Status:      model.ListingStatusStaging,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.listingRepo.Create(ctx, listing); err != nil {
		return nil, fmt.Errorf("出品の作成に失敗しました: %w", err)
	}

	return listing, nil
}

// Get は出品を1件取得する。
func (s *Service) Get(ctx context.Context, id string) (*model.Listing, error) {
	listing, err := s.listingRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("出品の取得に失敗しました: %w", err)
	}
	if listing == nil {
		return nil, model.NewListingNotFoundError(id)
	}
	return listing, nil
}

// ListBySeller は指定出品者の出品一覧を返す。
func (s *Service) ListBySeller(ctx context.Context, sellerID string) ([]*model.Listing, error) {
	listings, err := s.listingRepo.ListBySeller(ctx, sellerID)
	if err != nil {
		return nil, fmt.Errorf("出品一覧の取得に失敗しました: %w", err)
	}
	return listings, nil
}

// Feed はスワイプフィード用の出品を返す。
// 自分の出品と、既にいいね・興味なしした出品は含まれない。
func (s *Service) Feed(ctx context.Context, userID string, limit int) ([]*model.Listing, error) {
	if limit <= 0 {
		limit = DefaultFeedLimit
	}
	if limit > MaxFeedLimit {
		limit = MaxFeedLimit
	}

	listings, err := s.listingRepo.ListFeed(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("フィードの取得に失敗しました: %w", err)
	}
	return listings, nil
}

// UpdateInput は出品更新の入力。nilのフィールドは変更しない。
type UpdateInput struct {
	Title       *string
	Description *string
	Price       *decimal.Decimal
	Size        *string
	ImagePaths  []string
}

// Update は自分の出品を更新する。所有者以外の更新は拒否する。
func (s *Service) Update(ctx context.Context, userID, listingID string, input UpdateInput) (*model.Listing, error) {
	listing, err := s.listingRepo.FindByID(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("出品の取得に失敗しました: %w", err)
	}
	if listing == nil {
		return nil, model.NewListingNotFoundError(listingID)
	}
	if listing.SellerID != userID {
		return nil, model.NewListingNotOwnedError(listingID)
	}

	if input.Title != nil {
		listing.Title = s.sanitizer.Sanitize(*input.Title)
	}
	if input.Description != nil {
		listing.Description = s.sanitizer.Sanitize(*input.Description)
	}
	if input.Price != nil {
		if err := validatePrice(*input.Price); err != nil {
			return nil, err
		}
		listing.Price = *input.Price
	}
	if input.Size != nil {
		listing.Size = *input.Size
	}
	if input.ImagePaths != nil {
		listing.ImagePaths = input.ImagePaths
	}
	listing.UpdatedAt = time.Now()

	if err := s.listingRepo.Update(ctx, listing); err != nil {
		return nil, fmt.Errorf("出品の更新に失敗しました: %w", err)
	}

	return listing, nil
}

// Delete は自分の出品を削除する。所有者以外の削除は拒否する。
// 関連するカート・いいね・保存の行はDBのCASCADEで削除される。
func (s *Service) Delete(ctx context.Context, userID, listingID string) error {
	listing, err := s.listingRepo.FindByID(ctx, listingID)
	if err != nil {
		return fmt.Errorf("出品の取得に失敗しました: %w", err)
	}
	if listing == nil {
		return model.NewListingNotFoundError(listingID)
	}
	if listing.SellerID != userID {
		return model.NewListingNotOwnedError(listingID)
	}

	if err := s.listingRepo.Delete(ctx, listingID); err != nil {
		return fmt.Errorf("出品の削除に失敗しました: %w", err)
	}

	return nil
}
