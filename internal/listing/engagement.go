package listing

import (
	"context"
	"errors"
	"fmt"

	"github.com/hitoshi/thriftswipe/internal/model"
	"github.com/hitoshi/thriftswipe/internal/repository"
)

// EngagementService はカート・いいね・興味なし・保存の操作を提供する。
// いずれも (user_id, listing_id) ごとに1行で、重複追加は409、
// 存在しない行の削除は404として扱う。
type EngagementService struct {
	engagementRepo repository.EngagementRepository
	listingRepo    repository.ListingRepository
}

// NewEngagementService はEngagementServiceの新しいインスタンスを生成する。
func NewEngagementService(engagementRepo repository.EngagementRepository, listingRepo repository.ListingRepository) *EngagementService {
	return &EngagementService{
		engagementRepo: engagementRepo,
		listingRepo:    listingRepo,
	}
}

// ensureListingExists は対象の出品が存在することを確認する。
func (s *EngagementService) ensureListingExists(ctx context.Context, listingID string) error {
	listing, err := s.listingRepo.FindByID(ctx, listingID)
	if err != nil {
		return fmt.Errorf("出品の取得に失敗しました: %w", err)
	}
	if listing == nil {
		return model.NewListingNotFoundError(listingID)
	}
	return nil
}

// AddCartItem は出品をカートに追加する。
func (s *EngagementService) AddCartItem(ctx context.Context, userID, listingID string) error {
	if err := s.ensureListingExists(ctx, listingID); err != nil {
		return err
	}
	if err := s.engagementRepo.AddCartItem(ctx, userID, listingID); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return model.NewDuplicateCartItemError()
		}
		return fmt.Errorf("カートへの追加に失敗しました: %w", err)
	}
	return nil
}

// RemoveCartItem は出品をカートから削除する。
func (s *EngagementService) RemoveCartItem(ctx context.Context, userID, listingID string) error {
	existed, err := s.engagementRepo.RemoveCartItem(ctx, userID, listingID)
	if err != nil {
		return fmt.Errorf("カートからの削除に失敗しました: %w", err)
	}
	if !existed {
		return model.NewCartItemNotFoundError(listingID)
	}
	return nil
}

// ListCart はカート内の出品一覧を返す。
func (s *EngagementService) ListCart(ctx context.Context, userID string) ([]*model.Listing, error) {
	listings, err := s.engagementRepo.ListCartListings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("カートの取得に失敗しました: %w", err)
	}
	return listings, nil
}

// AddLike は出品にいいねを付ける（スワイプ右）。
// 過去に左へ振っていた場合は興味なし行を取り消す（いいねと興味なしは排他）。
func (s *EngagementService) AddLike(ctx context.Context, userID, listingID string) error {
	if err := s.ensureListingExists(ctx, listingID); err != nil {
		return err
	}
	if err := s.engagementRepo.AddLike(ctx, userID, listingID); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return model.NewDuplicateLikeError()
		}
		return fmt.Errorf("いいねの登録に失敗しました: %w", err)
	}
	if _, err := s.engagementRepo.RemoveDislike(ctx, userID, listingID); err != nil {
		return fmt.Errorf("興味なしの取り消しに失敗しました: %w", err)
	}
	return nil
}

// RemoveLike はいいねを解除する。
func (s *EngagementService) RemoveLike(ctx context.Context, userID, listingID string) error {
	existed, err := s.engagementRepo.RemoveLike(ctx, userID, listingID)
	if err != nil {
		return fmt.Errorf("いいねの解除に失敗しました: %w", err)
	}
	if !existed {
		return model.NewLikeNotFoundError(listingID)
	}
	return nil
}

// ListLikes はいいねした出品一覧を返す。
func (s *EngagementService) ListLikes(ctx context.Context, userID string) ([]*model.Listing, error) {
	listings, err := s.engagementRepo.ListLikedListings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("いいね一覧の取得に失敗しました: %w", err)
	}
	return listings, nil
}

// AddDislike は出品を興味なしとして記録する（スワイプ左）。
// 以後その出品はフィードに表示されない。重複は冪等に成功扱い。
// 過去にいいねしていた場合はいいね行を取り消す（いいねと興味なしは排他）。
func (s *EngagementService) AddDislike(ctx context.Context, userID, listingID string) error {
	if err := s.ensureListingExists(ctx, listingID); err != nil {
		return err
	}
	if err := s.engagementRepo.AddDislike(ctx, userID, listingID); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// 同じカードを二度左に振っても結果は変わらない
			return nil
		}
		return fmt.Errorf("興味なしの登録に失敗しました: %w", err)
	}
	if _, err := s.engagementRepo.RemoveLike(ctx, userID, listingID); err != nil {
		return fmt.Errorf("いいねの取り消しに失敗しました: %w", err)
	}
	return nil
}

// RemoveDislike は興味なしを取り消す。存在しない場合も冪等に成功扱い。
func (s *EngagementService) RemoveDislike(ctx context.Context, userID, listingID string) error {
	if _, err := s.engagementRepo.RemoveDislike(ctx, userID, listingID); err != nil {
		return fmt.Errorf("興味なしの解除に失敗しました: %w", err)
	}
	return nil
}

// AddSavedItem は出品を保存する。
func (s *EngagementService) AddSavedItem(ctx context.Context, userID, listingID string) error {
	if err := s.ensureListingExists(ctx, listingID); err != nil {
		return err
	}
	if err := s.engagementRepo.AddSavedItem(ctx, userID, listingID); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return model.NewDuplicateSaveError()
		}
		return fmt.Errorf("保存の登録に失敗しました: %w", err)
	}
	return nil
}

// RemoveSavedItem は保存を解除する。
func (s *EngagementService) RemoveSavedItem(ctx context.Context, userID, listingID string) error {
	existed, err := s.engagementRepo.RemoveSavedItem(ctx, userID, listingID)
	if err != nil {
		return fmt.Errorf("保存の解除に失敗しました: %w", err)
	}
	if !existed {
		return model.NewSaveNotFoundError(listingID)
	}
	return nil
}

// ListSaved は保存した出品一覧を返す。
func (s *EngagementService) ListSaved(ctx context.Context, userID string) ([]*model.Listing, error) {
	listings, err := s.engagementRepo.ListSavedListings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("保存一覧の取得に失敗しました: %w", err)
	}
	return listings, nil
}
