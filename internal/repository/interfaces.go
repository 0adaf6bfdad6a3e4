// Package repository はデータ永続化のインターフェースとPostgreSQL実装を提供する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/thriftswipe/internal/model"
)

// ErrDuplicate は一意制約違反（重複行の挿入）を表す。
// サービス層で409 Conflictにマッピングされる。
var ErrDuplicate = errors.New("duplicate row")

// UserRepository はユーザーの永続化を担う。
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByExternalID(ctx context.Context, externalID string) (*model.User, error)
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	Create(ctx context.Context, user *model.User) error
	Update(ctx context.Context, user *model.User) error
	DeleteByExternalID(ctx context.Context, externalID string) error
	SetStripeCustomerID(ctx context.Context, userID, customerID string) error
}

// ListingRepository は出品の永続化を担う。
type ListingRepository interface {
	FindByID(ctx context.Context, id string) (*model.Listing, error)
	// FindByIDs は指定IDの出品をすべて返す。見つからないIDがあっても
	// エラーにはせず、呼び出し側で件数を照合する。
	FindByIDs(ctx context.Context, ids []string) ([]*model.Listing, error)
	Create(ctx context.Context, listing *model.Listing) error
	Update(ctx context.Context, listing *model.Listing) error
	Delete(ctx context.Context, id string) error
	ListBySeller(ctx context.Context, sellerID string) ([]*model.Listing, error)
	// ListFeed はスワイプフィード用にSTAGING状態の出品を返す。
	// 自分の出品と、いいね・興味なし済みの出品は除外する。
	ListFeed(ctx context.Context, userID string, limit int) ([]*model.Listing, error)
	// ClaimForCheckout はSTAGING状態の行のみを条件付きでCHECKOUTに遷移させ、
	// 実際に遷移できた出品IDを返す。二重販売を防ぐ比較交換。
	ClaimForCheckout(ctx context.Context, ids []string) ([]string, error)
	// ReleaseFromCheckout はCHECKOUT状態の行のみをSTAGINGに戻し、
	// 実際に戻した出品IDを返す。
	ReleaseFromCheckout(ctx context.Context, ids []string) ([]string, error)
	// MarkSold は指定出品をSOLDに遷移させる。
	MarkSold(ctx context.Context, ids []string) error
	// ListStuckInCheckout は閾値より長くCHECKOUTに滞留している出品IDを返す。
	// 決済がSUCCEEDEDに達した注文に属する出品は対象外。
	ListStuckInCheckout(ctx context.Context, olderThan time.Duration) ([]string, error)
}

// EngagementRepository はカート・いいね・興味なし・保存の結合行を担う。
// すべて (user_id, listing_id) の一意制約を持ち、重複挿入はErrDuplicateを返す。
type EngagementRepository interface {
	AddCartItem(ctx context.Context, userID, listingID string) error
	RemoveCartItem(ctx context.Context, userID, listingID string) (bool, error)
	ListCartListings(ctx context.Context, userID string) ([]*model.Listing, error)
	ListCartListingIDs(ctx context.Context, userID string) ([]string, error)
	ClearCartByListingIDs(ctx context.Context, listingIDs []string) error

	AddLike(ctx context.Context, userID, listingID string) error
	RemoveLike(ctx context.Context, userID, listingID string) (bool, error)
	ListLikedListings(ctx context.Context, userID string) ([]*model.Listing, error)

	AddDislike(ctx context.Context, userID, listingID string) error
	RemoveDislike(ctx context.Context, userID, listingID string) (bool, error)

	AddSavedItem(ctx context.Context, userID, listingID string) error
	RemoveSavedItem(ctx context.Context, userID, listingID string) (bool, error)
	ListSavedListings(ctx context.Context, userID string) ([]*model.Listing, error)
}

// FollowRepository はフォロー関係を担う。
type FollowRepository interface {
	Add(ctx context.Context, followerID, followeeID string) error
	Remove(ctx context.Context, followerID, followeeID string) (bool, error)
	CountFollowers(ctx context.Context, userID string) (int, error)
	CountFollowing(ctx context.Context, userID string) (int, error)
}

// OrderRepository は注文の永続化を担う。
type OrderRepository interface {
	// Create はOrderと配下のSubOrder・OrderLineを単一トランザクションで作成する。
	Create(ctx context.Context, order *model.Order) error
	FindByID(ctx context.Context, id string) (*model.Order, error)
	ListByPurchaser(ctx context.Context, purchaserID string) ([]*model.Order, error)
	SetPaymentIntent(ctx context.Context, orderID, paymentIntentID string, status model.PaymentStatus) error
	// UpdateStatusByPaymentIntent はPaymentIntentIDで注文を特定して決済状態を
	// 更新し、注文IDを返す。該当注文がない場合は空文字を返す。
	UpdateStatusByPaymentIntent(ctx context.Context, paymentIntentID string, status model.PaymentStatus) (string, error)
	// ListingIDsByPaymentIntent は注文に含まれる全出品IDを返す。
	ListingIDsByPaymentIntent(ctx context.Context, paymentIntentID string) ([]string, error)
}

// StripeEventRepository は決済Webhookイベントログを担う。
type StripeEventRepository interface {
	// Insert はイベントを追記する。同一provider_event_idが既に存在する場合は
	// ErrDuplicateを返す（at-least-once配信の重複検出）。
	Insert(ctx context.Context, event *model.StripeEvent) error
	// IsProcessed は指定イベントの状態反映が完了済みかどうかを返す。
	IsProcessed(ctx context.Context, providerEventID string) (bool, error)
	// MarkProcessed は指定イベントの状態反映完了を記録する。
	MarkProcessed(ctx context.Context, providerEventID string) error
	DeleteOlderThan(ctx context.Context, retention time.Duration) (int64, error)
}
