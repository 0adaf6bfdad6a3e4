package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ListingStatus は出品の状態を表す。
// 出品のライフサイクル: STAGING → CHECKOUT → SOLD、
// チェックアウト失敗時は CHECKOUT → STAGING に戻る。
type ListingStatus string

const (
	// ListingStatusStaging は販売中（スワイプフィードに表示される）状態。
	// カートへの追加は出品の状態を変えない（cart_itemsの行で表現する）。
	ListingStatusStaging ListingStatus = "STAGING"
	// ListingStatusCheckout は決済処理中（他ユーザーから購入不可）状態。
	ListingStatusCheckout ListingStatus = "CHECKOUT"
	// ListingStatusSold は売却済み状態。
	ListingStatusSold ListingStatus = "SOLD"
)

// Listing は1点物の出品アイテムを表す。
type Listing struct {
	ID          string
	SellerID    string
	Title       string
	Description string
	Price       decimal.Decimal
	Size        string
	ImagePaths  []string
	Status      ListingStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CartItem はユーザーのカートに入った出品を表す。
// (UserID, ListingID) の組み合わせは一意。
type CartItem struct {
	ID        string
	UserID    string
	ListingID string
	CreatedAt time.Time
}

// Like はスワイプで右に振った（気に入った）出品を表す。
type Like struct {
	ID        string
	UserID    string
	ListingID string
	CreatedAt time.Time
}

// Dislike はスワイプで左に振った（興味なし）出品を表す。
// フィードから除外するために記録する。
type Dislike struct {
	ID        string
	UserID    string
	ListingID string
	CreatedAt time.Time
}

// SavedItem はあとで見るために保存した出品を表す。
type SavedItem struct {
	ID        string
	UserID    string
	ListingID string
	CreatedAt time.Time
}
