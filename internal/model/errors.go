// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, listing, order, payment, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeListingNotFound    = "LISTING_NOT_FOUND"
	ErrCodeListingNotOwned    = "LISTING_NOT_OWNED"
	ErrCodeListingUnavailable = "LISTING_UNAVAILABLE"
	ErrCodeOrderNotFound      = "ORDER_NOT_FOUND"
	ErrCodeEmptyCart          = "EMPTY_CART"
	ErrCodeDuplicateLike      = "DUPLICATE_LIKE"
	ErrCodeLikeNotFound       = "LIKE_NOT_FOUND"
	ErrCodeDuplicateCartItem  = "DUPLICATE_CART_ITEM"
	ErrCodeCartItemNotFound   = "CART_ITEM_NOT_FOUND"
	ErrCodeDuplicateSave      = "DUPLICATE_SAVE"
	ErrCodeSaveNotFound       = "SAVE_NOT_FOUND"
	ErrCodeDuplicateFollow    = "DUPLICATE_FOLLOW"
	ErrCodeFollowNotFound     = "FOLLOW_NOT_FOUND"
	ErrCodeSelfFollow         = "SELF_FOLLOW"
	ErrCodeInvalidPrice       = "INVALID_PRICE"
	ErrCodeDuplicateUsername  = "DUPLICATE_USERNAME"
	ErrCodeDuplicateEmail     = "DUPLICATE_EMAIL"
)

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewListingNotFoundError は出品未検出エラーを生成する。
func NewListingNotFoundError(listingID string) *APIError {
	return &APIError{
		Code:     ErrCodeListingNotFound,
		Message:  fmt.Sprintf("指定された出品が見つかりません: %s", listingID),
		Category: "listing",
		Action:   "出品IDを確認してください。",
	}
}

// NewListingNotOwnedError は他人の出品を操作しようとした場合のエラーを生成する。
func NewListingNotOwnedError(listingID string) *APIError {
	return &APIError{
		Code:     ErrCodeListingNotOwned,
		Message:  fmt.Sprintf("この出品を操作する権限がありません: %s", listingID),
		Category: "listing",
		Action:   "自分の出品のみ編集・削除できます。",
	}
}

// NewListingUnavailableError は他の購入者が決済中の出品をチェックアウトしようとした場合のエラーを生成する。
func NewListingUnavailableError(listingID string) *APIError {
	return &APIError{
		Code:     ErrCodeListingUnavailable,
		Message:  fmt.Sprintf("この出品は現在ほかの購入手続き中です: %s", listingID),
		Category: "order",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewOrderNotFoundError は注文未検出エラーを生成する。
func NewOrderNotFoundError(orderID string) *APIError {
	return &APIError{
		Code:     ErrCodeOrderNotFound,
		Message:  fmt.Sprintf("指定された注文が見つかりません: %s", orderID),
		Category: "order",
		Action:   "注文IDを確認してください。",
	}
}

// NewEmptyCartError は空のカートでチェックアウトしようとした場合のエラーを生成する。
func NewEmptyCartError() *APIError {
	return &APIError{
		Code:     ErrCodeEmptyCart,
		Message:  "カートが空です。",
		Category: "order",
		Action:   "出品をカートに追加してからチェックアウトしてください。",
	}
}

// NewDuplicateLikeError は既にいいね済みの出品に再度いいねした場合のエラーを生成する。
func NewDuplicateLikeError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateLike,
		Message:  "この出品は既にいいねしています。",
		Category: "listing",
		Action:   "いいね一覧から該当出品を確認してください。",
	}
}

// NewLikeNotFoundError はいいねしていない出品のいいね解除エラーを生成する。
func NewLikeNotFoundError(listingID string) *APIError {
	return &APIError{
		Code:     ErrCodeLikeNotFound,
		Message:  fmt.Sprintf("この出品はいいねしていません: %s", listingID),
		Category: "listing",
		Action:   "いいね一覧を確認してください。",
	}
}

// NewDuplicateCartItemError は既にカートに入っている出品の重複追加エラーを生成する。
func NewDuplicateCartItemError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateCartItem,
		Message:  "この出品は既にカートに入っています。",
		Category: "order",
		Action:   "カートを確認してください。",
	}
}

// NewCartItemNotFoundError はカートに入っていない出品の削除エラーを生成する。
func NewCartItemNotFoundError(listingID string) *APIError {
	return &APIError{
		Code:     ErrCodeCartItemNotFound,
		Message:  fmt.Sprintf("この出品はカートに入っていません: %s", listingID),
		Category: "order",
		Action:   "カートの内容を確認してください。",
	}
}

// NewDuplicateSaveError は既に保存済みの出品の重複保存エラーを生成する。
func NewDuplicateSaveError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateSave,
		Message:  "この出品は既に保存しています。",
		Category: "listing",
		Action:   "保存一覧から該当出品を確認してください。",
	}
}

// NewSaveNotFoundError は保存していない出品の保存解除エラーを生成する。
func NewSaveNotFoundError(listingID string) *APIError {
	return &APIError{
		Code:     ErrCodeSaveNotFound,
		Message:  fmt.Sprintf("この出品は保存していません: %s", listingID),
		Category: "listing",
		Action:   "保存一覧を確認してください。",
	}
}

// NewDuplicateFollowError は既にフォロー済みのユーザーへの重複フォローエラーを生成する。
func NewDuplicateFollowError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateFollow,
		Message:  "このユーザーは既にフォローしています。",
		Category: "auth",
		Action:   "フォロー一覧を確認してください。",
	}
}

// NewFollowNotFoundError はフォローしていないユーザーのフォロー解除エラーを生成する。
func NewFollowNotFoundError(userID string) *APIError {
	return &APIError{
		Code:     ErrCodeFollowNotFound,
		Message:  fmt.Sprintf("このユーザーはフォローしていません: %s", userID),
		Category: "auth",
		Action:   "フォロー一覧を確認してください。",
	}
}

// NewSelfFollowError は自分自身をフォローしようとした場合のエラーを生成する。
func NewSelfFollowError() *APIError {
	return &APIError{
		Code:     ErrCodeSelfFollow,
		Message:  "自分自身はフォローできません。",
		Category: "validation",
		Action:   "ほかのユーザーを指定してください。",
	}
}

// NewDuplicateUsernameError はユーザー名が既に使用されている場合のエラーを生成する。
func NewDuplicateUsernameError(username string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateUsername,
		Message:  fmt.Sprintf("このユーザー名は既に使用されています: %s", username),
		Category: "validation",
		Action:   "別のユーザー名を指定してください。",
	}
}

// NewDuplicateEmailError はメールアドレスが既に登録されている場合のエラーを生成する。
func NewDuplicateEmailError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateEmail,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "validation",
		Action:   "登録済みのアカウントでログインしてください。",
	}
}

// NewInvalidPriceError は価格が不正な場合のエラーを生成する。
func NewInvalidPriceError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPrice,
		Message:  fmt.Sprintf("無効な価格です: %s", reason),
		Category: "validation",
		Action:   "0より大きい金額を小数点以下2桁までで指定してください。",
	}
}
