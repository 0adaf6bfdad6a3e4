package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus は決済プロバイダのPaymentIntentライフサイクルに対応する注文の決済状態。
type PaymentStatus string

const (
	PaymentStatusRequiresPaymentMethod PaymentStatus = "REQUIRES_PAYMENT_METHOD"
	PaymentStatusRequiresConfirmation  PaymentStatus = "REQUIRES_CONFIRMATION"
	PaymentStatusRequiresAction        PaymentStatus = "REQUIRES_ACTION"
	PaymentStatusProcessing            PaymentStatus = "PROCESSING"
	PaymentStatusRequiresCapture       PaymentStatus = "REQUIRES_CAPTURE"
	PaymentStatusCanceled              PaymentStatus = "CANCELED"
	PaymentStatusSucceeded             PaymentStatus = "SUCCEEDED"
	PaymentStatusFailed                PaymentStatus = "FAILED"
)

// Order は1回のチェックアウトで生成される注文を表す。
// 複数の出品者をまたぐ場合、出品者ごとのSubOrderに分割される。
type Order struct {
	ID              string
	PurchaserID     string
	Total           decimal.Decimal
	PaymentIntentID string // PaymentIntent作成後に設定される。作成前は空文字
	PaymentStatus   PaymentStatus
	SubOrders       []SubOrder
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// SubOrder は注文のうち1人の出品者に属する部分を表す。
type SubOrder struct {
	ID           string
	OrderID      string
	SellerID     string
	ShippingCost decimal.Decimal
	Lines        []OrderLine
	CreatedAt    time.Time
}

// OrderLine は購入時点の価格スナップショットを持つ注文明細。
// Priceは出品のその瞬間の価格のコピーであり、以後の価格変更の影響を受けない。
type OrderLine struct {
	ID         string
	SubOrderID string
	ListingID  string
	Price      decimal.Decimal
	CreatedAt  time.Time
}
