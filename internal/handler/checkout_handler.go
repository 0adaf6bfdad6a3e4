package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/thriftswipe/internal/middleware"
	"github.com/hitoshi/thriftswipe/internal/payment"
)

// CheckoutServiceInterface はチェックアウトハンドラーが必要とするサービスインターフェース。
type CheckoutServiceInterface interface {
	// Checkout はカートの内容からチェックアウトを開始する。
	Checkout(ctx context.Context, userID string) (*payment.CheckoutResult, error)
	// FailCheckout はクライアントが中断した決済を失敗として確定する。
	FailCheckout(ctx context.Context, userID, orderID string) error
}

// CheckoutHandler はチェックアウトのHTTPハンドラー。
type CheckoutHandler struct {
	service CheckoutServiceInterface
}

// NewCheckoutHandler はCheckoutHandlerを生成する。
func NewCheckoutHandler(service CheckoutServiceInterface) *CheckoutHandler {
	return &CheckoutHandler{service: service}
}

// checkoutResponse はチェックアウト開始のAPIレスポンス。
// モバイルSDKがPaymentSheetを表示するための情報を含む。
type checkoutResponse struct {
	OrderID            string `json:"order_id"`
	Total              string `json:"total"`
	PaymentIntentID    string `json:"payment_intent_id"`
	ClientSecret       string `json:"client_secret"`
	CustomerID         string `json:"customer_id"`
	EphemeralKeySecret string `json:"ephemeral_key_secret"`
}

// Checkout はチェックアウトを開始する。
// POST /api/checkout
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	result, err := h.service.Checkout(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, checkoutResponse{
		OrderID:            result.OrderID,
		Total:              result.Total.StringFixed(2),
		PaymentIntentID:    result.PaymentIntentID,
		ClientSecret:       result.ClientSecret,
		CustomerID:         result.CustomerID,
		EphemeralKeySecret: result.EphemeralKeySecret,
	})
}

// FailCheckout はクライアントが中断した決済を失敗として確定し、
// 確保していた出品をフィードに戻す。
// POST /api/orders/{id}/fail
func (h *CheckoutHandler) FailCheckout(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	orderID := chi.URLParam(r, "id")

	if err := h.service.FailCheckout(r.Context(), userID, orderID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
