package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/thriftswipe/internal/middleware"
	"github.com/hitoshi/thriftswipe/internal/model"
)

// OrderServiceInterface は注文ハンドラーが必要とするサービスインターフェース。
type OrderServiceInterface interface {
	Get(ctx context.Context, purchaserID, orderID string) (*model.Order, error)
	List(ctx context.Context, purchaserID string) ([]*model.Order, error)
}

// OrderHandler は注文照会のHTTPハンドラー。
type OrderHandler struct {
	service OrderServiceInterface
}

// NewOrderHandler はOrderHandlerを生成する。
func NewOrderHandler(service OrderServiceInterface) *OrderHandler {
	return &OrderHandler{service: service}
}

// orderLineResponse は注文明細のAPIレスポンス。
type orderLineResponse struct {
	ID        string `json:"id"`
	ListingID string `json:"listing_id"`
	Price     string `json:"price"`
}

// subOrderResponse は出品者ごとのサブ注文のAPIレスポンス。
type subOrderResponse struct {
	ID           string              `json:"id"`
	SellerID     string              `json:"seller_id"`
	ShippingCost string              `json:"shipping_cost"`
	Lines        []orderLineResponse `json:"lines"`
}

// orderResponse は注文のAPIレスポンス。
type orderResponse struct {
	ID            string             `json:"id"`
	Total         string             `json:"total"`
	PaymentStatus string             `json:"payment_status"`
	SubOrders     []subOrderResponse `json:"sub_orders"`
	CreatedAt     string             `json:"created_at"`
}

// toOrderResponse はmodel.OrderからAPIレスポンスに変換する。
func toOrderResponse(o *model.Order) orderResponse {
	subOrders := make([]subOrderResponse, 0, len(o.SubOrders))
	for _, sub := range o.SubOrders {
		lines := make([]orderLineResponse, 0, len(sub.Lines))
		for _, line := range sub.Lines {
			lines = append(lines, orderLineResponse{
				ID:        line.ID,
				ListingID: line.ListingID,
				Price:     line.Price.StringFixed(2),
			})
		}
		subOrders = append(subOrders, subOrderResponse{
			ID:           sub.ID,
			SellerID:     sub.SellerID,
			ShippingCost: sub.ShippingCost.StringFixed(2),
			Lines:        lines,
		})
	}

	return orderResponse{
		ID:            o.ID,
		Total:         o.Total.StringFixed(2),
		PaymentStatus: string(o.PaymentStatus),
		SubOrders:     subOrders,
		CreatedAt:     o.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// Get は注文詳細を取得する。
// GET /api/orders/{id}
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	orderID := chi.URLParam(r, "id")

	order, err := h.service.Get(r.Context(), userID, orderID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// List は自分の注文履歴を取得する。
// GET /api/orders
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	orders, err := h.service.List(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	responses := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		responses = append(responses, toOrderResponse(o))
	}

	writeJSON(w, http.StatusOK, responses)
}
