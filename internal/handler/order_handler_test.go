package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/thriftswipe/internal/model"
)

// mockOrderService はOrderServiceInterfaceのモック実装。
type mockOrderService struct {
	getFn  func(ctx context.Context, purchaserID, orderID string) (*model.Order, error)
	listFn func(ctx context.Context, purchaserID string) ([]*model.Order, error)
}

func (m *mockOrderService) Get(ctx context.Context, purchaserID, orderID string) (*model.Order, error) {
	if m.getFn != nil {
		return m.getFn(ctx, purchaserID, orderID)
	}
	return nil, nil
}
func (m *mockOrderService) List(ctx context.Context, purchaserID string) ([]*model.Order, error) {
	if m.listFn != nil {
		return m.listFn(ctx, purchaserID)
	}
	return nil, nil
}

func testOrder(t *testing.T) *model.Order {
	t.Helper()
	return &model.Order{
		ID:            "order-1",
		PurchaserID:   "user-1",
		Total:         priceOf(t, "24.99"),
		PaymentStatus: model.PaymentStatusSucceeded,
		SubOrders: []model.SubOrder{
			{
				ID:           "sub-1",
				OrderID:      "order-1",
				SellerID:     "seller-1",
				ShippingCost: priceOf(t, "5.00"),
				Lines: []model.OrderLine{
					{
						ID:         "line-1",
						SubOrderID: "sub-1",
						ListingID:  "listing-1",
						Price:      priceOf(t, "19.99"),
					},
				},
			},
		},
		CreatedAt: time.Date(2026, 2, 14, 10, 30, 0, 0, time.UTC),
	}
}

func TestOrderHandler_Get_ReturnsOrder(t *testing.T) {
	service := &mockOrderService{
		getFn: func(ctx context.Context, purchaserID, orderID string) (*model.Order, error) {
			if purchaserID != "user-1" {
				t.Errorf("purchaserID = %q, want user-1", purchaserID)
			}
			if orderID != "order-1" {
				t.Errorf("orderID = %q, want order-1", orderID)
			}
			return testOrder(t), nil
		},
	}

	h := NewOrderHandler(service)

	req := httptest.NewRequest(http.MethodGet, "/api/orders/order-1", nil)
	req = withUserID(req, "user-1")
	req = withChiURLParam(req, "id", "order-1")
	w := httptest.NewRecorder()

	h.Get(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp orderResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Total != "24.99" {
		t.Errorf("total = %q, want 24.99", resp.Total)
	}
	if resp.PaymentStatus != string(model.PaymentStatusSucceeded) {
		t.Errorf("payment_status = %q, want %q", resp.PaymentStatus, model.PaymentStatusSucceeded)
	}
	if len(resp.SubOrders) != 1 {
		t.Fatalf("sub_orders count = %d, want 1", len(resp.SubOrders))
	}
	if resp.SubOrders[0].ShippingCost != "5.00" {
		t.Errorf("shipping_cost = %q, want 5.00", resp.SubOrders[0].ShippingCost)
	}
	if len(resp.SubOrders[0].Lines) != 1 || resp.SubOrders[0].Lines[0].Price != "19.99" {
		t.Errorf("lines = %+v, want one line priced 19.99", resp.SubOrders[0].Lines)
	}
	if resp.CreatedAt != "2026-02-14T10:30:00Z" {
		t.Errorf("created_at = %q, want RFC3339 UTC", resp.CreatedAt)
	}
}

func TestOrderHandler_Get_NotFound_ReturnsNotFound(t *testing.T) {
	service := &mockOrderService{
		getFn: func(ctx context.Context, purchaserID, orderID string) (*model.Order, error) {
			return nil, model.NewOrderNotFoundError(orderID)
		},
	}

	h := NewOrderHandler(service)

	req := httptest.NewRequest(http.MethodGet, "/api/orders/order-x", nil)
	req = withUserID(req, "user-1")
	req = withChiURLParam(req, "id", "order-x")
	w := httptest.NewRecorder()

	h.Get(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	resp := parseErrorResponse(t, w)
	if resp["code"] != string(model.ErrCodeOrderNotFound) {
		t.Errorf("code = %q, want %q", resp["code"], model.ErrCodeOrderNotFound)
	}
}

func TestOrderHandler_Get_Unauthenticated_ReturnsUnauthorized(t *testing.T) {
	h := NewOrderHandler(&mockOrderService{})

	req := httptest.NewRequest(http.MethodGet, "/api/orders/order-1", nil)
	req = withChiURLParam(req, "id", "order-1")
	w := httptest.NewRecorder()

	h.Get(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestOrderHandler_List_ReturnsOrders(t *testing.T) {
	service := &mockOrderService{
		listFn: func(ctx context.Context, purchaserID string) ([]*model.Order, error) {
			return []*model.Order{testOrder(t)}, nil
		},
	}

	h := NewOrderHandler(service)

	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	req = withUserID(req, "user-1")
	w := httptest.NewRecorder()

	h.List(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp []orderResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp) != 1 {
		t.Fatalf("orders count = %d, want 1", len(resp))
	}
	if resp[0].ID != "order-1" {
		t.Errorf("order ID = %q, want order-1", resp[0].ID)
	}
}

func TestOrderHandler_List_Empty_ReturnsEmptyArray(t *testing.T) {
	service := &mockOrderService{
		listFn: func(ctx context.Context, purchaserID string) ([]*model.Order, error) {
			return nil, nil
		},
	}

	h := NewOrderHandler(service)

	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	req = withUserID(req, "user-1")
	w := httptest.NewRecorder()

	h.List(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	// nilスライスでも空配列として返す
	if body := w.Body.String(); body != "[]\n" && body != "[]" {
		t.Errorf("body = %q, want empty JSON array", body)
	}
}
