package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/hitoshi/thriftswipe/internal/listing"
	"github.com/hitoshi/thriftswipe/internal/middleware"
	"github.com/hitoshi/thriftswipe/internal/model"
)

// ListingServiceInterface は出品ハンドラーが必要とするサービスインターフェース。
type ListingServiceInterface interface {
	Create(ctx context.Context, sellerID string, input listing.CreateInput) (*model.Listing, error)
	Get(ctx context.Context, id string) (*model.Listing, error)
	ListBySeller(ctx context.Context, sellerID string) ([]*model.Listing, error)
	Feed(ctx context.Context, userID string, limit int) ([]*model.Listing, error)
	Update(ctx context.Context, userID, listingID string, input listing.UpdateInput) (*model.Listing, error)
	Delete(ctx context.Context, userID, listingID string) error
}

// ListingHandler は出品管理のHTTPハンドラー。
type ListingHandler struct {
	service ListingServiceInterface
}

// NewListingHandler はListingHandlerを生成する。
func NewListingHandler(service ListingServiceInterface) *ListingHandler {
	return &ListingHandler{service: service}
}

// createListingRequest は出品作成リクエストのボディ。
type createListingRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Price       string   `json:"price"`
	Size        string   `json:"size"`
	ImagePaths  []string `json:"image_paths"`
}

// updateListingRequest は出品更新リクエストのボディ。nilのフィールドは変更しない。
type updateListingRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Price       *string  `json:"price"`
	Size        *string  `json:"size"`
	ImagePaths  []string `json:"image_paths"`
}

// listingResponse は出品情報のAPIレスポンス。
type listingResponse struct {
	ID          string   `json:"id"`
	SellerID    string   `json:"seller_id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Price       string   `json:"price"`
	Size        string   `json:"size"`
	ImagePaths  []string `json:"image_paths"`
	Status      string   `json:"status"`
	CreatedAt   string   `json:"created_at"`
}

// toListingResponse はmodel.ListingからAPIレスポンスに変換する。
func toListingResponse(l *model.Listing) listingResponse {
	return listingResponse{
		ID:          l.ID,
		SellerID:    l.SellerID,
		Title:       l.Title,
		Description: l.Description,
		Price:       l.Price.StringFixed(2),
		Size:        l.Size,
		ImagePaths:  l.ImagePaths,
		Status:      string(l.Status),
		CreatedAt:   l.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// toListingResponses は出品スライスをAPIレスポンスに変換する。
func toListingResponses(listings []*model.Listing) []listingResponse {
	responses := make([]listingResponse, 0, len(listings))
	for _, l := range listings {
		responses = append(responses, toListingResponse(l))
	}
	return responses
}

// parsePrice は価格文字列をdecimalに変換する。
func parsePrice(raw string) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, model.NewInvalidPriceError("数値として解析できません")
	}
	return price, nil
}

// Create は新しい出品を作成する。
// POST /api/listings
func (h *ListingHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req createListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w)
		return
	}

	price, err := parsePrice(req.Price)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	created, err := h.service.Create(r.Context(), userID, listing.CreateInput{
		Title:       req.Title,
		Description: req.Description,
		Price:       price,
		Size:        req.Size,
		ImagePaths:  req.ImagePaths,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toListingResponse(created))
}

// Get は出品詳細を取得する。
// GET /api/listings/{id}
func (h *ListingHandler) Get(w http.ResponseWriter, r *http.Request) {
	listingID := chi.URLParam(r, "id")

	found, err := h.service.Get(r.Context(), listingID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toListingResponse(found))
}

// ListMine は自分の出品一覧を取得する。
// GET /api/users/me/listings
func (h *ListingHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	listings, err := h.service.ListBySeller(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toListingResponses(listings))
}

// Feed はスワイプフィードを取得する。
// GET /api/feed?limit=30
func (h *ListingHandler) Feed(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	listings, err := h.service.Feed(r.Context(), userID, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toListingResponses(listings))
}

// Update は自分の出品を更新する。
// PATCH /api/listings/{id}
func (h *ListingHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	listingID := chi.URLParam(r, "id")

	var req updateListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w)
		return
	}

	input := listing.UpdateInput{
		Title:       req.Title,
		Description: req.Description,
		Size:        req.Size,
		ImagePaths:  req.ImagePaths,
	}
	if req.Price != nil {
		price, err := parsePrice(*req.Price)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		input.Price = &price
	}

	updated, err := h.service.Update(r.Context(), userID, listingID, input)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toListingResponse(updated))
}

// Delete は自分の出品を削除する。
// 画像の後始末が非同期で続くため202 Acceptedを返す。
// DELETE /api/listings/{id}
func (h *ListingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	listingID := chi.URLParam(r, "id")

	if err := h.service.Delete(r.Context(), userID, listingID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}
