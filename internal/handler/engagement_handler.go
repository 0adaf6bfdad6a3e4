package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/thriftswipe/internal/middleware"
	"github.com/hitoshi/thriftswipe/internal/model"
)

// EngagementServiceInterface はカート・いいね・興味なし・保存のサービスインターフェース。
type EngagementServiceInterface interface {
	AddCartItem(ctx context.Context, userID, listingID string) error
	RemoveCartItem(ctx context.Context, userID, listingID string) error
	ListCart(ctx context.Context, userID string) ([]*model.Listing, error)

	AddLike(ctx context.Context, userID, listingID string) error
	RemoveLike(ctx context.Context, userID, listingID string) error
	ListLikes(ctx context.Context, userID string) ([]*model.Listing, error)

	AddDislike(ctx context.Context, userID, listingID string) error
	RemoveDislike(ctx context.Context, userID, listingID string) error

	AddSavedItem(ctx context.Context, userID, listingID string) error
	RemoveSavedItem(ctx context.Context, userID, listingID string) error
	ListSaved(ctx context.Context, userID string) ([]*model.Listing, error)
}

// EngagementHandler はカート・いいね・興味なし・保存のHTTPハンドラー。
// いずれも出品IDに対するトグル操作で、追加は201、削除は204を返す。
type EngagementHandler struct {
	service EngagementServiceInterface
}

// NewEngagementHandler はEngagementHandlerを生成する。
func NewEngagementHandler(service EngagementServiceInterface) *EngagementHandler {
	return &EngagementHandler{service: service}
}

// engagementAction は認証・パスパラメータ取得・エラーマッピングの共通処理。
func (h *EngagementHandler) engagementAction(
	w http.ResponseWriter,
	r *http.Request,
	successStatus int,
	action func(ctx context.Context, userID, listingID string) error,
) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	listingID := chi.URLParam(r, "id")

	if err := action(r.Context(), userID, listingID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(successStatus)
}

// engagementList は一覧系エンドポイントの共通処理。
func (h *EngagementHandler) engagementList(
	w http.ResponseWriter,
	r *http.Request,
	list func(ctx context.Context, userID string) ([]*model.Listing, error),
) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	listings, err := list(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toListingResponses(listings))
}

// AddCartItem は出品をカートに追加する。
// POST /api/listings/{id}/cart
func (h *EngagementHandler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	h.engagementAction(w, r, http.StatusCreated, h.service.AddCartItem)
}

// RemoveCartItem は出品をカートから削除する。
// DELETE /api/listings/{id}/cart
func (h *EngagementHandler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	h.engagementAction(w, r, http.StatusNoContent, h.service.RemoveCartItem)
}

// ListCart はカートの内容を取得する。
// GET /api/cart
func (h *EngagementHandler) ListCart(w http.ResponseWriter, r *http.Request) {
	h.engagementList(w, r, h.service.ListCart)
}

// AddLike は出品にいいねを付ける。
// POST /api/listings/{id}/like
func (h *EngagementHandler) AddLike(w http.ResponseWriter, r *http.Request) {
	h.engagementAction(w, r, http.StatusCreated, h.service.AddLike)
}

// RemoveLike はいいねを解除する。
// DELETE /api/listings/{id}/like
func (h *EngagementHandler) RemoveLike(w http.ResponseWriter, r *http.Request) {
	h.engagementAction(w, r, http.StatusNoContent, h.service.RemoveLike)
}

// ListLikes はいいねした出品一覧を取得する。
// GET /api/likes
func (h *EngagementHandler) ListLikes(w http.ResponseWriter, r *http.Request) {
	h.engagementList(w, r, h.service.ListLikes)
}

// AddDislike は出品を興味なしとして記録する。
// POST /api/listings/{id}/dislike
func (h *EngagementHandler) AddDislike(w http.ResponseWriter, r *http.Request) {
	h.engagementAction(w, r, http.StatusCreated, h.service.AddDislike)
}

// RemoveDislike は興味なしを取り消す。
// DELETE /api/listings/{id}/dislike
func (h *EngagementHandler) RemoveDislike(w http.ResponseWriter, r *http.Request) {
	h.engagementAction(w, r, http.StatusNoContent, h.service.RemoveDislike)
}

// AddSavedItem は出品を保存する。
// POST /api/listings/{id}/save
func (h *EngagementHandler) AddSavedItem(w http.ResponseWriter, r *http.Request) {
	h.engagementAction(w, r, http.StatusCreated, h.service.AddSavedItem)
}

// RemoveSavedItem は保存を解除する。
// DELETE /api/listings/{id}/save
func (h *EngagementHandler) RemoveSavedItem(w http.ResponseWriter, r *http.Request) {
	h.engagementAction(w, r, http.StatusNoContent, h.service.RemoveSavedItem)
}

// ListSaved は保存した出品一覧を取得する。
// GET /api/saved
func (h *EngagementHandler) ListSaved(w http.ResponseWriter, r *http.Request) {
	h.engagementList(w, r, h.service.ListSaved)
}
