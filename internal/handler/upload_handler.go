package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/hitoshi/thriftswipe/internal/middleware"
	"github.com/hitoshi/thriftswipe/internal/model"
	"github.com/hitoshi/thriftswipe/internal/storage"
)

// UploadHandler は画像アップロードURL発行のHTTPハンドラー。
// 画像本体はクライアントが署名付きURLへ直接PUTする。
type UploadHandler struct {
	presigner storage.Presigner
}

// NewUploadHandler はUploadHandlerを生成する。
func NewUploadHandler(presigner storage.Presigner) *UploadHandler {
	return &UploadHandler{presigner: presigner}
}

// presignRequest はアップロードURL発行リクエストのボディ。
type presignRequest struct {
	Extension string `json:"extension"`
}

// presignResponse は発行済みアップロードURLのAPIレスポンス。
type presignResponse struct {
	URL         string `json:"url"`
	Key         string `json:"key"`
	ContentType string `json:"content_type"`
	ExpiresAt   string `json:"expires_at"`
}

// PresignListingImage は出品画像のアップロードURLを発行する。
// POST /api/uploads/listing-image
func (h *UploadHandler) PresignListingImage(w http.ResponseWriter, r *http.Request) {
	h.presign(w, r, h.presigner.PresignListingImage)
}

// PresignAvatar はプロフィール画像のアップロードURLを発行する。
// POST /api/uploads/avatar
func (h *UploadHandler) PresignAvatar(w http.ResponseWriter, r *http.Request) {
	h.presign(w, r, h.presigner.PresignAvatar)
}

func (h *UploadHandler) presign(
	w http.ResponseWriter,
	r *http.Request,
	presignFn func(ctx context.Context, userID, ext string) (*storage.PresignedUpload, error),
) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req presignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w)
		return
	}

	upload, err := presignFn(r.Context(), userID, req.Extension)
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedExtension) {
			writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
				Code:     "UNSUPPORTED_EXTENSION",
				Message:  err.Error(),
				Category: "validation",
				Action:   "jpg、jpeg、png、webpのいずれかを指定してください。",
			})
			return
		}
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, presignResponse{
		URL:         upload.URL,
		Key:         upload.Key,
		ContentType: upload.ContentType,
		ExpiresAt:   upload.ExpiresAt.Format(time.RFC3339),
	})
}
