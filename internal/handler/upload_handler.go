package handler

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/kcasl/Pedigree-App/internal/middleware"
	"github.com/kcasl/Pedigree-App/internal/model"
	"github.com/kcasl/Pedigree-App/internal/upload"
)

// UploadServiceInterface はアップロードハンドラーが必要とするサービスインターフェース。
type UploadServiceInterface interface {
	Save(ctx context.Context, googleSub, contentType string, body io.Reader) (*upload.Photo, error)
}

// UploadHandler は人物写真アップロードのHTTPハンドラー。
type UploadHandler struct {
	service  UploadServiceInterface
	maxBytes int64
}

// NewUploadHandler はUploadHandlerを生成する。
// maxBytesはリクエストボディの上限。0以下の場合は32MiBを使用する。
func NewUploadHandler(service UploadServiceInterface, maxBytes int64) *UploadHandler {
	if maxBytes <= 0 {
		maxBytes = 32 << 20
	}
	return &UploadHandler{service: service, maxBytes: maxBytes}
}

// photoResponse は保存済み写真のレスポンス。
type photoResponse struct {
	URL      string `json:"url"`
	FileName string `json:"file_name"`
}

// Photo は写真を受け取り縮小JPEGとして保存する。
// POST /v1/uploads/photo?google_sub=...
//
// クエリのgoogle_subは検証済みIDの主体と一致する必要がある。
// multipart/form-dataのfileパート、または画像を直接ボディに載せた
// リクエストの両方を受け付ける。
func (h *UploadHandler) Photo(w http.ResponseWriter, r *http.Request) {
	googleSub := r.URL.Query().Get("google_sub")
	if googleSub == "" {
		middleware.WriteAPIError(w, model.NewInvalidRequestError())
		return
	}

	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		middleware.WriteAPIError(w, model.NewInvalidCredentialError())
		return
	}
	if identity.GoogleSub != googleSub {
		middleware.WriteAPIError(w, model.NewForbiddenError())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)

	contentType := r.Header.Get("Content-Type")
	var body io.Reader = r.Body

	if strings.HasPrefix(contentType, "multipart/form-data") {
		file, header, err := r.FormFile("file")
		if err != nil {
			middleware.WriteAPIError(w, model.NewInvalidPayloadError())
			return
		}
		defer file.Close()
		body = file
		contentType = header.Header.Get("Content-Type")
	}

	photo, err := h.service.Save(r.Context(), googleSub, contentType, body)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, photoResponse{
		URL:      photo.URL,
		FileName: photo.FileName,
	})
}
