// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kcasl/Pedigree-App/internal/auth"
	"github.com/kcasl/Pedigree-App/internal/middleware"
	"github.com/kcasl/Pedigree-App/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Login(ctx context.Context, req auth.LoginRequest, accessToken string) (*model.User, error)
}

// AuthHandler はGoogle認証のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface) *AuthHandler {
	return &AuthHandler{service: service}
}

// userResponse はアカウントレコードのレスポンス表現。
type userResponse struct {
	ID        int64     `json:"id"`
	GoogleSub string    `json:"google_sub"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	PhotoURL  string    `json:"photo_url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Google はGoogle資格情報を検証しアカウントをUPSERTして返す。
// POST /v1/auth/google
//
// Authorizationヘッダーのアクセストークンが最優先で検証される。
// ボディのid_tokenはアクセストークンが無い場合のみ使用される。
func (h *AuthHandler) Google(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		middleware.WriteAPIError(w, model.NewInvalidRequestError())
		return
	}

	accessToken := bearerToken(r)

	user, err := h.service.Login(r.Context(), req, accessToken)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, userResponse{
		ID:        user.ID,
		GoogleSub: user.GoogleSub,
		Email:     user.Email,
		Name:      user.Name,
		PhotoURL:  user.PhotoURL,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	})
}

// bearerToken はAuthorizationヘッダーからBearerトークンを取り出す。
// 無い場合は空文字列を返す（このエンドポイントではヘッダーは任意）。
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// handleServiceError はサービス層のエラーをHTTPレスポンスに変換する。
// APIError以外は内部エラーとして扱い、詳細はログにのみ記録する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteAPIError(w, apiErr)
		return
	}
	slog.Error("unexpected service error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}
