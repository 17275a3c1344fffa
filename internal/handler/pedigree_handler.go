package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kcasl/Pedigree-App/internal/middleware"
	"github.com/kcasl/Pedigree-App/internal/model"
	"github.com/kcasl/Pedigree-App/internal/pedigree"
)

// PedigreeServiceInterface は家系図ハンドラーが必要とするサービスインターフェース。
type PedigreeServiceInterface interface {
	Get(ctx context.Context, googleSub string) (*pedigree.Document, error)
	Replace(ctx context.Context, googleSub string, people model.PeopleByID) (*pedigree.Document, error)
	ApplyPatch(ctx context.Context, googleSub string, req pedigree.PatchRequest) (*pedigree.Document, error)
	Delete(ctx context.Context, googleSub string) (bool, error)
}

// PedigreeHandler は家系図スナップショットのHTTPハンドラー。
type PedigreeHandler struct {
	service PedigreeServiceInterface
}

// NewPedigreeHandler はPedigreeHandlerを生成する。
func NewPedigreeHandler(service PedigreeServiceInterface) *PedigreeHandler {
	return &PedigreeHandler{service: service}
}

// putRequest はPUT /v1/pedigree/{google_sub}のリクエストボディ。
type putRequest struct {
	People model.PeopleByID `json:"people_by_id"`
}

// deleteResponse はDELETE /v1/pedigree/{google_sub}のレスポンス。
type deleteResponse struct {
	Deleted bool `json:"deleted"`
}

// Get は家系図ドキュメントの現在形を返す。
// GET /v1/pedigree/{google_sub}
func (h *PedigreeHandler) Get(w http.ResponseWriter, r *http.Request) {
	googleSub, ok := h.authorizedSubject(w, r)
	if !ok {
		return
	}

	doc, err := h.service.Get(r.Context(), googleSub)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

// Put はドキュメント全体を置き換える。
// PUT /v1/pedigree/{google_sub}
func (h *PedigreeHandler) Put(w http.ResponseWriter, r *http.Request) {
	googleSub, ok := h.authorizedSubject(w, r)
	if !ok {
		return
	}

	var req putRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteAPIError(w, model.NewInvalidRequestError())
		return
	}

	doc, err := h.service.Replace(r.Context(), googleSub, req.People)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

// Patch は差分をドキュメントにマージする。
// PATCH /v1/pedigree/{google_sub}
func (h *PedigreeHandler) Patch(w http.ResponseWriter, r *http.Request) {
	googleSub, ok := h.authorizedSubject(w, r)
	if !ok {
		return
	}

	var req pedigree.PatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteAPIError(w, model.NewInvalidRequestError())
		return
	}

	doc, err := h.service.ApplyPatch(r.Context(), googleSub, req)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

// Delete はスナップショットを削除する。アカウントは削除しない。
// DELETE /v1/pedigree/{google_sub}
func (h *PedigreeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	googleSub, ok := h.authorizedSubject(w, r)
	if !ok {
		return
	}

	deleted, err := h.service.Delete(r.Context(), googleSub)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, deleteResponse{Deleted: deleted})
}

// authorizedSubject はパスのgoogle_subが検証済みIDの主体と一致することを確認する。
// 不一致の場合は403を書き込みfalseを返す。ドキュメントの存在有無は漏らさない。
func (h *PedigreeHandler) authorizedSubject(w http.ResponseWriter, r *http.Request) (string, bool) {
	googleSub := chi.URLParam(r, "google_sub")

	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		middleware.WriteAPIError(w, model.NewInvalidCredentialError())
		return "", false
	}
	if identity.GoogleSub != googleSub {
		middleware.WriteAPIError(w, model.NewForbiddenError())
		return "", false
	}

	return googleSub, true
}
