package handler

import (
	"context"
	"net/http"
	"time"
)

// DBPinger はデータベースの疎通確認インターフェース。
type DBPinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler は死活監視のHTTPハンドラー。
type HealthHandler struct {
	db DBPinger
}

// NewHealthHandler はHealthHandlerを生成する。dbはnilでもよい。
func NewHealthHandler(db DBPinger) *HealthHandler {
	return &HealthHandler{db: db}
}

// Health は死活確認に応答する。
// GET /health
//
// データベースが構成されている場合は疎通も確認し、失敗時は503を返す。
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
