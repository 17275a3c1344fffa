package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kcasl/Pedigree-App/internal/metrics"
	"github.com/kcasl/Pedigree-App/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	TokenVerifier     middleware.TokenVerifier
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	Metrics           metrics.Recorder
	MetricsGatherer   prometheus.Gatherer

	// サービス
	AuthService     AuthServiceInterface
	PedigreeService PedigreeServiceInterface
	UploadService   UploadServiceInterface

	// 死活監視
	DB DBPinger

	// 保存済み写真の公開ディレクトリ
	UploadDir string

	// アップロードボディの上限バイト数
	UploadMaxBytes int64
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → [IdentityMiddleware → RateLimit]
//
// 認証エンドポイント（/v1/auth/google）、/health、/metrics、静的ファイル
// （/uploads/*）はIdentityミドルウェアの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(logger, deps.Metrics))

	authHandler := NewAuthHandler(deps.AuthService)
	pedigreeHandler := NewPedigreeHandler(deps.PedigreeService)
	uploadHandler := NewUploadHandler(deps.UploadService, deps.UploadMaxBytes)
	healthHandler := NewHealthHandler(deps.DB)

	// --- 認証不要のルート ---

	r.Get("/health", healthHandler.Health)

	if deps.MetricsGatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.MetricsGatherer))
	}

	r.Post("/v1/auth/google", authHandler.Google)

	// 保存済み写真の配信
	if deps.UploadDir != "" {
		fileServer := http.StripPrefix("/uploads/", http.FileServer(http.Dir(deps.UploadDir)))
		r.Get("/uploads/*", fileServer.ServeHTTP)
	}

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Identity → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewIdentityMiddleware(deps.TokenVerifier))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/v1/pedigree/{google_sub}", func(r chi.Router) {
			r.Get("/", pedigreeHandler.Get)
			r.Put("/", pedigreeHandler.Put)
			r.Patch("/", pedigreeHandler.Patch)
			r.Delete("/", pedigreeHandler.Delete)
		})

		// POST /v1/uploads/photo - 写真アップロード（専用レート制限を追加）
		r.With(deps.RateLimiter.UploadMiddleware()).Post("/v1/uploads/photo", uploadHandler.Photo)
	})

	return r
}
