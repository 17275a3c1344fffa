package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kcasl/Pedigree-App/internal/auth"
	"github.com/kcasl/Pedigree-App/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// identityContextKey は検証済みIDのコンテキストキー。
var identityContextKey = contextKey("identity")

// ErrIdentityNotFound はコンテキストに検証済みIDが存在しない場合に返される。
var ErrIdentityNotFound = errors.New("identity not found in context")

// TokenVerifier はBearerアクセストークンの検証インターフェース。
type TokenVerifier interface {
	VerifyAccessToken(ctx context.Context, accessToken string) (*auth.Identity, error)
}

// NewIdentityMiddleware はAuthorizationヘッダーのBearerトークンを検証し、
// 検証済みIDをリクエストコンテキストに注入するミドルウェアを返す。
// ヘッダーが無い・形式が不正・検証に失敗した場合は401を返し、
// ハンドラーには到達させない。
func NewIdentityMiddleware(verifier TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				WriteAPIError(w, model.NewInvalidCredentialError())
				return
			}

			identity, err := verifier.VerifyAccessToken(r.Context(), token)
			if err != nil {
				var apiErr *model.APIError
				if errors.As(err, &apiErr) {
					WriteAPIError(w, apiErr)
					return
				}
				slog.Error("token verification failed unexpectedly", slog.String("error", err.Error()))
				WriteInternalServerError(w)
				return
			}

			setLogSubject(r.Context(), identity.GoogleSub)
			next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), identity)))
		})
	}
}

// ContextWithIdentity は検証済みIDを保持するコンテキストを返す。
func ContextWithIdentity(ctx context.Context, identity *auth.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// IdentityFromContext はリクエストコンテキストから検証済みIDを取得する。
// IdentityMiddlewareを通過したリクエストでのみ成功する。
func IdentityFromContext(ctx context.Context) (*auth.Identity, error) {
	identity, ok := ctx.Value(identityContextKey).(*auth.Identity)
	if !ok || identity == nil {
		return nil, ErrIdentityNotFound
	}
	return identity, nil
}

// bearerToken はAuthorizationヘッダーからBearerトークンを取り出す。
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	if token == "" {
		return "", false
	}
	return token, true
}
