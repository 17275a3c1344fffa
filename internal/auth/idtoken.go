package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultGoogleJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"

// defaultJWKSCacheTTL は署名鍵セットのキャッシュ期間。
// Googleの鍵はローテーションされるため一定時間で再取得する。
const defaultJWKSCacheTTL = time.Hour

// googleIssuers はGoogleが発行するIDトークンのiss claimとして有効な値。
var googleIssuers = []string{"accounts.google.com", "https://accounts.google.com"}

// IDTokenConfig はIDトークン検証の設定。
type IDTokenConfig struct {
	// Audience は期待するaud claim（GoogleクライアントID）。必須。
	Audience string

	// テスト用にオーバーライド可能なURL
	JWKSURL  string
	CacheTTL time.Duration
}

// IDTokenVerifier はGoogle発行のIDトークンをオフラインで署名検証する。
// 署名鍵はGoogleのJWKSエンドポイントから取得し、一定時間キャッシュする。
type IDTokenVerifier struct {
	config IDTokenConfig
	client *http.Client

	mu        sync.Mutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

// NewIDTokenVerifier はIDTokenVerifierを生成する。
func NewIDTokenVerifier(config IDTokenConfig) *IDTokenVerifier {
	if config.JWKSURL == "" {
		config.JWKSURL = defaultGoogleJWKSURL
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = defaultJWKSCacheTTL
	}
	return &IDTokenVerifier{
		config: config,
		client: &http.Client{Timeout: defaultUserInfoTimeout},
	}
}

// idTokenClaims はGoogleのIDトークンから抽出するclaim。
type idTokenClaims struct {
	jwt.RegisteredClaims
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// Verify はIDトークンの署名とaudienceを検証し、正規化済みIDを返す。
// 署名・audience・有効期限・issuerのいずれかが不正な場合はErrInvalidCredential、
// 鍵取得の失敗はErrVerificationFailedを返す。
func (v *IDTokenVerifier) Verify(ctx context.Context, rawToken string) (*Identity, error) {
	claims := &idTokenClaims{}

	_, err := jwt.ParseWithClaims(rawToken, claims, func(token *jwt.Token) (any, error) {
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("token has no kid header")
		}
		return v.signingKey(ctx, kid)
	},
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithAudience(v.config.Audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		// 鍵セットの取得失敗のみ通信エラーとして区別する
		if isVerificationFailure(err) {
			return nil, fmt.Errorf("id token verification: %w", ErrVerificationFailed)
		}
		return nil, fmt.Errorf("id token rejected: %w", ErrInvalidCredential)
	}

	if !isGoogleIssuer(claims.Issuer) {
		return nil, fmt.Errorf("unexpected issuer %q: %w", claims.Issuer, ErrInvalidCredential)
	}

	return &Identity{
		GoogleSub: claims.Subject,
		Email:     claims.Email,
		Name:      claims.Name,
		PhotoURL:  claims.Picture,
	}, nil
}

// signingKey はkidに対応するRSA公開鍵を返す。
// キャッシュが期限切れ、または未知のkidの場合はJWKSを再取得する。
func (v *IDTokenVerifier) signingKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if key, ok := v.keys[kid]; ok && time.Since(v.fetchedAt) < v.config.CacheTTL {
		return key, nil
	}

	keys, err := v.fetchKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errJWKSFetch, err)
	}
	v.keys = keys
	v.fetchedAt = time.Now()

	key, ok := v.keys[kid]
	if !ok {
		return nil, fmt.Errorf("no signing key for kid %q", kid)
	}
	return key, nil
}

// errJWKSFetch は鍵セット取得の失敗を示す内部エラー。
var errJWKSFetch = errors.New("jwks fetch failed")

// isGoogleIssuer はiss claimがGoogleの発行者かを判定する。
func isGoogleIssuer(iss string) bool {
	for _, v := range googleIssuers {
		if iss == v {
			return true
		}
	}
	return false
}

// jwksResponse はJWKSエンドポイントのレスポンス。
type jwksResponse struct {
	Keys []struct {
		Kty string `json:"kty"`
		Kid string `json:"kid"`
		N   string `json:"n"`
		E   string `json:"e"`
	} `json:"keys"`
}

// fetchKeys はJWKSエンドポイントからRSA公開鍵セットを取得する。
func (v *IDTokenVerifier) fetchKeys(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.config.JWKSURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create jwks request: %w", err)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("jwks request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read jwks response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jwks returned status %d", resp.StatusCode)
	}

	var jwks jwksResponse
	if err := json.Unmarshal(body, &jwks); err != nil {
		return nil, fmt.Errorf("failed to parse jwks response: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(jwks.Keys))
	for _, k := range jwks.Keys {
		if k.Kty != "RSA" || k.Kid == "" {
			continue
		}
		key, err := parseRSAKey(k.N, k.E)
		if err != nil {
			continue
		}
		keys[k.Kid] = key
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("jwks contains no usable RSA keys")
	}

	return keys, nil
}

// parseRSAKey はJWKのn/e（base64url）からRSA公開鍵を構築する。
func parseRSAKey(n, e string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(n)
	if err != nil {
		return nil, fmt.Errorf("invalid modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(e)
	if err != nil {
		return nil, fmt.Errorf("invalid exponent: %w", err)
	}

	exponent := 0
	for _, b := range eBytes {
		exponent = exponent<<8 | int(b)
	}
	if exponent <= 0 {
		return nil, fmt.Errorf("non-positive exponent")
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: exponent,
	}, nil
}

// isVerificationFailure は鍵取得失敗に起因するエラーかを判定する。
func isVerificationFailure(err error) bool {
	return errors.Is(err, errJWKSFetch)
}
