package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultGoogleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

// defaultUserInfoTimeout はuserinfoエンドポイントへの固定タイムアウト。
// リトライやバックオフは行わず、期限切れは単一の検証失敗として扱う。
const defaultUserInfoTimeout = 8 * time.Second

// UserInfoConfig はGoogle userinfoクライアントの設定。
type UserInfoConfig struct {
	// テスト用にオーバーライド可能なURL
	UserInfoURL string
	Timeout     time.Duration
}

// UserInfoClient はGoogleアクセストークンをuserinfoエンドポイントで
// オンライン検証するクライアント。
type UserInfoClient struct {
	config UserInfoConfig
	client *http.Client
}

// NewUserInfoClient はUserInfoClientを生成する。
func NewUserInfoClient(config UserInfoConfig) *UserInfoClient {
	if config.UserInfoURL == "" {
		config.UserInfoURL = defaultGoogleUserInfoURL
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultUserInfoTimeout
	}
	return &UserInfoClient{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
}

// googleUserInfo はGoogleのuserinfoエンドポイントのレスポンス。
type googleUserInfo struct {
	Sub     string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// FetchIdentity はアクセストークンをBearer資格情報としてuserinfoエンドポイントに
// 送信し、正規化済みIDを取得する。
// 非2xx応答はErrInvalidCredential、その他の通信・解析失敗はErrVerificationFailedを返す。
func (c *UserInfoClient) FetchIdentity(ctx context.Context, accessToken string) (*Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.UserInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create userinfo request: %w", ErrVerificationFailed)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("userinfo request failed: %w", ErrVerificationFailed)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read userinfo response: %w", ErrVerificationFailed)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("userinfo returned status %d: %w", resp.StatusCode, ErrInvalidCredential)
	}

	var info googleUserInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("failed to parse userinfo response: %w", ErrVerificationFailed)
	}

	return &Identity{
		GoogleSub: info.Sub,
		Email:     info.Email,
		Name:      info.Name,
		PhotoURL:  info.Picture,
	}, nil
}
