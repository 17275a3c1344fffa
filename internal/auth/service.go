package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/kcasl/Pedigree-App/internal/metrics"
	"github.com/kcasl/Pedigree-App/internal/model"
	"github.com/kcasl/Pedigree-App/internal/repository"
)

// LoginRequest はPOST /v1/auth/googleのリクエストボディ。
// IDToken以外のフィールドは開発用フォールバックでのみ参照される。
type LoginRequest struct {
	IDToken   string `json:"id_token"`
	GoogleSub string `json:"google_sub"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	PhotoURL  string `json:"photo_url"`
}

// AccessTokenVerifier はアクセストークンのオンライン検証インターフェース。
type AccessTokenVerifier interface {
	// FetchIdentity はアクセストークンを検証し正規化済みIDを返す。
	FetchIdentity(ctx context.Context, accessToken string) (*Identity, error)
}

// IDTokenChecker はIDトークンのオフライン検証インターフェース。
type IDTokenChecker interface {
	// Verify はIDトークンの署名とaudienceを検証し正規化済みIDを返す。
	Verify(ctx context.Context, rawToken string) (*Identity, error)
}

// Service は資格情報の検証とアカウント紐付けを提供する。
//
// 検証経路は固定の優先順で一度だけ試行される:
//  1. アクセストークンが供給されていればuserinfoでオンライン検証。
//     失敗しても次の経路には進まない（失敗は最終）。
//  2. アクセストークンがなければIDトークンをオフライン検証。
//  3. IDトークン検証器が構成されていない場合に限り、リクエストボディの
//     自己申告フィールドを信頼する（開発用の非セキュアなフォールバック）。
type Service struct {
	userinfo AccessTokenVerifier
	idtoken  IDTokenChecker // nilの場合は開発用フォールバックが有効
	userRepo repository.UserRepository
	metrics  metrics.Recorder
}

// NewService はServiceを生成する。
// idtokenにnilを渡すと署名検証なしの開発用フォールバックで動作する。
// 本番構成では必ずIDTokenCheckerを渡すこと。
func NewService(
	userinfo AccessTokenVerifier,
	idtoken IDTokenChecker,
	userRepo repository.UserRepository,
	rec metrics.Recorder,
) *Service {
	if rec == nil {
		rec = metrics.NewNop()
	}
	if idtoken == nil {
		slog.Warn("id token verification is not configured; unverified development fallback is active")
	}
	return &Service{
		userinfo: userinfo,
		idtoken:  idtoken,
		userRepo: userRepo,
		metrics:  rec,
	}
}

// Login は資格情報を検証し、アカウントをUPSERTして返す。
// accessTokenが空文字列の場合のみIDトークン経路を試す。
// どの経路が走った場合でも、最後にgoogle_subとemailの存在を一度だけ検査する。
func (s *Service) Login(ctx context.Context, req LoginRequest, accessToken string) (*model.User, error) {
	var identity *Identity

	switch {
	case accessToken != "":
		id, err := s.userinfo.FetchIdentity(ctx, accessToken)
		if err != nil {
			// アクセストークンの失敗は最終。IDトークンへはフォールバックしない。
			return nil, translateVerifyError(err)
		}
		identity = id

	case s.idtoken != nil:
		if req.IDToken == "" {
			return nil, model.NewInvalidCredentialError()
		}
		id, err := s.idtoken.Verify(ctx, req.IDToken)
		if err != nil {
			return nil, translateVerifyError(err)
		}
		identity = id

	default:
		slog.Warn("accepting unverified development identity",
			slog.String("google_sub", req.GoogleSub),
		)
		identity = &Identity{
			GoogleSub: req.GoogleSub,
			Email:     req.Email,
			Name:      req.Name,
			PhotoURL:  req.PhotoURL,
		}
	}

	if identity.GoogleSub == "" || identity.Email == "" {
		return nil, model.NewMissingRequiredFieldError()
	}

	user, err := s.userRepo.Upsert(ctx, identity.GoogleSub, identity.Email, identity.Name, identity.PhotoURL)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordLogin()
	slog.Info("user logged in",
		slog.Int64("user_id", user.ID),
		slog.String("google_sub", user.GoogleSub),
	)

	return user, nil
}

// VerifyAccessToken はBearerアクセストークンを検証し正規化済みIDを返す。
// 家系図・アップロード系エンドポイントの認証ミドルウェアから使用する。
func (s *Service) VerifyAccessToken(ctx context.Context, accessToken string) (*Identity, error) {
	identity, err := s.userinfo.FetchIdentity(ctx, accessToken)
	if err != nil {
		return nil, translateVerifyError(err)
	}
	return identity, nil
}

// translateVerifyError は検証失敗を統一エラーフォーマットに変換する。
// 内部診断情報を漏らさないよう、詳細はログにのみ記録する。
func translateVerifyError(err error) error {
	if errors.Is(err, ErrInvalidCredential) {
		return model.NewInvalidCredentialError()
	}
	slog.Warn("credential verification failed", slog.String("error", err.Error()))
	return model.NewVerificationFailedError()
}
