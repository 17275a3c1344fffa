// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, pedigree, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidCredential    = "INVALID_CREDENTIAL"
	ErrCodeVerificationFailed   = "VERIFICATION_FAILED"
	ErrCodeMissingRequiredField = "MISSING_REQUIRED_FIELD"
	ErrCodeForbidden            = "FORBIDDEN"
	ErrCodeUserNotFound         = "USER_NOT_FOUND"
	ErrCodeInvalidPayload       = "INVALID_PAYLOAD"
	ErrCodeInvalidRequest       = "INVALID_REQUEST"
)

// NewInvalidCredentialError は資格情報が無効または期限切れの場合のエラーを生成する。
func NewInvalidCredentialError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredential,
		Message:  "資格情報が無効です。",
		Category: "auth",
		Action:   "再度ログインしてトークンを取得し直してください。",
	}
}

// NewVerificationFailedError はIdPとの通信や検証処理が失敗した場合のエラーを生成する。
// 境界ではInvalidCredentialと同じ401として扱い、内部診断情報を漏らさない。
func NewVerificationFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeVerificationFailed,
		Message:  "資格情報の検証に失敗しました。",
		Category: "auth",
		Action:   "しばらく待ってから再度ログインしてください。",
	}
}

// NewMissingRequiredFieldError は検証済みIDにsubまたはemailが欠けている場合のエラーを生成する。
func NewMissingRequiredFieldError() *APIError {
	return &APIError{
		Code:     ErrCodeMissingRequiredField,
		Message:  "google_subとemailは必須です。",
		Category: "validation",
		Action:   "Googleアカウントのメールアドレス提供を許可してください。",
	}
}

// NewForbiddenError は認証済みユーザーがリソースの所有者でない場合のエラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "このリソースへのアクセス権がありません。",
		Category: "auth",
		Action:   "自分のアカウントのデータのみ操作できます。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "先にログインしてアカウントを作成してください。",
	}
}

// NewInvalidPayloadError は圧縮パッチエンベロープやアップロード画像が
// 解釈できない場合のエラーを生成する。デコード段階の詳細は区別しない。
func NewInvalidPayloadError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPayload,
		Message:  "ペイロードを解釈できません。",
		Category: "validation",
		Action:   "送信データの形式を確認してください。",
	}
}

// NewInvalidRequestError はリクエストボディの解析に失敗した場合のエラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}
