// Package auth はGoogle資格情報の検証とアカウント紐付けを提供する。
package auth

import "errors"

// Identity はIdPから取得した正規化済みのユーザーID情報を表す。
// リクエストごとに新しく生成され、リクエストをまたいでキャッシュされない。
type Identity struct {
	GoogleSub string
	Email     string
	Name      string
	PhotoURL  string
}

// 検証の失敗種別。境界でmodel.APIErrorに変換される。
var (
	// ErrInvalidCredential はトークン自体が拒否されたことを示す
	// （userinfoの非2xx応答、署名・audience検証の失敗）。
	ErrInvalidCredential = errors.New("invalid credential")

	// ErrVerificationFailed はIdPとの通信や応答解析の失敗を示す。
	// トークンが無効だったわけではないが、境界では同じ401として扱う。
	ErrVerificationFailed = errors.New("credential verification failed")
)
