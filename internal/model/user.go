// Package model はドメインモデルを定義する。
package model

import "time"

// User はGoogleアカウントに紐付くサービス利用ユーザーを表す。
// GoogleSubはIdPが発行する安定した一意識別子で、作成後は変更されない。
type User struct {
	ID        int64
	GoogleSub string
	Email     string
	Name      string
	PhotoURL  string
	CreatedAt time.Time
	UpdatedAt time.Time
}
