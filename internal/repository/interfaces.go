// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/kcasl/Pedigree-App/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// Upsert はgoogle_subでユーザーをUPSERTする。
	// 既存ユーザーの場合はemail、name、photo_urlを無条件に上書きし
	// updated_atを更新する（last-write-wins、マージはしない）。
	// 未登録の場合は新規作成する。同一google_subの同時ログインに対して
	// アトミックであり、重複行を作らない。
	Upsert(ctx context.Context, googleSub, email, name, photoURL string) (*model.User, error)

	// FindByGoogleSub は指定google_subのユーザーを取得する。見つからない場合はnilを返す。
	FindByGoogleSub(ctx context.Context, googleSub string) (*model.User, error)
}

// SnapshotRepository はユーザーごとに一件の家系図スナップショットの永続化インターフェース。
type SnapshotRepository interface {
	// FindByUserID は指定ユーザーのスナップショットを取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID int64) (*model.Snapshot, error)

	// Replace はドキュメント全体を置き換える。行が存在しない場合は新規作成する。
	// user_idのユニーク制約により、同時書き込みでも行は一件に収束する。
	Replace(ctx context.Context, userID int64, people model.PeopleByID) (*model.Snapshot, error)

	// Delete は指定ユーザーのスナップショットを削除する。
	// 行が存在したかどうかを返す。ユーザー行は削除しない。
	Delete(ctx context.Context, userID int64) (bool, error)
}
