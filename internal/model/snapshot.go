package model

import (
	"encoding/json"
	"time"
)

// PeopleByID は人物IDをキーとする家系図ドキュメント。
// 各人物レコードの内部構造はこの層では解釈せず、不透明なJSONとして扱う。
type PeopleByID map[string]json.RawMessage

// Clone はドキュメントの独立したコピーを返す。
// パッチ適用時に呼び出し元の入力や読み込み済みスナップショットを
// 変更しないために使用する。nilレシーバーからは空のマップを返す。
func (p PeopleByID) Clone() PeopleByID {
	cloned := make(PeopleByID, len(p))
	for id, person := range p {
		cloned[id] = person
	}
	return cloned
}

// Snapshot はユーザーごとに一件だけ存在する家系図データの現在形を表す。
// user_idのユニーク制約により1ユーザー1スナップショットが保証される。
type Snapshot struct {
	ID        int64
	UserID    int64
	People    PeopleByID
	CreatedAt time.Time
	UpdatedAt time.Time
}
