package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/kcasl/Pedigree-App/internal/model"
)

// PostgresSnapshotRepo はPostgreSQLを使用した家系図スナップショットリポジトリ。
// people_jsonカラムはJSONBとして保存し、人物レコードの内部構造は解釈しない。
type PostgresSnapshotRepo struct {
	db *sql.DB
}

// NewPostgresSnapshotRepo はPostgresSnapshotRepoを生成する。
func NewPostgresSnapshotRepo(db *sql.DB) *PostgresSnapshotRepo {
	return &PostgresSnapshotRepo{db: db}
}

// FindByUserID は指定ユーザーのスナップショットを取得する。見つからない場合はnilを返す。
func (r *PostgresSnapshotRepo) FindByUserID(ctx context.Context, userID int64) (*model.Snapshot, error) {
	snapshot := &model.Snapshot{}
	var peopleJSON []byte

	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, people_json, created_at, updated_at
		 FROM pedigree_snapshots WHERE user_id = $1`,
		userID,
	).Scan(&snapshot.ID, &snapshot.UserID, &peopleJSON, &snapshot.CreatedAt, &snapshot.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find snapshot by user_id: %w", err)
	}

	if err := json.Unmarshal(peopleJSON, &snapshot.People); err != nil {
		return nil, fmt.Errorf("failed to decode people_json: %w", err)
	}
	if snapshot.People == nil {
		snapshot.People = model.PeopleByID{}
	}

	return snapshot, nil
}

// Replace はドキュメント全体を置き換える。行が存在しない場合は新規作成する。
// user_idのユニーク制約に対するON CONFLICT句により、同時書き込みは
// 単一文の中で後勝ちの更新に収束する。
func (r *PostgresSnapshotRepo) Replace(ctx context.Context, userID int64, people model.PeopleByID) (*model.Snapshot, error) {
	if people == nil {
		people = model.PeopleByID{}
	}
	peopleJSON, err := json.Marshal(people)
	if err != nil {
		return nil, fmt.Errorf("failed to encode people_json: %w", err)
	}

	snapshot := &model.Snapshot{}
	var storedJSON []byte

	err = r.db.QueryRowContext(ctx,
		`INSERT INTO pedigree_snapshots (user_id, people_json)
		 VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE SET
		     people_json = EXCLUDED.people_json,
		     updated_at = now()
		 RETURNING id, user_id, people_json, created_at, updated_at`,
		userID, peopleJSON,
	).Scan(&snapshot.ID, &snapshot.UserID, &storedJSON, &snapshot.CreatedAt, &snapshot.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to replace snapshot: %w", err)
	}

	if err := json.Unmarshal(storedJSON, &snapshot.People); err != nil {
		return nil, fmt.Errorf("failed to decode stored people_json: %w", err)
	}
	if snapshot.People == nil {
		snapshot.People = model.PeopleByID{}
	}

	return snapshot, nil
}

// Delete は指定ユーザーのスナップショットを削除し、行が存在したかどうかを返す。
// ユーザー行には触れない。
func (r *PostgresSnapshotRepo) Delete(ctx context.Context, userID int64) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM pedigree_snapshots WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete snapshot: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// compile-time interface check
var _ SnapshotRepository = (*PostgresSnapshotRepo)(nil)
