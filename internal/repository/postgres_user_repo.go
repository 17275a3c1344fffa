package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kcasl/Pedigree-App/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// Upsert はgoogle_subでユーザーをUPSERTする。
// ON CONFLICT句によりINSERTとUPDATEが単一文でアトミックに行われ、
// 同時ログインでも重複行は発生しない。プロフィールフィールドは
// 空値を含めて無条件に上書きする。
func (r *PostgresUserRepo) Upsert(ctx context.Context, googleSub, email, name, photoURL string) (*model.User, error) {
	user := &model.User{}
	var dbName, dbPhotoURL sql.NullString

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (google_sub, email, name, photo_url)
		 VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''))
		 ON CONFLICT (google_sub) DO UPDATE SET
		     email = EXCLUDED.email,
		     name = EXCLUDED.name,
		     photo_url = EXCLUDED.photo_url,
		     updated_at = now()
		 RETURNING id, google_sub, email, name, photo_url, created_at, updated_at`,
		googleSub, email, name, photoURL,
	).Scan(&user.ID, &user.GoogleSub, &user.Email, &dbName, &dbPhotoURL, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	user.Name = dbName.String
	user.PhotoURL = dbPhotoURL.String
	return user, nil
}

// FindByGoogleSub は指定google_subのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByGoogleSub(ctx context.Context, googleSub string) (*model.User, error) {
	user := &model.User{}
	var dbName, dbPhotoURL sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT id, google_sub, email, name, photo_url, created_at, updated_at
		 FROM users WHERE google_sub = $1`,
		googleSub,
	).Scan(&user.ID, &user.GoogleSub, &user.Email, &dbName, &dbPhotoURL, &user.CreatedAt, &user.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by google_sub: %w", err)
	}

	user.Name = dbName.String
	user.PhotoURL = dbPhotoURL.String
	return user, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
