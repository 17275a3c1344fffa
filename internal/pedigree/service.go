// Package pedigree は家系図スナップショットの取得・置換・パッチ適用を提供する。
package pedigree

import (
	"context"
	"log/slog"
	"time"

	"github.com/kcasl/Pedigree-App/internal/metrics"
	"github.com/kcasl/Pedigree-App/internal/model"
	"github.com/kcasl/Pedigree-App/internal/repository"
)

// Document はAPIレスポンスに載せる家系図ドキュメントの現在形。
// スナップショット未作成のユーザーに対しては空のPeopleと
// アカウントのupdated_atを返す。
type Document struct {
	AccountID int64            `json:"account_id"`
	People    model.PeopleByID `json:"people_by_id"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Service は家系図スナップショットのユースケースを提供する。
type Service struct {
	users     repository.UserRepository
	snapshots repository.SnapshotRepository
	metrics   metrics.Recorder
}

// NewService はServiceを生成する。
func NewService(
	users repository.UserRepository,
	snapshots repository.SnapshotRepository,
	rec metrics.Recorder,
) *Service {
	if rec == nil {
		rec = metrics.NewNop()
	}
	return &Service{
		users:     users,
		snapshots: snapshots,
		metrics:   rec,
	}
}

// Get は指定google_subの家系図ドキュメントを返す。
// ユーザーが存在しない場合はNotFound。スナップショット未作成の場合は
// 空のドキュメントを返す（これはエラーではない）。
func (s *Service) Get(ctx context.Context, googleSub string) (*Document, error) {
	user, err := s.users.FindByGoogleSub(ctx, googleSub)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	snapshot, err := s.snapshots.FindByUserID(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if snapshot == nil {
		return &Document{AccountID: user.ID, People: model.PeopleByID{}, UpdatedAt: user.UpdatedAt}, nil
	}

	return &Document{AccountID: user.ID, People: snapshot.People, UpdatedAt: snapshot.UpdatedAt}, nil
}

// Replace はドキュメント全体を置き換える。スナップショットが無ければ新規作成する。
func (s *Service) Replace(ctx context.Context, googleSub string, people model.PeopleByID) (*Document, error) {
	user, err := s.users.FindByGoogleSub(ctx, googleSub)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	if people == nil {
		people = model.PeopleByID{}
	}

	snapshot, err := s.snapshots.Replace(ctx, user.ID, people)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordSnapshotReplaced()
	slog.Info("pedigree snapshot replaced",
		slog.Int64("user_id", user.ID),
		slog.Int("people", len(snapshot.People)),
	)

	return &Document{AccountID: user.ID, People: snapshot.People, UpdatedAt: snapshot.UpdatedAt}, nil
}

// ApplyPatch は差分を現在のドキュメントにマージして永続化し、結果を返す。
//
// 適用順は固定で、全削除を先に、全upsertを後に適用する。同一IDが両方に
// 現れた場合はupsertが勝つ（削除後に再作成される）。upsertは人物レコード
// 全体の置き換えであり、フィールド単位のディープマージはしない。
// 永続化まで成功して初めて結果を返す。部分適用は起こらない。
func (s *Service) ApplyPatch(ctx context.Context, googleSub string, req PatchRequest) (*Document, error) {
	user, err := s.users.FindByGoogleSub(ctx, googleSub)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	upserts, deletes, err := DecodePatch(req)
	if err != nil {
		s.metrics.RecordPatchDecodeFailure()
		return nil, err
	}

	snapshot, err := s.snapshots.FindByUserID(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	var current model.PeopleByID
	if snapshot != nil {
		current = snapshot.People
	}

	// 読み込み済みスナップショットと呼び出し元の入力を変更しないため、
	// 必ずコピーに対して適用する。
	next := current.Clone()
	for _, id := range deletes {
		delete(next, id)
	}
	for id, person := range upserts {
		next[id] = person
	}

	saved, err := s.snapshots.Replace(ctx, user.ID, next)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordPatchApplied(len(upserts), len(deletes))
	slog.Info("pedigree patch applied",
		slog.Int64("user_id", user.ID),
		slog.Int("upserts", len(upserts)),
		slog.Int("deletes", len(deletes)),
	)

	return &Document{AccountID: user.ID, People: saved.People, UpdatedAt: saved.UpdatedAt}, nil
}

// Delete は指定ユーザーのスナップショットを削除する。
// 行が存在したかどうかを返す。ユーザーアカウントは削除しない。
func (s *Service) Delete(ctx context.Context, googleSub string) (bool, error) {
	user, err := s.users.FindByGoogleSub(ctx, googleSub)
	if err != nil {
		return false, err
	}
	if user == nil {
		return false, model.NewUserNotFoundError()
	}

	deleted, err := s.snapshots.Delete(ctx, user.ID)
	if err != nil {
		return false, err
	}

	if deleted {
		s.metrics.RecordSnapshotDeleted()
		slog.Info("pedigree snapshot deleted", slog.Int64("user_id", user.ID))
	}

	return deleted, nil
}
