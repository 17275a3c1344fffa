// Package upload は人物写真の受け取り・縮小・保存を提供する。
package upload

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	// 受け付ける画像フォーマットのデコーダー登録
	_ "image/gif"
	_ "image/png"

	"github.com/google/uuid"
	"golang.org/x/image/draw"

	"github.com/kcasl/Pedigree-App/internal/metrics"
	"github.com/kcasl/Pedigree-App/internal/model"
)

// 保存時の正規化パラメータ。元画像のフォーマットに関わらず
// 最大辺maxSidePxのJPEGに変換して保存する。
const (
	maxSidePx   = 1280
	jpegQuality = 80
)

// Photo は保存済み写真のファイル名と公開URL。
type Photo struct {
	FileName string `json:"file_name"`
	URL      string `json:"url"`
}

// AccountFinder はアップロード対象アカウントの存在確認インターフェース。
type AccountFinder interface {
	FindByGoogleSub(ctx context.Context, googleSub string) (*model.User, error)
}

// PhotoService は写真アップロードのユースケースを提供する。
type PhotoService struct {
	dir           string
	publicBaseURL string
	users         AccountFinder
	metrics       metrics.Recorder
}

// NewPhotoService はPhotoServiceを生成する。
// dirは保存先ディレクトリ。存在しない場合は最初の保存時に作成する。
func NewPhotoService(dir, publicBaseURL string, users AccountFinder, rec metrics.Recorder) *PhotoService {
	if rec == nil {
		rec = metrics.NewNop()
	}
	return &PhotoService{
		dir:           dir,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		users:         users,
		metrics:       rec,
	}
}

// Save は画像を検証・縮小してJPEGとして保存し、公開URLを返す。
//
// google_subに対応するアカウントが存在しない場合はUserNotFoundを返し、
// ファイルは作成しない。contentTypeはimage/で始まる必要があり、本文は
// デコード可能な画像でなければならない。どちらの違反もInvalidPayloadと
// して返す。最大辺がmaxSidePxを超える画像は縦横比を保って縮小する。
// 拡大はしない。
func (s *PhotoService) Save(ctx context.Context, googleSub, contentType string, body io.Reader) (*Photo, error) {
	start := time.Now()

	user, err := s.users.FindByGoogleSub(ctx, googleSub)
	if err != nil {
		return nil, fmt.Errorf("find user by google_sub: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	if !strings.HasPrefix(contentType, "image/") {
		return nil, model.NewInvalidPayloadError()
	}

	src, format, err := image.Decode(body)
	if err != nil {
		slog.Warn("photo decode failed",
			slog.String("google_sub", googleSub),
			slog.String("content_type", contentType),
			slog.String("error", err.Error()),
		)
		return nil, model.NewInvalidPayloadError()
	}

	resized := downscale(src)

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	fileName := fmt.Sprintf("%s_%s.jpg", googleSub, uuid.NewString())
	path := filepath.Join(s.dir, fileName)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create photo file: %w", err)
	}

	if err := jpeg.Encode(f, resized, &jpeg.Options{Quality: jpegQuality}); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("encode photo: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("close photo file: %w", err)
	}

	s.metrics.RecordUpload(time.Since(start))
	slog.Info("photo uploaded",
		slog.String("google_sub", googleSub),
		slog.String("file_name", fileName),
		slog.String("format", format),
	)

	return &Photo{
		FileName: fileName,
		URL:      fmt.Sprintf("%s/uploads/%s", s.publicBaseURL, fileName),
	}, nil
}

// downscale は最大辺がmaxSidePxに収まるよう縦横比を保って縮小する。
// すでに収まっている画像はそのまま返す。
func downscale(src image.Image) image.Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	longest := w
	if h > longest {
		longest = h
	}
	if longest <= maxSidePx {
		return src
	}

	scale := float64(maxSidePx) / float64(longest)
	dstW := int(float64(w) * scale)
	dstH := int(float64(h) * scale)
	if dstW < 1 {
		dstW = 1
	}
	if dstH < 1 {
		dstH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	return dst
}
