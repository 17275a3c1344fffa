package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// logSubjectKey はリクエストログに載せる主体を保持するホルダーのコンテキストキー。
var logSubjectKey = contextKey("log_subject")

// logSubject はロギングミドルウェアが用意し、内側で解決された
// 検証済み主体を外側のログ出力に伝搬するためのホルダー。
type logSubject struct {
	googleSub string
}

// setLogSubject はコンテキストにホルダーがあれば主体を記録する。
// IdentityMiddlewareが検証成功時に呼び出す。
func setLogSubject(ctx context.Context, googleSub string) {
	if holder, ok := ctx.Value(logSubjectKey).(*logSubject); ok {
		holder.googleSub = googleSub
	}
}

// statusRecorder はhttp.ResponseWriterをラップし、ステータスコードを記録する。
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

// WriteHeader はステータスコードを記録してから委譲する。
func (sr *statusRecorder) WriteHeader(code int) {
	if !sr.written {
		sr.statusCode = code
		sr.written = true
	}
	sr.ResponseWriter.WriteHeader(code)
}

// Write はデータを書き込む。WriteHeaderが未呼び出しの場合は200を記録する。
func (sr *statusRecorder) Write(b []byte) (int, error) {
	if !sr.written {
		sr.statusCode = http.StatusOK
		sr.written = true
	}
	return sr.ResponseWriter.Write(b)
}

// StatusObserver はレスポンスのステータスコードを受け取る。
// HTTPメトリクスの記録に使用する。
type StatusObserver interface {
	RecordHTTPStatus(code int)
}

// NewLoggingMiddleware はリクエストのJSON構造化ログを出力するミドルウェアを返す。
// ログにはmethod、path、status、duration_ms、google_sub（認証済みの場合）を含む。
// observerがnilでない場合はステータスコードをメトリクスとしても記録する。
func NewLoggingMiddleware(logger *slog.Logger, observer StatusObserver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rec := &statusRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			// 内側のIdentityMiddlewareはコンテキストを内向きにしか渡せないため、
			// 解決した主体はホルダー経由で受け取る
			subject := &logSubject{}
			r = r.WithContext(context.WithValue(r.Context(), logSubjectKey, subject))

			next.ServeHTTP(rec, r)

			duration := time.Since(start)
			durationMs := float64(duration.Nanoseconds()) / float64(time.Millisecond)

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.statusCode),
				slog.Float64("duration_ms", durationMs),
			}

			// 検証済みの主体が内側で解決されていれば追加
			if subject.googleSub != "" {
				attrs = append(attrs, slog.String("google_sub", subject.googleSub))
			}

			// slogのログレベルをステータスコードに応じて変更
			level := slog.LevelInfo
			if rec.statusCode >= 500 {
				level = slog.LevelError
			} else if rec.statusCode >= 400 {
				level = slog.LevelWarn
			}

			// slog.Attr をany スライスに変換
			args := make([]any, len(attrs))
			for i, attr := range attrs {
				args[i] = attr
			}

			logger.Log(r.Context(), level, "http_request", args...)

			if observer != nil {
				observer.RecordHTTPStatus(rec.statusCode)
			}
		})
	}
}
