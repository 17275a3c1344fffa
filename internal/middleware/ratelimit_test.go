package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/kcasl/Pedigree-App/internal/auth"
)

func testRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(1.0 / 60.0),
		GeneralBurst:    3,
		UploadRate:      rate.Limit(1.0 / 60.0),
		UploadBurst:     2,
		CleanupInterval: time.Hour,
	}
}

// requestWithIdentity は検証済みIDをコンテキストに持つリクエストを作る。
func requestWithIdentity(googleSub string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/v1/pedigree/"+googleSub, nil)
	ctx := context.WithValue(req.Context(), identityContextKey, &auth.Identity{GoogleSub: googleSub})
	return req.WithContext(ctx)
}

func TestRateLimiter_GeneralAllowsUpToBurst(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, requestWithIdentity("sub-1"))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want %d", i+1, rec.Code, http.StatusOK)
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestWithIdentity("sub-1"))
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header missing")
	}
}

func TestRateLimiter_SubjectsAreIndependent(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// sub-1 のバーストを使い切る
	for i := 0; i < 4; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), requestWithIdentity("sub-1"))
	}

	// sub-2 は影響を受けない
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestWithIdentity("sub-2"))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	if got := rl.GeneralLimiterCount(); got != 2 {
		t.Errorf("GeneralLimiterCount() = %d, want 2", got)
	}
}

func TestRateLimiter_UploadIndependentOfGeneral(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()

	general := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	upload := rl.UploadMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// アップロードのバースト(2)を使い切っても一般APIは通る
	for i := 0; i < 2; i++ {
		upload.ServeHTTP(httptest.NewRecorder(), requestWithIdentity("sub-1"))
	}
	rec := httptest.NewRecorder()
	upload.ServeHTTP(rec, requestWithIdentity("sub-1"))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("upload status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}

	rec = httptest.NewRecorder()
	general.ServeHTTP(rec, requestWithIdentity("sub-1"))
	if rec.Code != http.StatusOK {
		t.Errorf("general status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRateLimiter_RequiresIdentity(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run without identity")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/pedigree/sub-1", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRateLimiter_CleanupRemovesStaleEntries(t *testing.T) {
	config := testRateLimiterConfig()
	config.CleanupInterval = 10 * time.Millisecond
	rl := NewRateLimiter(config)
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), requestWithIdentity("sub-1"))

	if got := rl.GeneralLimiterCount(); got != 1 {
		t.Fatalf("GeneralLimiterCount() = %d, want 1", got)
	}

	// TTL(2*interval)経過後のクリーンアップでエントリが消えること
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if rl.GeneralLimiterCount() == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("stale limiter entry was not cleaned up")
}
