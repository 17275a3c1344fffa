package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// counterValue はレジストリから指定カウンタの現在値を取得するヘルパー。
func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	for _, mf := range metrics {
		if mf.GetName() == name {
			if len(mf.GetMetric()) != 1 {
				t.Fatalf("expected 1 metric for %s, got %d", name, len(mf.GetMetric()))
			}
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

// TestRecordLogin_IncrementsCounter はログインカウンタが増加することを検証する。
func TestRecordLogin_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLogin()
	c.RecordLogin()

	if v := counterValue(t, reg, "pedigree_logins_total"); v != 2 {
		t.Errorf("logins_total = %v, want 2", v)
	}
}

// TestRecordPatchApplied_AddsCounts はパッチのupsert/delete数が加算されることを検証する。
func TestRecordPatchApplied_AddsCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordPatchApplied(3, 1)
	c.RecordPatchApplied(2, 0)

	if v := counterValue(t, reg, "pedigree_patch_upserts_total"); v != 5 {
		t.Errorf("patch_upserts_total = %v, want 5", v)
	}
	if v := counterValue(t, reg, "pedigree_patch_deletes_total"); v != 1 {
		t.Errorf("patch_deletes_total = %v, want 1", v)
	}
}

// TestRecordSnapshotOps_IncrementCounters はスナップショット操作カウンタを検証する。
func TestRecordSnapshotOps_IncrementCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSnapshotReplaced()
	c.RecordSnapshotDeleted()
	c.RecordPatchDecodeFailure()

	if v := counterValue(t, reg, "pedigree_snapshot_replace_total"); v != 1 {
		t.Errorf("snapshot_replace_total = %v, want 1", v)
	}
	if v := counterValue(t, reg, "pedigree_snapshot_delete_total"); v != 1 {
		t.Errorf("snapshot_delete_total = %v, want 1", v)
	}
	if v := counterValue(t, reg, "pedigree_patch_decode_fail_total"); v != 1 {
		t.Errorf("patch_decode_fail_total = %v, want 1", v)
	}
}

// TestHandler_ServesRegisteredMetrics はスクレイプハンドラーが登録済みメトリクスを返すことを検証する。
func TestHandler_ServesRegisteredMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordLogin()
	c.RecordHTTPStatus(200)
	c.RecordUpload(150 * time.Millisecond)

	handler := Handler(reg)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	bodyStr := string(body)

	for _, name := range []string{
		"pedigree_logins_total",
		"pedigree_http_status_total",
		"pedigree_upload_latency_seconds",
	} {
		if !strings.Contains(bodyStr, name) {
			t.Errorf("response should contain %s metric", name)
		}
	}
}

// TestNop_ImplementsRecorder はNopがRecorderを満たし、panicしないことを検証する。
func TestNop_ImplementsRecorder(t *testing.T) {
	var r Recorder = NewNop()

	r.RecordLogin()
	r.RecordPatchApplied(1, 2)
	r.RecordPatchDecodeFailure()
	r.RecordSnapshotReplaced()
	r.RecordSnapshotDeleted()
	r.RecordUpload(time.Second)
	r.RecordHTTPStatus(500)
}
