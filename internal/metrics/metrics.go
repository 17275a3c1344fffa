// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder はメトリクス収集のインターフェース。
// サービス層とミドルウェアから利用する。
type Recorder interface {
	RecordLogin()
	RecordPatchApplied(upserts, deletes int)
	RecordPatchDecodeFailure()
	RecordSnapshotReplaced()
	RecordSnapshotDeleted()
	RecordUpload(duration time.Duration)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	logins          prometheus.Counter
	patchUpserts    prometheus.Counter
	patchDeletes    prometheus.Counter
	patchDecodeFail prometheus.Counter
	snapshotReplace prometheus.Counter
	snapshotDelete  prometheus.Counter
	uploadLatency   prometheus.Histogram
	httpStatus      *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pedigree_logins_total",
			Help: "ログイン成功の合計数",
		}),
		patchUpserts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pedigree_patch_upserts_total",
			Help: "パッチで適用されたupsertの合計数",
		}),
		patchDeletes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pedigree_patch_deletes_total",
			Help: "パッチで適用されたdeleteの合計数",
		}),
		patchDecodeFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pedigree_patch_decode_fail_total",
			Help: "圧縮パッチエンベロープのデコード失敗の合計数",
		}),
		snapshotReplace: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pedigree_snapshot_replace_total",
			Help: "スナップショット全置換の合計数",
		}),
		snapshotDelete: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pedigree_snapshot_delete_total",
			Help: "スナップショット削除の合計数",
		}),
		uploadLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pedigree_upload_latency_seconds",
			Help:    "画像アップロード処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pedigree_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.logins,
		c.patchUpserts,
		c.patchDeletes,
		c.patchDecodeFail,
		c.snapshotReplace,
		c.snapshotDelete,
		c.uploadLatency,
		c.httpStatus,
	)

	return c
}

// RecordLogin はログイン成功を記録する。
func (c *Collector) RecordLogin() {
	c.logins.Inc()
}

// RecordPatchApplied は適用されたパッチのupsert数とdelete数を記録する。
func (c *Collector) RecordPatchApplied(upserts, deletes int) {
	c.patchUpserts.Add(float64(upserts))
	c.patchDeletes.Add(float64(deletes))
}

// RecordPatchDecodeFailure は圧縮エンベロープのデコード失敗を記録する。
func (c *Collector) RecordPatchDecodeFailure() {
	c.patchDecodeFail.Inc()
}

// RecordSnapshotReplaced はスナップショット全置換を記録する。
func (c *Collector) RecordSnapshotReplaced() {
	c.snapshotReplace.Inc()
}

// RecordSnapshotDeleted はスナップショット削除を記録する。
func (c *Collector) RecordSnapshotDeleted() {
	c.snapshotDelete.Inc()
}

// RecordUpload は画像アップロード処理のレイテンシを記録する。
func (c *Collector) RecordUpload(duration time.Duration) {
	c.uploadLatency.Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// compile-time interface check
var _ Recorder = (*Collector)(nil)

// Nop は何も記録しないRecorder実装。テストおよび未構成時に使用する。
type Nop struct{}

// NewNop はNopを生成する。
func NewNop() *Nop { return &Nop{} }

func (*Nop) RecordLogin()                            {}
func (*Nop) RecordPatchApplied(upserts, deletes int) {}
func (*Nop) RecordPatchDecodeFailure()               {}
func (*Nop) RecordSnapshotReplaced()                 {}
func (*Nop) RecordSnapshotDeleted()                  {}
func (*Nop) RecordUpload(duration time.Duration)     {}
func (*Nop) RecordHTTPStatus(statusCode int)         {}

var _ Recorder = (*Nop)(nil)

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
