// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ストアクライアントやデスクから利用する。
type MetricsCollector interface {
	RecordStoreRequest(op string, statusCode int, duration time.Duration)
	RecordDispatch(action string, outcome string)
	RecordStaleFetchDiscarded(kind string)
	SetActiveDesks(n int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	storeRequests *prometheus.CounterVec
	storeLatency  *prometheus.HistogramVec
	dispatches    *prometheus.CounterVec
	staleFetches  *prometheus.CounterVec
	activeDesks   prometheus.Gauge
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		storeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "claimdesk_store_requests_total",
			Help: "ストアAPIへのリクエスト数（操作・ステータスコード別）",
		}, []string{"op", "status_code"}),
		storeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "claimdesk_store_latency_seconds",
			Help:    "ストアAPIのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "claimdesk_dispatch_total",
			Help: "審査・既読アクションのレコード単位の結果数",
		}, []string{"action", "outcome"}),
		staleFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "claimdesk_stale_fetch_discarded_total",
			Help: "後発の取得に追い越されて破棄された取得結果の数",
		}, []string{"kind"}),
		activeDesks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "claimdesk_active_desks",
			Help: "メモリ上に保持しているデスク数",
		}),
	}

	reg.MustRegister(
		c.storeRequests,
		c.storeLatency,
		c.dispatches,
		c.staleFetches,
		c.activeDesks,
	)

	return c
}

// RecordStoreRequest はストアAPI呼び出しの結果を記録する。
// 通信エラーでステータスコードがない場合は0として記録する。
func (c *Collector) RecordStoreRequest(op string, statusCode int, duration time.Duration) {
	c.storeRequests.WithLabelValues(op, strconv.Itoa(statusCode)).Inc()
	c.storeLatency.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordDispatch はレコード単位のアクション結果を記録する。
func (c *Collector) RecordDispatch(action string, outcome string) {
	c.dispatches.WithLabelValues(action, outcome).Inc()
}

// RecordStaleFetchDiscarded は破棄された取得結果を記録する。
func (c *Collector) RecordStaleFetchDiscarded(kind string) {
	c.staleFetches.WithLabelValues(kind).Inc()
}

// SetActiveDesks は保持中のデスク数を設定する。
func (c *Collector) SetActiveDesks(n int) {
	c.activeDesks.Set(float64(n))
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使用する。
type Nop struct{}

func (Nop) RecordStoreRequest(string, int, time.Duration) {}
func (Nop) RecordDispatch(string, string)                 {}
func (Nop) RecordStaleFetchDiscarded(string)              {}
func (Nop) SetActiveDesks(int)                            {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
