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
// APIクライアント、セッションストア、フィードモデルから利用する。
type Recorder interface {
	// RecordAPIRequest はAPI呼び出し1回の結果を記録する。statusCode 0 は通信失敗を表す。
	RecordAPIRequest(endpoint string, statusCode int, duration time.Duration)
	RecordFeedLoad(posts int)
	RecordForcedLogout()
	RecordRepostDeduped()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	apiRequests   *prometheus.CounterVec
	apiLatency    *prometheus.HistogramVec
	feedLoads     prometheus.Counter
	feedPosts     prometheus.Gauge
	forcedLogouts prometheus.Counter
	repostDeduped prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tbookers_api_requests_total",
			Help: "エンドポイント・HTTPステータス別のAPI呼び出し数（status_code=0は通信失敗）",
		}, []string{"endpoint", "status_code"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tbookers_api_latency_seconds",
			Help:    "API呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		feedLoads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tbookers_feed_loads_total",
			Help: "フィード全件再取得の合計数",
		}),
		feedPosts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tbookers_feed_posts",
			Help: "直近のフィード取得で表示対象となった投稿数",
		}),
		forcedLogouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tbookers_forced_logouts_total",
			Help: "認証エラーによる強制ログアウトの合計数",
		}),
		repostDeduped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tbookers_repost_deduped_total",
			Help: "処理中ガードにより抑止されたリポスト要求の合計数",
		}),
	}

	reg.MustRegister(
		c.apiRequests,
		c.apiLatency,
		c.feedLoads,
		c.feedPosts,
		c.forcedLogouts,
		c.repostDeduped,
	)

	return c
}

// RecordAPIRequest はAPI呼び出しのステータスとレイテンシを記録する。
func (c *Collector) RecordAPIRequest(endpoint string, statusCode int, duration time.Duration) {
	c.apiRequests.WithLabelValues(endpoint, strconv.Itoa(statusCode)).Inc()
	c.apiLatency.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordFeedLoad はフィード取得と表示件数を記録する。
func (c *Collector) RecordFeedLoad(posts int) {
	c.feedLoads.Inc()
	c.feedPosts.Set(float64(posts))
}

// RecordForcedLogout は強制ログアウトを記録する。
func (c *Collector) RecordForcedLogout() {
	c.forcedLogouts.Inc()
}

// RecordRepostDeduped は抑止されたリポストを記録する。
func (c *Collector) RecordRepostDeduped() {
	c.repostDeduped.Inc()
}

// Nop は何も記録しないRecorder。CLIの単発実行やテストで使う。
type Nop struct{}

func (Nop) RecordAPIRequest(string, int, time.Duration) {}
func (Nop) RecordFeedLoad(int) {}
func (Nop) RecordForcedLogout() {}
func (Nop) RecordRepostDeduped() {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = Nop{}
)
