// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層・Webhookコンシューマ・ワーカーから利用する。
type MetricsCollector interface {
	RecordCheckoutStarted()
	RecordCheckoutConflict()
	RecordCheckoutFailed()
	RecordWebhookEvent(eventType string)
	RecordWebhookDuplicate()
	RecordProfileCacheHit()
	RecordProfileCacheMiss()
	RecordListingsRecovered(count int)
	RecordCheckoutLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	checkoutStarted   prometheus.Counter
	checkoutConflict  prometheus.Counter
	checkoutFailed    prometheus.Counter
	webhookEvents     *prometheus.CounterVec
	webhookDuplicates prometheus.Counter
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
	listingsRecovered prometheus.Counter
	checkoutLatency   prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		checkoutStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "thriftswipe_checkout_started_total",
			Help: "チェックアウト開始の合計数",
		}),
		checkoutConflict: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "thriftswipe_checkout_conflict_total",
			Help: "出品の取り合いで拒否されたチェックアウトの合計数",
		}),
		checkoutFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "thriftswipe_checkout_failed_total",
			Help: "決済プロバイダ起因で失敗したチェックアウトの合計数",
		}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "thriftswipe_webhook_events_total",
			Help: "受信した決済Webhookイベントのタイプ別合計数",
		}, []string{"event_type"}),
		webhookDuplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "thriftswipe_webhook_duplicates_total",
			Help: "重複配信としてスキップしたWebhookイベントの合計数",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "thriftswipe_profile_cache_hits_total",
			Help: "プロフィールキャッシュヒットの合計数",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "thriftswipe_profile_cache_misses_total",
			Help: "プロフィールキャッシュミスの合計数",
		}),
		listingsRecovered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "thriftswipe_listings_recovered_total",
			Help: "滞留チェックアウトから回収した出品の合計数",
		}),
		checkoutLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "thriftswipe_checkout_latency_seconds",
			Help:    "チェックアウト処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.checkoutStarted,
		c.checkoutConflict,
		c.checkoutFailed,
		c.webhookEvents,
		c.webhookDuplicates,
		c.cacheHits,
		c.cacheMisses,
		c.listingsRecovered,
		c.checkoutLatency,
	)

	return c
}

// RecordCheckoutStarted はチェックアウト開始を記録する。
func (c *Collector) RecordCheckoutStarted() {
	c.checkoutStarted.Inc()
}

// RecordCheckoutConflict は出品の取り合いによる409を記録する。
func (c *Collector) RecordCheckoutConflict() {
	c.checkoutConflict.Inc()
}

// RecordCheckoutFailed は決済プロバイダ起因の失敗を記録する。
func (c *Collector) RecordCheckoutFailed() {
	c.checkoutFailed.Inc()
}

// RecordWebhookEvent は受信イベントをタイプ別に記録する。
func (c *Collector) RecordWebhookEvent(eventType string) {
	c.webhookEvents.WithLabelValues(eventType).Inc()
}

// RecordWebhookDuplicate は重複配信のスキップを記録する。
func (c *Collector) RecordWebhookDuplicate() {
	c.webhookDuplicates.Inc()
}

// RecordProfileCacheHit はキャッシュヒットを記録する。
func (c *Collector) RecordProfileCacheHit() {
	c.cacheHits.Inc()
}

// RecordProfileCacheMiss はキャッシュミスを記録する。
func (c *Collector) RecordProfileCacheMiss() {
	c.cacheMisses.Inc()
}

// RecordListingsRecovered は回収した出品数を記録する。
func (c *Collector) RecordListingsRecovered(count int) {
	c.listingsRecovered.Add(float64(count))
}

// RecordCheckoutLatency はチェックアウトのレイテンシを記録する。
func (c *Collector) RecordCheckoutLatency(duration time.Duration) {
	c.checkoutLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

// NopCollector は何も記録しないMetricsCollector実装。テスト用。
type NopCollector struct{}

func (NopCollector) RecordCheckoutStarted()              {}
func (NopCollector) RecordCheckoutConflict()             {}
func (NopCollector) RecordCheckoutFailed()               {}
func (NopCollector) RecordWebhookEvent(string)           {}
func (NopCollector) RecordWebhookDuplicate()             {}
func (NopCollector) RecordProfileCacheHit()              {}
func (NopCollector) RecordProfileCacheMiss()             {}
func (NopCollector) RecordListingsRecovered(int)         {}
func (NopCollector) RecordCheckoutLatency(time.Duration) {}

var _ MetricsCollector = (*Collector)(nil)
var _ MetricsCollector = NopCollector{}
