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
// ミドルウェアやサービス層から利用する。
type MetricsCollector interface {
	RecordAuthDecision(outcome string)
	RecordLoginAttempt(result string)
	RecordBookingEvent(eventType string)
	RecordEventPublishFailure(topic string)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	authDecisions   *prometheus.CounterVec
	loginAttempts   *prometheus.CounterVec
	bookingEvents   *prometheus.CounterVec
	publishFailures *prometheus.CounterVec
	httpStatus      *prometheus.CounterVec
	requestLatency  prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "travelbook_auth_decisions_total",
			Help: "認証ゲートウェイの判定結果別の件数",
		}, []string{"outcome"}),
		loginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "travelbook_login_attempts_total",
			Help: "ログイン試行の結果別の件数",
		}, []string{"result"}),
		bookingEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "travelbook_booking_events_total",
			Help: "予約イベント種別ごとの発生数",
		}, []string{"type"}),
		publishFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "travelbook_event_publish_failures_total",
			Help: "イベント配信に失敗した件数",
		}, []string{"topic"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "travelbook_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "travelbook_request_latency_seconds",
			Help:    "HTTPリクエスト処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.authDecisions,
		c.loginAttempts,
		c.bookingEvents,
		c.publishFailures,
		c.httpStatus,
		c.requestLatency,
	)

	return c
}

// RecordAuthDecision は認証ゲートウェイの判定結果を記録する。
func (c *Collector) RecordAuthDecision(outcome string) {
	c.authDecisions.WithLabelValues(outcome).Inc()
}

// RecordLoginAttempt はログイン試行の結果を記録する。
func (c *Collector) RecordLoginAttempt(result string) {
	c.loginAttempts.WithLabelValues(result).Inc()
}

// RecordBookingEvent は予約イベントの発生を記録する。
func (c *Collector) RecordBookingEvent(eventType string) {
	c.bookingEvents.WithLabelValues(eventType).Inc()
}

// RecordEventPublishFailure はイベント配信の失敗を記録する。
func (c *Collector) RecordEventPublishFailure(topic string) {
	c.publishFailures.WithLabelValues(topic).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエスト処理のレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
