// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ハンドラーやサービス層から利用する。
type MetricsCollector interface {
	RecordChatRequest(endpoint, outcome string)
	RecordCompletionLatency(persona string, duration time.Duration)
	RecordCompletionFailure(persona, kind string)
	RecordVerificationEmail(success bool)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	chatRequests       *prometheus.CounterVec
	completionLatency  *prometheus.HistogramVec
	completionFailures *prometheus.CounterVec
	verificationEmails *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		chatRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatgate_chat_requests_total",
			Help: "エンドポイント・結果別のチャットリクエスト数",
		}, []string{"endpoint", "outcome"}),
		completionLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chatgate_completion_latency_seconds",
			Help:    "LLM補完呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"persona"}),
		completionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatgate_completion_failures_total",
			Help: "失敗種別ごとのLLM補完失敗数",
		}, []string{"persona", "kind"}),
		verificationEmails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatgate_verification_emails_total",
			Help: "認証コードメールの送信結果別の件数",
		}, []string{"result"}),
	}

	reg.MustRegister(
		c.chatRequests,
		c.completionLatency,
		c.completionFailures,
		c.verificationEmails,
	)

	return c
}

// RecordChatRequest はチャットリクエストの結果を記録する。
func (c *Collector) RecordChatRequest(endpoint, outcome string) {
	c.chatRequests.WithLabelValues(endpoint, outcome).Inc()
}

// RecordCompletionLatency は補完呼び出しのレイテンシを記録する。
func (c *Collector) RecordCompletionLatency(persona string, duration time.Duration) {
	c.completionLatency.WithLabelValues(persona).Observe(duration.Seconds())
}

// RecordCompletionFailure は補完失敗を記録する。
func (c *Collector) RecordCompletionFailure(persona, kind string) {
	c.completionFailures.WithLabelValues(persona, kind).Inc()
}

// RecordVerificationEmail は認証コードメールの送信結果を記録する。
func (c *Collector) RecordVerificationEmail(success bool) {
	result := "sent"
	if !success {
		result = "failed"
	}
	c.verificationEmails.WithLabelValues(result).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使用する。
type Nop struct{}

func (Nop) RecordChatRequest(endpoint, outcome string)                     {}
func (Nop) RecordCompletionLatency(persona string, duration time.Duration) {}
func (Nop) RecordCompletionFailure(persona, kind string)                   {}
func (Nop) RecordVerificationEmail(success bool)                           {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
