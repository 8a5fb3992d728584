// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 再学習ジョブの結果ラベル
const (
	RetrainOutcomeTrained          = "trained"
	RetrainOutcomeSkipped          = "skipped"
	RetrainOutcomeInsufficientData = "insufficient_data"
	RetrainOutcomeFailed           = "failed"
)

// 予測の結果ラベル
const (
	PredictionOutcomeScored  = "scored"
	PredictionOutcomeNoModel = "no_model"
	PredictionOutcomeEmpty   = "empty"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ワーカーやサービス層から利用する。
type MetricsCollector interface {
	RecordToggle(result string)
	RecordRetrain(outcome string, duration time.Duration)
	RecordRetrainDropped()
	RecordPrediction(outcome string)
	RecordNotifications(created, suppressed int)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	toggles                 *prometheus.CounterVec
	retrainRuns             *prometheus.CounterVec
	retrainLatency          prometheus.Histogram
	retrainDropped          prometheus.Counter
	predictions             *prometheus.CounterVec
	notificationsCreated    prometheus.Counter
	notificationsSuppressed prometheus.Counter
	httpStatus              *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		toggles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "habitman_completion_toggles_total",
			Help: "達成トグルの結果別件数",
		}, []string{"result"}),
		retrainRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "habitman_retrain_runs_total",
			Help: "再学習ジョブの結果別件数",
		}, []string{"outcome"}),
		retrainLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "habitman_retrain_duration_seconds",
			Help:    "再学習ジョブの所要時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		retrainDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "habitman_retrain_dropped_total",
			Help: "キュー満杯のため破棄された再学習要求の数",
		}),
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "habitman_predictions_total",
			Help: "翌日予測の結果別件数",
		}, []string{"outcome"}),
		notificationsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "habitman_notifications_created_total",
			Help: "新規作成された通知の数",
		}),
		notificationsSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "habitman_notifications_suppressed_total",
			Help: "重複のため作成されなかった通知の数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "habitman_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.toggles,
		c.retrainRuns,
		c.retrainLatency,
		c.retrainDropped,
		c.predictions,
		c.notificationsCreated,
		c.notificationsSuppressed,
		c.httpStatus,
	)

	return c
}

// RecordToggle はトグル結果（added / removed）を記録する。
func (c *Collector) RecordToggle(result string) {
	c.toggles.WithLabelValues(result).Inc()
}

// RecordRetrain は再学習ジョブの結果と所要時間を記録する。
// 閾値に達せず学習しなかった場合は所要時間を記録しない。
func (c *Collector) RecordRetrain(outcome string, duration time.Duration) {
	c.retrainRuns.WithLabelValues(outcome).Inc()
	if outcome != RetrainOutcomeSkipped {
		c.retrainLatency.Observe(duration.Seconds())
	}
}

// RecordRetrainDropped は破棄された再学習要求を記録する。
func (c *Collector) RecordRetrainDropped() {
	c.retrainDropped.Inc()
}

// RecordPrediction は翌日予測の結果を記録する。
func (c *Collector) RecordPrediction(outcome string) {
	c.predictions.WithLabelValues(outcome).Inc()
}

// RecordNotifications は通知の作成数と重複抑止数を記録する。
func (c *Collector) RecordNotifications(created, suppressed int) {
	c.notificationsCreated.Add(float64(created))
	c.notificationsSuppressed.Add(float64(suppressed))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
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

// Noop は何も記録しないMetricsCollector。CLIやテストで使用する。
type Noop struct{}

func (Noop) RecordToggle(string) {}
func (Noop) RecordRetrain(string, time.Duration) {}
func (Noop) RecordRetrainDropped() {}
func (Noop) RecordPrediction(string) {}
func (Noop) RecordNotifications(int, int) {}
func (Noop) RecordHTTPStatus(int) {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Noop{}
)
