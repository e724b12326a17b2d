package metrics

import (
	"expvar"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// expvar 计数器（按数据源分组）：/debug/vars
var (
	Samples          = expvar.NewMap("feed_samples")
	Keepalives       = expvar.NewMap("feed_keepalives")
	ReceiveTimeouts  = expvar.NewMap("feed_receive_timeouts")
	DecodeErrors     = expvar.NewMap("feed_decode_errors")
	ZeroTimestamps   = expvar.NewMap("feed_zero_timestamps")
	ConnectFailures  = expvar.NewMap("feed_connect_failures")
	LookupFailures   = expvar.NewMap("feed_lookup_failures")
	ReportsGenerated = expvar.NewInt("reports_generated")
)

// Prometheus 指标：/metrics
var (
	sampleTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feed_latency_samples_total",
		Help: "number of latency samples collected",
	}, []string{"feed"})
	lastLatency = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "feed_latency_last_ms",
		Help: "latest observed receive-minus-server latency in milliseconds",
	}, []string{"feed"})
	medianLatency = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "feed_latency_median_ms",
		Help: "median latency of the finished window in milliseconds",
	}, []string{"feed"})
	jitterMean = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "feed_latency_jitter_mean_ms",
		Help: "mean jitter of the finished window in milliseconds",
	}, []string{"feed"})
	feedScore = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "feed_latency_score",
		Help: "weighted comparison score of the feed (0-6)",
	}, []string{"feed"})
)

// ObserveSample 记录一次采样
func ObserveSample(feed string, latencyMs float64) {
	Samples.Add(feed, 1)
	sampleTotal.WithLabelValues(feed).Inc()
	lastLatency.WithLabelValues(feed).Set(latencyMs)
}

// IncKeepalive 已回复的心跳
func IncKeepalive(feed string) { Keepalives.Add(feed, 1) }

// IncReceiveTimeout 单条消息等待超时
func IncReceiveTimeout(feed string) { ReceiveTimeouts.Add(feed, 1) }

// IncDecodeError 消息解析失败
func IncDecodeError(feed string) { DecodeErrors.Add(feed, 1) }

// IncZeroTimestamp 时间戳为 0 被跳过
func IncZeroTimestamp(feed string) { ZeroTimestamps.Add(feed, 1) }

// IncConnectFailure 连接或握手失败
func IncConnectFailure(feed string) { ConnectFailures.Add(feed, 1) }

// IncLookupFailure 市场查询失败
func IncLookupFailure(feed string) { LookupFailures.Add(feed, 1) }

// SetWindowStats 窗口结束后的统计
func SetWindowStats(feed string, median, jitter float64) {
	medianLatency.WithLabelValues(feed).Set(median)
	jitterMean.WithLabelValues(feed).Set(jitter)
}

// SetScore 对比得分
func SetScore(feed string, score int) {
	feedScore.WithLabelValues(feed).Set(float64(score))
}
