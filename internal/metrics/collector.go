// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 语音管线指标收集器
type Collector struct {
	// 合成 / 转写指标
	synthRequestsTotal *prometheus.CounterVec
	synthDuration      *prometheus.HistogramVec
	sttRequestsTotal   *prometheus.CounterVec
	sttDuration        *prometheus.HistogramVec

	// 提供商指标
	providerFailures  *prometheus.CounterVec
	providerFallbacks *prometheus.CounterVec

	// 缓存指标
	cacheHits   *prometheus.CounterVec
	cacheMisses prometheus.Counter

	// 评分指标
	scoreDistribution prometheus.Histogram
	starsTotal        *prometheus.CounterVec

	// HTTP 边界指标
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.synthRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tts_requests_total",
			Help:      "Total TTS requests by language, provider and cache outcome",
		},
		[]string{"language", "provider", "cached"},
	)
	c.synthDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tts_duration_seconds",
			Help:      "TTS request duration",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"provider"},
	)
	c.sttRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stt_requests_total",
			Help:      "Total STT requests by language and provider",
		},
		[]string{"language", "provider"},
	)
	c.sttDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stt_duration_seconds",
			Help:      "STT request duration",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"provider"},
	)

	c.providerFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_failures_total",
			Help:      "Provider call failures by provider and error code",
		},
		[]string{"provider", "code"},
	)
	c.providerFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_fallbacks_total",
			Help:      "Times the fallback chain advanced past a provider",
		},
		[]string{"capability"},
	)

	c.cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_cache_hits_total",
			Help:      "Audio cache hits by tier",
		},
		[]string{"tier"},
	)
	c.cacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_cache_misses_total",
			Help:      "Audio cache misses",
		},
	)

	c.scoreDistribution = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pronunciation_score",
			Help:      "Distribution of final pronunciation scores",
			Buckets:   []float64{10, 20, 30, 45, 55, 65, 75, 85, 95},
		},
	)
	c.starsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pronunciation_stars_total",
			Help:      "Star ratings handed out",
		},
		[]string{"stars"},
	)

	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, path and status",
		},
		[]string{"method", "path", "status"},
	)
	c.httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	return c
}

// RecordSynthesis 记录一次 TTS 请求
func (c *Collector) RecordSynthesis(language, provider string, cached bool, d time.Duration) {
	cachedLabel := "false"
	if cached {
		cachedLabel = "true"
	}
	c.synthRequestsTotal.WithLabelValues(language, provider, cachedLabel).Inc()
	c.synthDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// RecordTranscription 记录一次 STT 请求
func (c *Collector) RecordTranscription(language, provider string, d time.Duration) {
	c.sttRequestsTotal.WithLabelValues(language, provider).Inc()
	c.sttDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// RecordProviderFailure 记录提供商失败
func (c *Collector) RecordProviderFailure(provider, code string) {
	c.providerFailures.WithLabelValues(provider, code).Inc()
}

// RecordFallback 记录一次回退链推进
func (c *Collector) RecordFallback(capability string) {
	c.providerFallbacks.WithLabelValues(capability).Inc()
}

// RecordCacheHit 记录缓存命中（tier: fast | durable）
func (c *Collector) RecordCacheHit(tier string) {
	c.cacheHits.WithLabelValues(tier).Inc()
}

// RecordCacheMiss 记录缓存未命中
func (c *Collector) RecordCacheMiss() {
	c.cacheMisses.Inc()
}

// RecordScore 记录一次评分结果
func (c *Collector) RecordScore(final float64, stars int) {
	c.scoreDistribution.Observe(final)
	c.starsTotal.WithLabelValues(starLabel(stars)).Inc()
}

// RecordHTTPRequest 记录一次 HTTP 请求。path 必须是低基数的归一化路径。
func (c *Collector) RecordHTTPRequest(method, path string, status int, d time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

func starLabel(stars int) string {
	switch stars {
	case 0:
		return "0"
	case 1:
		return "1"
	case 2:
		return "2"
	default:
		return "3"
	}
}
