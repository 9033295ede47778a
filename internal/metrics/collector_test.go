package metrics

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

var collectorNamespaceSeq uint64

func nextTestNamespace() string {
	seq := atomic.AddUint64(&collectorNamespaceSeq, 1)
	return fmt.Sprintf("test_%d", seq)
}

// =============================================================================
// 🧪 Collector 测试
// =============================================================================

func TestNewCollector(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.synthRequestsTotal)
	assert.NotNil(t, collector.sttRequestsTotal)
	assert.NotNil(t, collector.providerFailures)
	assert.NotNil(t, collector.cacheHits)
	assert.NotNil(t, collector.scoreDistribution)
}

func TestCollector_RecordSynthesis(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	collector.RecordSynthesis("hi", "google-tts", false, 800*time.Millisecond)
	collector.RecordSynthesis("hi", "cache", true, 2*time.Millisecond)

	count := testutil.CollectAndCount(collector.synthRequestsTotal)
	assert.Equal(t, 2, count)
}

func TestCollector_RecordTranscription(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	collector.RecordTranscription("hi", "openai-whisper", 1200*time.Millisecond)

	count := testutil.CollectAndCount(collector.sttRequestsTotal)
	assert.Greater(t, count, 0)
}

func TestCollector_RecordProviderFailure(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	collector.RecordProviderFailure("elevenlabs", "PROVIDER_BUSY")
	collector.RecordProviderFailure("elevenlabs", "PROVIDER_BUSY")
	collector.RecordFallback("tts")

	assert.Equal(t, float64(2), testutil.ToFloat64(
		collector.providerFailures.WithLabelValues("elevenlabs", "PROVIDER_BUSY")))
	assert.Equal(t, float64(1), testutil.ToFloat64(
		collector.providerFallbacks.WithLabelValues("tts")))
}

func TestCollector_RecordCache(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	collector.RecordCacheHit("fast")
	collector.RecordCacheHit("durable")
	collector.RecordCacheMiss()

	assert.Equal(t, float64(1), testutil.ToFloat64(collector.cacheHits.WithLabelValues("fast")))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.cacheHits.WithLabelValues("durable")))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.cacheMisses))
}

func TestCollector_RecordScore(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	collector.RecordScore(92.5, 3)
	collector.RecordScore(50.0, 1)

	assert.Equal(t, float64(1), testutil.ToFloat64(collector.starsTotal.WithLabelValues("3")))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.starsTotal.WithLabelValues("1")))
}
