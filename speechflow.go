// Package speechflow provides a top-level convenience entry point for
// embedding the speech pipeline in another Go program with minimal
// boilerplate.
//
// Usage:
//
//	import "github.com/BaSui01/speechflow"
//
//	p, err := speechflow.New(
//		speechflow.WithTTSProviders(google, elevenlabs),
//		speechflow.WithSTTProviders(whisper),
//	)
//	audio, err := p.TTS.GetAudio(ctx, "नमस्ते", types.LangHindi,
//		types.VoiceStyleDidi, types.DefaultCallerContext())
//
// By default the pipeline runs fully in-process: an in-memory object store,
// an in-memory SQLite database for cache metadata and no fast cache layer.
// Production deployments should use cmd/speechflow instead, which wires
// Redis, a durable object store and the full HTTP surface.
package speechflow

import (
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/BaSui01/speechflow/cache"
	"github.com/BaSui01/speechflow/pipeline"
	"github.com/BaSui01/speechflow/speech"
	"github.com/BaSui01/speechflow/storage"
)

// Pipeline bundles the assembled orchestrators for in-process use.
type Pipeline struct {
	// TTS synthesizes curriculum audio through the provider fallback chain,
	// backed by the audio cache.
	TTS *pipeline.TTSOrchestrator
	// STT transcribes recorded attempts.
	STT *pipeline.STTOrchestrator
	// Cache is the two-tier audio cache shared by TTS and prewarming.
	Cache *cache.AudioCache
	// Objects is the backing object store for audio payloads.
	Objects storage.ObjectStore
}

type options struct {
	logger       *zap.Logger
	db           *gorm.DB
	objects      storage.ObjectStore
	cacheCfg     cache.Config
	fallbackCfg  speech.FallbackConfig
	sttCfg       pipeline.STTConfig
	ttsProviders []speech.TTSProvider
	sttProviders []speech.STTProvider
}

// Option configures the pipeline created by [New].
type Option func(*options)

// WithLogger sets a custom zap logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithDatabase sets the gorm database used for cache metadata.
// Defaults to an in-memory SQLite database.
func WithDatabase(db *gorm.DB) Option {
	return func(o *options) { o.db = db }
}

// WithObjectStore sets the object store for audio payloads.
// Defaults to an in-memory store.
func WithObjectStore(objects storage.ObjectStore) Option {
	return func(o *options) { o.objects = objects }
}

// WithCacheConfig overrides the audio cache configuration.
func WithCacheConfig(cfg cache.Config) Option {
	return func(o *options) { o.cacheCfg = cfg }
}

// WithFallbackConfig overrides the per-provider retry budget of both chains.
func WithFallbackConfig(cfg speech.FallbackConfig) Option {
	return func(o *options) { o.fallbackCfg = cfg }
}

// WithSTTConfig overrides the transcription orchestrator configuration.
func WithSTTConfig(cfg pipeline.STTConfig) Option {
	return func(o *options) { o.sttCfg = cfg }
}

// WithTTSProviders sets the synthesis providers in cost-first priority order.
func WithTTSProviders(providers ...speech.TTSProvider) Option {
	return func(o *options) { o.ttsProviders = providers }
}

// WithSTTProviders sets the transcription providers in priority order.
func WithSTTProviders(providers ...speech.STTProvider) Option {
	return func(o *options) { o.sttProviders = providers }
}

// New assembles an in-process speech pipeline. At minimum, TTS providers
// should be supplied via [WithTTSProviders]; a pipeline with an empty chain
// starts fine but every synthesis will fail with a provider error.
func New(opts ...Option) (*Pipeline, error) {
	o := &options{
		logger:      zap.NewNop(),
		cacheCfg:    cache.DefaultConfig(),
		fallbackCfg: speech.DefaultFallbackConfig(),
		sttCfg:      pipeline.DefaultSTTConfig(),
	}
	// 嵌入式默认没有 Redis 快速层
	o.cacheCfg.EnableFast = false

	for _, opt := range opts {
		opt(o)
	}

	if o.objects == nil {
		o.objects = storage.NewMemoryStore()
	}
	if o.db == nil {
		db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		if err != nil {
			return nil, err
		}
		o.db = db
	}

	audioCache, err := cache.NewAudioCache(nil, o.objects, o.db, o.cacheCfg, o.logger)
	if err != nil {
		return nil, err
	}

	ttsChain := speech.NewTTSChain(o.fallbackCfg, o.logger, o.ttsProviders...)
	tts := pipeline.NewTTSOrchestrator(audioCache, pipeline.TTSChains{CostFirst: ttsChain}, nil, o.logger)

	sttChain := speech.NewSTTChain(o.fallbackCfg, o.logger, o.sttProviders...)
	stt, err := pipeline.NewSTTOrchestrator(sttChain, o.objects, o.sttCfg, nil, o.logger)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		TTS:     tts,
		STT:     stt,
		Cache:   audioCache,
		Objects: o.objects,
	}, nil
}
