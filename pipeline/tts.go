package pipeline

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/BaSui01/speechflow/cache"
	"github.com/BaSui01/speechflow/internal/metrics"
	"github.com/BaSui01/speechflow/speech"
	"github.com/BaSui01/speechflow/types"
)

// AudioResult 是一次取音频操作的结果。
type AudioResult struct {
	Audio    []byte `json:"-"`
	Format   string `json:"format"`
	Provider string `json:"provider"`
	Cached   bool   `json:"cached"`
	CacheKey string `json:"cache_key"`

	// LanguageSubstituted 表示生成时提供商不支持请求语言，
	// 已替换为其文档化默认值。该信号随缓存条目持久化，命中时同样可见。
	LanguageSubstituted bool `json:"language_substituted,omitempty"`
}

// TTSChains 按调用方档位提供回退链。
// free 与 family 档位走成本优先的链，premium 走音质优先的链。
type TTSChains struct {
	CostFirst    *speech.TTSChain
	QualityFirst *speech.TTSChain
}

// TTSOrchestrator 串联校验、音色解析、缓存与回退合成。
// 同一缓存键在任意时刻至多一次在途生成（singleflight）。
type TTSOrchestrator struct {
	cache   *cache.AudioCache
	chains  TTSChains
	voices  *speech.VoiceTable
	group   singleflight.Group
	metrics *metrics.Collector
	logger  *zap.Logger
}

// NewTTSOrchestrator 创建 TTS 编排器。
// metrics 可为 nil（不采集）。
func NewTTSOrchestrator(audioCache *cache.AudioCache, chains TTSChains, collector *metrics.Collector, logger *zap.Logger) *TTSOrchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if chains.QualityFirst == nil {
		chains.QualityFirst = chains.CostFirst
	}
	if chains.CostFirst == nil {
		chains.CostFirst = chains.QualityFirst
	}
	log := logger.With(zap.String("component", "tts_orchestrator"))
	return &TTSOrchestrator{
		cache:   audioCache,
		chains:  chains,
		voices:  speech.NewVoiceTable(log),
		metrics: collector,
		logger:  log,
	}
}

// GetAudio 返回给定文本的音频：先查两级缓存，未命中再经回退链合成并回写。
// 校验在任何提供商调用之前完成；缓存查询必须先于生成。
func (o *TTSOrchestrator) GetAudio(ctx context.Context, text string, lang types.Language, style types.VoiceStyle, caller types.CallerContext) (*AudioResult, error) {
	return o.getAudio(ctx, text, lang, style, caller, false)
}

// Refresh 绕过缓存命中，强制重新合成并覆盖缓存（预热 / 语料更新路径）。
func (o *TTSOrchestrator) Refresh(ctx context.Context, text string, lang types.Language, style types.VoiceStyle, caller types.CallerContext) (*AudioResult, error) {
	return o.getAudio(ctx, text, lang, style, caller, true)
}

func (o *TTSOrchestrator) getAudio(ctx context.Context, text string, lang types.Language, style types.VoiceStyle, caller types.CallerContext, force bool) (*AudioResult, error) {
	if err := validateSynthesisInput(text, lang); err != nil {
		return nil, err
	}
	if style == "" {
		style = types.VoiceStyleDidi
	}

	key := cache.Key(text, lang, style)
	start := time.Now()

	if !force {
		entry, audio, err := o.cache.Lookup(ctx, key)
		if err == nil {
			o.record(lang, "cache", true, time.Since(start))
			if o.metrics != nil {
				// Lookup 内部已区分 fast/durable 命中日志；这里只记总命中
				o.metrics.RecordCacheHit("any")
			}
			return &AudioResult{
				Audio:               audio,
				Format:              entry.Format(),
				Provider:            entry.Provider,
				Cached:              true,
				CacheKey:            key,
				LanguageSubstituted: entry.LanguageSubstituted,
			}, nil
		}
		if o.metrics != nil {
			o.metrics.RecordCacheMiss()
		}
	}

	v, err, _ := o.group.Do(key, func() (interface{}, error) {
		return o.generate(ctx, key, text, lang, style, caller)
	})
	if err != nil {
		return nil, err
	}
	res := v.(*AudioResult)
	o.record(lang, res.Provider, false, time.Since(start))
	return res, nil
}

// generate 经回退链合成并回写缓存。持久层写失败只记日志，不影响本次响应。
func (o *TTSOrchestrator) generate(ctx context.Context, key, text string, lang types.Language, style types.VoiceStyle, caller types.CallerContext) (*AudioResult, error) {
	chain := o.chainFor(caller.Tier)
	voice := o.voices.Resolve(style, lang)

	resp, err := chain.Synthesize(ctx, &speech.TTSRequest{
		Text:       text,
		Language:   lang,
		VoiceStyle: style,
		Voice:      &voice,
	})
	if err != nil {
		o.logger.Error("synthesis failed across all providers",
			zap.String("language", string(lang)),
			zap.String("voice_style", string(style)),
			zap.Error(err))
		return nil, types.NewError(types.ErrTTSUnavailable, "text-to-speech is temporarily unavailable").
			WithHTTPStatus(http.StatusServiceUnavailable).
			WithRetryable(true).
			WithCause(err)
	}

	if _, err := o.cache.Store(ctx, cache.StoreParams{
		Key:                 key,
		Text:                text,
		Language:            lang,
		VoiceStyle:          style,
		Provider:            resp.Provider,
		Audio:               resp.AudioData,
		Format:              resp.Format,
		GenerationTime:      resp.Elapsed,
		LanguageSubstituted: resp.LanguageSubstituted,
	}); err != nil {
		o.logger.Warn("cache store failed, serving uncached response",
			zap.String("key", key),
			zap.Error(err))
	}

	return &AudioResult{
		Audio:               resp.AudioData,
		Format:              resp.Format,
		Provider:            resp.Provider,
		Cached:              false,
		CacheKey:            key,
		LanguageSubstituted: resp.LanguageSubstituted,
	}, nil
}

// chainFor 按档位选链：仅 premium 走音质优先，free/family 走成本优先。
func (o *TTSOrchestrator) chainFor(tier types.CallerTier) *speech.TTSChain {
	switch tier {
	case types.TierPremium:
		return o.chains.QualityFirst
	default:
		return o.chains.CostFirst
	}
}

func (o *TTSOrchestrator) record(lang types.Language, provider string, cached bool, d time.Duration) {
	if o.metrics != nil {
		o.metrics.RecordSynthesis(string(lang), provider, cached, d)
	}
}

// validateSynthesisInput 在触达任何提供商之前拒绝非法输入。
func validateSynthesisInput(text string, lang types.Language) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return types.NewError(types.ErrInvalidRequest, "text must not be empty").
			WithHTTPStatus(http.StatusBadRequest)
	}
	if len([]rune(text)) > types.MaxSynthesisTextLen {
		return types.NewError(types.ErrInvalidRequest, "text exceeds maximum length").
			WithHTTPStatus(http.StatusBadRequest)
	}
	if !lang.Valid() {
		return types.NewError(types.ErrInvalidRequest, "unsupported language").
			WithHTTPStatus(http.StatusBadRequest)
	}
	return nil
}

func formatFromRef(ref string) string {
	if i := strings.LastIndexByte(ref, '.'); i >= 0 {
		return ref[i+1:]
	}
	return "mp3"
}
