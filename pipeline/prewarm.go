package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/speechflow/cache"
	"github.com/BaSui01/speechflow/types"
)

// PrewarmItem 是一条待预热的课程语料。
type PrewarmItem struct {
	Text        string           `json:"text" yaml:"text"`
	Language    types.Language   `json:"language" yaml:"language"`
	VoiceStyle  types.VoiceStyle `json:"voice_style" yaml:"voice_style"`
	ContentType string           `json:"content_type,omitempty" yaml:"content_type,omitempty"`
	ContentID   string           `json:"content_id,omitempty" yaml:"content_id,omitempty"`
}

// PrewarmReport 汇总一次批量预热的结果。
type PrewarmReport struct {
	Total      int `json:"total"`
	Generated  int `json:"generated"`
	AlreadyHot int `json:"already_hot"`
	Failed     int `json:"failed"`
}

// PrewarmConfig 配置批量预热。
type PrewarmConfig struct {
	// ItemsPerSecond 条目间限速，避免把提供商当成压测对象。
	ItemsPerSecond float64 `yaml:"items_per_second" json:"items_per_second" env:"ITEMS_PER_SECOND"`
	// Force 为 true 时忽略缓存命中，强制重新合成。
	Force bool `yaml:"force" json:"force" env:"FORCE"`
}

// DefaultPrewarmConfig 返回默认预热配置。
func DefaultPrewarmConfig() PrewarmConfig {
	return PrewarmConfig{ItemsPerSecond: 2}
}

// Prewarmer 顺序批量预热课程音频，单条失败不终止整批。
type Prewarmer struct {
	orchestrator *TTSOrchestrator
	cache        *cache.AudioCache
	cfg          PrewarmConfig
	logger       *zap.Logger
}

// NewPrewarmer 创建预热器。
func NewPrewarmer(orchestrator *TTSOrchestrator, audioCache *cache.AudioCache, cfg PrewarmConfig, logger *zap.Logger) *Prewarmer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ItemsPerSecond <= 0 {
		cfg.ItemsPerSecond = 2
	}
	return &Prewarmer{
		orchestrator: orchestrator,
		cache:        audioCache,
		cfg:          cfg,
		logger:       logger.With(zap.String("component", "prewarmer")),
	}
}

// Run 逐条预热，受速率限制；ctx 取消后立即收尾并返回已完成的统计。
func (p *Prewarmer) Run(ctx context.Context, items []PrewarmItem) (*PrewarmReport, error) {
	limiter := rate.NewLimiter(rate.Limit(p.cfg.ItemsPerSecond), 1)
	report := &PrewarmReport{Total: len(items)}
	caller := types.DefaultCallerContext()
	start := time.Now()

	for _, item := range items {
		if err := limiter.Wait(ctx); err != nil {
			return report, err
		}

		var (
			res *AudioResult
			err error
		)
		if p.cfg.Force {
			res, err = p.orchestrator.Refresh(ctx, item.Text, item.Language, item.VoiceStyle, caller)
		} else {
			res, err = p.orchestrator.GetAudio(ctx, item.Text, item.Language, item.VoiceStyle, caller)
		}
		if err != nil {
			report.Failed++
			p.logger.Warn("prewarm item failed",
				zap.String("text", item.Text),
				zap.String("language", string(item.Language)),
				zap.Error(err))
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			continue
		}

		if res.Cached {
			report.AlreadyHot++
		} else {
			report.Generated++
		}

		if item.ContentType != "" {
			if err := p.cache.Annotate(ctx, res.CacheKey, item.ContentType, item.ContentID); err != nil {
				p.logger.Warn("prewarm bookkeeping failed",
					zap.String("key", res.CacheKey),
					zap.Error(err))
			}
		}
	}

	p.logger.Info("prewarm batch complete",
		zap.Int("total", report.Total),
		zap.Int("generated", report.Generated),
		zap.Int("already_hot", report.AlreadyHot),
		zap.Int("failed", report.Failed),
		zap.Duration("elapsed", time.Since(start)))
	return report, nil
}
