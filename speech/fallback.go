package speech

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/speechflow/retry"
	"github.com/BaSui01/speechflow/types"
)

// FallbackConfig 配置回退链的单提供商重试预算。
type FallbackConfig struct {
	// MaxRetries 单个提供商的最大重试次数（初次调用之外）。
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
	// Policy 一般瞬时错误的退避策略。
	Policy *retry.Policy `json:"-" yaml:"-"`
	// BusyPolicy 限流/排队错误的退避策略（初始延迟更长）。
	BusyPolicy *retry.Policy `json:"-" yaml:"-"`
}

// DefaultFallbackConfig 返回默认回退配置：单提供商 3 次重试。
func DefaultFallbackConfig() FallbackConfig {
	return FallbackConfig{
		MaxRetries: 3,
		Policy:     retry.DefaultPolicy(),
		BusyPolicy: retry.BusyPolicy(),
	}
}

// TTSChain 按优先顺序尝试多个 TTS 提供商。
// 单提供商内重试瞬时错误，预算耗尽后推进到下一个；首次成功即返回。
type TTSChain struct {
	providers []TTSProvider
	cfg       FallbackConfig
	logger    *zap.Logger
}

// NewTTSChain 创建 TTS 回退链，providers 按优先级降序排列。
func NewTTSChain(cfg FallbackConfig, logger *zap.Logger, providers ...TTSProvider) *TTSChain {
	if logger == nil {
		logger = zap.NewNop()
	}
	normalizeFallbackConfig(&cfg)
	return &TTSChain{
		providers: providers,
		cfg:       cfg,
		logger:    logger.With(zap.String("component", "tts_chain")),
	}
}

// Providers 返回链内提供商名称（按优先顺序），供日志与测试使用。
func (c *TTSChain) Providers() []string {
	names := make([]string, 0, len(c.providers))
	for _, p := range c.providers {
		names = append(names, p.Name())
	}
	return names
}

// Synthesize 在链上执行合成。
func (c *TTSChain) Synthesize(ctx context.Context, req *TTSRequest) (*TTSResponse, error) {
	var failures []string

	for _, p := range c.providers {
		// 凭证缺失的提供商直接跳过，不消耗重试预算
		if !p.Available() {
			c.logger.Debug("provider unavailable, skipping",
				zap.String("provider", p.Name()))
			failures = append(failures, p.Name()+": unavailable (not configured)")
			continue
		}

		var resp *TTSResponse
		err := c.runWithRetry(ctx, p.Name(), func() error {
			var innerErr error
			resp, innerErr = p.Synthesize(ctx, req)
			return innerErr
		})
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			// 调用方取消/超时不再推进回退链
			return nil, err
		}

		failures = append(failures, fmt.Sprintf("%s: %v", p.Name(), err))
		c.logger.Warn("provider exhausted retries, advancing",
			zap.String("provider", p.Name()),
			zap.Error(err))
	}

	return nil, exhaustedError(failures)
}

// STTChain 按优先顺序尝试多个 STT 提供商，语义与 TTSChain 一致。
type STTChain struct {
	providers []STTProvider
	cfg       FallbackConfig
	logger    *zap.Logger
}

// NewSTTChain 创建 STT 回退链，providers 按优先级降序排列。
func NewSTTChain(cfg FallbackConfig, logger *zap.Logger, providers ...STTProvider) *STTChain {
	if logger == nil {
		logger = zap.NewNop()
	}
	normalizeFallbackConfig(&cfg)
	return &STTChain{
		providers: providers,
		cfg:       cfg,
		logger:    logger.With(zap.String("component", "stt_chain")),
	}
}

// Providers 返回链内提供商名称（按优先顺序）。
func (c *STTChain) Providers() []string {
	names := make([]string, 0, len(c.providers))
	for _, p := range c.providers {
		names = append(names, p.Name())
	}
	return names
}

// Transcribe 在链上执行转写。
func (c *STTChain) Transcribe(ctx context.Context, req *STTRequest) (*STTResponse, error) {
	var failures []string

	for _, p := range c.providers {
		if !p.Available() {
			c.logger.Debug("provider unavailable, skipping",
				zap.String("provider", p.Name()))
			failures = append(failures, p.Name()+": unavailable (not configured)")
			continue
		}

		var resp *STTResponse
		err := (&chainRunner{cfg: c.cfg, logger: c.logger}).run(ctx, p.Name(), func() error {
			var innerErr error
			resp, innerErr = p.Transcribe(ctx, req)
			return innerErr
		})
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}

		failures = append(failures, fmt.Sprintf("%s: %v", p.Name(), err))
		c.logger.Warn("provider exhausted retries, advancing",
			zap.String("provider", p.Name()),
			zap.Error(err))
	}

	return nil, exhaustedError(failures)
}

func (c *TTSChain) runWithRetry(ctx context.Context, name string, fn func() error) error {
	return (&chainRunner{cfg: c.cfg, logger: c.logger}).run(ctx, name, fn)
}

// chainRunner 执行单提供商的重试循环。
// 退避策略按最近一次错误的类别选择：限流/排队走 BusyPolicy。
type chainRunner struct {
	cfg    FallbackConfig
	logger *zap.Logger
}

func (r *chainRunner) run(ctx context.Context, provider string, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			policy := r.cfg.Policy
			if IsBusy(lastErr) {
				policy = r.cfg.BusyPolicy
			}
			delay := policy.Delay(attempt)

			r.logger.Debug("retrying provider call",
				zap.String("provider", provider),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Bool("busy", IsBusy(lastErr)))

			select {
			case <-ctx.Done():
				return fmt.Errorf("retry cancelled: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return lastErr
		}

		// 非瞬时错误（凭证、4xx 校验）立即放弃该提供商
		if !types.IsRetryable(lastErr) {
			return lastErr
		}
	}

	return fmt.Errorf("retries exhausted after %d attempts: %w", r.cfg.MaxRetries+1, lastErr)
}

// exhaustedError 聚合各提供商的失败摘要。
func exhaustedError(failures []string) *types.Error {
	msg := "all providers exhausted"
	cause := fmt.Errorf("%s", strings.Join(failures, "; "))
	return types.NewError(types.ErrAllProvidersExhausted, msg).
		WithRetryable(false).WithCause(cause)
}

func normalizeFallbackConfig(cfg *FallbackConfig) {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Policy == nil {
		cfg.Policy = retry.DefaultPolicy()
	}
	if cfg.BusyPolicy == nil {
		cfg.BusyPolicy = retry.BusyPolicy()
	}
}
