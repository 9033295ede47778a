// Package retry 提供指数退避重试器，供提供商回退链按单提供商粒度使用。
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// Policy 定义重试策略配置
type Policy struct {
	MaxRetries   int           // 最大重试次数（0 表示不重试）
	InitialDelay time.Duration // 初始延迟时间
	MaxDelay     time.Duration // 最大延迟时间
	Multiplier   float64       // 延迟倍增因子（指数退避）
	Jitter       bool          // 是否添加随机抖动（防止雪崩）

	// OnRetry 重试回调（可选）
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultPolicy 返回默认重试策略。
// 适用于一般的瞬时网络错误。
func DefaultPolicy() *Policy {
	return &Policy{
		MaxRetries:   3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// BusyPolicy 返回针对限流/排队（429、busy）错误的重试策略。
// 初始延迟更长：上游处于过载状态时，快速重试只会加剧拥塞。
func BusyPolicy() *Policy {
	return &Policy{
		MaxRetries:   3,
		InitialDelay: 2 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// Retryer 重试器接口
type Retryer interface {
	// Do 执行函数，失败时根据策略重试
	Do(ctx context.Context, fn func() error) error
}

// backoffRetryer 基于指数退避的重试器实现
type backoffRetryer struct {
	policy *Policy
	logger *zap.Logger
}

// NewBackoffRetryer 创建指数退避重试器
func NewBackoffRetryer(policy *Policy, logger *zap.Logger) Retryer {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	// 参数校验
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	if policy.InitialDelay <= 0 {
		policy.InitialDelay = 500 * time.Millisecond
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = 10 * time.Second
	}
	if policy.Multiplier < 1.0 {
		policy.Multiplier = 2.0
	}

	return &backoffRetryer{policy: policy, logger: logger}
}

// Do 核心重试逻辑：指数退避 + 随机抖动 + 永久错误短路
func (r *backoffRetryer) Do(ctx context.Context, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt <= r.policy.MaxRetries; attempt++ {
		// 第一次执行不延迟
		if attempt > 0 {
			delay := r.policy.Delay(attempt)

			r.logger.Debug("retrying after transient failure",
				zap.Int("attempt", attempt),
				zap.Int("max_retries", r.policy.MaxRetries),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)

			if r.policy.OnRetry != nil {
				r.policy.OnRetry(attempt, lastErr, delay)
			}

			// 等待延迟，同时监听 context 取消
			select {
			case <-ctx.Done():
				return fmt.Errorf("retry cancelled: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		lastErr = fn()
		if lastErr == nil {
			if attempt > 0 {
				r.logger.Info("retry succeeded", zap.Int("attempt", attempt))
			}
			return nil
		}

		// 永久错误不消耗剩余重试预算
		if IsPermanent(lastErr) {
			r.logger.Debug("error not retryable", zap.Error(lastErr))
			return lastErr
		}

		if attempt >= r.policy.MaxRetries {
			break
		}
	}

	return fmt.Errorf("failed after %d retries: %w", r.policy.MaxRetries, lastErr)
}

// Delay 计算第 attempt 次重试前的延迟：指数退避 + 可选 ±25% 抖动。
// 导出给回退链使用（按错误类别在两套策略之间切换）。
func (p *Policy) Delay(attempt int) time.Duration {
	delay := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1))

	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}

	// 抖动目的：防止多个客户端同时重试导致的雪崩效应
	if p.Jitter {
		jitter := delay * 0.25
		delay = delay + (rand.Float64()*2-1)*jitter
	}

	if delay < float64(p.InitialDelay) {
		delay = float64(p.InitialDelay)
	}

	return time.Duration(delay)
}

// PermanentError 标记不应重试的错误（如 4xx 校验失败、凭证缺失）。
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Permanent 将错误包装为永久错误，重试器遇到后立即返回。
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent 检查错误是否被 Permanent 包装。
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
