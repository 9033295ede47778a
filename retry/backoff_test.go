package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func fastPolicy() *Policy {
	return &Policy{
		MaxRetries:   3,
		InitialDelay: 5 * time.Millisecond,
		MaxDelay:     50 * time.Millisecond,
		Multiplier:   2.0,
		Jitter:       false,
	}
}

func TestBackoffRetryer_Success(t *testing.T) {
	retryer := NewBackoffRetryer(fastPolicy(), zap.NewNop())

	callCount := 0
	err := retryer.Do(context.Background(), func() error {
		callCount++
		return nil // 第一次就成功
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, callCount, "应该只调用一次")
}

func TestBackoffRetryer_RetryAndSuccess(t *testing.T) {
	retryer := NewBackoffRetryer(fastPolicy(), zap.NewNop())

	callCount := 0
	err := retryer.Do(context.Background(), func() error {
		callCount++
		if callCount < 3 {
			return errors.New("temporary error")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, callCount)
}

func TestBackoffRetryer_Exhausted(t *testing.T) {
	retryer := NewBackoffRetryer(fastPolicy(), zap.NewNop())

	testErr := errors.New("always fails")
	callCount := 0
	err := retryer.Do(context.Background(), func() error {
		callCount++
		return testErr
	})

	assert.Error(t, err)
	assert.ErrorIs(t, err, testErr)
	assert.Equal(t, 4, callCount, "初次 + 3 次重试")
}

func TestBackoffRetryer_PermanentErrorShortCircuits(t *testing.T) {
	retryer := NewBackoffRetryer(fastPolicy(), zap.NewNop())

	callCount := 0
	err := retryer.Do(context.Background(), func() error {
		callCount++
		return Permanent(errors.New("bad request"))
	})

	assert.Error(t, err)
	assert.Equal(t, 1, callCount, "永久错误不应重试")
	assert.True(t, IsPermanent(err))
}

func TestBackoffRetryer_ContextCancelled(t *testing.T) {
	policy := fastPolicy()
	policy.InitialDelay = 200 * time.Millisecond
	retryer := NewBackoffRetryer(policy, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())

	callCount := 0
	done := make(chan error, 1)
	go func() {
		done <- retryer.Do(ctx, func() error {
			callCount++
			return errors.New("fail")
		})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	err := <-done
	assert.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, callCount, "取消后不应再执行")
}

func TestDelay_Exponential(t *testing.T) {
	p := &Policy{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		Jitter:       false,
	}

	assert.Equal(t, 100*time.Millisecond, p.Delay(1))
	assert.Equal(t, 200*time.Millisecond, p.Delay(2))
	assert.Equal(t, 400*time.Millisecond, p.Delay(3))
}

func TestDelay_CappedAtMax(t *testing.T) {
	p := &Policy{
		InitialDelay: 1 * time.Second,
		MaxDelay:     3 * time.Second,
		Multiplier:   2.0,
		Jitter:       false,
	}

	assert.Equal(t, 3*time.Second, p.Delay(5))
}

func TestBusyPolicy_LongerInitialDelay(t *testing.T) {
	assert.Greater(t, BusyPolicy().InitialDelay, DefaultPolicy().InitialDelay,
		"限流退避应比一般错误更保守")
}

func TestPermanent_NilPassthrough(t *testing.T) {
	assert.Nil(t, Permanent(nil))
	assert.False(t, IsPermanent(nil))
}
