package speech

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/speechflow/retry"
	"github.com/BaSui01/speechflow/types"
)

// fakeTTS 是可编程的 TTS 测试替身。
type fakeTTS struct {
	name      string
	available bool
	err       error
	calls     int
}

func (f *fakeTTS) Name() string    { return f.name }
func (f *fakeTTS) Available() bool { return f.available }
func (f *fakeTTS) Synthesize(ctx context.Context, req *TTSRequest) (*TTSResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &TTSResponse{
		Provider:  f.name,
		AudioData: []byte("audio-from-" + f.name),
		Format:    "mp3",
		CreatedAt: time.Now(),
	}, nil
}

type fakeSTT struct {
	name      string
	available bool
	err       error
	text      string
	calls     int
}

func (f *fakeSTT) Name() string    { return f.name }
func (f *fakeSTT) Available() bool { return f.available }
func (f *fakeSTT) Transcribe(ctx context.Context, req *STTRequest) (*STTResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &STTResponse{Provider: f.name, Text: f.text, Confidence: 0.9, CreatedAt: time.Now()}, nil
}

func fastFallbackConfig() FallbackConfig {
	fast := &retry.Policy{
		MaxRetries:   3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
	return FallbackConfig{MaxRetries: 3, Policy: fast, BusyPolicy: fast}
}

func transientErr(provider string) error {
	return types.NewError(types.ErrProviderTransient, "boom").
		WithProvider(provider).WithRetryable(true)
}

func TestTTSChain_FirstSuccess(t *testing.T) {
	a := &fakeTTS{name: "A", available: true}
	b := &fakeTTS{name: "B", available: true}
	chain := NewTTSChain(fastFallbackConfig(), zap.NewNop(), a, b)

	resp, err := chain.Synthesize(context.Background(), &TTSRequest{Text: "नमस्ते"})
	require.NoError(t, err)
	assert.Equal(t, "A", resp.Provider)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 0, b.calls, "首个成功后不应再调用后续提供商")
}

func TestTTSChain_AdvancesToSecond(t *testing.T) {
	a := &fakeTTS{name: "A", available: true, err: transientErr("A")}
	b := &fakeTTS{name: "B", available: true}
	chain := NewTTSChain(fastFallbackConfig(), zap.NewNop(), a, b)

	resp, err := chain.Synthesize(context.Background(), &TTSRequest{Text: "namaste"})
	require.NoError(t, err)
	assert.Equal(t, "B", resp.Provider, "结果必须带成功提供商的标签")
	assert.Equal(t, 4, a.calls, "A 应耗尽初次 + 3 次重试")
	assert.Equal(t, []byte("audio-from-B"), resp.AudioData)
}

func TestTTSChain_AllExhausted(t *testing.T) {
	a := &fakeTTS{name: "A", available: true, err: transientErr("A")}
	b := &fakeTTS{name: "B", available: true, err: transientErr("B")}
	chain := NewTTSChain(fastFallbackConfig(), zap.NewNop(), a, b)

	_, err := chain.Synthesize(context.Background(), &TTSRequest{Text: "x"})
	require.Error(t, err)
	assert.Equal(t, types.ErrAllProvidersExhausted, types.GetErrorCode(err))
	assert.Equal(t, 4, a.calls, "每个适配器必须先耗尽重试预算")
	assert.Equal(t, 4, b.calls)
	// 聚合错误包含逐提供商摘要
	assert.Contains(t, err.(*types.Error).Cause.Error(), "A:")
	assert.Contains(t, err.(*types.Error).Cause.Error(), "B:")
}

func TestTTSChain_UnavailableSkippedWithoutRetryCost(t *testing.T) {
	a := &fakeTTS{name: "A", available: false}
	b := &fakeTTS{name: "B", available: true}
	chain := NewTTSChain(fastFallbackConfig(), zap.NewNop(), a, b)

	resp, err := chain.Synthesize(context.Background(), &TTSRequest{Text: "x"})
	require.NoError(t, err)
	assert.Equal(t, "B", resp.Provider)
	assert.Equal(t, 0, a.calls, "未配置的提供商不应被调用")
}

func TestTTSChain_NonRetryableAdvancesImmediately(t *testing.T) {
	a := &fakeTTS{name: "A", available: true,
		err: types.NewError(types.ErrInvalidRequest, "rejected").WithRetryable(false)}
	b := &fakeTTS{name: "B", available: true}
	chain := NewTTSChain(fastFallbackConfig(), zap.NewNop(), a, b)

	resp, err := chain.Synthesize(context.Background(), &TTSRequest{Text: "x"})
	require.NoError(t, err)
	assert.Equal(t, "B", resp.Provider)
	assert.Equal(t, 1, a.calls, "永久错误不应消耗重试预算")
}

func TestTTSChain_ContextCancelStopsChain(t *testing.T) {
	a := &fakeTTS{name: "A", available: true, err: transientErr("A")}
	b := &fakeTTS{name: "B", available: true}
	cfg := fastFallbackConfig()
	cfg.Policy.InitialDelay = 100 * time.Millisecond
	chain := NewTTSChain(cfg, zap.NewNop(), a, b)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := chain.Synthesize(ctx, &TTSRequest{Text: "x"})
	require.Error(t, err)
	assert.Equal(t, 0, b.calls, "取消后不应推进到下一个提供商")
}

func TestSTTChain_FallbackOrder(t *testing.T) {
	a := &fakeSTT{name: "whisper", available: true, err: transientErr("whisper")}
	b := &fakeSTT{name: "deepgram", available: true, text: "नमस्ते"}
	chain := NewSTTChain(fastFallbackConfig(), zap.NewNop(), a, b)

	resp, err := chain.Transcribe(context.Background(), &STTRequest{Audio: []byte("xx")})
	require.NoError(t, err)
	assert.Equal(t, "deepgram", resp.Provider)
	assert.Equal(t, "नमस्ते", resp.Text)
}

func TestSTTChain_AllExhausted(t *testing.T) {
	a := &fakeSTT{name: "whisper", available: true, err: transientErr("whisper")}
	chain := NewSTTChain(fastFallbackConfig(), zap.NewNop(), a)

	_, err := chain.Transcribe(context.Background(), &STTRequest{Audio: []byte("xx")})
	require.Error(t, err)
	assert.Equal(t, types.ErrAllProvidersExhausted, types.GetErrorCode(err))
}

func TestChain_ProvidersOrder(t *testing.T) {
	chain := NewTTSChain(fastFallbackConfig(), zap.NewNop(),
		&fakeTTS{name: "google-tts"}, &fakeTTS{name: "elevenlabs"}, &fakeTTS{name: "openai-tts"})
	assert.Equal(t, []string{"google-tts", "elevenlabs", "openai-tts"}, chain.Providers())
}
