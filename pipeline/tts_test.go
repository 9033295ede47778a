package pipeline

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/BaSui01/speechflow/cache"
	"github.com/BaSui01/speechflow/retry"
	"github.com/BaSui01/speechflow/speech"
	"github.com/BaSui01/speechflow/storage"
	"github.com/BaSui01/speechflow/types"
)

// fakeSynth 可编程的 TTS 提供商测试替身。
type fakeSynth struct {
	name        string
	audio       []byte
	err         error
	delay       time.Duration
	substituted bool
	calls       atomic.Int64

	mu      sync.Mutex
	lastReq *speech.TTSRequest
}

func (f *fakeSynth) Name() string    { return f.name }
func (f *fakeSynth) Available() bool { return true }

func (f *fakeSynth) Synthesize(ctx context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.lastReq = req
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &speech.TTSResponse{
		Provider:            f.name,
		AudioData:           f.audio,
		Format:              "mp3",
		LanguageSubstituted: f.substituted,
	}, nil
}

func (f *fakeSynth) lastRequest() *speech.TTSRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastReq
}

func fastChainConfig() speech.FallbackConfig {
	cfg := speech.DefaultFallbackConfig()
	cfg.Policy = &retry.Policy{MaxRetries: 1, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}
	cfg.BusyPolicy = &retry.Policy{MaxRetries: 1, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}
	return cfg
}

func setupOrchestrator(t *testing.T, providers ...speech.TTSProvider) (*TTSOrchestrator, *cache.AudioCache, *gorm.DB) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	c, err := cache.NewAudioCache(client, storage.NewMemoryStore(), db, cache.DefaultConfig(), zap.NewNop())
	require.NoError(t, err)

	chain := speech.NewTTSChain(fastChainConfig(), zap.NewNop(), providers...)
	o := NewTTSOrchestrator(c, TTSChains{CostFirst: chain}, nil, zap.NewNop())
	return o, c, db
}

func TestGetAudio_MissGeneratesThenHits(t *testing.T) {
	p := &fakeSynth{name: "google-tts", audio: []byte("hindi-mp3")}
	o, _, _ := setupOrchestrator(t, p)
	ctx := context.Background()
	caller := types.DefaultCallerContext()

	first, err := o.GetAudio(ctx, "नमस्ते", types.LangHindi, types.VoiceStyleDidi, caller)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, "google-tts", first.Provider)
	assert.Equal(t, []byte("hindi-mp3"), first.Audio)

	second, err := o.GetAudio(ctx, "नमस्ते", types.LangHindi, types.VoiceStyleDidi, caller)
	require.NoError(t, err)
	assert.True(t, second.Cached, "第二次请求应命中缓存")
	assert.Equal(t, first.Audio, second.Audio, "缓存返回的字节必须与首次合成一致")
	assert.Equal(t, int64(1), p.calls.Load())
}

func TestGetAudio_OverlongTextRejectedBeforeProviders(t *testing.T) {
	p := &fakeSynth{name: "google-tts", audio: []byte("x")}
	o, _, _ := setupOrchestrator(t, p)

	long := strings.Repeat("न", types.MaxSynthesisTextLen+1)
	_, err := o.GetAudio(context.Background(), long, types.LangHindi, types.VoiceStyleDidi, types.DefaultCallerContext())
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidRequest, types.GetErrorCode(err))
	assert.Equal(t, int64(0), p.calls.Load(), "校验失败不得触达任何提供商")
}

func TestGetAudio_EmptyAndUnknownLanguageRejected(t *testing.T) {
	p := &fakeSynth{name: "google-tts", audio: []byte("x")}
	o, _, _ := setupOrchestrator(t, p)
	ctx := context.Background()
	caller := types.DefaultCallerContext()

	_, err := o.GetAudio(ctx, "   ", types.LangHindi, types.VoiceStyleDidi, caller)
	assert.Equal(t, types.ErrInvalidRequest, types.GetErrorCode(err))

	_, err = o.GetAudio(ctx, "hello", types.Language("xx"), types.VoiceStyleDidi, caller)
	assert.Equal(t, types.ErrInvalidRequest, types.GetErrorCode(err))

	assert.Equal(t, int64(0), p.calls.Load())
}

func TestGetAudio_TierSelectsChain(t *testing.T) {
	cheap := &fakeSynth{name: "google-tts", audio: []byte("cheap")}
	premium := &fakeSynth{name: "elevenlabs", audio: []byte("rich")}
	o, _, _ := setupOrchestrator(t, cheap)
	o.chains.QualityFirst = speech.NewTTSChain(fastChainConfig(), zap.NewNop(), premium)
	ctx := context.Background()

	free, err := o.GetAudio(ctx, "one", types.LangEnglish, types.VoiceStyleDidi, types.CallerContext{Tier: types.TierFree})
	require.NoError(t, err)
	assert.Equal(t, "google-tts", free.Provider)

	paid, err := o.GetAudio(ctx, "two", types.LangEnglish, types.VoiceStyleDidi, types.CallerContext{Tier: types.TierPremium})
	require.NoError(t, err)
	assert.Equal(t, "elevenlabs", paid.Provider)

	family, err := o.GetAudio(ctx, "three", types.LangEnglish, types.VoiceStyleDidi, types.CallerContext{Tier: types.TierFamily})
	require.NoError(t, err)
	assert.Equal(t, "google-tts", family.Provider, "family 档位必须走成本优先链")
}

func TestGetAudio_ResolvesVoiceForStyle(t *testing.T) {
	p := &fakeSynth{name: "google-tts", audio: []byte("x")}
	o, _, _ := setupOrchestrator(t, p)
	ctx := context.Background()
	caller := types.DefaultCallerContext()

	// 每种角色风格都必须携带查表解析出的音色参数到适配器
	wantGoogleVoice := map[types.VoiceStyle]string{
		types.VoiceStyleDidi:     "hi-IN-Wavenet-D",
		types.VoiceStyleCheerful: "hi-IN-Wavenet-A",
		types.VoiceStyleStory:    "hi-IN-Wavenet-C",
		types.VoiceStyleDadaji:   "hi-IN-Wavenet-B",
	}
	for style, want := range wantGoogleVoice {
		_, err := o.GetAudio(ctx, "voice-"+string(style), types.LangHindi, style, caller)
		require.NoError(t, err)

		req := p.lastRequest()
		require.NotNil(t, req.Voice, "合成请求必须携带已解析的音色参数（style=%s）", style)
		assert.Equal(t, want, req.Voice.GoogleVoice, "style=%s", style)
		assert.Greater(t, req.Voice.Speed, 0.0, "style=%s", style)
	}
}

func TestGetAudio_LanguageSubstitutionSurvivesCache(t *testing.T) {
	p := &fakeSynth{name: "google-tts", audio: []byte("sub"), substituted: true}
	o, _, _ := setupOrchestrator(t, p)
	ctx := context.Background()
	caller := types.DefaultCallerContext()

	first, err := o.GetAudio(ctx, "substituted", types.LangMarathi, types.VoiceStyleDidi, caller)
	require.NoError(t, err)
	assert.True(t, first.LanguageSubstituted, "语言替换信号必须穿过编排器")

	second, err := o.GetAudio(ctx, "substituted", types.LangMarathi, types.VoiceStyleDidi, caller)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.True(t, second.LanguageSubstituted, "缓存命中时语言替换信号不得丢失")
}

func TestGetAudio_AllProvidersFail(t *testing.T) {
	p := &fakeSynth{name: "google-tts", err: types.NewError(types.ErrProviderTransient, "boom").WithRetryable(true)}
	o, _, _ := setupOrchestrator(t, p)

	_, err := o.GetAudio(context.Background(), "fail", types.LangHindi, types.VoiceStyleDidi, types.DefaultCallerContext())
	require.Error(t, err)
	assert.Equal(t, types.ErrTTSUnavailable, types.GetErrorCode(err))
}

func TestGetAudio_StoreFailureStillServesAudio(t *testing.T) {
	p := &fakeSynth{name: "google-tts", audio: []byte("fresh")}

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	objects := storage.NewMemoryStore()
	c, err := cache.NewAudioCache(client, objects, db, cache.DefaultConfig(), zap.NewNop())
	require.NoError(t, err)

	// 关闭对象存储，持久层写入必然失败
	require.NoError(t, objects.Close())

	chain := speech.NewTTSChain(fastChainConfig(), zap.NewNop(), p)
	o := NewTTSOrchestrator(c, TTSChains{CostFirst: chain}, nil, zap.NewNop())

	res, err := o.GetAudio(context.Background(), "best effort", types.LangHindi, types.VoiceStyleDidi, types.DefaultCallerContext())
	require.NoError(t, err, "持久层故障不得影响本次响应")
	assert.Equal(t, []byte("fresh"), res.Audio)
	assert.False(t, res.Cached)
}

func TestRefresh_BypassesCacheHit(t *testing.T) {
	p := &fakeSynth{name: "google-tts", audio: []byte("v1")}
	o, _, _ := setupOrchestrator(t, p)
	ctx := context.Background()
	caller := types.DefaultCallerContext()

	_, err := o.GetAudio(ctx, "refresh me", types.LangHindi, types.VoiceStyleDidi, caller)
	require.NoError(t, err)

	res, err := o.Refresh(ctx, "refresh me", types.LangHindi, types.VoiceStyleDidi, caller)
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Equal(t, int64(2), p.calls.Load(), "Refresh 必须重新触达提供商")
}

func TestGetAudio_SingleFlightPerKey(t *testing.T) {
	p := &fakeSynth{name: "google-tts", audio: []byte("shared"), delay: 300 * time.Millisecond}
	o, _, _ := setupOrchestrator(t, p)
	caller := types.DefaultCallerContext()

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			res, err := o.GetAudio(context.Background(), "concurrent", types.LangHindi, types.VoiceStyleDidi, caller)
			assert.NoError(t, err)
			assert.Equal(t, []byte("shared"), res.Audio)
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int64(1), p.calls.Load(), "同一键的并发请求只允许一次在途生成")
}
