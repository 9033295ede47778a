package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/BaSui01/speechflow/cache"
	"github.com/BaSui01/speechflow/game"
	"github.com/BaSui01/speechflow/pipeline"
	"github.com/BaSui01/speechflow/retry"
	"github.com/BaSui01/speechflow/speech"
	"github.com/BaSui01/speechflow/storage"
	"github.com/BaSui01/speechflow/types"
)

// =============================================================================
// 🧪 测试辅助：端到端 Handler 测试所需的最小管线
// =============================================================================

// fakeSynth 可编程的 TTS 提供商测试替身。
type fakeSynth struct {
	name        string
	audio       []byte
	err         error
	substituted bool
	calls       int
}

func (f *fakeSynth) Name() string    { return f.name }
func (f *fakeSynth) Available() bool { return true }

func (f *fakeSynth) Synthesize(ctx context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error) {
	f.calls++
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

// fakeRecognizer 可编程的 STT 提供商测试替身。
type fakeRecognizer struct {
	name string
	text string
	err  error
}

func (f *fakeRecognizer) Name() string    { return f.name }
func (f *fakeRecognizer) Available() bool { return true }

func (f *fakeRecognizer) Transcribe(ctx context.Context, req *speech.STTRequest) (*speech.STTResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &speech.STTResponse{
		Provider:   f.name,
		Text:       f.text,
		Confidence: 0.92,
		Language:   req.Language,
	}, nil
}

// stubTranscriber 绕过 STT 链，直接返回预置转写结果。
type stubTranscriber struct {
	resp *speech.STTResponse
	err  error
}

func (s *stubTranscriber) Transcribe(ctx context.Context, audioRef string, lang types.Language) (*speech.STTResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

func fastChainConfig() speech.FallbackConfig {
	cfg := speech.DefaultFallbackConfig()
	cfg.Policy = &retry.Policy{MaxRetries: 1, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}
	cfg.BusyPolicy = &retry.Policy{MaxRetries: 1, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}
	return cfg
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	return db
}

// newTestTTS 组装一条经 miniredis 与内存对象存储的真实 TTS 管线。
func newTestTTS(t *testing.T, providers ...speech.TTSProvider) (*pipeline.TTSOrchestrator, *cache.AudioCache) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	c, err := cache.NewAudioCache(client, storage.NewMemoryStore(), newTestDB(t), cache.DefaultConfig(), zap.NewNop())
	require.NoError(t, err)

	chain := speech.NewTTSChain(fastChainConfig(), zap.NewNop(), providers...)
	return pipeline.NewTTSOrchestrator(c, pipeline.TTSChains{CostFirst: chain}, nil, zap.NewNop()), c
}

// newTestSTT 组装内存对象存储之上的真实 STT 管线。
func newTestSTT(t *testing.T, providers ...speech.STTProvider) (*pipeline.STTOrchestrator, storage.ObjectStore) {
	t.Helper()
	objects := storage.NewMemoryStore()
	chain := speech.NewSTTChain(fastChainConfig(), zap.NewNop(), providers...)
	o, err := pipeline.NewSTTOrchestrator(chain, objects, pipeline.DefaultSTTConfig(), nil, zap.NewNop())
	require.NoError(t, err)
	return o, objects
}

// newTestGame 构建已导入样例语料的 Store 与 AttemptFlow。
func newTestGame(t *testing.T, tr game.Transcriber) (*game.AttemptFlow, *game.Store) {
	t.Helper()
	db := newTestDB(t)
	store, err := game.NewStore(db, zap.NewNop())
	require.NoError(t, err)
	_, err = store.SeedChallenges(context.Background(), sampleChallenges())
	require.NoError(t, err)
	flow := game.NewAttemptFlow(store, store, tr, game.NewStoreSink(db, zap.NewNop()), nil, zap.NewNop())
	return flow, store
}

func sampleChallenges() []*game.Challenge {
	return []*game.Challenge{
		{ID: "ch-namaste", Word: "नमस्ते", Romanization: "namaste", Meaning: "hello", Language: types.LangHindi, Category: "greetings", Difficulty: 1},
		{ID: "ch-paani", Word: "पानी", Romanization: "paani", Meaning: "water", Language: types.LangHindi, Category: "food", Difficulty: 2},
		{ID: "ch-vanakkam", Word: "வணக்கம்", Romanization: "vanakkam", Meaning: "hello", Language: types.LangTamil, Category: "greetings", Difficulty: 1},
	}
}
