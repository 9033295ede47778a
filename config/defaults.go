// =============================================================================
// 📦 SpeechFlow 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import (
	"time"

	"github.com/BaSui01/speechflow/cache"
	"github.com/BaSui01/speechflow/pipeline"
	"github.com/BaSui01/speechflow/speech"
	"github.com/BaSui01/speechflow/storage"
)

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Production: false,
		Server:     DefaultServerConfig(),
		Redis:      DefaultRedisConfig(),
		Database:   DefaultDatabaseConfig(),
		Storage:    storage.DefaultConfig(),
		Cache:      cache.DefaultConfig(),
		TTS:        DefaultTTSConfig(),
		STT:        DefaultSTTConfig(),
		Fallback:   DefaultFallbackConfig(),
		Prewarm:    pipeline.DefaultPrewarmConfig(),
		Auth:       AuthConfig{},
		Log:        DefaultLogConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    60 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    50,
		RateLimitBurst:  100,
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Enabled:  true,
		Addr:     "localhost:6379",
		DB:       0,
		PoolSize: 10,
	}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "sqlite",
		Name:            "speechflow.db",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DefaultTTSConfig 返回默认合成提供商配置（API Key 留空，由环境变量注入）
func DefaultTTSConfig() TTSConfig {
	return TTSConfig{
		Google:     speech.DefaultGoogleTTSConfig(),
		ElevenLabs: speech.DefaultElevenLabsConfig(),
		OpenAI:     speech.DefaultOpenAITTSConfig(),
	}
}

// DefaultSTTConfig 返回默认转写提供商配置
func DefaultSTTConfig() STTConfig {
	return STTConfig{
		OpenAI:           speech.DefaultOpenAISTTConfig(),
		Deepgram:         speech.DefaultDeepgramConfig(),
		AllowMock:        false,
		LocalMediaPrefix: "media/",
		DownloadTimeout:  30 * time.Second,
	}
}

// DefaultFallbackConfig 返回默认回退链配置
func DefaultFallbackConfig() FallbackConfig {
	return FallbackConfig{
		MaxRetries:       3,
		InitialDelay:     500 * time.Millisecond,
		BusyInitialDelay: 2 * time.Second,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}
