// =============================================================================
// 📦 SpeechFlow 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("SPEECHFLOW").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/BaSui01/speechflow/cache"
	"github.com/BaSui01/speechflow/pipeline"
	"github.com/BaSui01/speechflow/speech"
	"github.com/BaSui01/speechflow/storage"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 SpeechFlow 的完整配置结构
type Config struct {
	// Production 生产模式开关：开启后 mock 转写器在装配期即被拒绝
	Production bool `yaml:"production" env:"PRODUCTION"`

	// Server 服务器配置
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Redis 快速缓存层配置
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// Database 数据库配置（缓存元数据 + 游戏记录）
	Database DatabaseConfig `yaml:"database" env:"DATABASE"`

	// Storage 音频对象存储配置
	Storage storage.Config `yaml:"storage" env:"STORAGE"`

	// Cache 两级音频缓存配置
	Cache cache.Config `yaml:"cache" env:"CACHE"`

	// TTS 合成提供商配置
	TTS TTSConfig `yaml:"tts" env:"TTS"`

	// STT 转写提供商配置
	STT STTConfig `yaml:"stt" env:"STT"`

	// Fallback 回退链配置
	Fallback FallbackConfig `yaml:"fallback" env:"FALLBACK"`

	// Prewarm 课程预热配置
	Prewarm pipeline.PrewarmConfig `yaml:"prewarm" env:"PREWARM"`

	// Auth 调用方档位鉴权配置
	Auth AuthConfig `yaml:"auth" env:"AUTH"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	// HTTP 端口
	HTTPPort int `yaml:"http_port" env:"HTTP_PORT"`
	// Metrics 端口
	MetricsPort int `yaml:"metrics_port" env:"METRICS_PORT"`
	// 读取超时
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// 写入超时
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// 优雅关闭超时
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// 单 IP 限流（每秒请求数，0 表示关闭限流）
	RateLimitRPS int `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	// 限流突发额度
	RateLimitBurst int `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	// 允许的跨域来源（空表示拒绝跨域）
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// 是否启用（禁用时快速层直接降级到持久层）
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 地址
	Addr string `yaml:"addr" env:"ADDR"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库编号
	DB int `yaml:"db" env:"DB"`
	// 连接池大小
	PoolSize int `yaml:"pool_size" env:"POOL_SIZE"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// 驱动类型: postgres, sqlite
	Driver string `yaml:"driver" env:"DRIVER"`
	// 主机
	Host string `yaml:"host" env:"HOST"`
	// 端口
	Port int `yaml:"port" env:"PORT"`
	// 用户名
	User string `yaml:"user" env:"USER"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库名（sqlite 时为文件路径，:memory: 表示内存库）
	Name string `yaml:"name" env:"NAME"`
	// SSL 模式
	SSLMode string `yaml:"ssl_mode" env:"SSL_MODE"`
	// 最大连接数
	MaxOpenConns int `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	// 最大空闲连接
	MaxIdleConns int `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	// 连接最大生命周期
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
}

// TTSConfig 合成提供商配置。未配置 API Key 的提供商视为不可用并被链路跳过。
type TTSConfig struct {
	Google     speech.GoogleTTSConfig  `yaml:"google" env:"GOOGLE"`
	ElevenLabs speech.ElevenLabsConfig `yaml:"elevenlabs" env:"ELEVENLABS"`
	OpenAI     speech.OpenAITTSConfig  `yaml:"openai" env:"OPENAI"`
}

// STTConfig 转写提供商配置
type STTConfig struct {
	OpenAI   speech.OpenAISTTConfig `yaml:"openai" env:"OPENAI"`
	Deepgram speech.DeepgramConfig  `yaml:"deepgram" env:"DEEPGRAM"`

	// AllowMock 允许 mock 转写器进入链路（仅非生产环境生效）
	AllowMock bool `yaml:"allow_mock" env:"ALLOW_MOCK"`

	// LocalMediaPrefix 本地媒体对象的引用前缀
	LocalMediaPrefix string `yaml:"local_media_prefix" env:"LOCAL_MEDIA_PREFIX"`
	// DownloadTimeout 远程音频下载超时
	DownloadTimeout time.Duration `yaml:"download_timeout" env:"DOWNLOAD_TIMEOUT"`
}

// FallbackConfig 回退链配置
type FallbackConfig struct {
	// 单提供商最大重试次数
	MaxRetries int `yaml:"max_retries" env:"MAX_RETRIES"`
	// 一般瞬时错误的初始退避
	InitialDelay time.Duration `yaml:"initial_delay" env:"INITIAL_DELAY"`
	// 限流/排队错误的初始退避（更长）
	BusyInitialDelay time.Duration `yaml:"busy_initial_delay" env:"BUSY_INITIAL_DELAY"`
}

// AuthConfig 调用方档位鉴权配置
type AuthConfig struct {
	// JWT 签名密钥（HMAC）。为空时所有调用方按匿名免费档位处理
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`
	// AdminAPIKey 配置管理 API 的静态密钥。为空时配置 API 不做认证（仅限开发环境）
	AdminAPIKey string `yaml:"admin_api_key" env:"ADMIN_API_KEY"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "SPEECHFLOW",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量
func (l *Loader) Load() (*Config, error) {
	// 1. 从默认值开始
	cfg := DefaultConfig()

	// 2. 如果指定了配置文件，从文件加载
	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// 3. 从环境变量覆盖
	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	// 4. 运行验证器
	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在，使用默认值
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv 从环境变量加载配置
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		// 获取 env tag；嵌入的外部结构体（storage/cache/speech）按字段名推导
		envTag := fieldType.Tag.Get("env")
		if envTag == "" {
			envTag = strings.ToUpper(fieldType.Name)
		}
		if envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		// 如果是结构体，递归处理
		if field.Kind() == reflect.Struct && field.Type() != reflect.TypeOf(time.Duration(0)) {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		// 获取环境变量值
		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		// 设置字段值
		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// 特殊处理 time.Duration
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(u)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 支持逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// MustLoad 加载配置，失败时 panic
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// LoadFromEnv 仅从环境变量加载配置
func LoadFromEnv() (*Config, error) {
	return NewLoader().Load()
}

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}

	if c.Cache.Retention != "" &&
		c.Cache.Retention != cache.RetentionPermanent &&
		c.Cache.Retention != cache.RetentionLRU {
		errs = append(errs, "cache retention must be 'permanent' or 'lru'")
	}
	if c.Cache.Retention == cache.RetentionLRU && c.Cache.LRUMaxEntries <= 0 {
		errs = append(errs, "lru retention requires a positive lru_max_entries")
	}

	if c.Fallback.MaxRetries < 0 {
		errs = append(errs, "fallback max_retries must not be negative")
	}

	if c.Server.RateLimitRPS < 0 {
		errs = append(errs, "server rate_limit_rps must not be negative")
	}

	// 生产模式的安全闸门：mock 转写器绝不允许出现在生产链路
	if c.Production && c.STT.AllowMock {
		errs = append(errs, "stt.allow_mock must be false in production")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// DSN 返回数据库连接字符串
func (d *DatabaseConfig) DSN() string {
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
		)
	case "sqlite":
		return d.Name
	default:
		return ""
	}
}
