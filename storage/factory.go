package storage

import "fmt"

// Config 配置对象存储后端。
type Config struct {
	Type StoreType `yaml:"type" json:"type" env:"TYPE"`

	// File 后端的基础目录
	BaseDir string `yaml:"base_dir" json:"base_dir" env:"BASE_DIR"`

	// Redis 后端配置
	Redis RedisConfig `yaml:"redis" json:"redis" env:"REDIS"`
}

// DefaultConfig 返回默认存储配置（内存后端）。
func DefaultConfig() Config {
	return Config{Type: StoreTypeMemory}
}

// NewObjectStore 按配置创建对象存储。
func NewObjectStore(cfg Config) (ObjectStore, error) {
	switch cfg.Type {
	case StoreTypeMemory, "":
		return NewMemoryStore(), nil
	case StoreTypeFile:
		return NewFileStore(cfg.BaseDir)
	case StoreTypeRedis:
		return NewRedisStore(cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown object store type: %s", cfg.Type)
	}
}
