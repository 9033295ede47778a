package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore 是 Redis 对象存储，用于分布式部署。
// 键不设 TTL：这是持久层，永不过期（保留策略由缓存层决定）。
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// RedisConfig 配置 Redis 对象存储。
type RedisConfig struct {
	Addr      string `yaml:"addr" json:"addr" env:"ADDR"`
	Password  string `yaml:"password" json:"password" env:"PASSWORD"`
	DB        int    `yaml:"db" json:"db" env:"DB"`
	PoolSize  int    `yaml:"pool_size" json:"pool_size" env:"POOL_SIZE"`
	KeyPrefix string `yaml:"key_prefix" json:"key_prefix" env:"KEY_PREFIX"`
}

// NewRedisStore 创建 Redis 对象存储并验证连接。
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "speechflow:"
	}

	return &RedisStore{client: client, keyPrefix: prefix + "object:"}, nil
}

// NewRedisStoreWithClient 用已有客户端创建存储（组合根/测试注入用）。
func NewRedisStoreWithClient(client *redis.Client, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "speechflow:"
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix + "object:"}
}

func (s *RedisStore) key(key string) string {
	return s.keyPrefix + key
}

// Put 写入对象（无 TTL）。
func (s *RedisStore) Put(ctx context.Context, key string, data []byte) error {
	return s.client.Set(ctx, s.key(key), data, 0).Err()
}

// Get 读取对象。
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// Exists 报告对象是否存在。
func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Delete 删除对象。
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}

// Close 关闭底层客户端。
func (s *RedisStore) Close() error {
	return s.client.Close()
}
