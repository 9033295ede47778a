// Package storage 提供音频字节的对象存储抽象（key → bytes）。
//
// 支持的后端：
//   - Memory：开发与测试（默认）
//   - File：单机生产部署
//   - Redis：分布式部署（无 TTL 的持久键空间）
//
// 原始音频字节只存在于对象存储中，元数据记录里永远只存引用。
package storage

import (
	"context"
	"errors"
)

// 通用错误
var (
	ErrNotFound    = errors.New("object not found")
	ErrStoreClosed = errors.New("store is closed")
)

// StoreType 表示对象存储后端类型。
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeFile   StoreType = "file"
	StoreTypeRedis  StoreType = "redis"
)

// ObjectStore 是窄接口：测试可以用内存实现直接替换。
type ObjectStore interface {
	// Put 写入对象。同 key 重复写入以后写为准（幂等覆盖）。
	Put(ctx context.Context, key string, data []byte) error

	// Get 读取对象，不存在时返回 ErrNotFound。
	Get(ctx context.Context, key string) ([]byte, error)

	// Exists 报告对象是否存在。
	Exists(ctx context.Context, key string) (bool, error)

	// Delete 删除对象。仅供显式配置的保留策略（LRU 裁剪）调用；
	// 删除不存在的对象不算错误。
	Delete(ctx context.Context, key string) error

	// Close 释放底层资源。
	Close() error
}
