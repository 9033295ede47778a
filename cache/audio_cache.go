package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/BaSui01/speechflow/storage"
	"github.com/BaSui01/speechflow/types"
)

// ErrCacheMiss 表示两级缓存均未命中。
var ErrCacheMiss = errors.New("cache miss")

// 保留策略
const (
	RetentionPermanent = "permanent"
	RetentionLRU       = "lru"
)

// Config 配置两级音频缓存。
type Config struct {
	// EnableFast 是否启用快速层（Redis）。
	EnableFast bool `yaml:"enable_fast" json:"enable_fast" env:"ENABLE_FAST"`
	// FastTTL 快速层条目的有界 TTL。
	FastTTL time.Duration `yaml:"fast_ttl" json:"fast_ttl" env:"FAST_TTL"`

	// Retention 持久层保留策略：permanent（默认，显式的永久保留）
	// 或 lru（超出 LRUMaxEntries 时裁剪最冷条目）。
	Retention string `yaml:"retention" json:"retention" env:"RETENTION"`
	// LRUMaxEntries lru 策略下持久层的条目上限。
	LRUMaxEntries int `yaml:"lru_max_entries" json:"lru_max_entries" env:"LRU_MAX_ENTRIES"`
}

// DefaultConfig 返回默认缓存配置。
// 永久保留是一个显式决定：课程语料有限且生成昂贵，存储远比重新合成便宜。
func DefaultConfig() Config {
	return Config{
		EnableFast:    true,
		FastTTL:       6 * time.Hour,
		Retention:     RetentionPermanent,
		LRUMaxEntries: 50000,
	}
}

// AudioCache 是两级音频缓存。
// CacheEntry 元数据由本类型独占写入（generate-then-store 单写路径）。
type AudioCache struct {
	fast    *redis.Client // 可为 nil（快速层禁用或故障降级）
	objects storage.ObjectStore
	db      *gorm.DB
	cfg     Config
	logger  *zap.Logger
}

// NewAudioCache 创建音频缓存并迁移元数据表。
func NewAudioCache(fast *redis.Client, objects storage.ObjectStore, db *gorm.DB, cfg Config, logger *zap.Logger) (*AudioCache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.FastTTL <= 0 {
		cfg.FastTTL = 6 * time.Hour
	}
	if cfg.Retention == "" {
		cfg.Retention = RetentionPermanent
	}

	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, err
	}

	return &AudioCache{
		fast:    fast,
		objects: objects,
		db:      db,
		cfg:     cfg,
		logger:  logger.With(zap.String("component", "audio_cache")),
	}, nil
}

// StoreParams 是一次 generate-then-store 写入的全部输入。
type StoreParams struct {
	Key            string
	Text           string
	Language       types.Language
	VoiceStyle     types.VoiceStyle
	Provider       string
	Audio          []byte
	Format         string
	GenerationTime time.Duration

	// LanguageSubstituted 标记本次生成发生了语言替换
	LanguageSubstituted bool

	// 预热簿记（可选）
	ContentType string
	ContentID   string
}

// Lookup 查询缓存：先快速层，再持久层；持久层命中时异步回填快速层。
// AccessCount 的自增不阻塞读路径。两级皆空返回 ErrCacheMiss。
func (c *AudioCache) Lookup(ctx context.Context, key string) (*Entry, []byte, error) {
	// 1. 快速层
	if c.cfg.EnableFast && c.fast != nil {
		entry, audio, err := c.fastGet(ctx, key)
		if err == nil {
			c.logger.Debug("fast tier hit", zap.String("key", key))
			go c.touch(key)
			return entry, audio, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			// 快速层故障只降级，不失败
			c.logger.Warn("fast tier unavailable, degrading to durable tier", zap.Error(err))
		}
	}

	// 2. 持久层
	var entry Entry
	if err := c.db.WithContext(ctx).First(&entry, "key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrCacheMiss
		}
		c.logger.Warn("durable tier metadata read failed, treating as miss", zap.Error(err))
		return nil, nil, ErrCacheMiss
	}

	audio, err := c.objects.Get(ctx, entry.AudioRef)
	if err != nil {
		// 元数据在、对象缺失/读失败：按未命中处理，让调用方重新生成并回写
		c.logger.Warn("durable tier object read failed, treating as miss",
			zap.String("key", key),
			zap.String("audio_ref", entry.AudioRef),
			zap.Error(err))
		return nil, nil, ErrCacheMiss
	}

	c.logger.Debug("durable tier hit, promoting", zap.String("key", key))
	go c.promote(key, &entry, audio)
	go c.touch(key)

	return &entry, audio, nil
}

// Store 写入持久层（对象 + 元数据）并回填快速层。键碰撞时幂等：
// 已有元数据行保持不变（仅回填空的预热簿记字段）。
func (c *AudioCache) Store(ctx context.Context, p StoreParams) (*Entry, error) {
	format := p.Format
	if format == "" {
		format = "mp3"
	}

	entry := &Entry{
		Key:              p.Key,
		TextContent:      p.Text,
		Language:         p.Language,
		VoiceStyle:       p.VoiceStyle,
		Provider:         p.Provider,
		AudioRef:         audioRef(p.Key, format),
		SizeBytes:        int64(len(p.Audio)),
		DurationMs:       EstimateDurationMs(len(p.Audio)),
		GenerationTimeMs: p.GenerationTime.Milliseconds(),
		EstimatedCost:    EstimateCost(p.Provider, len(p.Text)),

		LanguageSubstituted: p.LanguageSubstituted,

		ContentType: p.ContentType,
		ContentID:   p.ContentID,
		CreatedAt:   time.Now(),
	}

	// 对象先落地：元数据存在而对象缺失的窗口比反过来更难自愈
	if err := c.objects.Put(ctx, entry.AudioRef, p.Audio); err != nil {
		return nil, types.NewError(types.ErrStorageFailure, "durable tier object write failed").
			WithCause(err)
	}

	if err := c.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(entry).Error; err != nil {
		return nil, types.NewError(types.ErrStorageFailure, "durable tier metadata write failed").
			WithCause(err)
	}

	// 预热簿记回填：仅填充尚为空的字段，不触碰其他列
	if p.ContentType != "" {
		c.db.WithContext(ctx).Model(&Entry{}).
			Where("key = ? AND (content_type = '' OR content_type IS NULL)", p.Key).
			Updates(map[string]any{"content_type": p.ContentType, "content_id": p.ContentID})
	}

	// 快速层回填失败只记日志
	if c.cfg.EnableFast && c.fast != nil {
		if err := c.fastSet(ctx, p.Key, entry, p.Audio); err != nil {
			c.logger.Warn("fast tier write failed", zap.Error(err))
		}
	}

	if c.cfg.Retention == RetentionLRU {
		c.prune(ctx)
	}

	return entry, nil
}

// LookupByContent 按课程内容归属读取已预热的音频，绝不触发生成。
// 同一内容存在多条（不同音色变体）时返回最近写入的一条；
// 未预热或对象缺失均返回 ErrCacheMiss，由调用方映射为 404。
func (c *AudioCache) LookupByContent(ctx context.Context, contentType, contentID string, lang types.Language) (*Entry, []byte, error) {
	var entry Entry
	err := c.db.WithContext(ctx).
		Where("content_type = ? AND content_id = ? AND language = ?", contentType, contentID, lang).
		Order("created_at DESC").
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrCacheMiss
		}
		c.logger.Warn("content lookup failed, treating as miss",
			zap.String("content_type", contentType),
			zap.String("content_id", contentID),
			zap.Error(err))
		return nil, nil, ErrCacheMiss
	}

	audio, err := c.objects.Get(ctx, entry.AudioRef)
	if err != nil {
		c.logger.Warn("content lookup: object read failed, treating as miss",
			zap.String("key", entry.Key),
			zap.String("audio_ref", entry.AudioRef),
			zap.Error(err))
		return nil, nil, ErrCacheMiss
	}

	go c.touch(entry.Key)
	return &entry, audio, nil
}

// Annotate 为已存在的条目补记课程内容归属，仅填充尚为空的字段。
func (c *AudioCache) Annotate(ctx context.Context, key, contentType, contentID string) error {
	if contentType == "" {
		return nil
	}
	return c.db.WithContext(ctx).Model(&Entry{}).
		Where("key = ? AND (content_type = '' OR content_type IS NULL)", key).
		Updates(map[string]any{"content_type": contentType, "content_id": contentID}).Error
}

// Warm 批量预生成写入，供离线任务使用（不在热路径上）。
func (c *AudioCache) Warm(ctx context.Context, items []StoreParams) (int, error) {
	stored := 0
	for _, item := range items {
		if _, err := c.Store(ctx, item); err != nil {
			return stored, err
		}
		stored++
	}
	return stored, nil
}

// ============================================================
// 快速层（Redis hash：meta 为 JSON，data 为原始字节）
// ============================================================

func fastKey(key string) string { return "fast:" + key }

func audioRef(key, format string) string {
	return "audio/" + strings.TrimPrefix(key, keyPrefix) + "." + format
}

func (c *AudioCache) fastGet(ctx context.Context, key string) (*Entry, []byte, error) {
	fields, err := c.fast.HGetAll(ctx, fastKey(key)).Result()
	if err != nil {
		return nil, nil, err
	}
	meta, ok := fields["meta"]
	if !ok {
		return nil, nil, ErrCacheMiss
	}
	data, ok := fields["data"]
	if !ok {
		return nil, nil, ErrCacheMiss
	}

	var entry Entry
	if err := json.Unmarshal([]byte(meta), &entry); err != nil {
		return nil, nil, err
	}
	return &entry, []byte(data), nil
}

func (c *AudioCache) fastSet(ctx context.Context, key string, entry *Entry, audio []byte) error {
	meta, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	pipe := c.fast.TxPipeline()
	pipe.HSet(ctx, fastKey(key), "meta", meta, "data", audio)
	pipe.Expire(ctx, fastKey(key), c.cfg.FastTTL)
	_, err = pipe.Exec(ctx)
	return err
}

// promote 将持久层命中异步回填到快速层。
func (c *AudioCache) promote(key string, entry *Entry, audio []byte) {
	if !c.cfg.EnableFast || c.fast == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.fastSet(ctx, key, entry, audio); err != nil {
		c.logger.Debug("fast tier promote failed", zap.Error(err))
	}
}

// touch 异步自增访问计数（单调不减，不阻塞读）。
func (c *AudioCache) touch(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.db.WithContext(ctx).Model(&Entry{}).
		Where("key = ?", key).
		UpdateColumn("access_count", gorm.Expr("access_count + 1")).Error; err != nil {
		c.logger.Debug("access count update failed", zap.Error(err))
	}
}

// prune 在 lru 策略下裁剪最冷条目（访问最少且最旧者先删）。
func (c *AudioCache) prune(ctx context.Context) {
	var count int64
	if err := c.db.WithContext(ctx).Model(&Entry{}).Count(&count).Error; err != nil {
		return
	}
	excess := count - int64(c.cfg.LRUMaxEntries)
	if excess <= 0 {
		return
	}

	var victims []Entry
	if err := c.db.WithContext(ctx).
		Order("access_count ASC, created_at ASC").
		Limit(int(excess)).
		Find(&victims).Error; err != nil {
		return
	}

	for _, v := range victims {
		if err := c.objects.Delete(ctx, v.AudioRef); err != nil {
			c.logger.Warn("prune: object delete failed", zap.String("key", v.Key), zap.Error(err))
			continue
		}
		c.db.WithContext(ctx).Delete(&Entry{}, "key = ?", v.Key)
		if c.fast != nil {
			c.fast.Del(ctx, fastKey(v.Key))
		}
	}
	c.logger.Info("pruned cold cache entries", zap.Int("count", len(victims)))
}
