package game

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/speechflow/types"
)

// ChallengeStore 提供挑战语料的读取。
type ChallengeStore interface {
	// GetChallenge 按 ID 取挑战，不存在时返回 NOT_FOUND。
	GetChallenge(ctx context.Context, id string) (*Challenge, error)

	// ListChallenges 按语言与分类过滤，category 为空表示全部。
	ListChallenges(ctx context.Context, lang types.Language, category string) ([]*Challenge, error)
}

// AttemptStore 提供尝试记录的写入与查询。记录写入后不可变。
type AttemptStore interface {
	// CreateAttempt 落库一条不可变的尝试记录。
	CreateAttempt(ctx context.Context, attempt *Attempt) error

	// ListAttempts 按孩子与挑战查询历史尝试，时间倒序，limit<=0 表示不限。
	ListAttempts(ctx context.Context, childID, challengeID string, limit int) ([]*Attempt, error)
}

// Store 是 gorm 实现的游戏记录存储。
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewStore 创建存储并迁移表结构。
func NewStore(db *gorm.DB, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := db.AutoMigrate(&Challenge{}, &Attempt{}, &Progress{}); err != nil {
		return nil, err
	}
	return &Store{
		db:     db,
		logger: logger.With(zap.String("component", "game_store")),
	}, nil
}

// GetChallenge 按 ID 取挑战。
func (s *Store) GetChallenge(ctx context.Context, id string) (*Challenge, error) {
	var ch Challenge
	err := s.db.WithContext(ctx).First(&ch, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.NewError(types.ErrNotFound, "challenge not found").
			WithHTTPStatus(http.StatusNotFound)
	}
	if err != nil {
		return nil, types.NewError(types.ErrStorageFailure, "challenge read failed").WithCause(err)
	}
	return &ch, nil
}

// ListChallenges 按语言与分类过滤。
func (s *Store) ListChallenges(ctx context.Context, lang types.Language, category string) ([]*Challenge, error) {
	q := s.db.WithContext(ctx).Where("language = ?", lang)
	if category != "" {
		q = q.Where("category = ?", category)
	}
	var out []*Challenge
	if err := q.Order("difficulty ASC, id ASC").Find(&out).Error; err != nil {
		return nil, types.NewError(types.ErrStorageFailure, "challenge list failed").WithCause(err)
	}
	return out, nil
}

// SeedChallenges 批量导入语料，已存在的 ID 原样保留（导入任务可重复执行）。
func (s *Store) SeedChallenges(ctx context.Context, challenges []*Challenge) (int, error) {
	created := 0
	for _, ch := range challenges {
		res := s.db.WithContext(ctx).
			Where("id = ?", ch.ID).
			FirstOrCreate(ch)
		if res.Error != nil {
			return created, types.NewError(types.ErrStorageFailure, "challenge seed failed").WithCause(res.Error)
		}
		if res.RowsAffected > 0 {
			created++
		}
	}
	return created, nil
}

// CreateAttempt 落库一条尝试记录。主键冲突视为编程错误直接上抛。
func (s *Store) CreateAttempt(ctx context.Context, attempt *Attempt) error {
	if err := s.db.WithContext(ctx).Create(attempt).Error; err != nil {
		return types.NewError(types.ErrStorageFailure, "attempt write failed").WithCause(err)
	}
	return nil
}

// ListAttempts 查询历史尝试。
func (s *Store) ListAttempts(ctx context.Context, childID, challengeID string, limit int) ([]*Attempt, error) {
	q := s.db.WithContext(ctx).Where("child_id = ?", childID)
	if challengeID != "" {
		q = q.Where("challenge_id = ?", challengeID)
	}
	q = q.Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []*Attempt
	if err := q.Find(&out).Error; err != nil {
		return nil, types.NewError(types.ErrStorageFailure, "attempt list failed").WithCause(err)
	}
	return out, nil
}

// GetProgress 取进度聚合，不存在时返回零值聚合（不报错）。
func (s *Store) GetProgress(ctx context.Context, childID, challengeID string) (*Progress, error) {
	var p Progress
	err := s.db.WithContext(ctx).
		First(&p, "child_id = ? AND challenge_id = ?", childID, challengeID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &Progress{ChildID: childID, ChallengeID: challengeID}, nil
	}
	if err != nil {
		return nil, types.NewError(types.ErrStorageFailure, "progress read failed").WithCause(err)
	}
	return &p, nil
}
