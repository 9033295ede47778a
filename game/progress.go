package game

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProgressSink 接收已完成的尝试。管线本身绝不改写游戏化状态，
// 进度、奖励、连击等全部由 sink 的实现方负责。
type ProgressSink interface {
	AttemptCompleted(ctx context.Context, attempt *Attempt) error
}

// NoopSink 丢弃所有进度事件，供测试与纯语音场景使用。
type NoopSink struct{}

// AttemptCompleted 实现 ProgressSink。
func (NoopSink) AttemptCompleted(ctx context.Context, attempt *Attempt) error { return nil }

// StoreSink 把尝试聚合进 challenge_progress 表。
type StoreSink struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewStoreSink 创建基于数据库的进度 sink。
func NewStoreSink(db *gorm.DB, logger *zap.Logger) *StoreSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreSink{db: db, logger: logger.With(zap.String("component", "progress_sink"))}
}

// AttemptCompleted 更新 (child, challenge) 聚合：次数 +1，最好成绩只升不降，
// 三星一旦达成即视为掌握。读改写放在一个事务里，行锁保证并发尝试不丢计数。
func (s *StoreSink) AttemptCompleted(ctx context.Context, attempt *Attempt) error {
	now := time.Now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p Progress
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&p, "child_id = ? AND challenge_id = ?", attempt.ChildID, attempt.ChallengeID).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			p = Progress{ChildID: attempt.ChildID, ChallengeID: attempt.ChallengeID}
		case err != nil:
			return err
		}

		p.Attempts++
		if attempt.FinalScore > p.BestScore {
			p.BestScore = attempt.FinalScore
		}
		if attempt.Stars > p.BestStars {
			p.BestStars = attempt.Stars
		}
		if attempt.Stars >= 3 {
			p.Mastered = true
		}
		p.LastAttemptAt = now
		p.UpdatedAt = now

		return tx.Save(&p).Error
	})
}
