package game

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/speechflow/internal/metrics"
	"github.com/BaSui01/speechflow/scoring"
	"github.com/BaSui01/speechflow/speech"
	"github.com/BaSui01/speechflow/types"
)

// Transcriber 是 AttemptFlow 对转写编排器的最小依赖。
type Transcriber interface {
	Transcribe(ctx context.Context, audioRef string, lang types.Language) (*speech.STTResponse, error)
}

// SubmitInput 是一次尝试提交的全部输入。
// 能量与时长分由采集端（客户端录音器）计算后随请求提交。
type SubmitInput struct {
	ChallengeID string
	ChildID     string
	AudioRef    string

	AudioEnergyScore   float64 // 0..100
	DurationMatchScore float64 // 0..100
}

// SubmitResult 汇总一次提交的产物。
type SubmitResult struct {
	Attempt *Attempt       `json:"attempt"`
	Score   scoring.Result `json:"score"`
}

// AttemptFlow 串联 转写 → 评分 → 落库 → 进度通知。
type AttemptFlow struct {
	challenges  ChallengeStore
	attempts    AttemptStore
	transcriber Transcriber
	sink        ProgressSink
	metrics     *metrics.Collector
	logger      *zap.Logger
}

// NewAttemptFlow 创建提交流程。sink 为 nil 时使用 NoopSink。
func NewAttemptFlow(challenges ChallengeStore, attempts AttemptStore, transcriber Transcriber, sink ProgressSink, collector *metrics.Collector, logger *zap.Logger) *AttemptFlow {
	if sink == nil {
		sink = NoopSink{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttemptFlow{
		challenges:  challenges,
		attempts:    attempts,
		transcriber: transcriber,
		sink:        sink,
		metrics:     collector,
		logger:      logger.With(zap.String("component", "attempt_flow")),
	}
}

// SubmitAttempt 处理一次发音尝试。
// 空转写（孩子没说话 / 识别不出）是完成的转写结果，照常评分并落库；
// 只有转写本身失败（所有提供商耗尽）才返回错误且不产生记录。
func (f *AttemptFlow) SubmitAttempt(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
	challenge, err := f.challenges.GetChallenge(ctx, in.ChallengeID)
	if err != nil {
		return nil, err
	}

	stt, err := f.transcriber.Transcribe(ctx, in.AudioRef, challenge.Language)
	if err != nil {
		return nil, err
	}

	result, err := scoring.Score(scoring.Input{
		Transcript:         stt.Text,
		Reference:          challenge.Word,
		STTConfidence:      stt.Confidence,
		AudioEnergyScore:   in.AudioEnergyScore,
		DurationMatchScore: in.DurationMatchScore,
	})
	if err != nil {
		return nil, err
	}

	attempt := &Attempt{
		ID:          uuid.NewString(),
		ChallengeID: challenge.ID,
		ChildID:     in.ChildID,
		Language:    challenge.Language,

		Transcript:       stt.Text,
		STTProvider:      stt.Provider,
		STTConfidence:    stt.Confidence,
		NonAuthoritative: stt.NonAuthoritative,

		TextMatchScore:  result.Components.TextMatch,
		ConfidenceScore: result.Components.Confidence,
		EnergyScore:     result.Components.Energy,
		DurationScore:   result.Components.Duration,
		FinalScore:      result.Final,
		Stars:           result.Stars,
		ScoringVersion:  result.Version,

		AudioRef:  in.AudioRef,
		CreatedAt: time.Now(),
	}

	if err := f.attempts.CreateAttempt(ctx, attempt); err != nil {
		return nil, err
	}

	if f.metrics != nil {
		f.metrics.RecordScore(result.Final, result.Stars)
	}

	// 进度通知失败不撤销已落库的尝试，只记日志
	if err := f.sink.AttemptCompleted(ctx, attempt); err != nil {
		f.logger.Warn("progress sink failed",
			zap.String("attempt_id", attempt.ID),
			zap.String("child_id", attempt.ChildID),
			zap.Error(err))
	}

	f.logger.Info("attempt scored",
		zap.String("attempt_id", attempt.ID),
		zap.String("challenge_id", challenge.ID),
		zap.Float64("final", result.Final),
		zap.Int("stars", result.Stars))

	return &SubmitResult{Attempt: attempt, Score: result}, nil
}
