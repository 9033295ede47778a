package game

import (
	"time"

	"github.com/BaSui01/speechflow/types"
)

// Challenge 是一条发音挑战语料（由课程导入任务写入，运行期只读）。
type Challenge struct {
	ID           string         `gorm:"primaryKey;size:64" json:"id"`
	Word         string         `gorm:"size:128;not null" json:"word"`
	Romanization string         `gorm:"size:128" json:"romanization"`
	Meaning      string         `gorm:"size:256" json:"meaning"`
	Language     types.Language `gorm:"size:8;index" json:"language"`
	Category     string         `gorm:"size:64;index" json:"category"`
	Difficulty   int            `gorm:"index" json:"difficulty"` // 1..5

	// ReferenceAudioRef 预生成的标准发音音频；可为空，首次请求时惰性生成。
	ReferenceAudioRef string `gorm:"size:128" json:"reference_audio_ref,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 固定表名。
func (Challenge) TableName() string { return "pronunciation_challenges" }

// Attempt 是一次发音尝试的不可变记录。
// 只在转写完成之后创建（空转写 + 置信度 0 也是完成，照常落库），创建后不再更新。
type Attempt struct {
	ID          string         `gorm:"primaryKey;size:36" json:"id"` // uuid
	ChallengeID string         `gorm:"size:64;index:idx_attempt_challenge" json:"challenge_id"`
	ChildID     string         `gorm:"size:64;index:idx_attempt_child" json:"child_id"`
	Language    types.Language `gorm:"size:8" json:"language"`

	Transcript       string  `gorm:"size:512" json:"transcript"`
	STTProvider      string  `gorm:"size:32" json:"stt_provider"`
	STTConfidence    float64 `json:"stt_confidence"`
	NonAuthoritative bool    `json:"non_authoritative"`

	// 分项与最终得分（0..100），连同评分版本一起固化，便于历史回放
	TextMatchScore  float64 `json:"text_match_score"`
	ConfidenceScore float64 `json:"confidence_score"`
	EnergyScore     float64 `json:"energy_score"`
	DurationScore   float64 `json:"duration_score"`
	FinalScore      float64 `json:"final_score"`
	Stars           int     `json:"stars"`
	ScoringVersion  int     `json:"scoring_version"`

	AudioRef  string    `gorm:"size:512" json:"audio_ref"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName 固定表名。
func (Attempt) TableName() string { return "pronunciation_attempts" }

// Progress 是 (child, challenge) 维度的可变聚合，只由进度协作方更新。
type Progress struct {
	ChildID     string `gorm:"primaryKey;size:64" json:"child_id"`
	ChallengeID string `gorm:"primaryKey;size:64" json:"challenge_id"`

	Attempts  int     `json:"attempts"`
	BestScore float64 `json:"best_score"`
	BestStars int     `json:"best_stars"`
	// Mastered 三星即视为掌握，不随后续低分回退
	Mastered bool `json:"mastered"`

	LastAttemptAt time.Time `json:"last_attempt_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName 固定表名。
func (Progress) TableName() string { return "challenge_progress" }
