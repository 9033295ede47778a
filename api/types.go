package api

import (
	"time"

	"github.com/BaSui01/speechflow/types"
)

// =============================================================================
// 语音合成类型
// =============================================================================

// SynthesizeRequest 代表语音合成请求。
// @Description 语音合成请求结构
type SynthesizeRequest struct {
	// 要合成的文本
	Text string `json:"text" example:"नमस्ते" binding:"required"`
	// 语言代码（hi、en、ta、te、bn、mr、gu、kn、ml、pa）
	Language string `json:"language" example:"hi" binding:"required"`
	// 声音风格（didi、cheerful、story、dadaji）
	VoiceStyle string `json:"voice_style,omitempty" example:"didi"`
	// 是否绕过缓存强制重新合成
	Refresh bool `json:"refresh,omitempty" example:"false"`
}

// SynthesizeMetadata 描述一次合成产物（随音频响应头返回，也可单独查询）。
// @Description 合成产物元数据
type SynthesizeMetadata struct {
	// 缓存键
	CacheKey string `json:"cache_key" example:"a3f9c2..."`
	// 产出音频的提供商
	Provider string `json:"provider" example:"elevenlabs"`
	// 是否命中缓存
	Cached bool `json:"cached" example:"true"`
	// 音频格式
	Format string `json:"format" example:"mp3"`
}

// =============================================================================
// 语音转写类型
// =============================================================================

// TranscribeRequest 代表语音转写请求。
// @Description 语音转写请求结构
type TranscribeRequest struct {
	// 音频引用（media/ 前缀的本地对象或 http(s) URL）
	AudioRef string `json:"audio_ref" example:"media/attempt-123.wav" binding:"required"`
	// 语言代码
	Language string `json:"language" example:"hi" binding:"required"`
}

// TranscribeResponse 表示语音转写响应。
// @Description 语音转写响应结构
type TranscribeResponse struct {
	// 转写文本（可为空：没有识别出语音）
	Text string `json:"text" example:"नमस्ते"`
	// 产出转写的提供商
	Provider string `json:"provider" example:"openai-whisper"`
	// 置信度（0-1）
	Confidence float64 `json:"confidence" example:"0.92"`
	// 结果是否来自非权威（mock）转写器
	NonAuthoritative bool `json:"non_authoritative,omitempty" example:"false"`
}

// =============================================================================
// 发音挑战类型
// =============================================================================

// ChallengeResponse 代表一条发音挑战。
// @Description 发音挑战结构
type ChallengeResponse struct {
	// 挑战 ID
	ID string `json:"id" example:"hi-food-001"`
	// 目标词
	Word string `json:"word" example:"पानी"`
	// 罗马音
	Romanization string `json:"romanization,omitempty" example:"paani"`
	// 释义
	Meaning string `json:"meaning,omitempty" example:"water"`
	// 语言代码
	Language string `json:"language" example:"hi"`
	// 类目
	Category string `json:"category,omitempty" example:"food"`
	// 难度（1-5）
	Difficulty int `json:"difficulty" example:"2"`
	// 是否已有标准发音音频
	HasReferenceAudio bool `json:"has_reference_audio" example:"true"`
}

// ChallengeListResponse 表示挑战列表。
// @Description 挑战列表响应
type ChallengeListResponse struct {
	// 挑战清单
	Challenges []ChallengeResponse `json:"challenges"`
	// 总数
	Total int `json:"total" example:"20"`
}

// =============================================================================
// 发音尝试类型
// =============================================================================

// AttemptRequest 代表一次发音尝试提交。
// @Description 发音尝试提交结构
type AttemptRequest struct {
	// 挑战 ID
	ChallengeID string `json:"challenge_id" example:"hi-food-001" binding:"required"`
	// 孩子 ID
	ChildID string `json:"child_id" example:"child-42" binding:"required"`
	// 录音引用
	AudioRef string `json:"audio_ref" example:"media/attempt-123.wav" binding:"required"`
	// 采集端计算的能量分（0-100）
	AudioEnergyScore float64 `json:"audio_energy_score,omitempty" example:"80"`
	// 采集端计算的时长匹配分（0-100）
	DurationMatchScore float64 `json:"duration_match_score,omitempty" example:"75"`
}

// AttemptResponse 表示一次发音尝试的评分结果。
// @Description 发音尝试评分响应
type AttemptResponse struct {
	// 尝试 ID
	AttemptID string `json:"attempt_id" example:"6f1c..."`
	// 转写文本
	Transcript string `json:"transcript" example:"पानी"`
	// 最终得分（0-100）
	FinalScore float64 `json:"final_score" example:"87.5"`
	// 星级（0-3）
	Stars int `json:"stars" example:"3"`
	// 评分版本
	ScoringVersion int `json:"scoring_version" example:"2"`
	// 分项得分
	Components ScoreComponents `json:"components"`
	// 结果是否来自非权威转写器
	NonAuthoritative bool `json:"non_authoritative,omitempty" example:"false"`
	// 创建时间戳
	CreatedAt time.Time `json:"created_at"`
}

// ScoreComponents 表示可审计的分项得分（均为 0-100）。
// @Description 分项得分结构
type ScoreComponents struct {
	// 文本匹配分
	TextMatch float64 `json:"text_match" example:"95"`
	// 置信度分
	Confidence float64 `json:"confidence" example:"92"`
	// 能量分
	Energy float64 `json:"energy" example:"80"`
	// 时长匹配分
	Duration float64 `json:"duration" example:"75"`
}

// AttemptListResponse 表示尝试历史列表。
// @Description 尝试历史响应
type AttemptListResponse struct {
	// 尝试清单（按时间倒序）
	Attempts []AttemptResponse `json:"attempts"`
	// 总数
	Total int `json:"total" example:"5"`
}

// ProgressResponse 表示孩子在某个挑战上的进度聚合。
// @Description 挑战进度响应
type ProgressResponse struct {
	// 孩子 ID
	ChildID string `json:"child_id" example:"child-42"`
	// 挑战 ID
	ChallengeID string `json:"challenge_id" example:"hi-food-001"`
	// 尝试次数
	Attempts int `json:"attempts" example:"4"`
	// 历史最高分
	BestScore float64 `json:"best_score" example:"87.5"`
	// 历史最高星级
	BestStars int `json:"best_stars" example:"3"`
	// 是否已掌握（三星即掌握，不回退）
	Mastered bool `json:"mastered" example:"true"`
	// 最近一次尝试时间
	LastAttemptAt time.Time `json:"last_attempt_at"`
}

// =============================================================================
// 课程预热类型
// =============================================================================

// PrewarmItemRequest 代表一条预热条目。
// @Description 预热条目结构
type PrewarmItemRequest struct {
	// 要合成的文本
	Text string `json:"text" example:"पानी" binding:"required"`
	// 语言代码
	Language string `json:"language" example:"hi" binding:"required"`
	// 声音风格
	VoiceStyle string `json:"voice_style,omitempty" example:"didi"`
	// 内容类型标注（如 challenge_word）
	ContentType string `json:"content_type,omitempty" example:"challenge_word"`
	// 内容 ID 标注
	ContentID string `json:"content_id,omitempty" example:"hi-food-001"`
}

// PrewarmRequest 代表课程预热批次请求。
// @Description 课程预热请求结构
type PrewarmRequest struct {
	// 预热条目
	Items []PrewarmItemRequest `json:"items" binding:"required"`
	// 是否强制重新合成（忽略缓存命中）
	Force bool `json:"force,omitempty" example:"false"`
}

// PrewarmResponse 表示课程预热批次结果。
// @Description 课程预热响应结构
type PrewarmResponse struct {
	// 条目总数
	Total int `json:"total" example:"20"`
	// 新生成数
	Generated int `json:"generated" example:"15"`
	// 已在缓存中的数量
	AlreadyHot int `json:"already_hot" example:"4"`
	// 失败数
	Failed int `json:"failed" example:"1"`
}

// =============================================================================
// 错误类型
// =============================================================================

// ErrorResponse 表示错误响应。
// @Description 错误响应结构
type ErrorResponse struct {
	// 错误详情
	Error ErrorDetail `json:"error"`
}

// ErrorDetail 表示错误详细信息。
// @Description 错误详细结构
type ErrorDetail struct {
	// 错误代码
	Code string `json:"code" example:"TTS_UNAVAILABLE"`
	// 人类可读的错误消息
	Message string `json:"message" example:"speech synthesis temporarily unavailable"`
	// HTTP 状态码
	HTTPStatus int `json:"http_status,omitempty" example:"503"`
	// 请求是否可以重试
	Retryable bool `json:"retryable,omitempty" example:"true"`
	// 返回错误的提供者
	Provider string `json:"provider,omitempty" example:"elevenlabs"`
}

// =============================================================================
// 辅助转换
// =============================================================================

// ParseLanguage 将请求中的语言字符串转换为 types.Language，未知语言返回错误。
func ParseLanguage(s string) (types.Language, error) {
	lang := types.Language(s)
	if !lang.Valid() {
		return "", types.NewError(types.ErrInvalidRequest, "unsupported language: "+s)
	}
	return lang, nil
}
