package cache

import (
	"strings"
	"time"

	"github.com/BaSui01/speechflow/types"
)

// Entry 是持久层的缓存元数据记录。
//
// 不变式：
//   - Key 无碰撞且跨重启稳定（内容指纹，见 Key）。
//   - AccessCount 单调不减。
//   - 除 AccessCount 与预热簿记字段回填外，记录一经写入不再变更。
//   - 原始音频字节只存在对象存储中（AudioRef 引用），绝不内联。
type Entry struct {
	Key              string           `gorm:"primaryKey;size:80" json:"key"`
	TextContent      string           `gorm:"size:5000" json:"text_content"`
	Language         types.Language   `gorm:"size:8;index" json:"language"`
	VoiceStyle       types.VoiceStyle `gorm:"size:32" json:"voice_style"`
	Provider         string           `gorm:"size:32" json:"provider"`
	AudioRef         string           `gorm:"size:128" json:"audio_ref"`
	SizeBytes        int64            `json:"size_bytes"`
	DurationMs       int64            `json:"duration_ms"` // 估算值
	GenerationTimeMs int64            `json:"generation_time_ms"`
	EstimatedCost    float64          `json:"estimated_cost"` // 美元
	AccessCount      int64            `json:"access_count"`

	// LanguageSubstituted 标记生成时提供商用默认语言替换了请求语言。
	// 随条目持久化，缓存命中时调用方依然能看到该信号。
	LanguageSubstituted bool `json:"language_substituted,omitempty"`

	// 预热簿记（可选）：标记该条目属于哪类课程内容
	ContentType string `gorm:"size:32;index:idx_content" json:"content_type,omitempty"`
	ContentID   string `gorm:"size:64;index:idx_content" json:"content_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// TableName 固定表名。
func (Entry) TableName() string { return "audio_cache_entries" }

// Format 从 AudioRef 的扩展名推断音频格式，缺省为 mp3。
func (e *Entry) Format() string {
	if i := strings.LastIndexByte(e.AudioRef, '.'); i >= 0 {
		return e.AudioRef[i+1:]
	}
	return "mp3"
}

// providerCostPerMChar 是各提供商每百万字符的估算成本（美元）。
// 仅用于运营观测，不参与计费。
var providerCostPerMChar = map[string]float64{
	"google-tts": 16.0,
	"elevenlabs": 180.0,
	"openai-tts": 30.0,
}

// EstimateCost 估算一次合成的成本。
func EstimateCost(provider string, charCount int) float64 {
	rate, ok := providerCostPerMChar[provider]
	if !ok {
		return 0
	}
	return rate * float64(charCount) / 1_000_000
}

// EstimateDurationMs 按 128kbps MP3 码率（约 16 字节/毫秒）估算音频时长。
func EstimateDurationMs(sizeBytes int) int64 {
	return int64(sizeBytes / 16)
}
