package speech

import (
	"context"
	"time"

	"github.com/BaSui01/speechflow/types"
)

// ============================================================
// 文字转语音（TTS）
// ============================================================

// TTSRequest 表示一次文本合成请求。
type TTSRequest struct {
	Text       string           `json:"text"`
	Language   types.Language   `json:"language"`
	VoiceStyle types.VoiceStyle `json:"voice_style"`

	// Voice 是已解析的角色音色参数（由 VoiceTable 查得）。
	// 为空时适配器使用各自的文档化默认音色。
	Voice *VoiceParams `json:"voice,omitempty"`

	// ResponseFormat 目标音频格式，默认 mp3。
	ResponseFormat string `json:"response_format,omitempty"`
}

// TTSResponse 表示合成结果。音频始终是完整的离散字节缓冲。
type TTSResponse struct {
	Provider  string        `json:"provider"`
	AudioData []byte        `json:"-"`
	Format    string        `json:"format"`
	Elapsed   time.Duration `json:"elapsed"`
	CharCount int           `json:"char_count,omitempty"`

	// LanguageSubstituted 表示适配器不支持请求语言，
	// 已替换为其文档化默认值。调用方必须可见该信号。
	LanguageSubstituted bool `json:"language_substituted,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// TTSProvider 定义 TTS 提供者接口。
type TTSProvider interface {
	// Synthesize 将文本转换为语音。
	Synthesize(ctx context.Context, req *TTSRequest) (*TTSResponse, error)

	// Available 报告适配器是否具备完整配置（凭证等）。
	// 返回 false 的适配器被回退链跳过，不消耗重试预算。
	Available() bool

	// Name 返回提供者名称。
	Name() string
}

// ============================================================
// 语音转文字（STT）
// ============================================================

// STTRequest 表示一次转写请求。
type STTRequest struct {
	Audio    []byte         `json:"-"`
	Language types.Language `json:"language"`

	// Format 音频格式提示（mp3、wav 等），默认 mp3。
	Format string `json:"format,omitempty"`
}

// STTResponse 表示转写结果。
type STTResponse struct {
	Provider   string        `json:"provider"`
	Text       string        `json:"text"`
	Confidence float64       `json:"confidence"` // 0..1
	Language   types.Language `json:"language,omitempty"`
	Elapsed    time.Duration `json:"elapsed"`

	// NonAuthoritative 标记结果来自 mock 转写器，仅供开发环境使用，
	// 绝不能作为真实发音反馈。
	NonAuthoritative bool `json:"non_authoritative,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// STTProvider 定义 STT 提供者接口。
type STTProvider interface {
	// Transcribe 将语音转换为文本。
	Transcribe(ctx context.Context, req *STTRequest) (*STTResponse, error)

	// Available 报告适配器是否具备完整配置。
	Available() bool

	// Name 返回提供者名称。
	Name() string
}
