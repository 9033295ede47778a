package speech

import (
	"go.uber.org/zap"

	"github.com/BaSui01/speechflow/types"
)

// VoiceParams 是解析后的角色音色参数，由各适配器按需取用。
type VoiceParams struct {
	// GoogleVoice 是 Google TTS 的具体 voice 名称（如 hi-IN-Wavenet-D）。
	GoogleVoice string `json:"google_voice,omitempty"`
	// ElevenLabsVoiceID 是 ElevenLabs 的 voice ID。
	ElevenLabsVoiceID string `json:"elevenlabs_voice_id,omitempty"`
	// OpenAIVoice 是 OpenAI TTS 的 voice 名称（alloy、nova 等）。
	OpenAIVoice string `json:"openai_voice,omitempty"`

	Gender string  `json:"gender,omitempty"` // male, female, neutral
	Pitch  float64 `json:"pitch,omitempty"`  // 半音，-20.0..20.0
	Speed  float64 `json:"speed,omitempty"`  // 0.25..4.0，1.0 为常速
}

type voiceKey struct {
	style types.VoiceStyle
	lang  types.Language
}

// VoiceTable 维护 (音色风格, 语言) → 发音参数 的查找表。
// 少儿内容统一放慢语速（0.85–0.9），便于跟读。
type VoiceTable struct {
	entries  map[voiceKey]VoiceParams
	fallback VoiceParams
	logger   *zap.Logger
}

// NewVoiceTable 创建内置角色音色表。
func NewVoiceTable(logger *zap.Logger) *VoiceTable {
	if logger == nil {
		logger = zap.NewNop()
	}

	t := &VoiceTable{
		entries: make(map[voiceKey]VoiceParams),
		// 兜底：印地语"姐姐"音色，常速略慢
		fallback: VoiceParams{
			GoogleVoice: "hi-IN-Wavenet-D", ElevenLabsVoiceID: "EXAVITQu4vr4xnSDxMaL",
			OpenAIVoice: "nova", Gender: "female", Pitch: 2.0, Speed: 0.9,
		},
		logger: logger,
	}

	add := func(style types.VoiceStyle, lang types.Language, p VoiceParams) {
		t.entries[voiceKey{style, lang}] = p
	}

	// didi：亲切的姐姐讲解音色
	add(types.VoiceStyleDidi, types.LangHindi, VoiceParams{
		GoogleVoice: "hi-IN-Wavenet-D", ElevenLabsVoiceID: "EXAVITQu4vr4xnSDxMaL",
		OpenAIVoice: "nova", Gender: "female", Pitch: 2.0, Speed: 0.9})
	add(types.VoiceStyleDidi, types.LangEnglish, VoiceParams{
		GoogleVoice: "en-IN-Wavenet-A", ElevenLabsVoiceID: "EXAVITQu4vr4xnSDxMaL",
		OpenAIVoice: "nova", Gender: "female", Pitch: 2.0, Speed: 0.9})
	add(types.VoiceStyleDidi, types.LangTamil, VoiceParams{
		GoogleVoice: "ta-IN-Wavenet-A", ElevenLabsVoiceID: "EXAVITQu4vr4xnSDxMaL",
		OpenAIVoice: "nova", Gender: "female", Pitch: 2.0, Speed: 0.9})
	add(types.VoiceStyleDidi, types.LangBengali, VoiceParams{
		GoogleVoice: "bn-IN-Wavenet-A", ElevenLabsVoiceID: "EXAVITQu4vr4xnSDxMaL",
		OpenAIVoice: "nova", Gender: "female", Pitch: 2.0, Speed: 0.9})
	add(types.VoiceStyleDidi, types.LangTelugu, VoiceParams{
		GoogleVoice: "te-IN-Standard-A", ElevenLabsVoiceID: "EXAVITQu4vr4xnSDxMaL",
		OpenAIVoice: "nova", Gender: "female", Pitch: 2.0, Speed: 0.9})
	add(types.VoiceStyleDidi, types.LangMarathi, VoiceParams{
		GoogleVoice: "mr-IN-Wavenet-A", ElevenLabsVoiceID: "EXAVITQu4vr4xnSDxMaL",
		OpenAIVoice: "nova", Gender: "female", Pitch: 2.0, Speed: 0.9})

	// cheerful：游戏反馈音色，语速稍快、音调更高
	add(types.VoiceStyleCheerful, types.LangHindi, VoiceParams{
		GoogleVoice: "hi-IN-Wavenet-A", ElevenLabsVoiceID: "jBpfuIE2acCO8z3wKNLl",
		OpenAIVoice: "shimmer", Gender: "female", Pitch: 4.0, Speed: 1.05})
	add(types.VoiceStyleCheerful, types.LangEnglish, VoiceParams{
		GoogleVoice: "en-IN-Wavenet-D", ElevenLabsVoiceID: "jBpfuIE2acCO8z3wKNLl",
		OpenAIVoice: "shimmer", Gender: "female", Pitch: 4.0, Speed: 1.05})

	// story：讲故事音色，舒缓
	add(types.VoiceStyleStory, types.LangHindi, VoiceParams{
		GoogleVoice: "hi-IN-Wavenet-C", ElevenLabsVoiceID: "onwK4e9ZLuTAKqWW03F9",
		OpenAIVoice: "fable", Gender: "male", Pitch: 0, Speed: 0.85})
	add(types.VoiceStyleStory, types.LangEnglish, VoiceParams{
		GoogleVoice: "en-IN-Wavenet-C", ElevenLabsVoiceID: "onwK4e9ZLuTAKqWW03F9",
		OpenAIVoice: "fable", Gender: "male", Pitch: 0, Speed: 0.85})

	// dadaji：节日/传统内容的长者音色
	add(types.VoiceStyleDadaji, types.LangHindi, VoiceParams{
		GoogleVoice: "hi-IN-Wavenet-B", ElevenLabsVoiceID: "VR6AewLTigWG4xSOukaG",
		OpenAIVoice: "onyx", Gender: "male", Pitch: -3.0, Speed: 0.85})

	return t
}

// Resolve 返回 (style, lang) 的音色参数。
// 无精确匹配时退到该风格的印地语条目，再退到全局兜底，并记日志。
func (t *VoiceTable) Resolve(style types.VoiceStyle, lang types.Language) VoiceParams {
	if p, ok := t.entries[voiceKey{style, lang}]; ok {
		return p
	}
	if p, ok := t.entries[voiceKey{style, types.LangHindi}]; ok {
		t.logger.Warn("voice entry missing for language, using hindi entry for style",
			zap.String("style", string(style)),
			zap.String("language", string(lang)))
		return p
	}
	t.logger.Warn("voice entry missing entirely, using fallback voice",
		zap.String("style", string(style)),
		zap.String("language", string(lang)))
	return t.fallback
}
