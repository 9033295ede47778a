package types

// Language 是管线支持的固定语言枚举（ISO-639-1 风格）。
// 课程内容目前覆盖印地语系少儿启蒙语料，以英语作为兜底。
type Language string

const (
	LangHindi     Language = "hi"
	LangEnglish   Language = "en"
	LangTamil     Language = "ta"
	LangTelugu    Language = "te"
	LangBengali   Language = "bn"
	LangMarathi   Language = "mr"
	LangGujarati  Language = "gu"
	LangKannada   Language = "kn"
	LangMalayalam Language = "ml"
	LangPunjabi   Language = "pa"
)

// AllLanguages 返回支持的语言全集（固定顺序，供校验与测试使用）。
func AllLanguages() []Language {
	return []Language{
		LangHindi, LangEnglish, LangTamil, LangTelugu, LangBengali,
		LangMarathi, LangGujarati, LangKannada, LangMalayalam, LangPunjabi,
	}
}

// Valid reports whether the language is a member of the fixed enum.
func (l Language) Valid() bool {
	switch l {
	case LangHindi, LangEnglish, LangTamil, LangTelugu, LangBengali,
		LangMarathi, LangGujarati, LangKannada, LangMalayalam, LangPunjabi:
		return true
	}
	return false
}

// VoiceStyle 是合成音色风格枚举，映射到各提供商的具体 voice 参数。
type VoiceStyle string

const (
	// VoiceStyleDidi 默认讲解音色（亲切的"姐姐"角色）。
	VoiceStyleDidi VoiceStyle = "didi"
	// VoiceStyleCheerful 游戏反馈用的明快音色。
	VoiceStyleCheerful VoiceStyle = "cheerful"
	// VoiceStyleStory 讲故事用的舒缓音色。
	VoiceStyleStory VoiceStyle = "story"
	// VoiceStyleDadaji 节日/传统内容用的长者音色。
	VoiceStyleDadaji VoiceStyle = "dadaji"
)

// Valid reports whether the voice style is a member of the fixed enum.
func (v VoiceStyle) Valid() bool {
	switch v {
	case VoiceStyleDidi, VoiceStyleCheerful, VoiceStyleStory, VoiceStyleDadaji:
		return true
	}
	return false
}

// MaxSynthesisTextLen 是单次合成请求的文本长度上限（字符数）。
// 超长请求在任何提供商调用之前即被拒绝。
const MaxSynthesisTextLen = 5000
