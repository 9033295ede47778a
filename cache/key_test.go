package cache

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/BaSui01/speechflow/types"
)

func TestKey_Deterministic(t *testing.T) {
	k1 := Key("नमस्ते", types.LangHindi, types.VoiceStyleDidi)
	k2 := Key("नमस्ते", types.LangHindi, types.VoiceStyleDidi)
	assert.Equal(t, k1, k2, "相同输入必须得到相同键")
	assert.True(t, strings.HasPrefix(k1, "speech:audio:"))
}

func TestKey_DistinctInputsDistinctKeys(t *testing.T) {
	base := Key("नमस्ते", types.LangHindi, types.VoiceStyleDidi)

	assert.NotEqual(t, base, Key("धन्यवाद", types.LangHindi, types.VoiceStyleDidi))
	assert.NotEqual(t, base, Key("नमस्ते", types.LangEnglish, types.VoiceStyleDidi))
	assert.NotEqual(t, base, Key("नमस्ते", types.LangHindi, types.VoiceStyleStory))
}

func TestKey_NormalizationCollapsesEquivalentText(t *testing.T) {
	k1 := Key("  Namaste   Ji ", types.LangHindi, types.VoiceStyleDidi)
	k2 := Key("namaste ji", types.LangHindi, types.VoiceStyleDidi)
	assert.Equal(t, k1, k2, "空白与大小写差异不应产生不同键")
}

// 字段边界不可混淆：text 尾部与 language 拼接不能与其他组合撞键
func TestKey_FieldBoundaries(t *testing.T) {
	k1 := Key("abhi", types.Language("hi"), types.VoiceStyleDidi)
	k2 := Key("ab", types.Language("hihi"), types.VoiceStyleDidi)
	assert.NotEqual(t, k1, k2)
}

func TestKey_PropertyPureAndInjective(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		langs := types.AllLanguages()
		styles := []types.VoiceStyle{
			types.VoiceStyleDidi, types.VoiceStyleCheerful,
			types.VoiceStyleStory, types.VoiceStyleDadaji,
		}

		t1 := rapid.StringN(1, 200, -1).Draw(t, "t1")
		t2 := rapid.StringN(1, 200, -1).Draw(t, "t2")
		lang := rapid.SampledFrom(langs).Draw(t, "lang")
		style := rapid.SampledFrom(styles).Draw(t, "style")

		// 纯函数：重复求值结果一致
		if Key(t1, lang, style) != Key(t1, lang, style) {
			t.Fatalf("key not deterministic for %q", t1)
		}

		// 规范化后不同的文本必须得到不同键
		if NormalizeText(t1) != NormalizeText(t2) &&
			Key(t1, lang, style) == Key(t2, lang, style) {
			t.Fatalf("collision: %q vs %q", t1, t2)
		}
	})
}

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "hello world", NormalizeText("  Hello \t WORLD \n"))
	assert.Equal(t, "नमस्ते", NormalizeText(" नमस्ते "))
	assert.Equal(t, "", NormalizeText("   "))
}
