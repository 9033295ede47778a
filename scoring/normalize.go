// Package scoring 实现发音评分：将嘈杂信号（转写匹配、STT 置信度、
// 声学能量相似度、时长相似度）组合为可审计的 0–100 分与 0–3 星。
//
// 评分是纯函数：相同输入 + 相同评分版本永远得到相同输出。
// 权重一经发布即冻结在版本内——调整权重必须提升 scoringVersion，
// 保证历史成绩在其原始量纲下始终可解释。
package scoring

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldTransform 去除组合变音符：NFD 分解 → 丢弃 Mn 类码点 → NFC 重组。
// 注意：天城文的依赖元音符号（मात्रा）同属 Mn 类，也会被折叠——
// 这是有意为之：少儿跟读时元音长短的偏差不应主导文本匹配得分。
var foldTransform = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// Fold 规范化比较文本：大小写/变音符不敏感，去标点，压缩空白。
func Fold(s string) string {
	folded, _, err := transform.String(foldTransform, s)
	if err != nil {
		// 畸形 UTF-8 保底走未折叠路径
		folded = s
	}

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range strings.ToLower(folded) {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
		// 标点与符号直接丢弃
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// levenshtein 计算两个 rune 序列的编辑距离（单行滚动数组）。
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		cur := prev[0] + 1
		prevDiag := prev[0]
		prev[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			next := min3(prev[j]+1, cur+1, prevDiag+cost)
			prevDiag = prev[j]
			prev[j] = next
			cur = next
		}
	}
	return prev[len(b)]
}

// Similarity 返回折叠后两文本的归一化相似度（0..1）。
// 两者皆空视为完全匹配；仅一方为空视为完全不匹配。
func Similarity(a, b string) float64 {
	fa := []rune(Fold(a))
	fb := []rune(Fold(b))

	if len(fa) == 0 && len(fb) == 0 {
		return 1
	}
	if len(fa) == 0 || len(fb) == 0 {
		return 0
	}

	maxLen := len(fa)
	if len(fb) > maxLen {
		maxLen = len(fb)
	}
	d := levenshtein(fa, fb)
	return 1 - float64(d)/float64(maxLen)
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
