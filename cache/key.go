// Package cache 提供内容寻址的两级音频缓存：
// 快速层（Redis，有界 TTL）+ 持久层（对象存储 + 元数据记录，默认永久）。
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/BaSui01/speechflow/types"
)

const keyPrefix = "speech:audio:"

// NormalizeText 规范化合成文本，保证等价文本落到同一缓存键：
// Unicode NFC 归一、去首尾空白、压缩连续空白为单空格、小写化。
func NormalizeText(text string) string {
	s := norm.NFC.String(text)
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), " ")
}

// Key 计算 (text, language, voiceStyle) 的确定性内容指纹。
// 字段以 NUL 分隔后做 sha256，字段顺序固定，跨进程重启稳定。
func Key(text string, lang types.Language, style types.VoiceStyle) string {
	h := sha256.New()
	h.Write([]byte(NormalizeText(text)))
	h.Write([]byte{0})
	h.Write([]byte(lang))
	h.Write([]byte{0})
	h.Write([]byte(style))
	return keyPrefix + hex.EncodeToString(h.Sum(nil)[:16])
}
