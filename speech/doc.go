// Package speech 提供统一的 TTS / STT 提供商接口、各后端 HTTP 适配器、
// 按能力（TTS、STT）组织的回退链，以及角色音色配置表。
//
// 设计要点：
//   - 每个适配器持有自己的 http.Client（显式注入，绝无惰性全局客户端），
//     带独立的有界超时，慢提供商不会拖垮整条回退链。
//   - 凭证缺失的适配器 Available() 返回 false，回退链直接跳过，
//     不消耗重试预算。
//   - 不支持的语言按文档化默认值替换，但必须通过 LanguageSubstituted
//     显式上报并记日志——绝不静默替换。
//   - mock 转写器仅限开发环境；生产标志下选中它是致命配置错误。
package speech
