// Package types 定义语音管线的共享类型：
// 统一错误分类、语言与音色枚举、以及调用方上下文。
// 该包不依赖任何其他 speechflow 包，处于依赖图的最底层。
package types
