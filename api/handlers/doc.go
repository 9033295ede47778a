// Copyright (c) SpeechFlow Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 SpeechFlow HTTP API 的请求处理器实现。

# 概述

handlers 包实现了 SpeechFlow 所有 HTTP 端点的请求处理逻辑，
包括语音合成、语音转写、发音挑战与尝试评分、课程预热、
健康检查以及统一的响应/错误处理。
所有 Handler 均遵循标准 net/http 接口，通过 Swagger 注解生成 API 文档。

# 核心类型

  - SynthesizeHandler — 语音合成，缓存命中直接回放音频字节
  - TranscribeHandler — 语音转写（面向工具链与内容生产）
  - ChallengeHandler  — 课程语料查询与标准发音音频（惰性生成）
  - AttemptHandler    — 发音尝试提交、历史查询与进度聚合
  - PrewarmHandler    — 运营侧课程音频批量预热
  - AuthMiddleware    — JWT 调用方档位解析（匿名默认免费档）
  - HealthHandler     — 服务健康检查（/health, /healthz, /ready）
  - Response          — 统一 JSON 响应结构（success + data + error + timestamp）
  - ErrorInfo         — 结构化错误信息，含 code、message、retryable 标记

# 主要能力

  - 统一响应格式：WriteSuccess / WriteError / WriteJSON 辅助函数
  - 请求验证：DecodeJSONBody（1 MB 限制 + 严格模式）、ValidateContentType
  - ErrorCode → HTTP 状态码自动映射（4xx/5xx）
  - 音频直出：X-Audio-Provider / X-Audio-Cached / X-Cache-Key 元数据头
  - 提供商原始报错只进日志，响应里只暴露稳定错误码
  - 可扩展健康检查：RegisterCheck 注册自定义 HealthCheck 实现
*/
package handlers
