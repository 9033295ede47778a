// 版权所有 2024 SpeechFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的语音管线指标采集能力，覆盖
TTS、STT、提供商回退、音频缓存与发音评分五大维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
自动注册机制，避免手动管理 Registry。所有指标按 namespace 隔离，
支持多维度 label 分组，便于 Grafana 等工具进行可视化与告警。

# 核心类型

  - Collector：指标收集器，持有 Counter、Histogram 等
    Prometheus 向量指标，按业务域分组管理。

# 主要能力

  - TTS 指标：请求总数（按语言/提供商/是否命中缓存）、合成耗时。
  - STT 指标：请求总数（按语言/提供商）、转写耗时。
  - 提供商指标：失败计数（按提供商/错误码）、回退链推进计数。
  - 缓存指标：快速层与持久层命中计数、未命中计数。
  - 评分指标：最终得分分布 Histogram、星级发放计数。
*/
package metrics
