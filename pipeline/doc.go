// 版权所有 2024 SpeechFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 pipeline 提供语音管线的编排层。

  - TTSOrchestrator：校验 → 两级缓存 → singleflight 生成 → 回写。
  - STTOrchestrator：audioRef 解析（对象存储 / 有界 HTTP 下载）→ 回退链转写。
  - Prewarmer：课程语料的限速批量预热。

编排层只组合下层能力，不实现提供商或缓存细节。
*/
package pipeline
