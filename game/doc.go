// 版权所有 2024 SpeechFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 game 提供发音游戏的记录层与提交流程。

  - Challenge：课程语料（运行期只读）。
  - Attempt：一次发音尝试的不可变记录，连同分项得分与评分版本固化。
  - Progress：(child, challenge) 维度的可变聚合，只由 ProgressSink 更新。
  - AttemptFlow：转写 → 评分 → 落库 → 进度通知。

管线本身绝不改写游戏化状态；进度与奖励逻辑全部在 ProgressSink 实现方。
*/
package game
