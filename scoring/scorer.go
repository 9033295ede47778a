package scoring

import (
	"fmt"
)

// 当前评分算法版本。新权重必须以新版本号发布。
const CurrentVersion = 2

// v2 混合权重（冻结）：
// 文本匹配是主信号；置信度、能量与时长作为声学佐证分摊剩余权重。
// 调整任何一项都必须提升 CurrentVersion。
const (
	v2WeightText       = 0.50
	v2WeightConfidence = 0.20
	v2WeightEnergy     = 0.15
	v2WeightDuration   = 0.15
)

// 星级阈值
const (
	threeStarThreshold = 85.0
	twoStarThreshold   = 65.0
	oneStarThreshold   = 45.0
)

// Input 是一次评分的全部输入。
type Input struct {
	Transcript string // STT 转写（可为空：转写失败时照常评分）
	Reference  string // 目标词/短语

	STTConfidence      float64 // 0..1
	AudioEnergyScore   float64 // 0..100，由采集端计算后随请求提交
	DurationMatchScore float64 // 0..100

	Version int // 评分版本；0 按 CurrentVersion 处理
}

// Components 是可审计的分项得分（均为 0..100）。
type Components struct {
	TextMatch  float64 `json:"text_match"`
	Confidence float64 `json:"confidence"`
	Energy     float64 `json:"energy"`
	Duration   float64 `json:"duration"`
}

// Result 是评分输出。
type Result struct {
	Final      float64    `json:"final"` // 0..100
	Stars      int        `json:"stars"` // 0..3
	Version    int        `json:"version"`
	Components Components `json:"components"`
}

// Score 计算最终得分与星级。纯函数：每个输入先钳位到合法区间，
// 任何分项都不可能产生负贡献。
func Score(in Input) (Result, error) {
	version := in.Version
	if version == 0 {
		version = CurrentVersion
	}
	if version < 1 || version > CurrentVersion {
		return Result{}, fmt.Errorf("unknown scoring version: %d", version)
	}

	comp := Components{
		TextMatch:  Similarity(in.Transcript, in.Reference) * 100,
		Confidence: clamp(in.STTConfidence, 0, 1) * 100,
		Energy:     clamp(in.AudioEnergyScore, 0, 100),
		Duration:   clamp(in.DurationMatchScore, 0, 100),
	}

	var final float64
	switch version {
	case 1:
		// v1（遗留）：纯文本匹配
		final = comp.TextMatch
	case 2:
		final = v2WeightText*comp.TextMatch +
			v2WeightConfidence*comp.Confidence +
			v2WeightEnergy*comp.Energy +
			v2WeightDuration*comp.Duration
	}

	final = clamp(final, 0, 100)

	return Result{
		Final:      final,
		Stars:      starsFor(final),
		Version:    version,
		Components: comp,
	}, nil
}

// starsFor 将连续得分离散为给孩子看的星级。
func starsFor(final float64) int {
	switch {
	case final >= threeStarThreshold:
		return 3
	case final >= twoStarThreshold:
		return 2
	case final >= oneStarThreshold:
		return 1
	default:
		return 0
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
