package types

// CallerTier 是调用方订阅档位，决定 TTS 提供商的优先顺序
// （高档位偏好音质，免费档位偏好成本）。
type CallerTier string

const (
	TierFree    CallerTier = "free"
	TierPremium CallerTier = "premium"
	TierFamily  CallerTier = "family"
)

// Valid reports whether the tier is a member of the fixed enum.
func (t CallerTier) Valid() bool {
	switch t {
	case TierFree, TierPremium, TierFamily:
		return true
	}
	return false
}

// CallerContext 是显式的调用方上下文值。
// 管线据此选择提供商优先级；绝不从请求对象上临时挂接属性。
type CallerContext struct {
	Tier      CallerTier `json:"tier"`
	ChildID   string     `json:"child_id,omitempty"`
	RequestID string     `json:"request_id,omitempty"`
}

// DefaultCallerContext 返回匿名调用方上下文（免费档位）。
func DefaultCallerContext() CallerContext {
	return CallerContext{Tier: TierFree}
}
