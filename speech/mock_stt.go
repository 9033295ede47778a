package speech

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/speechflow/types"
)

// MockSTTProvider 是仅限开发环境的 mock 转写器。
//
// 安全关键：该适配器在生产环境下绝不允许被选中——否则会给孩子返回
// 虚构的发音反馈。构造和调用路径各设一道闸：
//   - NewMockSTTProvider 在 production=true 时直接返回致命配置错误；
//   - Transcribe 再次检查标志，防御组合根以外的构造路径。
//
// 返回的结果始终带 NonAuthoritative 标记。
type MockSTTProvider struct {
	production bool
	logger     *zap.Logger
}

// NewMockSTTProvider 创建 mock 转写器。
// production 为 true 时返回 ErrUnsafeMockInProduction，调用方必须 fail fast。
func NewMockSTTProvider(production bool, logger *zap.Logger) (*MockSTTProvider, error) {
	if production {
		return nil, types.NewError(types.ErrUnsafeMockInProduction,
			"mock transcriber must never be constructed in production")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MockSTTProvider{production: production, logger: logger}, nil
}

func (p *MockSTTProvider) Name() string    { return "mock-stt" }
func (p *MockSTTProvider) Available() bool { return !p.production }

// Transcribe 返回带显式非权威标记的占位转写。
func (p *MockSTTProvider) Transcribe(ctx context.Context, req *STTRequest) (*STTResponse, error) {
	if p.production {
		return nil, types.NewError(types.ErrUnsafeMockInProduction,
			"mock transcriber selected under production flag")
	}

	p.logger.Warn("mock transcriber answering, result is NOT authoritative")

	// 占位内容刻意无意义，避免被误当成真实转写
	return &STTResponse{
		Provider:         p.Name(),
		Text:             "[mock transcript]",
		Confidence:       0.5,
		Language:         req.Language,
		Elapsed:          time.Millisecond,
		NonAuthoritative: true,
		CreatedAt:        time.Now(),
	}, nil
}
