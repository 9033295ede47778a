package speech

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/speechflow/types"
)

func TestMockSTT_FatalInProduction(t *testing.T) {
	_, err := NewMockSTTProvider(true, zap.NewNop())
	require.Error(t, err, "生产标志下构造 mock 必须失败")
	assert.Equal(t, types.ErrUnsafeMockInProduction, types.GetErrorCode(err))
}

func TestMockSTT_DevReturnsNonAuthoritative(t *testing.T) {
	p, err := NewMockSTTProvider(false, zap.NewNop())
	require.NoError(t, err)
	assert.True(t, p.Available())

	resp, err := p.Transcribe(context.Background(), &STTRequest{
		Audio: []byte("xx"), Language: types.LangHindi})
	require.NoError(t, err)
	assert.True(t, resp.NonAuthoritative, "mock 结果必须显式标记为非权威")
	assert.Equal(t, "mock-stt", resp.Provider)
}

func TestMockSTT_TranscribeGuardsProductionFlag(t *testing.T) {
	// 绕过构造函数的防御路径也必须被拦截
	p := &MockSTTProvider{production: true, logger: zap.NewNop()}

	_, err := p.Transcribe(context.Background(), &STTRequest{Audio: []byte("xx")})
	require.Error(t, err)
	assert.Equal(t, types.ErrUnsafeMockInProduction, types.GetErrorCode(err))
	assert.False(t, p.Available())
}
