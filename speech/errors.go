package speech

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/BaSui01/speechflow/types"
)

// classifyHTTPError 将上游 HTTP 错误映射为统一错误分类。
// 原始响应体只进入错误 Cause（最终落日志），绝不透传给最终用户。
func classifyHTTPError(provider string, status int, body []byte) *types.Error {
	cause := fmt.Errorf("status=%d body=%s", status, truncate(body, 512))

	switch {
	case status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable:
		// 限流 / 排队：可重试，但退避要更保守
		return types.NewError(types.ErrProviderBusy, "provider rate limited or busy").
			WithProvider(provider).WithRetryable(true).WithCause(cause)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return types.NewError(types.ErrAuthentication, "provider rejected credentials").
			WithProvider(provider).WithRetryable(false).WithCause(cause)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return types.NewError(types.ErrUpstreamTimeout, "provider timed out").
			WithProvider(provider).WithRetryable(true).WithCause(cause)
	case status >= 500:
		return types.NewError(types.ErrProviderTransient, "provider server error").
			WithProvider(provider).WithRetryable(true).WithCause(cause)
	default:
		return types.NewError(types.ErrInvalidRequest, "provider rejected request").
			WithProvider(provider).WithRetryable(false).WithCause(cause)
	}
}

// transportError 包装网络层失败（连接、超时、响应解析），一律按瞬时处理。
func transportError(provider string, err error) *types.Error {
	return types.NewError(types.ErrProviderTransient, "provider request failed").
		WithProvider(provider).WithRetryable(true).WithCause(err)
}

// IsBusy 报告错误是否属于限流/排队类别（需要更长退避）。
func IsBusy(err error) bool {
	var te *types.Error
	if errors.As(err, &te) {
		return te.Code == types.ErrProviderBusy || te.Code == types.ErrRateLimited
	}
	return false
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
