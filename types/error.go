package types

import "fmt"

// ErrorCode represents a unified error code across the speech pipeline.
type ErrorCode string

// Provider / pipeline error codes
const (
	ErrInvalidRequest        ErrorCode = "INVALID_REQUEST"
	ErrAuthentication        ErrorCode = "AUTHENTICATION"
	ErrRateLimited           ErrorCode = "RATE_LIMITED"
	ErrProviderBusy          ErrorCode = "PROVIDER_BUSY"
	ErrProviderUnavailable   ErrorCode = "PROVIDER_UNAVAILABLE"
	ErrProviderTransient     ErrorCode = "PROVIDER_TRANSIENT"
	ErrAllProvidersExhausted ErrorCode = "ALL_PROVIDERS_EXHAUSTED"
	ErrUpstreamTimeout       ErrorCode = "UPSTREAM_TIMEOUT"
	ErrTTSUnavailable        ErrorCode = "TTS_UNAVAILABLE"
	ErrSTTUnavailable        ErrorCode = "STT_UNAVAILABLE"
	ErrInternalError         ErrorCode = "INTERNAL_ERROR"
)

// Cache / storage error codes
const (
	ErrCacheUnavailable ErrorCode = "CACHE_UNAVAILABLE"
	ErrNotFound         ErrorCode = "NOT_FOUND"
	ErrStorageFailure   ErrorCode = "STORAGE_FAILURE"
)

// Safety error codes
const (
	// ErrUnsafeMockInProduction 表示在生产环境下选中了 mock 转写器。
	// 这是致命配置错误：绝不允许给孩子返回虚构的发音反馈。
	ErrUnsafeMockInProduction ErrorCode = "UNSAFE_MOCK_IN_PRODUCTION"

	// ErrLanguageSubstituted 表示适配器不支持请求语言，已替换为文档化默认值。
	ErrLanguageSubstituted ErrorCode = "LANGUAGE_SUBSTITUTED"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Provider   string    `json:"provider,omitempty"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithProvider sets the provider name.
func (e *Error) WithProvider(provider string) *Error {
	e.Provider = provider
	return e
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}
