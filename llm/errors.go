package llm

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrInvalidRequest 请求参数不合法（空 prompt、temperature 越界等）
	ErrInvalidRequest = errors.New("llm: invalid request")

	ErrStreamClosed = errors.New("llm: stream closed")
)

// UnknownProviderError provider id 不在注册表中
type UnknownProviderError struct {
	Provider string
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("llm: unknown provider %q", e.Provider)
}

// MissingCredentialError 该 style 需要 api key，但 profile 未配置
type MissingCredentialError struct {
	Provider string
	Style    Style
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("llm %s: missing api key for style %s", e.Provider, e.Style)
}

// TransportError 网络层失败：DNS、连接拒绝、超时、读流中断
type TransportError struct {
	Provider string
	Cause    error
}

func (e *TransportError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("llm %s: transport error", e.Provider)
	}
	return fmt.Sprintf("llm %s: transport error: %v", e.Provider, e.Cause)
}

func (e *TransportError) Unwrap() error { return e.Cause }

// RemoteAPIError provider 返回了非 2xx 状态码
type RemoteAPIError struct {
	Provider   string
	StatusCode int

	// Body 原始响应体（已截断、已脱敏）
	Body []byte

	RequestID string
}

// maxErrorSnippet 限制 Error() 中展示的响应体长度
const maxErrorSnippet = 512

func (e *RemoteAPIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "llm %s: http %d", e.Provider, e.StatusCode)
	if t := http.StatusText(e.StatusCode); t != "" {
		b.WriteString(" ")
		b.WriteString(t)
	}
	if body := bytes.TrimSpace(e.Body); len(body) > 0 {
		if len(body) > maxErrorSnippet {
			body = body[:maxErrorSnippet]
		}
		b.WriteString(": ")
		b.Write(body)
	}
	if e.RequestID != "" {
		b.WriteString(" request_id=")
		b.WriteString(e.RequestID)
	}
	return b.String()
}

// MalformedResponseError 响应结构与预期不符（缺字段或非法 JSON）
type MalformedResponseError struct {
	Provider string
	Reason   string
	Raw      []byte
	Cause    error
}

func (e *MalformedResponseError) Error() string {
	msg := fmt.Sprintf("llm %s: malformed response: %s", e.Provider, e.Reason)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *MalformedResponseError) Unwrap() error { return e.Cause }

// ServiceUnavailableError preflight 探测失败，生成请求未发出
type ServiceUnavailableError struct {
	Provider string

	// StatusCode 探测返回的状态码，网络失败时为 0
	StatusCode int
	Cause      error
}

func (e *ServiceUnavailableError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("llm %s: service unavailable: probe returned http %d", e.Provider, e.StatusCode)
	}
	if e.Cause != nil {
		return fmt.Sprintf("llm %s: service unavailable: %v", e.Provider, e.Cause)
	}
	return fmt.Sprintf("llm %s: service unavailable", e.Provider)
}

func (e *ServiceUnavailableError) Unwrap() error { return e.Cause }

func AsRemoteAPIError(err error) (*RemoteAPIError, bool) {
	var e *RemoteAPIError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func AsTransportError(err error) (*TransportError, bool) {
	var e *TransportError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func IsUnknownProvider(err error) bool {
	var e *UnknownProviderError
	return errors.As(err, &e)
}

func IsMissingCredential(err error) bool {
	var e *MissingCredentialError
	return errors.As(err, &e)
}

func IsMalformedResponse(err error) bool {
	var e *MalformedResponseError
	return errors.As(err, &e)
}

func IsServiceUnavailable(err error) bool {
	var e *ServiceUnavailableError
	return errors.As(err, &e)
}

// IsRetryable 判断调用方是否值得退避重试
//
// 网络失败、preflight 失败、以及 408/429/5xx 可重试；其余 4xx、缺 key、结构错误不可重试。
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if e, ok := AsRemoteAPIError(err); ok {
		switch {
		case e.StatusCode == http.StatusRequestTimeout, e.StatusCode == http.StatusTooManyRequests:
			return true
		case e.StatusCode >= 500:
			return true
		default:
			return false
		}
	}
	if _, ok := AsTransportError(err); ok {
		return true
	}
	return IsServiceUnavailable(err)
}

// redact 将 secret 在 b 中出现的位置替换为 "***"
func redact(b []byte, secret string) []byte {
	secret = strings.TrimSpace(secret)
	if len(b) == 0 || secret == "" {
		return b
	}
	return bytes.ReplaceAll(b, []byte(secret), []byte("***"))
}
