package knowledge

import (
	"errors"
	"fmt"
	"strings"
)

// APIError 知识库服务返回的业务错误（响应信封中 code != 0），与 HTTP 状态码无关
type APIError struct {
	// StatusCode 响应的 HTTP 状态码
	StatusCode int

	// Code 信封中的业务错误码
	Code int

	Message string

	RequestID string
}

func (e *APIError) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString("knowledge: ")
	fmt.Fprintf(&b, "code %d", e.Code)
	if msg := strings.TrimSpace(e.Message); msg != "" {
		b.WriteString(": ")
		b.WriteString(msg)
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (http %d)", e.StatusCode)
	}
	if e.RequestID != "" {
		b.WriteString(" request_id=")
		b.WriteString(e.RequestID)
	}
	return b.String()
}

func AsAPIError(err error) (*APIError, bool) {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// ErrNotConfigured 未配置知识库地址
var ErrNotConfigured = errors.New("knowledge: base url is not configured")

// ErrInvalidArgument 调用参数缺失或不合法，请求不会发出
var ErrInvalidArgument = errors.New("knowledge: invalid argument")
