package llm

import (
	"fmt"
	"slices"
	"strings"
)

// DefaultTemperature 与上游服务的默认采样温度保持一致
const DefaultTemperature = 0.7

// Request 单次生成请求，按值传递、用完即弃
type Request struct {
	Prompt       string
	SystemPrompt string

	// Temperature 采样温度，范围 [0, 1]，0 也会原样发送
	Temperature float64

	// MaxTokens 最大生成长度，0 表示不设置
	MaxTokens int

	// Stop 停止词，按顺序发送，nil 表示不设置
	Stop []string

	Stream bool
}

// RequestOption 是请求配置的可选参数函数类型
type RequestOption func(*Request)

// NewRequest 以默认温度构建请求，再依次应用 opts
func NewRequest(prompt string, opts ...RequestOption) Request {
	r := Request{Prompt: prompt, Temperature: DefaultTemperature}
	for _, o := range opts {
		if o != nil {
			o(&r)
		}
	}
	return r
}

func WithSystemPrompt(s string) RequestOption {
	return func(r *Request) { r.SystemPrompt = s }
}

func WithTemperature(t float64) RequestOption {
	return func(r *Request) { r.Temperature = t }
}

func WithMaxTokens(n int) RequestOption {
	return func(r *Request) { r.MaxTokens = n }
}

func WithStop(stop ...string) RequestOption {
	return func(r *Request) { r.Stop = slices.Clone(stop) }
}

func WithStream(on bool) RequestOption {
	return func(r *Request) { r.Stream = on }
}

// Validate 校验请求参数，失败时返回包装了 ErrInvalidRequest 的错误
func (r Request) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return fmt.Errorf("%w: prompt is empty", ErrInvalidRequest)
	}
	if r.Temperature < 0 || r.Temperature > 1 {
		return fmt.Errorf("%w: temperature %v out of range [0, 1]", ErrInvalidRequest, r.Temperature)
	}
	if r.MaxTokens < 0 {
		return fmt.Errorf("%w: max_tokens must be positive", ErrInvalidRequest)
	}
	return nil
}
