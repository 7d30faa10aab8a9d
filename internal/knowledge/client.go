// Package knowledge 是 RAGFlow 知识库 REST API 的客户端。
package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lgc202/llm-gateway/httpx"
)

const (
	DefaultTimeout = 30 * time.Second

	requestIDHeader = "X-Request-ID"
)

type Config struct {
	BaseURL string
	APIKey  string

	Timeout   time.Duration
	Transport http.RoundTripper
	UserAgent string

	// Retry 仅作用于幂等方法，零值使用 httpx.DefaultRetryConfig()
	Retry *httpx.RetryConfig

	Logger zerolog.Logger
}

type Client struct {
	http   *httpx.Client
	apiKey string
	logger zerolog.Logger
}

func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, ErrNotConfigured
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	retry := httpx.DefaultRetryConfig()
	if cfg.Retry != nil {
		retry = *cfg.Retry
	}

	logger := cfg.Logger.With().Str("component", "knowledge").Logger()
	opts := []httpx.Option{
		httpx.WithBaseURL(base),
		httpx.WithTimeout(timeout),
		httpx.WithRetry(retry),
	}
	if cfg.Transport != nil {
		opts = append(opts, httpx.WithTransport(cfg.Transport))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, httpx.WithUserAgent(cfg.UserAgent))
	}
	hc, err := httpx.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("knowledge: %w", err)
	}
	hc.WithHooks(nil, []httpx.AfterHook{httpx.LogHook(logger)})

	return &Client{http: hc, apiKey: strings.TrimSpace(cfg.APIKey), logger: logger}, nil
}

// envelope 是所有接口共用的响应结构
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any, opts ...httpx.RequestOption) error {
	opts = append(opts, httpx.WithBearerToken(c.apiKey))
	req, err := c.http.NewJSONRequest(ctx, method, path, body, opts...)
	if err != nil {
		return fmt.Errorf("knowledge: build request: %w", err)
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	var env envelope
	resp, err := c.http.DoJSONInto(req, &env)
	if err != nil {
		if he, ok := httpx.AsError(err); ok {
			if apiErr := envelopeError(he); apiErr != nil {
				return apiErr
			}
			return fmt.Errorf("knowledge: %w", err)
		}
		return fmt.Errorf("knowledge: decode response of %s %s: %w", req.Method, req.URL.Path, err)
	}

	if env.Code != 0 {
		rid := resp.Header.Get(requestIDHeader)
		if rid == "" {
			rid = req.Header.Get(requestIDHeader)
		}
		return &APIError{
			StatusCode: resp.StatusCode,
			Code:       env.Code,
			Message:    env.Message,
			RequestID:  rid,
		}
	}
	if out == nil || len(env.Data) == 0 || bytes.Equal(env.Data, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("knowledge: decode data of %s %s: %w", req.Method, req.URL.Path, err)
	}
	return nil
}

// envelopeError 非 2xx 响应体若是合法信封，则转换为 APIError
func envelopeError(he *httpx.Error) *APIError {
	if he.IsTransport() || len(he.RawBody) == 0 {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(he.RawBody, &env); err != nil || (env.Code == 0 && env.Message == "") {
		return nil
	}
	return &APIError{
		StatusCode: he.StatusCode,
		Code:       env.Code,
		Message:    env.Message,
		RequestID:  he.RequestID,
	}
}

func (o ListOptions) query() []httpx.RequestOption {
	var opts []httpx.RequestOption
	add := func(k, v string) { opts = append(opts, httpx.WithQueryParam(k, v)) }
	if o.Page > 0 {
		add("page", strconv.Itoa(o.Page))
	}
	if o.PageSize > 0 {
		add("page_size", strconv.Itoa(o.PageSize))
	}
	if o.OrderBy != "" {
		add("orderby", o.OrderBy)
	}
	if o.Desc != nil {
		add("desc", strconv.FormatBool(*o.Desc))
	}
	if o.Name != "" {
		add("name", o.Name)
	}
	if o.ID != "" {
		add("id", o.ID)
	}
	return opts
}

// multipartBody 以流的方式生成只含一个 file 字段的表单，读取方必须关闭返回的 reader
func multipartBody(filename, contentType string, r io.Reader) (io.ReadCloser, string) {
	pr, pw := io.Pipe()
	done := make(chan struct{})
	mw := multipart.NewWriter(pw)
	ct := mw.FormDataContentType()
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	go func() {
		defer close(done)
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
		h.Set("Content-Type", contentType)

		part, err := mw.CreatePart(h)
		if err == nil {
			_, err = io.Copy(part, r)
		}
		if err == nil {
			err = mw.Close()
		}
		_ = pw.CloseWithError(err)
	}()
	return &pipeBody{PipeReader: pr, done: done}, ct
}

// pipeBody 关闭时等待写入 goroutine 退出，之后不会再读取源 reader
type pipeBody struct {
	*io.PipeReader
	done chan struct{}
}

func (b *pipeBody) Close() error {
	err := b.PipeReader.Close()
	<-b.done
	return err
}
