package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type RequestOption interface{ apply(*requestConfig) }

type requestOptionFunc func(*requestConfig)

func (f requestOptionFunc) apply(c *requestConfig) { f(c) }

type requestConfig struct {
	header http.Header
	query  url.Values

	timeout time.Duration

	body        io.Reader
	bodyBytes   []byte
	contentType string
	bodyErr     error

	bearerToken string
}

func WithHeader(key, value string) RequestOption {
	return requestOptionFunc(func(c *requestConfig) {
		if c.header == nil {
			c.header = make(http.Header)
		}
		c.header.Set(key, value)
	})
}

// WithHeaders merges h into the request headers; keys in h replace earlier values.
func WithHeaders(h http.Header) RequestOption {
	return requestOptionFunc(func(c *requestConfig) {
		if c.header == nil {
			c.header = make(http.Header)
		}
		for k, vv := range h {
			c.header.Del(k)
			for _, v := range vv {
				c.header.Add(k, v)
			}
		}
	})
}

func WithQueryParam(key, value string) RequestOption {
	return requestOptionFunc(func(c *requestConfig) {
		if c.query == nil {
			c.query = make(url.Values)
		}
		c.query.Add(key, value)
	})
}

// WithRequestTimeout sets a per-request deadline upper bound.
func WithRequestTimeout(d time.Duration) RequestOption {
	return requestOptionFunc(func(c *requestConfig) { c.timeout = d })
}

// WithBodyBytes sets a replayable body.
func WithBodyBytes(b []byte, contentType string) RequestOption {
	return requestOptionFunc(func(c *requestConfig) {
		c.bodyBytes = append([]byte(nil), b...)
		c.body = nil
		c.contentType = contentType
	})
}

// WithBody sets a streaming body. It is not replayable, so such requests are never retried.
func WithBody(r io.Reader, contentType string) RequestOption {
	return requestOptionFunc(func(c *requestConfig) {
		c.body = r
		c.bodyBytes = nil
		c.contentType = contentType
	})
}

// WithJSON marshals v as the request body.
func WithJSON(v any) RequestOption {
	return requestOptionFunc(func(c *requestConfig) {
		b, err := json.Marshal(v)
		if err != nil {
			c.bodyErr = err
			return
		}
		c.bodyBytes = b
		c.body = nil
		c.contentType = "application/json"
	})
}

func WithBearerToken(token string) RequestOption {
	return requestOptionFunc(func(c *requestConfig) { c.bearerToken = token })
}

type requestTimeoutKey struct{}

func requestTimeout(ctx context.Context) time.Duration {
	d, _ := ctx.Value(requestTimeoutKey{}).(time.Duration)
	return d
}

// NewRequest builds a request against the client's base URL. Headers are applied
// in order: client defaults, request options, then User-Agent, bearer token and
// request id when still missing.
func (c *Client) NewRequest(ctx context.Context, method, path string, opts ...RequestOption) (*http.Request, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var rc requestConfig
	for _, o := range opts {
		if o != nil {
			o.apply(&rc)
		}
	}
	if rc.bodyErr != nil {
		return nil, rc.bodyErr
	}

	u, err := c.resolveURL(path, rc.query)
	if err != nil {
		return nil, err
	}
	if rc.timeout > 0 {
		ctx = context.WithValue(ctx, requestTimeoutKey{}, rc.timeout)
	}

	var body io.Reader
	if rc.bodyBytes != nil {
		body = bytes.NewReader(rc.bodyBytes)
	} else if rc.body != nil {
		body = rc.body
	}

	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), u.String(), body)
	if err != nil {
		return nil, err
	}
	if rc.bodyBytes != nil {
		b := rc.bodyBytes
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(b)), nil
		}
	} else if rc.body != nil {
		req.GetBody = nil
	}

	for k, vv := range c.defaultHeaders {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	for k, vv := range rc.header {
		req.Header.Del(k)
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	if rc.contentType != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", rc.contentType)
	}
	if c.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if rc.bearerToken != "" && req.Header.Get("Authorization") == "" {
		req.Header.Set("Authorization", "Bearer "+rc.bearerToken)
	}
	if h := c.requestID.Header; h != "" && req.Header.Get(h) == "" && c.requestID.New != nil {
		if id := strings.TrimSpace(c.requestID.New()); id != "" {
			req.Header.Set(h, id)
		}
	}
	return req, nil
}

// NewJSONRequest is NewRequest with a JSON body and a JSON Accept header.
func (c *Client) NewJSONRequest(ctx context.Context, method, path string, body any, opts ...RequestOption) (*http.Request, error) {
	all := make([]RequestOption, 0, len(opts)+1)
	if body != nil {
		all = append(all, WithJSON(body))
	}
	all = append(all, opts...)
	req, err := c.NewRequest(ctx, method, path, all...)
	if err != nil {
		return nil, err
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	return req, nil
}
