package httpx

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Client struct {
	httpClient *http.Client

	baseURL *url.URL

	timeout        time.Duration
	defaultHeaders http.Header
	userAgent      string

	retry      RetryConfig
	maxErrBody int64
	requestID  RequestIDConfig

	rateLimiter RateLimiter
	before      []BeforeHook
	after       []AfterHook
}

// New constructs a Client from DefaultConfig() plus the provided options.
func New(opts ...Option) (*Client, error) {
	cfg := DefaultConfig()
	for _, o := range opts {
		if o != nil {
			o.apply(&cfg)
		}
	}
	return NewWithConfig(cfg)
}

func NewWithConfig(cfg Config) (*Client, error) {
	var bu *url.URL
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		u, err := url.Parse(base)
		if err != nil {
			return nil, err
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, &url.Error{Op: "parse", URL: base, Err: errors.New("base url must be absolute")}
		}
		// Treat the base path as a prefix for relative paths.
		if !strings.HasSuffix(u.Path, "/") {
			u.Path += "/"
		}
		bu = u
	}

	rt := cfg.Transport
	if rt == nil {
		rt = DefaultTransport()
	}

	maxErrBody := cfg.MaxErrorBodyBytes
	if maxErrBody == 0 {
		maxErrBody = DefaultMaxErrorBodyBytes
	}

	c := &Client{
		httpClient:     &http.Client{Transport: rt},
		baseURL:        bu,
		timeout:        cfg.Timeout,
		defaultHeaders: cfg.DefaultHeaders.Clone(),
		userAgent:      cfg.UserAgent,
		retry:          cfg.Retry,
		maxErrBody:     maxErrBody,
		requestID:      cfg.RequestID,
	}
	if c.requestID.New == nil && c.requestID.Header != "" {
		c.requestID.New = DefaultRequestID
	}
	if c.retry.Backoff == nil {
		c.retry.Backoff = DefaultBackoff()
	}
	return c, nil
}

// WithRateLimiter installs a client-wide limiter. Nil removes it.
func (c *Client) WithRateLimiter(rl RateLimiter) *Client {
	c.rateLimiter = rl
	return c
}

// WithHooks adds hooks executed around every attempt.
func (c *Client) WithHooks(before []BeforeHook, after []AfterHook) *Client {
	c.before = append(c.before, before...)
	c.after = append(c.after, after...)
	return c
}

// HTTPClient exposes the configured *http.Client for SDKs that need one.
func (c *Client) HTTPClient() *http.Client { return c.httpClient }

func (c *Client) resolveURL(path string, q url.Values) (*url.URL, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("httpx: empty url/path")
	}
	u, err := url.Parse(p)
	if err != nil {
		return nil, err
	}
	if !u.IsAbs() {
		if c.baseURL == nil {
			return nil, errors.New("httpx: relative path requires BaseURL")
		}
		rel := *u
		rel.Path = strings.TrimPrefix(rel.Path, "/")
		u = c.baseURL.ResolveReference(&rel)
	}
	if len(q) > 0 {
		qq := u.Query()
		for k, vv := range q {
			for _, v := range vv {
				qq.Add(k, v)
			}
		}
		u.RawQuery = qq.Encode()
	}
	return u, nil
}

func (c *Client) deadline(ctx context.Context) (time.Time, bool) {
	now := time.Now()
	var earliest time.Time
	for _, d := range []time.Duration{c.timeout, requestTimeout(ctx)} {
		if d <= 0 {
			continue
		}
		if dd := now.Add(d); earliest.IsZero() || dd.Before(earliest) {
			earliest = dd
		}
	}
	if earliest.IsZero() {
		return time.Time{}, false
	}
	if existing, ok := ctx.Deadline(); ok && !existing.After(earliest) {
		return time.Time{}, false
	}
	return earliest, true
}

// Do executes the request with retries (if configured) and mirrors net/http:
// transport failures are errors, non-2xx responses are returned as-is.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.do(req, false)
}

// DoStatus is Do with non-2xx responses converted into *Error (body read and closed).
// Transport failures are also reported as *Error with StatusCode 0.
func (c *Client) DoStatus(req *http.Request) (*http.Response, error) {
	return c.do(req, true)
}

func (c *Client) do(req *http.Request, statusAsError bool) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("httpx: nil request")
	}

	// The deadline must outlive do(): it is released when the body is closed.
	cancel := context.CancelFunc(func() {})
	if dl, ok := c.deadline(req.Context()); ok {
		var ctx context.Context
		ctx, cancel = context.WithDeadline(req.Context(), dl)
		req = req.Clone(ctx)
	}

	resp, err := c.attempts(req, statusAsError)
	if err != nil || resp == nil || resp.Body == nil {
		cancel()
		return resp, err
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

func (c *Client) attempts(req *http.Request, statusAsError bool) (*http.Response, error) {
	ctx := req.Context()
	maxAttempts := max(c.retry.MaxAttempts, 1)

	var (
		lastResp *http.Response
		lastErr  error
	)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr == nil {
				lastErr = err
			}
			break
		}
		if attempt > 1 && req.Body != nil && req.Body != http.NoBody {
			b, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			req.Body = b
		}

		if c.rateLimiter != nil {
			if err := c.rateLimiter.Wait(ctx); err != nil {
				return nil, c.transportError(req, err, false)
			}
		}
		for _, h := range c.before {
			if h == nil {
				continue
			}
			if err := h(req, attempt); err != nil {
				return nil, err
			}
		}

		t0 := time.Now()
		resp, err := c.httpClient.Do(req)
		dur := time.Since(t0)
		for _, h := range c.after {
			if h != nil {
				h(req, resp, err, dur, attempt)
			}
		}

		if err == nil && resp.StatusCode < 300 {
			return resp, nil
		}
		if err == nil && !statusAsError && !c.retry.canRetryStatus(resp.StatusCode) {
			return resp, nil
		}

		lastResp, lastErr = resp, err

		retry := attempt < maxAttempts && c.retry.canRetryMethod(req.Method)
		if retry {
			if err != nil {
				retry = shouldRetryNetErr(err)
			} else {
				retry = c.retry.canRetryStatus(resp.StatusCode)
			}
		}
		if retry && req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
			retry = false
		}
		if !retry {
			break
		}

		wait := c.retry.Backoff.Next(attempt)
		if resp != nil {
			if c.retry.RespectRetryAfter && (resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable) {
				if ra, ok := parseRetryAfter(resp.Header, time.Now()); ok {
					wait = ra
					if c.retry.MaxRetryAfter > 0 {
						wait = min(wait, c.retry.MaxRetryAfter)
					}
				}
			}
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
			_ = resp.Body.Close()
			lastResp = nil
		}
		if err := sleep(ctx, wait); err != nil {
			return nil, c.transportError(req, err, false)
		}
	}

	if lastErr != nil {
		if lastResp != nil && lastResp.Body != nil {
			_ = lastResp.Body.Close()
		}
		if !statusAsError {
			return nil, lastErr
		}
		return nil, c.transportError(req, lastErr, c.retry.canRetryMethod(req.Method) && shouldRetryNetErr(lastErr))
	}
	if lastResp == nil {
		return nil, errors.New("httpx: request failed")
	}
	if !statusAsError {
		return lastResp, nil
	}
	retryable := c.retry.canRetryMethod(req.Method) && c.retry.canRetryStatus(lastResp.StatusCode)
	return nil, c.responseError(req, lastResp, retryable)
}

func (c *Client) transportError(req *http.Request, cause error, retryable bool) *Error {
	// url.Error repeats the full URL, query included.
	var ue *url.Error
	if errors.As(cause, &ue) && ue.Err != nil {
		cause = ue.Err
	}
	return &Error{
		Method:    req.Method,
		URL:       redactURL(req.URL),
		RequestID: c.requestIDOf(req, nil),
		Cause:     cause,
		Retryable: retryable,
	}
}

func (c *Client) responseError(req *http.Request, resp *http.Response, retryable bool) *Error {
	defer resp.Body.Close()

	var raw []byte
	if resp.Body != nil && c.maxErrBody > 0 {
		raw, _ = io.ReadAll(io.LimitReader(resp.Body, c.maxErrBody))
	}
	ra, _ := parseRetryAfter(resp.Header, time.Now())
	return &Error{
		Method:     req.Method,
		URL:        redactURL(req.URL),
		StatusCode: resp.StatusCode,
		RequestID:  c.requestIDOf(req, resp),
		RetryAfter: ra,
		RawBody:    bytes.Clone(raw),
		Cause:      errors.New(http.StatusText(resp.StatusCode)),
		Retryable:  retryable,
	}
}

func (c *Client) requestIDOf(req *http.Request, resp *http.Response) string {
	h := c.requestID.Header
	if h == "" {
		return ""
	}
	if resp != nil {
		if rid := strings.TrimSpace(resp.Header.Get(h)); rid != "" {
			return rid
		}
	}
	return strings.TrimSpace(req.Header.Get(h))
}

// redactURL drops userinfo and the query string, which may carry credentials.
func redactURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	cp := *u
	cp.User = nil
	cp.RawQuery = ""
	cp.Fragment = ""
	return cp.String()
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
