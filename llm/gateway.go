package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lgc202/llm-gateway/httpx"
)

const (
	DefaultTimeout      = 30 * time.Second
	DefaultProbeTimeout = 5 * time.Second

	// upstream error bodies kept in RemoteAPIError are cut to this size
	maxErrorBodyBytes = 64 << 10
)

// Gateway is the single entry point over all registered providers.
//
// It holds no per-call state and is safe for concurrent use. To apply a new
// provider table, build a new Gateway.
type Gateway struct {
	registry *Registry

	http     *httpx.Client
	limiters map[string]httpx.RateLimiter

	timeout      time.Duration
	probeTimeout time.Duration
	maxBodyBytes int64

	logger zerolog.Logger
}

type Option func(*gatewayOptions)

type gatewayOptions struct {
	timeout      time.Duration
	probeTimeout time.Duration
	transport    http.RoundTripper
	userAgent    string
	maxBodyBytes int64
	logger       zerolog.Logger
}

// WithTimeout bounds a whole generation call, stream included.
func WithTimeout(d time.Duration) Option {
	return func(o *gatewayOptions) { o.timeout = d }
}

// WithProbeTimeout bounds IsAvailable, ModelInfo and preflight probes.
func WithProbeTimeout(d time.Duration) Option {
	return func(o *gatewayOptions) { o.probeTimeout = d }
}

func WithTransport(rt http.RoundTripper) Option {
	return func(o *gatewayOptions) { o.transport = rt }
}

func WithUserAgent(ua string) Option {
	return func(o *gatewayOptions) { o.userAgent = ua }
}

// WithMaxResponseBytes limits how much of a non-streaming body is read.
func WithMaxResponseBytes(n int64) Option {
	return func(o *gatewayOptions) { o.maxBodyBytes = n }
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *gatewayOptions) { o.logger = l }
}

func New(reg *Registry, opts ...Option) (*Gateway, error) {
	o := gatewayOptions{
		timeout:      DefaultTimeout,
		probeTimeout: DefaultProbeTimeout,
		maxBodyBytes: 32 << 20,
		logger:       zerolog.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if reg == nil {
		reg, _ = NewRegistry()
	}

	hopts := []httpx.Option{
		httpx.WithTimeout(o.timeout),
		httpx.WithMaxErrorBodyBytes(maxErrorBodyBytes),
	}
	if o.transport != nil {
		hopts = append(hopts, httpx.WithTransport(o.transport))
	}
	if o.userAgent != "" {
		hopts = append(hopts, httpx.WithUserAgent(o.userAgent))
	}
	hc, err := httpx.New(hopts...)
	if err != nil {
		return nil, err
	}
	hc.WithHooks(nil, []httpx.AfterHook{httpx.LogHook(o.logger)})

	limiters := make(map[string]httpx.RateLimiter)
	for _, p := range reg.Profiles() {
		if rl := httpx.NewRateLimiter(p.RateLimit, 1); rl != nil {
			limiters[p.ID] = rl
		}
	}

	return &Gateway{
		registry:     reg,
		http:         hc,
		limiters:     limiters,
		timeout:      o.timeout,
		probeTimeout: o.probeTimeout,
		maxBodyBytes: o.maxBodyBytes,
		logger:       o.logger,
	}, nil
}

// Registry returns the provider table the gateway was built with.
func (g *Gateway) Registry() *Registry { return g.registry }

// Profiles lists the registered profiles sorted by id.
func (g *Gateway) Profiles() []Profile { return g.registry.Profiles() }

// Generate runs one generation call and returns the trimmed text. Errors from
// any stage are returned unchanged; nothing is retried.
func (g *Gateway) Generate(ctx context.Context, providerID string, req Request) (string, error) {
	if req.Stream {
		s, err := g.Stream(ctx, providerID, req)
		if err != nil {
			return "", err
		}
		return Collect(s)
	}

	p, c, err := g.prepare(providerID, req)
	if err != nil {
		return "", err
	}
	raw, err := g.call(ctx, p, c, req)
	if err != nil {
		return "", err
	}
	text, err := c.decodeBody(raw)
	if err != nil {
		reason := "undecodable body"
		if errors.Is(err, errMissingField) {
			reason = "expected text field is absent"
			err = nil
		}
		return "", &MalformedResponseError{Provider: p.ID, Reason: reason, Raw: redact(raw, p.APIKey), Cause: err}
	}
	return strings.TrimSpace(text), nil
}

// Stream starts a streaming generation call. req.Stream is forced on. The
// caller owns the returned stream and must Close it.
func (g *Gateway) Stream(ctx context.Context, providerID string, req Request) (*TextStream, error) {
	req.Stream = true
	p, c, err := g.prepare(providerID, req)
	if err != nil {
		return nil, err
	}
	resp, err := g.send(ctx, p, c, req)
	if err != nil {
		return nil, err
	}
	return newTextStream(p.ID, resp.Body, c.decodeLine, g.logger), nil
}

func (g *Gateway) prepare(providerID string, req Request) (Profile, codec, error) {
	p, err := g.registry.Resolve(providerID)
	if err != nil {
		return Profile{}, codec{}, err
	}
	if err := req.Validate(); err != nil {
		return Profile{}, codec{}, err
	}
	c, ok := codecs[p.Style]
	if !ok {
		return Profile{}, codec{}, &UnknownProviderError{Provider: providerID}
	}
	return p, c, nil
}
