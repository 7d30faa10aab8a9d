package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"

	"github.com/lgc202/llm-gateway/httpx"
)

// probe issues the capability check of p. It returns nil on a 2xx reply,
// *RemoteAPIError on any other status and *TransportError when no reply arrived.
func (g *Gateway) probe(ctx context.Context, p Profile) error {
	u, err := p.probeURL()
	if err != nil {
		return &TransportError{Provider: p.ID, Cause: err}
	}

	opts := []httpx.RequestOption{httpx.WithRequestTimeout(g.probeTimeout)}
	if p.HasCredential() {
		opts = append(opts, httpx.WithBearerToken(strings.TrimSpace(p.APIKey)))
	}
	req, err := g.http.NewRequest(ctx, http.MethodGet, u, opts...)
	if err != nil {
		return &TransportError{Provider: p.ID, Cause: err}
	}
	resp, err := g.http.DoStatus(req)
	if err != nil {
		return g.normalize(p, err)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	_ = resp.Body.Close()
	return nil
}

// preflight turns a failed probe into *ServiceUnavailableError.
func (g *Gateway) preflight(ctx context.Context, p Profile) error {
	err := g.probe(ctx, p)
	if err == nil {
		return nil
	}
	ue := &ServiceUnavailableError{Provider: p.ID, Cause: err}
	if re, ok := AsRemoteAPIError(err); ok {
		ue.StatusCode = re.StatusCode
	}
	g.logger.Warn().Str("provider", p.ID).Err(err).Msg("preflight probe failed")
	return ue
}

// IsAvailable reports whether the provider answers its capability probe.
// It never fails: unknown ids, timeouts and bad replies all yield false.
func (g *Gateway) IsAvailable(ctx context.Context, providerID string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error().Str("provider", providerID).Interface("panic", r).Msg("availability probe panicked")
			ok = false
		}
	}()

	p, err := g.registry.Resolve(providerID)
	if err != nil {
		return false
	}
	if err := g.probe(ctx, p); err != nil {
		g.logger.Debug().Str("provider", providerID).Err(err).Msg("provider unavailable")
		return false
	}
	return true
}

// Availability probes every registered provider concurrently.
func (g *Gateway) Availability(ctx context.Context) map[string]bool {
	ids := g.registry.IDs()
	out := make(map[string]bool, len(ids))

	var (
		mu sync.Mutex
		eg errgroup.Group
	)
	eg.SetLimit(8)
	for _, id := range ids {
		eg.Go(func() error {
			ok := g.IsAvailable(ctx, id)
			mu.Lock()
			out[id] = ok
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()
	return out
}

// ModelInfo fetches provider metadata about the profile's model. It is best
// effort: any failure yields an empty map.
func (g *Gateway) ModelInfo(ctx context.Context, providerID string) (info map[string]any) {
	info = map[string]any{}
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error().Str("provider", providerID).Interface("panic", r).Msg("model info panicked")
			info = map[string]any{}
		}
	}()

	p, err := g.registry.Resolve(providerID)
	if err != nil {
		return info
	}

	var out map[string]any
	switch p.Style {
	case StyleNativeOllama:
		out, err = g.ollamaShow(ctx, p)
	case StyleOpenAIChat:
		out, err = g.openAIModel(ctx, p)
	default:
		err = fmt.Errorf("no model info for style %s", p.Style)
	}
	if err != nil {
		g.logger.Debug().Str("provider", providerID).Err(err).Msg("model info unavailable")
		return info
	}
	if out != nil {
		info = out
	}
	return info
}

// ollamaShow posts {"model"} to the sibling /api/show endpoint.
func (g *Gateway) ollamaShow(ctx context.Context, p Profile) (map[string]any, error) {
	u, err := ollamaSibling(p.endpoint(), "/api/show")
	if err != nil {
		return nil, err
	}
	req, err := g.http.NewJSONRequest(ctx, http.MethodPost, u, map[string]string{"model": p.Model},
		httpx.WithRequestTimeout(g.probeTimeout),
	)
	if err != nil {
		return nil, err
	}
	out, _, err := httpx.DoJSON[map[string]any](g.http, req)
	if err != nil {
		return nil, g.normalize(p, err)
	}
	return out, nil
}

// openAIModel retrieves GET <endpoint>/models/{model} through go-openai.
func (g *Gateway) openAIModel(ctx context.Context, p Profile) (map[string]any, error) {
	cfg := openai.DefaultConfig(strings.TrimSpace(p.APIKey))
	cfg.BaseURL = p.endpoint()
	cfg.HTTPClient = g.http.HTTPClient()
	client := openai.NewClientWithConfig(cfg)

	ctx, cancel := context.WithTimeout(ctx, g.probeTimeout)
	defer cancel()

	m, err := client.GetModel(ctx, p.Model)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
