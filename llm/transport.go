package llm

import (
	"context"
	"io"
	"net/http"

	"github.com/lgc202/llm-gateway/httpx"
)

// send builds the wire request, runs the preflight probe and the rate limiter,
// and posts the payload. On success the caller owns resp.Body; closing it also
// releases the call's timeout.
func (g *Gateway) send(ctx context.Context, p Profile, c codec, req Request) (*http.Response, error) {
	wr, err := c.build(p, req)
	if err != nil {
		return nil, err
	}

	if p.Preflight {
		if err := g.preflight(ctx, p); err != nil {
			return nil, err
		}
	}
	if rl := g.limiters[p.ID]; rl != nil {
		if err := rl.Wait(ctx); err != nil {
			return nil, &TransportError{Provider: p.ID, Cause: err}
		}
	}

	hreq, err := g.http.NewRequest(ctx, http.MethodPost, wr.URL,
		httpx.WithBodyBytes(wr.Body, "application/json"),
		httpx.WithHeaders(wr.Header),
	)
	if err != nil {
		return nil, &TransportError{Provider: p.ID, Cause: err}
	}

	g.logger.Debug().
		Str("provider", p.ID).
		Str("style", p.Style.String()).
		Str("model", p.Model).
		Bool("stream", req.Stream).
		Msg("llm generate")

	resp, err := g.http.DoStatus(hreq)
	if err != nil {
		return nil, g.normalize(p, err)
	}
	return resp, nil
}

// call is send plus a bounded read of the whole body.
func (g *Gateway) call(ctx context.Context, p Profile, c codec, req Request) ([]byte, error) {
	resp, err := g.send(ctx, p, c, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, g.maxBodyBytes))
	if err != nil {
		return nil, &TransportError{Provider: p.ID, Cause: err}
	}
	return raw, nil
}

// normalize maps an httpx failure onto the llm error taxonomy.
func (g *Gateway) normalize(p Profile, err error) error {
	he, ok := httpx.AsError(err)
	if !ok || he.IsTransport() {
		return &TransportError{Provider: p.ID, Cause: err}
	}
	return &RemoteAPIError{
		Provider:   p.ID,
		StatusCode: he.StatusCode,
		Body:       redact(he.RawBody, p.APIKey),
		RequestID:  he.RequestID,
	}
}
