package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// RateLimiter throttles outgoing requests. *rate.Limiter satisfies it.
type RateLimiter interface {
	Wait(ctx context.Context) error
}

var _ RateLimiter = (*rate.Limiter)(nil)

// NewRateLimiter returns a token bucket allowing rps requests per second.
// A non-positive rps yields nil (no limiting).
func NewRateLimiter(rps float64, burst int) RateLimiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

type BeforeHook func(req *http.Request, attempt int) error

type AfterHook func(req *http.Request, resp *http.Response, err error, dur time.Duration, attempt int)

// RoundTripperFunc lets a plain function act as a transport or middleware stage.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// LogHook logs every attempt at debug level, and failures at warn.
// Only method, host and path are logged; query strings and headers are not.
func LogHook(logger zerolog.Logger) AfterHook {
	return func(req *http.Request, resp *http.Response, err error, dur time.Duration, attempt int) {
		ev := logger.Debug()
		if err != nil || (resp != nil && resp.StatusCode >= 400) {
			ev = logger.Warn()
		}
		ev = ev.Str("method", req.Method).
			Str("host", req.URL.Host).
			Str("path", req.URL.Path).
			Dur("duration", dur).
			Int("attempt", attempt)
		if resp != nil {
			ev = ev.Int("status", resp.StatusCode)
		}
		if err != nil {
			ev = ev.Err(err)
		}
		ev.Msg("http request")
	}
}
