package httpx

import (
	"context"
	"errors"
	"math/rand/v2"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type RetryConfig struct {
	// MaxAttempts includes the first attempt. <= 1 disables retries.
	MaxAttempts int

	// Methods eligible for retry. Empty means the idempotent set.
	Methods map[string]bool

	// StatusCodes eligible for retry. Empty means 408/429/5xx gateway-ish codes.
	StatusCodes map[int]bool

	// Backoff computes the wait before the next attempt. Nil means DefaultBackoff().
	Backoff Backoff

	// RespectRetryAfter uses Retry-After on 429/503, capped by MaxRetryAfter when set.
	RespectRetryAfter bool
	MaxRetryAfter     time.Duration
}

// DefaultRetryConfig retries idempotent calls up to three times.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		Methods:           defaultRetryMethods(),
		StatusCodes:       defaultRetryStatusCodes(),
		Backoff:           DefaultBackoff(),
		RespectRetryAfter: true,
		MaxRetryAfter:     10 * time.Second,
	}
}

func defaultRetryMethods() map[string]bool {
	return map[string]bool{
		http.MethodGet:     true,
		http.MethodHead:    true,
		http.MethodPut:     true,
		http.MethodDelete:  true,
		http.MethodOptions: true,
	}
}

func defaultRetryStatusCodes() map[int]bool {
	return map[int]bool{
		http.StatusRequestTimeout:      true,
		http.StatusTooManyRequests:     true,
		http.StatusInternalServerError: true,
		http.StatusBadGateway:          true,
		http.StatusServiceUnavailable:  true,
		http.StatusGatewayTimeout:      true,
	}
}

type Backoff interface {
	// Next returns the wait before attempt+1; attempt starts at 1.
	Next(attempt int) time.Duration
}

type ExponentialBackoff struct {
	Base   time.Duration
	Max    time.Duration
	Jitter float64 // 0..1
}

func DefaultBackoff() Backoff {
	return ExponentialBackoff{
		Base:   200 * time.Millisecond,
		Max:    3 * time.Second,
		Jitter: 0.2,
	}
}

func (b ExponentialBackoff) Next(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base, max := b.Base, b.Max
	if base <= 0 {
		base = 200 * time.Millisecond
	}
	if max <= 0 {
		max = 3 * time.Second
	}

	d := base
	for i := 1; i < attempt && d < max; i++ {
		d *= 2
	}
	if d > max {
		d = max
	}

	j := min(b.Jitter, 1)
	if j <= 0 {
		return d
	}
	f := 1 + (rand.Float64()*2-1)*j
	return time.Duration(float64(d) * f)
}

func (c RetryConfig) canRetryMethod(method string) bool {
	if c.MaxAttempts <= 1 {
		return false
	}
	methods := c.Methods
	if len(methods) == 0 {
		methods = defaultRetryMethods()
	}
	return methods[strings.ToUpper(strings.TrimSpace(method))]
}

func (c RetryConfig) canRetryStatus(code int) bool {
	statuses := c.StatusCodes
	if len(statuses) == 0 {
		statuses = defaultRetryStatusCodes()
	}
	return statuses[code]
}

func shouldRetryNetErr(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	var oe *net.OpError
	return errors.As(err, &oe)
}

func parseRetryAfter(h http.Header, now time.Time) (time.Duration, bool) {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(v); err == nil {
		return max(t.Sub(now), 0), true
	}
	return 0, false
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
