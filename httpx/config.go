package httpx

import (
	"net/http"
	"time"
)

// Config configures a Client. Use DefaultConfig() as a baseline.
type Config struct {
	// BaseURL is optional. Relative paths passed to NewRequest are resolved against it.
	BaseURL string

	// Timeout bounds the whole exchange, including reading the response body.
	// If the request context already has an earlier deadline, that one wins.
	// Zero disables the client-level bound.
	Timeout time.Duration

	// Transport is the underlying RoundTripper. If nil, DefaultTransport() is used.
	Transport http.RoundTripper

	// DefaultHeaders are copied into every request (request headers win).
	DefaultHeaders http.Header

	UserAgent string

	// Retry configures automatic retries. The zero value disables them.
	Retry RetryConfig

	// MaxErrorBodyBytes limits how much of a non-2xx body is kept in Error.RawBody.
	MaxErrorBodyBytes int64

	RequestID RequestIDConfig
}

const DefaultMaxErrorBodyBytes int64 = 64 << 10

// DefaultConfig returns the baseline used by New. Retries are off: callers that
// talk to idempotent endpoints opt in with WithRetry.
func DefaultConfig() Config {
	return Config{
		Timeout:           30 * time.Second,
		Transport:         DefaultTransport(),
		DefaultHeaders:    make(http.Header),
		UserAgent:         "llm-gateway/1",
		MaxErrorBodyBytes: DefaultMaxErrorBodyBytes,
		RequestID:         DefaultRequestIDConfig(),
	}
}
