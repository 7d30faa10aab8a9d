package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Error is a transport failure (StatusCode == 0) or a non-2xx response.
type Error struct {
	Method string
	URL    string

	// StatusCode is 0 when no response was received.
	StatusCode int

	RequestID  string
	RetryAfter time.Duration

	// RawBody is a truncated copy of the response body (non-2xx only).
	RawBody []byte

	Cause error

	Retryable bool
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	if m := strings.TrimSpace(e.Method); m != "" {
		b.WriteString(strings.ToUpper(m))
		b.WriteString(" ")
	}
	if u := strings.TrimSpace(e.URL); u != "" {
		b.WriteString(u)
		b.WriteString(": ")
	}
	if e.StatusCode != 0 {
		b.WriteString(fmt.Sprintf("http %d", e.StatusCode))
		if t := http.StatusText(e.StatusCode); t != "" {
			b.WriteString(" ")
			b.WriteString(t)
		}
	} else {
		b.WriteString("request failed")
	}
	if e.RequestID != "" {
		b.WriteString(" request_id=")
		b.WriteString(e.RequestID)
	}
	if e.StatusCode == 0 && e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// IsTransport reports whether the request failed before a response arrived.
func (e *Error) IsTransport() bool { return e != nil && e.StatusCode == 0 }

func AsError(err error) (*Error, bool) {
	var he *Error
	if errors.As(err, &he) {
		return he, true
	}
	return nil, false
}

func IsHTTPStatus(err error, code int) bool {
	he, ok := AsError(err)
	return ok && he.StatusCode == code
}
