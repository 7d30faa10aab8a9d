package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{&UnknownProviderError{Provider: "x"}, false},
		{&MissingCredentialError{Provider: "x"}, false},
		{&MalformedResponseError{Provider: "x"}, false},
		{fmt.Errorf("%w: empty", ErrInvalidRequest), false},
		{&TransportError{Provider: "x", Cause: context.DeadlineExceeded}, true},
		{&ServiceUnavailableError{Provider: "x"}, true},
		{&RemoteAPIError{Provider: "x", StatusCode: http.StatusTooManyRequests}, true},
		{&RemoteAPIError{Provider: "x", StatusCode: http.StatusRequestTimeout}, true},
		{&RemoteAPIError{Provider: "x", StatusCode: http.StatusBadGateway}, true},
		{&RemoteAPIError{Provider: "x", StatusCode: http.StatusUnauthorized}, false},
		{&RemoteAPIError{Provider: "x", StatusCode: http.StatusBadRequest}, false},
		{fmt.Errorf("wrapped: %w", &RemoteAPIError{StatusCode: 500}), true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, IsRetryable(tc.err), "%v", tc.err)
	}
}

func TestErrorMessages(t *testing.T) {
	err := &RemoteAPIError{Provider: "gpt4", StatusCode: 401, Body: []byte(`{"error":"invalid key"}`), RequestID: "req_1"}
	assert.Equal(t, `llm gpt4: http 401 Unauthorized: {"error":"invalid key"} request_id=req_1`, err.Error())

	long := &RemoteAPIError{Provider: "p", StatusCode: 500, Body: make([]byte, 4096)}
	assert.Less(t, len(long.Error()), 600)

	te := &TransportError{Provider: "ollama", Cause: context.DeadlineExceeded}
	assert.ErrorIs(t, te, context.DeadlineExceeded)
	assert.Contains(t, te.Error(), "deadline exceeded")

	sue := &ServiceUnavailableError{Provider: "lan", StatusCode: 503}
	assert.Contains(t, sue.Error(), "probe returned http 503")

	assert.Equal(t, `llm: unknown provider "x"`, (&UnknownProviderError{Provider: "x"}).Error())
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "Bearer ***", string(redact([]byte("Bearer sk-1234"), "sk-1234")))
	assert.Equal(t, "nothing", string(redact([]byte("nothing"), "")))
	assert.Equal(t, "invalid key ***", string(redact([]byte("invalid key sk-1234"), "  sk-1234\n")))
	assert.True(t, errors.Is(fmt.Errorf("x: %w", ErrInvalidRequest), ErrInvalidRequest))
}
