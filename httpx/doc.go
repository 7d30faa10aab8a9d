// Package httpx is the outbound HTTP toolkit shared by the LLM gateway and the
// knowledge-base client:
//   - tuned transports that leave long generations alone (no response-header cap)
//   - request building with base URL, default headers and a request id
//   - opt-in retries with exponential backoff + jitter (idempotent methods only)
//   - *Error carrying status, request id, retry-after and a bounded body copy
//   - rate limiting and before/after hooks for logging
package httpx
