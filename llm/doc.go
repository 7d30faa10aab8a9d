// Package llm is the multi-provider invocation layer of the gateway.
//
// A Gateway resolves a Profile by id, builds the provider specific payload for
// the profile's Style, sends it through httpx under one bounded timeout and
// decodes the reply, either as a single JSON document or as a line oriented
// stream (NDJSON for native-ollama, SSE for openai-chat).
//
// Failures are reported as typed errors (UnknownProviderError, TransportError,
// RemoteAPIError, ...). Generate never retries; callers decide with IsRetryable.
// IsAvailable and ModelInfo are advisory and never return errors.
package llm
