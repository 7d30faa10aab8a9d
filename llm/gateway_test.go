package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lgc202/llm-gateway/httpx"
)

func newGateway(t *testing.T, opts []Option, profiles ...Profile) *Gateway {
	t.Helper()
	reg, err := NewRegistry(profiles...)
	require.NoError(t, err)
	g, err := New(reg, opts...)
	require.NoError(t, err)
	return g
}

func ollamaAt(srv *httptest.Server) Profile {
	return Profile{ID: "ollama", Endpoint: srv.URL + "/api/generate", Model: "qwen2.5:32b", Style: StyleNativeOllama}
}

func chatAt(srv *httptest.Server) Profile {
	return Profile{ID: "gpt4", Endpoint: srv.URL + "/v1", APIKey: "sk-live-secret-123", Model: "chatgpt-4o-latest", Style: StyleOpenAIChat}
}

func TestGenerate_NativeOllama(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = io.WriteString(w, `{"model":"qwen2.5:32b","response":"测试成功。","done":true}`)
	}))
	t.Cleanup(srv.Close)

	g := newGateway(t, nil, ollamaAt(srv))
	text, err := g.Generate(context.Background(), "ollama", NewRequest("测试", WithSystemPrompt("系统")))
	require.NoError(t, err)
	assert.Equal(t, "测试成功。", text)
	assert.Equal(t, "系统\n\n测试", got["prompt"])
	assert.Equal(t, "qwen2.5:32b", got["model"])
}

func TestGenerate_OpenAIChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-live-secret-123", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":" Hello "}}]}`)
	}))
	t.Cleanup(srv.Close)

	g := newGateway(t, nil, chatAt(srv))
	text, err := g.Generate(context.Background(), "gpt4", NewRequest("hi"))
	require.NoError(t, err)
	assert.Equal(t, "Hello", text)
}

func TestGenerate_OpenAIChatStreaming(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, true, body["stream"])
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))

		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hi\"}}]}\n")
		w.(http.Flusher).Flush()
		_, _ = io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\" there\"}}]}\ndata: [DONE]\n")
	}))
	t.Cleanup(srv.Close)

	g := newGateway(t, nil, chatAt(srv))
	text, err := g.Generate(context.Background(), "gpt4", NewRequest("hi", WithStream(true)))
	require.NoError(t, err)
	assert.Equal(t, "Hi there", text)
}

func TestStream_Lazy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, frag := range []string{"流", "式", "输出"} {
			_, _ = io.WriteString(w, `{"response":"`+frag+`","done":false}`+"\n")
			w.(http.Flusher).Flush()
		}
		_, _ = io.WriteString(w, `{"response":"","done":true}`+"\n")
	}))
	t.Cleanup(srv.Close)

	g := newGateway(t, nil, ollamaAt(srv))
	s, err := g.Stream(context.Background(), "ollama", NewRequest("x"))
	require.NoError(t, err)
	defer s.Close()

	var frags []string
	for {
		frag, err := s.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		frags = append(frags, frag)
	}
	assert.Equal(t, []string{"流", "式", "输出"}, frags)
	assert.Equal(t, "ollama", s.Provider())
}

func TestGenerate_RemoteAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":"invalid key"}`)
	}))
	t.Cleanup(srv.Close)

	g := newGateway(t, nil, chatAt(srv))
	for _, stream := range []bool{false, true} {
		text, err := g.Generate(context.Background(), "gpt4", NewRequest("hi", WithStream(stream)))
		assert.Empty(t, text)

		re, ok := AsRemoteAPIError(err)
		require.True(t, ok, "expected *RemoteAPIError, got %T", err)
		assert.Equal(t, http.StatusUnauthorized, re.StatusCode)
		assert.JSONEq(t, `{"error":"invalid key"}`, string(re.Body))
		assert.Contains(t, err.Error(), "invalid key")
		assert.False(t, IsRetryable(err))
	}
}

func TestGenerate_CredentialNeverLeaks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"bad header `+r.Header.Get("Authorization")+`"}`)
	}))
	t.Cleanup(srv.Close)

	g := newGateway(t, nil, chatAt(srv))
	_, err := g.Generate(context.Background(), "gpt4", NewRequest("hi"))
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "sk-live-secret-123")
	re, _ := AsRemoteAPIError(err)
	assert.NotContains(t, string(re.Body), "sk-live-secret-123")
	assert.Contains(t, string(re.Body), "Bearer ***")
}

type countingTransport struct{ n int32 }

func (c *countingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	atomic.AddInt32(&c.n, 1)
	return nil, errors.New("network must not be used")
}

func TestGenerate_FailsBeforeNetwork(t *testing.T) {
	rt := &countingTransport{}
	noKey := Profile{ID: "deepseek-r1", Endpoint: "https://api.deepseek.com/v1", Model: "deepseek-reasoner", Style: StyleOpenAIChat}
	ok := Profile{ID: "ollama", Endpoint: "http://localhost:11434/api/generate", Model: "qwen", Style: StyleNativeOllama}
	g := newGateway(t, []Option{WithTransport(rt)}, noKey, ok)

	for _, stream := range []bool{false, true} {
		_, err := g.Generate(context.Background(), "nope", NewRequest("hi", WithStream(stream)))
		var upe *UnknownProviderError
		assert.ErrorAs(t, err, &upe)

		_, err = g.Generate(context.Background(), "deepseek-r1", NewRequest("hi", WithStream(stream)))
		assert.True(t, IsMissingCredential(err))

		_, err = g.Generate(context.Background(), "ollama", NewRequest("", WithStream(stream)))
		assert.ErrorIs(t, err, ErrInvalidRequest)
	}
	assert.EqualValues(t, 0, atomic.LoadInt32(&rt.n))
}

func TestGenerate_Malformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"choices":[]}`)
	}))
	t.Cleanup(srv.Close)

	g := newGateway(t, nil, chatAt(srv))
	_, err := g.Generate(context.Background(), "gpt4", NewRequest("hi"))
	var me *MalformedResponseError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "gpt4", me.Provider)
	assert.False(t, IsRetryable(err))
}

func TestGenerate_TimeoutIsTransportError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	g := newGateway(t, []Option{WithTimeout(50 * time.Millisecond)}, ollamaAt(srv))
	start := time.Now()
	_, err := g.Generate(context.Background(), "ollama", NewRequest("hi"))

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, IsRetryable(err))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestGenerate_TimeoutCoversStream(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"response":"first"}`+"\n")
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	g := newGateway(t, []Option{WithTimeout(100 * time.Millisecond)}, ollamaAt(srv))
	text, err := g.Generate(context.Background(), "ollama", NewRequest("hi", WithStream(true)))
	assert.Empty(t, text)
	var te *TransportError
	require.ErrorAs(t, err, &te)
}

func TestGenerate_TimeoutDoesNotAffectOtherCalls(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "slow") {
			select {
			case <-release:
			case <-r.Context().Done():
			}
			return
		}
		_, _ = io.WriteString(w, `{"response":"fast"}`)
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	slow := Profile{ID: "slow", Endpoint: srv.URL + "/slow/api/generate", Model: "m", Style: StyleNativeOllama}
	fast := Profile{ID: "fast", Endpoint: srv.URL + "/fast/api/generate", Model: "m", Style: StyleNativeOllama}
	g := newGateway(t, []Option{WithTimeout(300 * time.Millisecond)}, slow, fast)

	done := make(chan error, 1)
	go func() {
		_, err := g.Generate(context.Background(), "slow", NewRequest("x"))
		done <- err
	}()

	text, err := g.Generate(context.Background(), "fast", NewRequest("x"))
	require.NoError(t, err)
	assert.Equal(t, "fast", text)

	var te *TransportError
	assert.ErrorAs(t, <-done, &te)
}

func TestGenerate_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	p := ollamaAt(srv)
	srv.Close()

	g := newGateway(t, nil, p)
	_, err := g.Generate(context.Background(), "ollama", NewRequest("hi"))
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.True(t, IsRetryable(err))
	_, isHTTP := httpx.AsError(err)
	assert.True(t, isHTTP)
}

func TestGenerate_PreflightShortCircuits(t *testing.T) {
	var generateCalls int32
	probeStatus := int32(http.StatusServiceUnavailable)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/models":
			assert.Equal(t, http.MethodGet, r.Method)
			w.WriteHeader(int(atomic.LoadInt32(&probeStatus)))
		case "/v1/chat/completions":
			atomic.AddInt32(&generateCalls, 1)
			_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"ok"}}]}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	p := Profile{ID: "macstudio-qwen", Endpoint: srv.URL + "/v1", APIKey: "k", Model: "qwen2.5-32B-MLX", Style: StyleOpenAIChat, Preflight: true}
	g := newGateway(t, nil, p)

	_, err := g.Generate(context.Background(), "macstudio-qwen", NewRequest("hi"))
	var sue *ServiceUnavailableError
	require.ErrorAs(t, err, &sue)
	assert.Equal(t, http.StatusServiceUnavailable, sue.StatusCode)
	assert.True(t, IsRetryable(err))
	assert.EqualValues(t, 0, atomic.LoadInt32(&generateCalls))

	atomic.StoreInt32(&probeStatus, http.StatusOK)
	text, err := g.Generate(context.Background(), "macstudio-qwen", NewRequest("hi"))
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.EqualValues(t, 1, atomic.LoadInt32(&generateCalls))
}

func TestGenerate_PreflightTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	p := Profile{ID: "lan", Endpoint: srv.URL + "/v1", APIKey: "k", Model: "m", Style: StyleOpenAIChat, Preflight: true}
	srv.Close()

	g := newGateway(t, nil, p)
	_, err := g.Generate(context.Background(), "lan", NewRequest("hi"))
	var sue *ServiceUnavailableError
	require.ErrorAs(t, err, &sue)
	assert.Zero(t, sue.StatusCode)
}

func TestNew_RateLimiters(t *testing.T) {
	limited := Profile{ID: "a", Endpoint: "http://localhost/api/generate", Model: "m", Style: StyleNativeOllama, RateLimit: 2}
	free := Profile{ID: "b", Endpoint: "http://localhost/api/generate", Model: "m", Style: StyleNativeOllama}
	g := newGateway(t, nil, limited, free)

	assert.Contains(t, g.limiters, "a")
	assert.NotContains(t, g.limiters, "b")
	assert.Len(t, g.Profiles(), 2)
}

func TestGenerate_RateLimitHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"response":"ok"}`)
	}))
	t.Cleanup(srv.Close)

	p := ollamaAt(srv)
	p.RateLimit = 0.001
	g := newGateway(t, nil, p)

	_, err := g.Generate(context.Background(), "ollama", NewRequest("hi"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = g.Generate(ctx, "ollama", NewRequest("hi"))
	var te *TransportError
	assert.ErrorAs(t, err, &te)
}
