package knowledge

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
	"testing/iotest"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lgc202/llm-gateway/httpx"
)

const testKey = "ragflow-secret"

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(Config{
		BaseURL: srv.URL,
		APIKey:  testKey,
		Retry: &httpx.RetryConfig{
			MaxAttempts: 3,
			Backoff:     httpx.ExponentialBackoff{Base: time.Millisecond, Max: 2 * time.Millisecond},
		},
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)
	return c
}

func writeEnvelope(w http.ResponseWriter, code int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"code": code, "message": message, "data": data})
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.NewDecoder(r.Body).Decode(&m))
	return m
}

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestListDatasets(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/datasets", r.URL.Path)
		assert.Equal(t, "Bearer "+testKey, r.Header.Get("Authorization"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "false", r.URL.Query().Get("desc"))
		assert.False(t, r.URL.Query().Has("name"))
		writeEnvelope(w, 0, "", []map[string]any{
			{"id": "ds1", "name": "docs", "document_count": 3, "chunk_count": 42},
		})
	})

	desc := false
	got, err := c.ListDatasets(context.Background(), ListOptions{Page: 2, Desc: &desc})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, Dataset{ID: "ds1", Name: "docs", DocumentCount: 3, ChunkCount: 42}, got[0])
}

func TestCreateDataset_Defaults(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		body := decodeBody(t, r)
		assert.Equal(t, "kb", body["name"])
		assert.Nil(t, body["description"])
		assert.Equal(t, DefaultEmbeddingModel, body["embedding_model"])
		assert.Equal(t, "naive", body["chunk_method"])
		assert.Equal(t, map[string]any{
			"chunk_token_num":  float64(128),
			"delimiter":        "\\n!?;。；！？",
			"html4excel":       false,
			"layout_recognize": true,
			"raptor":           map[string]any{"use_raptor": false},
		}, body["parser_config"])
		writeEnvelope(w, 0, "", map[string]any{"id": "new", "name": "kb"})
	})

	ds, err := c.CreateDataset(context.Background(), CreateDatasetRequest{Name: "kb"})
	require.NoError(t, err)
	assert.Equal(t, "new", ds.ID)

	_, err = c.CreateDataset(context.Background(), CreateDatasetRequest{Name: " "})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestEnvelopeError_OnHTTP200(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, 102, "Dataset name duplicated", nil)
	})

	_, err := c.CreateDataset(context.Background(), CreateDatasetRequest{Name: "kb"})
	require.Error(t, err)
	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, 102, apiErr.Code)
	assert.Equal(t, http.StatusOK, apiErr.StatusCode)
	assert.Equal(t, "Dataset name duplicated", apiErr.Message)
	assert.NotEmpty(t, apiErr.RequestID)
	assert.NotContains(t, err.Error(), testKey)
}

func TestEnvelopeError_OnNon2xx(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		writeEnvelope(w, 109, "Authentication error: API key is invalid!", nil)
	})

	err := c.UpdateDataset(context.Background(), "ds1", UpdateDatasetRequest{Name: "x"})
	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, 109, apiErr.Code)
}

func TestNon2xxWithoutEnvelope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	})

	_, err := c.Retrieve(context.Background(), RetrievalRequest{Question: "q", DatasetIDs: []string{"ds"}})
	require.Error(t, err)
	_, isAPI := AsAPIError(err)
	assert.False(t, isAPI)
	assert.True(t, httpx.IsHTTPStatus(err, http.StatusBadGateway))
}

func TestIdempotentCallsRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		assert.Equal(t, []any{"a", "b"}, decodeBody(t, r)["ids"])
		writeEnvelope(w, 0, "", nil)
	})

	require.NoError(t, c.DeleteDatasets(context.Background(), "a", "b"))
	assert.EqualValues(t, 3, calls.Load())
}

func TestPostNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	err := c.ParseDocuments(context.Background(), "ds", "d1")
	require.Error(t, err)
	assert.EqualValues(t, 1, calls.Load())
}

func TestDocuments(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method + " " + r.URL.Path {
		case "GET /api/v1/datasets/ds/documents":
			writeEnvelope(w, 0, "", map[string]any{
				"docs":  []map[string]any{{"id": "d1", "name": "a.pdf", "size": 10, "run": "DONE", "progress": 1}},
				"total": 1,
			})
		case "PUT /api/v1/datasets/ds/documents/d1":
			body := decodeBody(t, r)
			assert.Equal(t, "qa", body["chunk_method"])
			writeEnvelope(w, 0, "", nil)
		case "DELETE /api/v1/datasets/ds/documents":
			assert.Equal(t, []any{"d1"}, decodeBody(t, r)["ids"])
			writeEnvelope(w, 0, "", nil)
		case "POST /api/v1/datasets/ds/chunks", "DELETE /api/v1/datasets/ds/chunks":
			assert.Equal(t, []any{"d1", "d2"}, decodeBody(t, r)["document_ids"])
			writeEnvelope(w, 0, "", nil)
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()

	docs, err := c.ListDocuments(ctx, "ds", ListOptions{})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "DONE", docs[0].Run)
	assert.Equal(t, 1.0, docs[0].Progress)

	pc := DefaultParserConfig()
	require.NoError(t, c.UpdateDocument(ctx, "ds", "d1", UpdateDocumentRequest{ChunkMethod: "qa", ParserConfig: &pc}))
	require.NoError(t, c.DeleteDocuments(ctx, "ds", "d1"))
	require.NoError(t, c.ParseDocuments(ctx, "ds", "d1", "d2"))
	require.NoError(t, c.StopParsing(ctx, "ds", "d1", "d2"))

	assert.ErrorIs(t, c.DeleteDocuments(ctx, "ds"), ErrInvalidArgument)
	_, err = c.ListDocuments(ctx, "", ListOptions{})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestUploadDocument(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/datasets/ds/documents", r.URL.Path)
		assert.Equal(t, "Bearer "+testKey, r.Header.Get("Authorization"))
		assert.True(t, strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data"))

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		b, _ := io.ReadAll(f)
		assert.Equal(t, "notes.txt", hdr.Filename)
		assert.Equal(t, "text/plain", hdr.Header.Get("Content-Type"))
		assert.Equal(t, "hello", string(b))

		writeEnvelope(w, 0, "", []map[string]any{{"id": "d9", "name": "notes.txt"}})
	})

	docs, err := c.UploadDocument(context.Background(), "ds", "notes.txt", "text/plain", strings.NewReader("hello"))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "d9", docs[0].ID)
}

func TestUploadDocument_StreamsBodyOnce(t *testing.T) {
	payload := strings.Repeat("知识库内容\n", 200_000)
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.EqualValues(t, -1, r.ContentLength)

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		b, _ := io.ReadAll(f)
		assert.Equal(t, "application/octet-stream", hdr.Header.Get("Content-Type"))
		assert.Equal(t, len(payload), len(b))

		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.UploadDocument(context.Background(), "ds", "big.txt", "", strings.NewReader(payload))
	require.Error(t, err)
	assert.EqualValues(t, 1, calls.Load())
}

func TestUploadDocument_SourceReadError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		writeEnvelope(w, 0, "", []map[string]any{})
	})

	src := io.MultiReader(strings.NewReader("partial"), iotest.ErrReader(errors.New("disk gone")))
	_, err := c.UploadDocument(context.Background(), "ds", "x.txt", "text/plain", src)
	require.Error(t, err)
}

func TestRetrieve_Defaults(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/retrieval", r.URL.Path)
		body := decodeBody(t, r)
		assert.Equal(t, "什么是 RAG？", body["question"])
		assert.Equal(t, []any{"ds1"}, body["dataset_ids"])
		assert.Equal(t, 0.2, body["similarity_threshold"])
		assert.Equal(t, float64(5), body["top_k"])
		assert.NotContains(t, body, "document_ids")
		writeEnvelope(w, 0, "", map[string]any{
			"chunks": []map[string]any{{"id": "c1", "content": "检索增强生成", "document_id": "d1", "similarity": 0.8}},
			"total":  1,
		})
	})

	res, err := c.Retrieve(context.Background(), RetrievalRequest{Question: "什么是 RAG？", DatasetIDs: []string{"ds1"}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
	require.Len(t, res.Chunks, 1)
	assert.Equal(t, "检索增强生成", res.Chunks[0].Content)

	_, err = c.Retrieve(context.Background(), RetrievalRequest{Question: "q"})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestMalformedBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>oops</html>"))
	})

	_, err := c.ListDatasets(context.Background(), ListOptions{})
	require.Error(t, err)
	var he *httpx.Error
	assert.False(t, errors.As(err, &he))
	assert.Contains(t, err.Error(), "decode response")
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(Config{BaseURL: url, APIKey: testKey, Retry: &httpx.RetryConfig{}})
	require.NoError(t, err)

	_, err = c.ListDatasets(context.Background(), ListOptions{})
	require.Error(t, err)
	he, ok := httpx.AsError(err)
	require.True(t, ok)
	assert.True(t, he.IsTransport())
	assert.NotContains(t, err.Error(), testKey)
}
