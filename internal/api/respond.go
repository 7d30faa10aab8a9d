package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lgc202/llm-gateway/httpx"
	"github.com/lgc202/llm-gateway/internal/knowledge"
	"github.com/lgc202/llm-gateway/internal/tempkb"
	"github.com/lgc202/llm-gateway/llm"
)

func jsonOK(w http.ResponseWriter, v any, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonErr(w http.ResponseWriter, msg string, code int) {
	jsonOK(w, map[string]string{"error": msg}, code)
}

// statusOf 将错误映射为 HTTP 状态码
func statusOf(err error) int {
	var ve *validationError
	switch {
	case errors.As(err, &ve),
		errors.Is(err, llm.ErrInvalidRequest),
		llm.IsUnknownProvider(err),
		errors.Is(err, knowledge.ErrInvalidArgument):
		return http.StatusBadRequest
	case llm.IsServiceUnavailable(err), errors.Is(err, knowledge.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, tempkb.ErrDatasetNotFound):
		return http.StatusNotFound
	}

	if _, ok := llm.AsRemoteAPIError(err); ok {
		return http.StatusBadGateway
	}
	if _, ok := llm.AsTransportError(err); ok {
		return http.StatusBadGateway
	}
	if llm.IsMalformedResponse(err) {
		return http.StatusBadGateway
	}
	if _, ok := knowledge.AsAPIError(err); ok {
		return http.StatusBadRequest
	}
	if _, ok := httpx.AsError(err); ok {
		return http.StatusBadGateway
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// writeError 记录并返回错误，5xx 以 error 级别记录
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusOf(err)
	ev := s.logger.Warn()
	if code >= http.StatusInternalServerError {
		ev = s.logger.Error()
	}
	ev.Err(err).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", code).
		Msg("request failed")
	jsonErr(w, err.Error(), code)
}

// envelope 知识库接口沿用 {code, data} 响应结构
func knowledgeOK(w http.ResponseWriter, data any) {
	body := map[string]any{"code": 0}
	if data != nil {
		body["data"] = data
	}
	jsonOK(w, body, http.StatusOK)
}
