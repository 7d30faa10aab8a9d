package api

import (
	"net/http"

	"github.com/lgc202/llm-gateway/internal/assistant"
	"github.com/lgc202/llm-gateway/llm"
)

type textResponse struct {
	Text string `json:"text"`
}

type healthResponse struct {
	Status       string          `json:"status"`
	LLMAvailable bool            `json:"llm_available"`
	Version      string          `json:"version"`
	Providers    map[string]bool `json:"providers"`
}

// health 探测所有 provider，llm_available 反映默认 provider
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	b := s.current()
	avail := b.gw.Availability(r.Context())
	jsonOK(w, healthResponse{
		Status:       "healthy",
		LLMAvailable: avail[b.defaultProvider],
		Version:      s.cfg.Version,
		Providers:    avail,
	}, http.StatusOK)
}

func (s *Server) translate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text       string `json:"text"`
		TargetLang string `json:"target_lang"`
		SourceLang string `json:"source_lang"`
		Provider   string `json:"provider"`
	}
	if err := decodeBody(w, r, "translate", &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	out, err := s.current().assistant.Translate(r.Context(), assistant.TranslateInput{
		Text:       req.Text,
		TargetLang: req.TargetLang,
		SourceLang: req.SourceLang,
		Provider:   req.Provider,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	jsonOK(w, textResponse{Text: out}, http.StatusOK)
}

func (s *Server) summarize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text      string `json:"text"`
		MaxLength int    `json:"max_length"`
		Provider  string `json:"provider"`
	}
	if err := decodeBody(w, r, "summarize", &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	out, err := s.current().assistant.Summarize(r.Context(), assistant.SummarizeInput{
		Text:      req.Text,
		MaxLength: req.MaxLength,
		Provider:  req.Provider,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	jsonOK(w, textResponse{Text: out}, http.StatusOK)
}

func (s *Server) qa(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Context  string             `json:"context"`
		Question string             `json:"question"`
		History  []assistant.QATurn `json:"history"`
		Provider string             `json:"provider"`
		Stream   bool               `json:"stream"`
	}
	if err := decodeBody(w, r, "qa", &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	out, err := s.current().assistant.Answer(r.Context(), assistant.QAInput{
		Context:  req.Context,
		Question: req.Question,
		History:  req.History,
		Provider: req.Provider,
		Stream:   req.Stream,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	jsonOK(w, textResponse{Text: out}, http.StatusOK)
}

type chatResponse struct {
	Message assistant.Message `json:"message"`
	Success bool              `json:"success"`
	Error   string            `json:"error,omitempty"`
}

// chat 生成失败时仍返回 200，以 success=false 告知调用方
func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Messages  []assistant.Message  `json:"messages"`
		ModelType string               `json:"model_type"`
		Context   *assistant.Reference `json:"context"`
	}
	if err := decodeBody(w, r, "chat", &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	msg, err := s.current().assistant.Chat(r.Context(), assistant.ChatInput{
		Messages:  req.Messages,
		Provider:  req.ModelType,
		Reference: req.Context,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("provider", req.ModelType).Msg("chat failed")
		jsonOK(w, chatResponse{
			Message: assistant.Message{Role: assistant.RoleAssistant, Content: err.Error()},
			Success: false,
			Error:   err.Error(),
		}, http.StatusOK)
		return
	}
	jsonOK(w, chatResponse{Message: msg, Success: true}, http.StatusOK)
}

type providerView struct {
	ID            string  `json:"id"`
	Model         string  `json:"model"`
	Style         string  `json:"style"`
	Endpoint      string  `json:"endpoint"`
	Preflight     bool    `json:"preflight"`
	RateLimit     float64 `json:"rate_limit,omitempty"`
	HasCredential bool    `json:"has_credential"`
	Default       bool    `json:"default"`
}

func (b *backend) view(p llm.Profile) providerView {
	return providerView{
		ID:            p.ID,
		Model:         p.Model,
		Style:         p.Style.String(),
		Endpoint:      p.Redacted().Endpoint,
		Preflight:     p.Preflight,
		RateLimit:     p.RateLimit,
		HasCredential: p.HasCredential(),
		Default:       p.ID == b.defaultProvider,
	}
}

func (s *Server) listProviders(w http.ResponseWriter, r *http.Request) {
	b := s.current()
	profiles := b.gw.Profiles()
	out := make([]providerView, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, b.view(p))
	}
	jsonOK(w, out, http.StatusOK)
}

// getProvider 返回 provider 配置、可用性和模型信息
func (s *Server) getProvider(w http.ResponseWriter, r *http.Request) {
	b := s.current()
	id := r.PathValue("id")
	p, err := b.gw.Registry().Resolve(id)
	if err != nil {
		jsonErr(w, err.Error(), http.StatusNotFound)
		return
	}
	jsonOK(w, struct {
		providerView
		Available bool           `json:"available"`
		ModelInfo map[string]any `json:"model_info"`
	}{
		providerView: b.view(p),
		Available:    b.gw.IsAvailable(r.Context(), id),
		ModelInfo:    b.gw.ModelInfo(r.Context(), id),
	}, http.StatusOK)
}
