package llm

import (
	"encoding/json"
	"net/http"
	"strings"
)

// wireRequest is the provider specific form of a Request.
type wireRequest struct {
	URL    string
	Body   []byte
	Header http.Header
}

type buildFunc func(p Profile, req Request) (wireRequest, error)

type ollamaGenerateRequest struct {
	Model       string   `json:"model"`
	Prompt      string   `json:"prompt"`
	Temperature float64  `json:"temperature"`
	Stream      bool     `json:"stream"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stop        []string      `json:"stop,omitempty"`
}

// buildOllama folds the system prompt into the single prompt field; the
// generate endpoint has no system role.
func buildOllama(p Profile, req Request) (wireRequest, error) {
	prompt := req.Prompt
	if req.SystemPrompt != "" {
		prompt = req.SystemPrompt + "\n\n" + req.Prompt
	}
	body, err := json.Marshal(ollamaGenerateRequest{
		Model:       p.Model,
		Prompt:      prompt,
		Temperature: req.Temperature,
		Stream:      req.Stream,
		MaxTokens:   req.MaxTokens,
		Stop:        req.Stop,
	})
	if err != nil {
		return wireRequest{}, err
	}

	h := make(http.Header)
	h.Set("Content-Type", "application/json")
	if req.Stream {
		h.Set("Accept", "application/x-ndjson")
	} else {
		h.Set("Accept", "application/json")
	}
	return wireRequest{URL: p.generateURL(), Body: body, Header: h}, nil
}

func buildOpenAIChat(p Profile, req Request) (wireRequest, error) {
	if !p.HasCredential() {
		return wireRequest{}, &MissingCredentialError{Provider: p.ID, Style: p.Style}
	}

	msgs := make([]chatMessage, 0, 2)
	if req.SystemPrompt != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: req.Prompt})

	body, err := json.Marshal(chatCompletionRequest{
		Model:       p.Model,
		Messages:    msgs,
		Temperature: req.Temperature,
		Stream:      req.Stream,
		MaxTokens:   req.MaxTokens,
		Stop:        req.Stop,
	})
	if err != nil {
		return wireRequest{}, err
	}

	h := make(http.Header)
	h.Set("Content-Type", "application/json")
	h.Set("Authorization", "Bearer "+strings.TrimSpace(p.APIKey))
	if req.Stream {
		h.Set("Accept", "text/event-stream")
	} else {
		h.Set("Accept", "application/json")
	}
	return wireRequest{URL: p.generateURL(), Body: body, Header: h}, nil
}
