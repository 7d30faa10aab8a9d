// Package assistant 在 llm.Gateway 之上提供翻译、摘要、问答与聊天服务。
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lgc202/llm-gateway/llm"
)

const (
	qaTemperature   = 0.3
	chatTemperature = 0.7

	// 超过该长度的文本先分块摘要再合并
	longTextRunes   = 8000
	summaryChunkLen = 4000
	summaryWorkers  = 4
)

// Generator 是服务依赖的生成能力，*llm.Gateway 满足该接口。
type Generator interface {
	Generate(ctx context.Context, providerID string, req llm.Request) (string, error)
}

// Service 无状态，可并发使用。
type Service struct {
	gen             Generator
	defaultProvider string
	logger          zerolog.Logger
}

func New(gen Generator, defaultProvider string, logger zerolog.Logger) *Service {
	return &Service{
		gen:             gen,
		defaultProvider: defaultProvider,
		logger:          logger.With().Str("component", "assistant").Logger(),
	}
}

func (s *Service) provider(id string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return s.defaultProvider
}

type TranslateInput struct {
	Text       string
	TargetLang string
	SourceLang string
	Provider   string
}

func (s *Service) Translate(ctx context.Context, in TranslateInput) (string, error) {
	if strings.TrimSpace(in.Text) == "" || strings.TrimSpace(in.TargetLang) == "" {
		return "", fmt.Errorf("%w: text and target language are required", llm.ErrInvalidRequest)
	}

	req := llm.NewRequest(
		translatePrompt(in.Text, in.TargetLang, in.SourceLang),
		llm.WithSystemPrompt(translatorSystemPrompt),
	)
	out, err := s.gen.Generate(ctx, s.provider(in.Provider), req)
	if err != nil {
		return "", fmt.Errorf("翻译失败: %w", err)
	}
	return out, nil
}

type SummarizeInput struct {
	Text      string
	MaxLength int
	Provider  string
}

// Summarize 先清洗文本；长文本按句切块并发摘要，再对各块摘要做一次合并摘要。
func (s *Service) Summarize(ctx context.Context, in SummarizeInput) (string, error) {
	if in.MaxLength < 0 {
		return "", fmt.Errorf("%w: max length must not be negative", llm.ErrInvalidRequest)
	}
	text := CleanText(in.Text)
	if text == "" {
		return "", fmt.Errorf("%w: text is empty after cleaning", llm.ErrInvalidRequest)
	}
	provider := s.provider(in.Provider)

	if utf8.RuneCountInString(text) > longTextRunes {
		chunks := SplitText(text, summaryChunkLen)
		s.logger.Debug().Int("chunks", len(chunks)).Str("provider", provider).Msg("summarize long text in chunks")

		parts, err := s.summarizeChunks(ctx, provider, chunks)
		if err != nil {
			return "", fmt.Errorf("生成摘要失败: %w", err)
		}
		text = strings.Join(parts, "\n")
	}

	out, err := s.summarize(ctx, provider, text, in.MaxLength)
	if err != nil {
		return "", fmt.Errorf("生成摘要失败: %w", err)
	}
	return out, nil
}

func (s *Service) summarize(ctx context.Context, provider, text string, maxLength int) (string, error) {
	req := llm.NewRequest(summarizePrompt(text, maxLength), llm.WithSystemPrompt(summarizerSystemPrompt))
	return s.gen.Generate(ctx, provider, req)
}

func (s *Service) summarizeChunks(ctx context.Context, provider string, chunks []string) ([]string, error) {
	parts := make([]string, len(chunks))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(summaryWorkers)
	for i, chunk := range chunks {
		g.Go(func() error {
			out, err := s.summarize(ctx, provider, chunk, 0)
			if err != nil {
				return err
			}
			parts[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return parts, nil
}

// QATurn 是一轮历史问答，Answer 可以为空。
type QATurn struct {
	Question string `json:"question"`
	Answer   string `json:"answer,omitempty"`
}

type QAInput struct {
	Context  string
	Question string
	History  []QATurn
	Provider string
	Stream   bool
}

func (s *Service) Answer(ctx context.Context, in QAInput) (string, error) {
	if strings.TrimSpace(in.Question) == "" {
		return "", fmt.Errorf("%w: question is required", llm.ErrInvalidRequest)
	}

	req := llm.NewRequest(
		qaPrompt(in.Context, in.Question, in.History),
		llm.WithSystemPrompt(qaSystemPrompt),
		llm.WithTemperature(qaTemperature),
		llm.WithStream(in.Stream),
	)
	out, err := s.gen.Generate(ctx, s.provider(in.Provider), req)
	if err != nil {
		return "", fmt.Errorf("问答失败: %w", err)
	}
	return out, nil
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Reference 是聊天时附带的参考资料
type Reference struct {
	Title   string `json:"title,omitempty"`
	URL     string `json:"url,omitempty"`
	Content string `json:"content,omitempty"`
}

func (r *Reference) empty() bool {
	return r.Title == "" && r.URL == "" && r.Content == ""
}

type ChatInput struct {
	Messages  []Message
	Provider  string
	Reference *Reference
}

var errNoUserMessage = errors.New("last message must come from the user")

// Chat 只有单条消息且没有参考资料时直接以其内容为提示词，否则把历史与参考资料拼入提示词。
func (s *Service) Chat(ctx context.Context, in ChatInput) (Message, error) {
	if len(in.Messages) == 0 {
		return Message{}, fmt.Errorf("%w: messages are required", llm.ErrInvalidRequest)
	}
	last := in.Messages[len(in.Messages)-1]
	if last.Role != RoleUser {
		return Message{}, fmt.Errorf("%w: %w", llm.ErrInvalidRequest, errNoUserMessage)
	}

	provider := s.provider(in.Provider)
	prompt := last.Content
	if len(in.Messages) > 1 || (in.Reference != nil && !in.Reference.empty()) {
		prompt = chatPrompt(in.Messages, in.Reference)
	}

	req := llm.NewRequest(
		prompt,
		llm.WithSystemPrompt(chatSystemPromptFor(provider)),
		llm.WithTemperature(chatTemperature),
	)
	out, err := s.gen.Generate(ctx, provider, req)
	if err != nil {
		return Message{}, fmt.Errorf("聊天失败: %w", err)
	}
	return Message{Role: RoleAssistant, Content: out}, nil
}
