// Package advisor turns a metrics snapshot into free-text commentary by
// prompting a text-generation backend. It never changes the numbers it is
// given.
package advisor

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/signalroi/signalroi/internal/advisor/prompts"
	"github.com/signalroi/signalroi/internal/config"
	"github.com/signalroi/signalroi/internal/llm"
	"github.com/signalroi/signalroi/internal/metrics"
)

// ChatMessage is one turn of a conversation as exchanged with clients.
// Any role other than "user" is treated as the advisor's own reply.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Generator produces commentary for a snapshot.
//
// A truncated response is returned together with an *Error of
// KindTruncated; the returned string is still usable.
type Generator interface {
	Insights(ctx context.Context, m metrics.Metrics) (string, error)
	Chat(ctx context.Context, m metrics.Metrics, history []ChatMessage) (string, error)
}

// Service is the Generator backed by an llm.LLMProvider.
type Service struct {
	provider llm.LLMProvider
	cfg      config.AdvisorConfig
	log      zerolog.Logger
}

var _ Generator = (*Service)(nil)

// NewService creates a Service. A nil provider yields a Service whose calls
// fail with ErrNotConfigured.
func NewService(provider llm.LLMProvider, cfg config.AdvisorConfig, log zerolog.Logger) *Service {
	return &Service{
		provider: provider,
		cfg:      cfg,
		log:      log.With().Str("component", "advisor").Logger(),
	}
}

// New builds a Service from config, wiring the REST and SDK backends behind
// a router. Without a Gemini key the Service is returned unconfigured.
func New(ctx context.Context, cfg config.AdvisorConfig, log zerolog.Logger) *Service {
	router, err := llm.NewRouterFromConfig(ctx, cfg, log)
	if err != nil {
		log.Warn().Err(err).Msg("advisor disabled")
		return NewService(nil, cfg, log)
	}
	return NewService(router, cfg, log)
}

// Configured reports whether a backend is available.
func (s *Service) Configured() bool { return s.provider != nil }

// Insights returns a structured analysis of the snapshot. A response cut short
// by the token limit ends with prompts.TruncationNotice.
func (s *Service) Insights(ctx context.Context, m metrics.Metrics) (string, error) {
	messages := []llm.Message{llm.UserMessage(prompts.Insights(m))}

	resp, reqID, err := s.generate(ctx, "insights", messages, chatOptions(s.cfg.Insights))
	if err != nil {
		return "", err
	}
	if resp.Truncated() {
		text := resp.Content + "\n\n" + prompts.TruncationNotice
		s.log.Warn().Str("request_id", reqID).Msg("insights truncated at token limit")
		return text, &Error{Kind: KindTruncated, Partial: text, RequestID: reqID}
	}
	return resp.Content, nil
}

// Chat answers the latest question in history with the snapshot as context.
func (s *Service) Chat(ctx context.Context, m metrics.Metrics, history []ChatMessage) (string, error) {
	if len(history) == 0 {
		return "", ErrNoMessages
	}

	messages := make([]llm.Message, 0, len(history)+1)
	messages = append(messages, llm.SystemMessage(prompts.ChatSystemPrompt(m)))
	for _, msg := range history {
		if strings.EqualFold(msg.Role, string(llm.RoleUser)) {
			messages = append(messages, llm.UserMessage(msg.Content))
		} else {
			messages = append(messages, llm.AssistantMessage(msg.Content))
		}
	}

	resp, reqID, err := s.generate(ctx, "chat", messages, chatOptions(s.cfg.Chat))
	if err != nil {
		return "", err
	}
	if resp.Truncated() {
		s.log.Warn().Str("request_id", reqID).Msg("chat reply truncated at token limit")
		return resp.Content, &Error{Kind: KindTruncated, Partial: resp.Content, RequestID: reqID}
	}
	return resp.Content, nil
}

// generate runs one provider call and folds its failures into advisor kinds.
func (s *Service) generate(ctx context.Context, op string, messages []llm.Message, opts *llm.ChatOptions) (*llm.Response, string, error) {
	reqID := uuid.NewString()
	log := s.log.With().Str("request_id", reqID).Str("op", op).Logger()

	if s.provider == nil {
		log.Error().Msg("missing Gemini API key")
		return nil, reqID, &Error{Kind: KindNotConfigured, RequestID: reqID}
	}

	if s.cfg.TimeoutSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.cfg.TimeoutSec)*time.Second)
		defer cancel()
	}

	start := time.Now()
	resp, err := s.provider.Chat(ctx, messages, opts)
	if err != nil {
		kind := classify(err)
		log.Error().Err(err).Str("kind", kind.String()).Dur("latency", time.Since(start)).Msg("generation failed")
		return nil, reqID, &Error{Kind: kind, RequestID: reqID, Err: err}
	}
	if resp.FinishReason == llm.FinishSafety {
		log.Error().Msg("response blocked by safety filters")
		return nil, reqID, &Error{Kind: KindContentFiltered, RequestID: reqID}
	}

	log.Info().
		Str("provider", resp.Provider).
		Str("model", resp.Model).
		Str("finish", string(resp.FinishReason)).
		Int("tokens", resp.Usage.TotalTokens).
		Dur("latency", time.Since(start)).
		Msg("generation complete")
	return resp, reqID, nil
}

func classify(err error) Kind {
	switch {
	case errors.Is(err, llm.ErrBlocked):
		return KindContentFiltered
	case errors.Is(err, llm.ErrNoProviders):
		return KindNotConfigured
	default:
		return KindServiceUnavailable
	}
}

func chatOptions(g config.GenerationConfig) *llm.ChatOptions {
	return &llm.ChatOptions{
		Model:       g.Model,
		Temperature: g.Temperature,
		TopK:        g.TopK,
		TopP:        g.TopP,
		MaxTokens:   g.MaxTokens,
	}
}
