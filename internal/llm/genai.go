package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/genai"
)

// GenAIProvider implements LLMProvider on top of the official genai SDK.
type GenAIProvider struct {
	client *genai.Client
	model  string
}

// GenAIOption configures the SDK-backed provider.
type GenAIOption func(*genai.ClientConfig, *GenAIProvider)

// WithGenAIModel sets the default model.
func WithGenAIModel(model string) GenAIOption {
	return func(_ *genai.ClientConfig, p *GenAIProvider) { p.model = model }
}

// WithGenAIBaseURL points the SDK at a different API root.
func WithGenAIBaseURL(url string) GenAIOption {
	return func(cc *genai.ClientConfig, _ *GenAIProvider) { cc.HTTPOptions.BaseURL = url }
}

// WithGenAIHTTPClient sets a custom HTTP client.
func WithGenAIHTTPClient(client *http.Client) GenAIOption {
	return func(cc *genai.ClientConfig, _ *GenAIProvider) { cc.HTTPClient = client }
}

// NewGenAIProvider creates an SDK-backed provider talking to the Gemini API.
func NewGenAIProvider(ctx context.Context, apiKey string, opts ...GenAIOption) (*GenAIProvider, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	p := &GenAIProvider{model: "gemini-2.5-flash"}
	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	for _, opt := range opts {
		opt(cc, p)
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("genai: create client: %w", err)
	}
	p.client = client
	return p, nil
}

func (p *GenAIProvider) Name() string { return ProviderGenAI }

// Chat sends the conversation through Models.GenerateContent.
func (p *GenAIProvider) Chat(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error) {
	start := time.Now()
	model := p.model
	if opts != nil && opts.Model != "" {
		model = opts.Model
	}

	contents, cfg := buildGenAIRequest(messages, opts)
	result, err := p.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return nil, mapGenAIError(ctx, err)
	}
	return parseGenAIResponse(result, model, start)
}

func buildGenAIRequest(messages []Message, opts *ChatOptions) ([]*genai.Content, *genai.GenerateContentConfig) {
	cfg := &genai.GenerateContentConfig{}
	var contents []*genai.Content

	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			cfg.SystemInstruction = genai.NewContentFromText(m.Content, genai.RoleUser)
		case RoleUser:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		}
	}

	for _, c := range SafetyCategories {
		cfg.SafetySettings = append(cfg.SafetySettings, &genai.SafetySetting{
			Category:  genai.HarmCategory(c),
			Threshold: genai.HarmBlockThreshold(SafetyThreshold),
		})
	}

	if opts != nil {
		if opts.Temperature > 0 {
			cfg.Temperature = genai.Ptr(float32(opts.Temperature))
		}
		if opts.TopK > 0 {
			cfg.TopK = genai.Ptr(float32(opts.TopK))
		}
		if opts.TopP > 0 {
			cfg.TopP = genai.Ptr(float32(opts.TopP))
		}
		if opts.MaxTokens > 0 {
			cfg.MaxOutputTokens = int32(opts.MaxTokens)
		}
		cfg.StopSequences = opts.Stop
	}
	return contents, cfg
}

func parseGenAIResponse(result *genai.GenerateContentResponse, model string, start time.Time) (*Response, error) {
	if result == nil || len(result.Candidates) == 0 {
		if result != nil && result.PromptFeedback != nil && result.PromptFeedback.BlockReason != "" {
			return nil, fmt.Errorf("%w: %s", ErrBlocked, result.PromptFeedback.BlockReason)
		}
		return nil, ErrEmptyResponse
	}

	r := &Response{
		Model:    model,
		Provider: ProviderGenAI,
		Latency:  time.Since(start),
	}
	if u := result.UsageMetadata; u != nil {
		r.Usage = Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}

	candidate := result.Candidates[0]
	r.FinishReason = mapGeminiFinishReason(string(candidate.FinishReason))
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if part != nil && part.Text != "" && !part.Thought {
				r.Content += part.Text
			}
		}
	}

	if r.Content == "" && r.FinishReason != FinishSafety {
		return nil, ErrEmptyResponse
	}
	return r, nil
}

// mapGenAIError folds SDK errors into the package sentinels.
func mapGenAIError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("%w: %v", ErrProviderDown, err)
	}
	switch {
	case apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrNoAPIKey, apiErr.Message)
	case apiErr.Code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimit, apiErr.Message)
	case apiErr.Code == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrInvalidModel, apiErr.Message)
	case apiErr.Code >= 500:
		return fmt.Errorf("%w: HTTP %d: %s", ErrProviderDown, apiErr.Code, apiErr.Message)
	}
	return fmt.Errorf("genai: API error (%d): %s", apiErr.Code, apiErr.Message)
}
