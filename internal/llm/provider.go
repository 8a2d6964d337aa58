// Package llm is a thin text-generation layer over Google's Gemini models.
// Two interchangeable backends exist: a hand-rolled REST client and one built
// on the official genai SDK. A Router picks between them with fallback.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Provider names for routing and configuration.
const (
	ProviderGemini = "rest"
	ProviderGenAI  = "sdk"
)

// Common errors returned by providers.
var (
	ErrNoAPIKey      = errors.New("llm: API key not configured")
	ErrRateLimit     = errors.New("llm: rate limit exceeded")
	ErrProviderDown  = errors.New("llm: provider unavailable")
	ErrInvalidModel  = errors.New("llm: invalid model")
	ErrBlocked       = errors.New("llm: prompt blocked by safety filters")
	ErrEmptyResponse = errors.New("llm: response contained no text")
	ErrNoProviders   = errors.New("llm: no providers configured")
)

// Role represents the role of a message sender.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// FinishReason indicates why the model stopped generating.
type FinishReason string

const (
	FinishStop   FinishReason = "stop"
	FinishLength FinishReason = "length"
	FinishSafety FinishReason = "safety"
	FinishError  FinishReason = "error"
)

// Safety categories sent with every request, all blocked at medium and above.
var SafetyCategories = []string{
	"HARM_CATEGORY_HARASSMENT",
	"HARM_CATEGORY_HATE_SPEECH",
	"HARM_CATEGORY_SEXUALLY_EXPLICIT",
	"HARM_CATEGORY_DANGEROUS_CONTENT",
}

// SafetyThreshold is the block threshold applied to SafetyCategories.
const SafetyThreshold = "BLOCK_MEDIUM_AND_ABOVE"

// Message represents a single message in a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Response represents a complete response from the model.
type Response struct {
	Content      string        `json:"content"`
	FinishReason FinishReason  `json:"finish_reason"`
	Usage        Usage         `json:"usage"`
	Model        string        `json:"model"`
	Provider     string        `json:"provider"`
	Latency      time.Duration `json:"latency"`
}

// Usage tracks token consumption for a request.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatOptions configures a single request. Zero values leave the
// provider default in place.
type ChatOptions struct {
	Model       string   `json:"model,omitempty"`
	Temperature float64  `json:"temperature,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	TopP        float64  `json:"top_p,omitempty"`
	TopK        int      `json:"top_k,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

// LLMProvider is the interface every backend implements.
type LLMProvider interface {
	// Name returns the provider identifier ("rest" or "sdk").
	Name() string

	// Chat sends a conversation and returns a complete response. A response
	// cut short by the token limit or by safety filters is still returned,
	// with FinishReason set, so callers can keep any partial text.
	Chat(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error)
}

// NewMessage creates a message with the given role and content.
func NewMessage(role Role, content string) Message {
	return Message{Role: role, Content: content}
}

// SystemMessage creates a system prompt message.
func SystemMessage(content string) Message {
	return NewMessage(RoleSystem, content)
}

// UserMessage creates a user message.
func UserMessage(content string) Message {
	return NewMessage(RoleUser, content)
}

// AssistantMessage creates an assistant message.
func AssistantMessage(content string) Message {
	return NewMessage(RoleAssistant, content)
}

// Truncated reports whether generation stopped at the token limit.
func (r *Response) Truncated() bool {
	return r.FinishReason == FinishLength
}

// String returns a human-readable summary of the response.
func (r *Response) String() string {
	truncated := r.Content
	if len(truncated) > 100 {
		truncated = truncated[:100] + "..."
	}
	return fmt.Sprintf("[%s/%s] %q, %s, %d tokens, %v",
		r.Provider, r.Model, truncated, r.FinishReason, r.Usage.TotalTokens, r.Latency.Round(time.Millisecond))
}
