package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/signalroi/signalroi/internal/config"
)

// Router sends requests to the primary backend and falls back to the others
// when it is unreachable or rate limited.
type Router struct {
	mu         sync.RWMutex
	providers  map[string]LLMProvider
	primary    string
	fallbacks  []string
	maxRetries int
	retryDelay time.Duration
	log        zerolog.Logger
}

// RouterOption configures the router.
type RouterOption func(*Router)

// WithFallbacks sets the fallback provider chain.
func WithFallbacks(providers ...string) RouterOption {
	return func(r *Router) { r.fallbacks = providers }
}

// WithMaxRetries sets the maximum number of retry attempts per provider.
func WithMaxRetries(n int) RouterOption {
	return func(r *Router) { r.maxRetries = n }
}

// WithRetryDelay sets the base delay between retries.
func WithRetryDelay(d time.Duration) RouterOption {
	return func(r *Router) { r.retryDelay = d }
}

// WithRouterLogger sets the logger used to report failovers.
func WithRouterLogger(l zerolog.Logger) RouterOption {
	return func(r *Router) { r.log = l }
}

// NewRouter creates a new router with the given primary provider.
func NewRouter(primary string, opts ...RouterOption) *Router {
	r := &Router{
		providers:  make(map[string]LLMProvider),
		primary:    primary,
		maxRetries: 1,
		retryDelay: time.Second,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterProvider adds a provider to the router.
func (r *Router) RegisterProvider(provider LLMProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[provider.Name()] = provider
}

// GetProvider returns a registered provider by name.
func (r *Router) GetProvider(name string) (LLMProvider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// Name returns the name of the primary provider (satisfies LLMProvider).
func (r *Router) Name() string {
	return "router/" + r.primary
}

// Chat routes a request through the provider chain with fallback.
func (r *Router) Chat(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error) {
	var lastErr error
	tried := 0
	for _, name := range r.providerChain() {
		provider, ok := r.GetProvider(name)
		if !ok {
			continue
		}
		tried++

		resp, err := r.chatWithRetry(ctx, provider, messages, opts)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !isRetryable(err) {
			return nil, err
		}
		r.log.Warn().Err(err).Str("provider", name).Msg("llm provider failed, trying next")
	}

	if tried == 0 {
		return nil, ErrNoProviders
	}
	return nil, fmt.Errorf("llm/router: all providers failed, last error: %w", lastErr)
}

func (r *Router) providerChain() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	chain := []string{r.primary}
	for _, fb := range r.fallbacks {
		if fb != r.primary {
			chain = append(chain, fb)
		}
	}
	return chain
}

func (r *Router) chatWithRetry(ctx context.Context, provider LLMProvider, messages []Message, opts *ChatOptions) (*Response, error) {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			delay := r.retryDelay * time.Duration(attempt)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		resp, err := provider.Chat(ctx, messages, opts)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !isRetryable(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

// isRetryable reports whether another attempt, or another backend, could
// succeed. Key, model and safety failures are final.
func isRetryable(err error) bool {
	return errors.Is(err, ErrProviderDown) || errors.Is(err, ErrRateLimit)
}

// NewRouterFromConfig builds a router from the advisor settings. The backend
// named by cfg.Backend is primary and the other one is its fallback.
func NewRouterFromConfig(ctx context.Context, cfg config.AdvisorConfig, log zerolog.Logger) (*Router, error) {
	if cfg.GeminiKey == "" {
		return nil, ErrNoAPIKey
	}

	primary, fallback := ProviderGemini, ProviderGenAI
	if cfg.Backend == ProviderGenAI {
		primary, fallback = ProviderGenAI, ProviderGemini
	}
	router := NewRouter(primary,
		WithFallbacks(fallback),
		WithRouterLogger(log),
	)

	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	rest, err := NewGeminiProvider(cfg.GeminiKey,
		WithGeminiModel(cfg.Chat.Model),
		WithGeminiHTTPClient(&http.Client{Timeout: timeout}),
	)
	if err != nil {
		return nil, err
	}
	router.RegisterProvider(rest)

	sdk, err := NewGenAIProvider(ctx, cfg.GeminiKey,
		WithGenAIModel(cfg.Chat.Model),
		WithGenAIHTTPClient(&http.Client{Timeout: timeout}),
	)
	if err != nil {
		log.Warn().Err(err).Msg("genai backend unavailable, using REST only")
	} else {
		router.RegisterProvider(sdk)
	}
	return router, nil
}
