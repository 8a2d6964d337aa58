// Package waitlist signs people up to the product waitlists kept in a
// Mailchimp audience.
package waitlist

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/signalroi/signalroi/internal/config"
)

var (
	ErrInvalidEmail  = errors.New("invalid email address")
	ErrMemberExists  = errors.New("this email is already subscribed")
	ErrNotConfigured = errors.New("waitlist not configured")
)

// ListType selects which waitlist a signup lands on.
type ListType string

const (
	ListBeta       ListType = "beta"
	ListAutomation ListType = "automation"
)

// ParseListType maps free text to a ListType. Anything other than
// "automation" is the beta list.
func ParseListType(s string) ListType {
	if strings.EqualFold(strings.TrimSpace(s), string(ListAutomation)) {
		return ListAutomation
	}
	return ListBeta
}

// Tag is the audience tag applied to members of the list.
func (l ListType) Tag() string {
	if l == ListAutomation {
		return "Automation Waitlist"
	}
	return "Beta Waitlist"
}

// Source is the SOURCE merge field recorded for the list.
func (l ListType) Source() string {
	if l == ListAutomation {
		return "Upsell Form"
	}
	return "Beta Footer Form"
}

// APIError is a Mailchimp error response other than "Member Exists".
type APIError struct {
	StatusCode int
	Title      string
	Detail     string
}

func (e *APIError) Error() string {
	msg := e.Detail
	if msg == "" {
		msg = "failed to subscribe"
	}
	return fmt.Sprintf("mailchimp: HTTP %d: %s", e.StatusCode, msg)
}

// Subscription is the result of a successful signup.
type Subscription struct {
	ID        string   `json:"id"`         // Mailchimp member id
	RequestID string   `json:"request_id"` // local correlation id
	Email     string   `json:"email"`
	List      ListType `json:"list"`
	Message   string   `json:"message"`
}

// Client talks to the Mailchimp marketing API.
type Client struct {
	apiKey     string
	audienceID string
	baseURL    string
	client     *http.Client
	log        zerolog.Logger
	now        func() time.Time
}

// Option configures the client.
type Option func(*Client)

// WithBaseURL overrides the API root, which is otherwise derived from the
// server prefix.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(url, "/") }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// NewClient builds a client from the waitlist config section. A client with
// missing credentials is still returned; Subscribe reports ErrNotConfigured.
func NewClient(cfg config.WaitlistConfig, log zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		apiKey:     cfg.APIKey,
		audienceID: cfg.AudienceID,
		client:     &http.Client{Timeout: 15 * time.Second},
		log:        log.With().Str("component", "waitlist").Logger(),
		now:        time.Now,
	}
	if cfg.ServerPrefix != "" {
		c.baseURL = fmt.Sprintf("https://%s.api.mailchimp.com/3.0", cfg.ServerPrefix)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether every credential is present.
func (c *Client) Configured() bool {
	return c.apiKey != "" && c.audienceID != "" && c.baseURL != ""
}

type memberRequest struct {
	EmailAddress string            `json:"email_address"`
	Status       string            `json:"status"`
	Tags         []string          `json:"tags"`
	MergeFields  map[string]string `json:"merge_fields"`
}

type memberResponse struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// Subscribe adds email to the audience, tagged for list.
func (c *Client) Subscribe(ctx context.Context, email string, list ListType) (*Subscription, error) {
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, ErrInvalidEmail
	}
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	reqID := uuid.NewString()
	log := c.log.With().Str("request_id", reqID).Str("list", string(list)).Logger()

	body, err := json.Marshal(memberRequest{
		EmailAddress: email,
		Status:       "subscribed",
		Tags:         []string{list.Tag()},
		MergeFields: map[string]string{
			"SOURCE":      list.Source(),
			"SIGNUP_DATE": c.now().UTC().Format("2006-01-02T15:04:05.000Z"),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("mailchimp: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/lists/%s/members", c.baseURL, c.audienceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("anystring:"+c.apiKey)))

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mailchimp: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var mr memberResponse
	_ = json.Unmarshal(raw, &mr)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if mr.Title == "Member Exists" {
			log.Info().Msg("already subscribed")
			return nil, ErrMemberExists
		}
		log.Error().Int("status", resp.StatusCode).Str("title", mr.Title).Str("detail", mr.Detail).Msg("mailchimp API error")
		return nil, &APIError{StatusCode: resp.StatusCode, Title: mr.Title, Detail: mr.Detail}
	}

	log.Info().Str("member_id", mr.ID).Msg("subscribed")
	return &Subscription{
		ID:        mr.ID,
		RequestID: reqID,
		Email:     email,
		List:      list,
		Message:   "Successfully subscribed to waitlist",
	}, nil
}
