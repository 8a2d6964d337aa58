package waitlist

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalroi/signalroi/internal/config"
)

func testConfig() config.WaitlistConfig {
	return config.WaitlistConfig{APIKey: "key-us21", AudienceID: "aud123", ServerPrefix: "us21"}
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := NewClient(testConfig(), zerolog.Nop(), WithBaseURL(srv.URL))
	c.now = func() time.Time { return time.Date(2026, 5, 4, 3, 2, 1, 0, time.UTC) }
	return c
}

func TestSubscribeSendsMemberRequest(t *testing.T) {
	var got memberRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/lists/aud123/members", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "anystring", user)
		assert.Equal(t, "key-us21", pass)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"id":"abc123","email_address":"a@b.co","status":"subscribed"}`))
	})

	sub, err := c.Subscribe(context.Background(), " a@b.co ", ListAutomation)
	require.NoError(t, err)
	assert.Equal(t, "abc123", sub.ID)
	assert.NotEmpty(t, sub.RequestID)
	assert.Equal(t, "Successfully subscribed to waitlist", sub.Message)

	assert.Equal(t, "a@b.co", got.EmailAddress)
	assert.Equal(t, "subscribed", got.Status)
	assert.Equal(t, []string{"Automation Waitlist"}, got.Tags)
	assert.Equal(t, "Upsell Form", got.MergeFields["SOURCE"])
	assert.Equal(t, "2026-05-04T03:02:01.000Z", got.MergeFields["SIGNUP_DATE"])
}

func TestSubscribeBetaList(t *testing.T) {
	var got memberRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"id":"x"}`))
	})

	_, err := c.Subscribe(context.Background(), "a@b.co", ParseListType("anything"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Beta Waitlist"}, got.Tags)
	assert.Equal(t, "Beta Footer Form", got.MergeFields["SOURCE"])
}

func TestSubscribeMemberExists(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"title":"Member Exists","status":400,"detail":"a@b.co is already a list member."}`))
	})

	_, err := c.Subscribe(context.Background(), "a@b.co", ListBeta)
	assert.ErrorIs(t, err, ErrMemberExists)
}

func TestSubscribeAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"title":"API Key Invalid","status":401,"detail":"Your API key may be invalid."}`))
	})

	_, err := c.Subscribe(context.Background(), "a@b.co", ListBeta)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "Your API key may be invalid.", apiErr.Detail)
	assert.Contains(t, err.Error(), "401")
}

func TestSubscribeInvalidEmail(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { called = true })

	for _, email := range []string{"", "   ", "not-an-email"} {
		_, err := c.Subscribe(context.Background(), email, ListBeta)
		assert.ErrorIs(t, err, ErrInvalidEmail, email)
	}
	assert.False(t, called)
}

func TestSubscribeNotConfigured(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.WaitlistConfig
	}{
		{"no key", config.WaitlistConfig{AudienceID: "a", ServerPrefix: "us1"}},
		{"no audience", config.WaitlistConfig{APIKey: "k", ServerPrefix: "us1"}},
		{"no prefix", config.WaitlistConfig{APIKey: "k", AudienceID: "a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClient(tt.cfg, zerolog.Nop())
			assert.False(t, c.Configured())
			_, err := c.Subscribe(context.Background(), "a@b.co", ListBeta)
			assert.ErrorIs(t, err, ErrNotConfigured)
		})
	}
}

func TestNewClientDerivesBaseURL(t *testing.T) {
	c := NewClient(testConfig(), zerolog.Nop())
	assert.Equal(t, "https://us21.api.mailchimp.com/3.0", c.baseURL)
	assert.True(t, c.Configured())
}

func TestParseListType(t *testing.T) {
	assert.Equal(t, ListAutomation, ParseListType("automation"))
	assert.Equal(t, ListAutomation, ParseListType(" Automation "))
	assert.Equal(t, ListBeta, ParseListType("beta"))
	assert.Equal(t, ListBeta, ParseListType(""))
}
