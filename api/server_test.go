package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/signalroi/signalroi/internal/advisor"
	"github.com/signalroi/signalroi/internal/config"
	"github.com/signalroi/signalroi/internal/metrics"
	"github.com/signalroi/signalroi/internal/store"
	"github.com/signalroi/signalroi/internal/waitlist"
	"github.com/signalroi/signalroi/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// Test Helpers
// ════════════════════════════════════════════════════════════════════

type fakeAdvisor struct {
	mu       sync.Mutex
	text     string
	err      error
	calls    int
	lastMsgs []advisor.ChatMessage
	lastM    metrics.Metrics
}

func (f *fakeAdvisor) Insights(_ context.Context, m metrics.Metrics) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastM = m
	return f.text, f.err
}

func (f *fakeAdvisor) Chat(_ context.Context, m metrics.Metrics, history []advisor.ChatMessage) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastM = m
	f.lastMsgs = history
	return f.text, f.err
}

type fakeSubscriber struct {
	sub   *waitlist.Subscription
	err   error
	email string
	list  waitlist.ListType
}

func (f *fakeSubscriber) Subscribe(_ context.Context, email string, list waitlist.ListType) (*waitlist.Subscription, error) {
	f.email, f.list = email, list
	return f.sub, f.err
}

type testEnv struct {
	srv      *Server
	store    store.InputStore
	advisor  *fakeAdvisor
	waitlist *fakeSubscriber
}

func newTestEnv(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	t.Helper()
	cfg := &config.Config{}
	cfg.Store.DefaultKey = "d2c_dashboard_v1"
	cfg.Advisor.CacheTTLSec = 600
	cfg.Advisor.GeminiKey = "secret-gemini-key"
	cfg.Display.Theme = "light"
	for _, m := range mutate {
		m(cfg)
	}

	env := &testEnv{
		store:    store.NewMemory(zerolog.Nop()),
		advisor:  &fakeAdvisor{text: "## Summary\n\nLooks healthy."},
		waitlist: &fakeSubscriber{sub: &waitlist.Subscription{ID: "m1", Message: "Successfully subscribed to waitlist"}},
	}
	env.srv = NewServer(cfg, Deps{
		Store:    env.store,
		Advisor:  env.advisor,
		Waitlist: env.waitlist,
		Logger:   zerolog.Nop(),
		Version:  "test",
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go env.srv.Hub().Run(ctx)
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	e.srv.Router().ServeHTTP(rec, req)
	return rec
}

type envelope[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Error   string `json:"error"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var resp envelope[T]
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status: got %d, want %d (body %s)", rec.Code, want, rec.Body.String())
	}
}

func near(a, b float64) bool { return math.Abs(a-b) < 0.01 }

// ════════════════════════════════════════════════════════════════════
// Health
// ════════════════════════════════════════════════════════════════════

func TestHandleHealth(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/health", "/api/v1/health"} {
		rec := env.do(t, http.MethodGet, path, "")
		expectStatus(t, rec, http.StatusOK)

		resp := decode[map[string]interface{}](t, rec)
		if !resp.Success {
			t.Errorf("%s: expected success", path)
		}
		if resp.Data["status"] != "ok" || resp.Data["version"] != "test" {
			t.Errorf("%s: unexpected data %v", path, resp.Data)
		}
		if resp.Data["advisor"] != true {
			t.Errorf("%s: advisor should be reported available", path)
		}
	}
}

func TestConfiguredHelper(t *testing.T) {
	if configured(nil) {
		t.Error("nil should not be configured")
	}
	if !configured(&fakeAdvisor{}) {
		t.Error("a collaborator without Configured() counts as configured")
	}
	if configured(advisor.NewService(nil, config.AdvisorConfig{}, zerolog.Nop())) {
		t.Error("a service without a provider is not configured")
	}
}

// ════════════════════════════════════════════════════════════════════
// Metrics
// ════════════════════════════════════════════════════════════════════

func TestHandleComputeMetrics(t *testing.T) {
	env := newTestEnv(t)
	body := `{"gross_sales_incl_gst":"5000000","discounts_total":200000,"returns_value_ex_gst":150000,"ad_spend_total":1200000,"total_orders":2500,"junk":"x"}`
	rec := env.do(t, http.MethodPost, "/api/v1/metrics", body)
	expectStatus(t, rec, http.StatusOK)

	in, err := models.ParseInput([]byte(body))
	if err != nil {
		t.Fatalf("ParseInput: %v", err)
	}
	want := metrics.Compute(in)

	m := decode[metrics.Metrics](t, rec).Data
	if !near(m.NetRevenue, want.NetRevenue) {
		t.Errorf("NetRevenue: got %f, want %f", m.NetRevenue, want.NetRevenue)
	}
	if !near(m.CostPerOrder, 480) {
		t.Errorf("CostPerOrder: got %f", m.CostPerOrder)
	}
	if len(m.Breakdowns.NetRevenue) == 0 || m.Breakdowns.NetRevenue[0].Kind != metrics.KindBase {
		t.Errorf("unexpected netRevenue breakdown %+v", m.Breakdowns.NetRevenue)
	}
}

func TestHandleComputeMetrics_EmptyObject(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/v1/metrics", `{}`)
	expectStatus(t, rec, http.StatusOK)

	m := decode[metrics.Metrics](t, rec).Data
	if m.MER != 0 || m.NetRevenue != 0 {
		t.Errorf("empty input should compute zeros, got %+v", m)
	}
}

func TestHandleComputeMetrics_NotAnObject(t *testing.T) {
	env := newTestEnv(t)
	for _, body := range []string{`[1,2]`, `"text"`, `{broken`} {
		rec := env.do(t, http.MethodPost, "/api/v1/metrics", body)
		expectStatus(t, rec, http.StatusBadRequest)
		if resp := decode[any](t, rec); resp.Error != "inputs must be a JSON object" {
			t.Errorf("%s: error %q", body, resp.Error)
		}
	}
}

func TestHandleStoredMetrics_Default(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/v1/metrics/never-saved", "")
	expectStatus(t, rec, http.StatusOK)

	snap := decode[SnapshotResponse](t, rec).Data
	if snap.Key != "never-saved" {
		t.Errorf("Key: got %q", snap.Key)
	}
	want := metrics.Compute(models.DefaultInput())
	if !near(snap.Metrics.EBITDA, want.EBITDA) {
		t.Errorf("EBITDA: got %f, want %f", snap.Metrics.EBITDA, want.EBITDA)
	}
}

// ════════════════════════════════════════════════════════════════════
// Inputs
// ════════════════════════════════════════════════════════════════════

func TestInputsLifecycle(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPut, "/api/v1/inputs/brand-a", `{"gross_sales_incl_gst":1180000,"ad_spend_total":100000}`)
	expectStatus(t, rec, http.StatusOK)
	snap := decode[SnapshotResponse](t, rec).Data
	if !near(snap.Metrics.NetRevenue, 1000000) {
		t.Errorf("NetRevenue after save: got %f", snap.Metrics.NetRevenue)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/inputs/brand-a", "")
	expectStatus(t, rec, http.StatusOK)
	got := decode[InputsResponse](t, rec).Data
	if got.Inputs.AdSpendTotal == nil || *got.Inputs.AdSpendTotal != 100000 {
		t.Errorf("stored ad spend: %+v", got.Inputs.AdSpendTotal)
	}
	if got.Inputs.UnitsSold != nil {
		t.Error("absent fields must stay absent")
	}

	rec = env.do(t, http.MethodGet, "/api/v1/inputs", "")
	expectStatus(t, rec, http.StatusOK)
	list := decode[[]store.Snapshot](t, rec).Data
	if len(list) != 1 || list[0].Key != "brand-a" {
		t.Errorf("list: %+v", list)
	}

	rec = env.do(t, http.MethodDelete, "/api/v1/inputs/brand-a", "")
	expectStatus(t, rec, http.StatusOK)

	rec = env.do(t, http.MethodGet, "/api/v1/inputs/brand-a", "")
	got = decode[InputsResponse](t, rec).Data
	if got.Inputs.CashOnHand == nil || *got.Inputs.CashOnHand != 2500000 {
		t.Error("reset should fall back to the default record")
	}
}

func TestPutInputs_InvalidBody(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPut, "/api/v1/inputs/brand-a", `[]`)
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestPutInputs_PublishesToSubscribers(t *testing.T) {
	env := newTestEnv(t)
	hub := env.srv.Hub()

	watcher := NewWSClient(hub)
	watcher.Subscribe("brand-a")
	hub.Register(watcher)
	other := NewWSClient(hub)
	other.Subscribe("brand-b")
	hub.Register(other)

	env.do(t, http.MethodPut, "/api/v1/inputs/brand-a", `{"ad_spend_total":5}`)

	select {
	case msg := <-watcher.Messages():
		if msg.Type != "metrics" {
			t.Fatalf("type: got %q", msg.Type)
		}
		snap, ok := msg.Data.(SnapshotResponse)
		if !ok || snap.Key != "brand-a" || snap.Metrics.AdSpendTotal != 5 {
			t.Errorf("unexpected payload %+v", msg.Data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not receive metrics")
	}

	select {
	case msg := <-other.Messages():
		t.Errorf("client subscribed to another key got %+v", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

// ════════════════════════════════════════════════════════════════════
// Advisor
// ════════════════════════════════════════════════════════════════════

func TestHandleInsights_CachesByFigures(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/ai/insights", `{"key":"d2c_dashboard_v1"}`)
	expectStatus(t, rec, http.StatusOK)
	first := decode[InsightsResponse](t, rec).Data
	if first.Insights != env.advisor.text || first.Cached {
		t.Errorf("first response: %+v", first)
	}

	// Same figures supplied as raw inputs hit the cache.
	in, _ := json.Marshal(models.DefaultInput())
	rec = env.do(t, http.MethodPost, "/api/v1/ai/insights", `{"inputs":`+string(in)+`}`)
	expectStatus(t, rec, http.StatusOK)
	second := decode[InsightsResponse](t, rec).Data
	if !second.Cached {
		t.Error("second response should come from the cache")
	}
	if env.advisor.calls != 1 {
		t.Errorf("advisor calls: got %d, want 1", env.advisor.calls)
	}
}

func TestHandleInsights_WithMetrics(t *testing.T) {
	env := newTestEnv(t)
	m := metrics.Compute(models.Input{AdSpendTotal: models.Float(42)})
	body, _ := json.Marshal(map[string]interface{}{"metrics": m})

	rec := env.do(t, http.MethodPost, "/api/v1/ai/insights", string(body))
	expectStatus(t, rec, http.StatusOK)
	if env.advisor.lastM.AdSpendTotal != 42 {
		t.Errorf("advisor saw ad spend %f", env.advisor.lastM.AdSpendTotal)
	}
}

func TestHandleInsights_Truncated(t *testing.T) {
	env := newTestEnv(t)
	env.advisor.text = "partial"
	env.advisor.err = &advisor.Error{Kind: advisor.KindTruncated, Partial: "partial"}

	for i := 0; i < 2; i++ {
		rec := env.do(t, http.MethodPost, "/api/v1/ai/insights", `{"key":"k"}`)
		expectStatus(t, rec, http.StatusOK)
		resp := decode[InsightsResponse](t, rec).Data
		if !resp.Truncated || resp.Insights != "partial" || resp.Cached {
			t.Errorf("response %d: %+v", i, resp)
		}
	}
	if env.advisor.calls != 2 {
		t.Errorf("truncated insights must not be cached; calls %d", env.advisor.calls)
	}
}

func TestHandleInsights_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"not configured", &advisor.Error{Kind: advisor.KindNotConfigured}, http.StatusInternalServerError, "AI service not configured"},
		{"filtered", &advisor.Error{Kind: advisor.KindContentFiltered}, http.StatusBadRequest, "Content filtered by safety settings"},
		{"unavailable", &advisor.Error{Kind: advisor.KindServiceUnavailable, Err: errors.New("boom")}, http.StatusBadGateway, "AI service unavailable"},
		{"unknown", errors.New("weird"), http.StatusBadGateway, "AI service unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.advisor.err = tt.err

			rec := env.do(t, http.MethodPost, "/api/v1/ai/insights", `{"key":"k"}`)
			expectStatus(t, rec, tt.status)
			if resp := decode[any](t, rec); resp.Error != tt.message {
				t.Errorf("error: got %q, want %q", resp.Error, tt.message)
			}
		})
	}
}

func TestHandleInsights_MissingSource(t *testing.T) {
	env := newTestEnv(t)
	for _, body := range []string{`{}`, `{"inputs":null}`, `{"inputs":[1]}`} {
		rec := env.do(t, http.MethodPost, "/api/v1/ai/insights", body)
		expectStatus(t, rec, http.StatusBadRequest)
		if resp := decode[any](t, rec); resp.Error != "inputs or key is required" {
			t.Errorf("%s: error %q", body, resp.Error)
		}
	}

	rec := env.do(t, http.MethodPost, "/api/v1/ai/insights", `not json`)
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestHandleChat(t *testing.T) {
	env := newTestEnv(t)
	env.advisor.text = "Cut RTO first."

	rec := env.do(t, http.MethodPost, "/api/v1/ai/chat",
		`{"key":"k","messages":[{"role":"user","content":"What should I fix?"}]}`)
	expectStatus(t, rec, http.StatusOK)

	resp := decode[ChatResponse](t, rec).Data
	if resp.Reply != "Cut RTO first." {
		t.Errorf("reply: %q", resp.Reply)
	}
	if len(env.advisor.lastMsgs) != 1 || env.advisor.lastMsgs[0].Content != "What should I fix?" {
		t.Errorf("history: %+v", env.advisor.lastMsgs)
	}
}

func TestHandleChat_MissingMessages(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/v1/ai/chat", `{"key":"k","messages":[]}`)
	expectStatus(t, rec, http.StatusBadRequest)
	if resp := decode[any](t, rec); resp.Error != "messages are required" {
		t.Errorf("error: %q", resp.Error)
	}
	if env.advisor.calls != 0 {
		t.Error("advisor should not be called")
	}
}

func TestHandleChat_Truncated(t *testing.T) {
	env := newTestEnv(t)
	env.advisor.text = "half an ans"
	env.advisor.err = &advisor.Error{Kind: advisor.KindTruncated, Partial: "half an ans"}

	rec := env.do(t, http.MethodPost, "/api/v1/ai/chat", `{"key":"k","messages":[{"role":"user","content":"q"}]}`)
	expectStatus(t, rec, http.StatusOK)
	resp := decode[ChatResponse](t, rec).Data
	if !resp.Truncated || resp.Reply != "half an ans" {
		t.Errorf("response: %+v", resp)
	}
}

func TestAIRateLimit(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.API.AIRequestsPerMinute = 1 })

	rec := env.do(t, http.MethodPost, "/api/v1/ai/chat", `{"key":"k","messages":[{"role":"user","content":"q"}]}`)
	expectStatus(t, rec, http.StatusOK)

	rec = env.do(t, http.MethodPost, "/api/v1/ai/chat", `{"key":"k","messages":[{"role":"user","content":"q"}]}`)
	expectStatus(t, rec, http.StatusTooManyRequests)
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}

	// Non-AI routes are not limited.
	rec = env.do(t, http.MethodGet, "/api/v1/metrics/k", "")
	expectStatus(t, rec, http.StatusOK)
}

func chatFrom(t *testing.T, env *testEnv, forwardedFor string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ai/chat",
		strings.NewReader(`{"key":"k","messages":[{"role":"user","content":"q"}]}`))
	req.RemoteAddr = "198.51.100.7:40000"
	req.Header.Set("X-Forwarded-For", forwardedFor)
	rec := httptest.NewRecorder()
	env.srv.Router().ServeHTTP(rec, req)
	return rec.Code
}

func TestAIRateLimit_IgnoresForwardedHeaders(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.API.AIRequestsPerMinute = 1 })

	allowed := 0
	for i := 0; i < 20; i++ {
		if chatFrom(t, env, fmt.Sprintf("203.0.113.%d", i)) == http.StatusOK {
			allowed++
		}
	}
	if allowed != 1 {
		t.Errorf("rotating X-Forwarded-For: %d requests allowed, want 1", allowed)
	}
}

func TestAIRateLimit_TrustProxy(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) {
		c.API.AIRequestsPerMinute = 1
		c.API.TrustProxy = true
	})

	if code := chatFrom(t, env, "203.0.113.1"); code != http.StatusOK {
		t.Fatalf("first client: got %d", code)
	}
	if code := chatFrom(t, env, "203.0.113.2"); code != http.StatusOK {
		t.Errorf("second client behind the proxy: got %d", code)
	}
	if code := chatFrom(t, env, "203.0.113.1"); code != http.StatusTooManyRequests {
		t.Errorf("repeat client: got %d, want 429", code)
	}
}

func TestPutInputs_DropsStaleInsights(t *testing.T) {
	env := newTestEnv(t)
	defaults, _ := json.Marshal(models.DefaultInput())

	env.do(t, http.MethodPost, "/api/v1/ai/insights", `{"key":"brand-a"}`)
	rec := env.do(t, http.MethodGet, "/health", "")
	if got := decode[map[string]interface{}](t, rec).Data["cached"]; got != float64(1) {
		t.Fatalf("cached insights: got %v, want 1", got)
	}

	// Saving the same figures keeps the commentary.
	env.do(t, http.MethodPut, "/api/v1/inputs/brand-a", string(defaults))
	rec = env.do(t, http.MethodPost, "/api/v1/ai/insights", `{"key":"brand-a"}`)
	if !decode[InsightsResponse](t, rec).Data.Cached {
		t.Error("unchanged figures should still be served from the cache")
	}

	env.do(t, http.MethodPut, "/api/v1/inputs/brand-a", `{"ad_spend_total":1}`)
	rec = env.do(t, http.MethodGet, "/health", "")
	if got := decode[map[string]interface{}](t, rec).Data["cached"]; got != float64(0) {
		t.Errorf("cached insights after change: got %v, want 0", got)
	}

	env.do(t, http.MethodPost, "/api/v1/ai/insights", `{"key":"brand-a"}`)
	env.do(t, http.MethodDelete, "/api/v1/inputs/brand-a", "")
	rec = env.do(t, http.MethodGet, "/health", "")
	if got := decode[map[string]interface{}](t, rec).Data["cached"]; got != float64(0) {
		t.Errorf("cached insights after reset: got %v, want 0", got)
	}
	if env.advisor.calls != 2 {
		t.Errorf("advisor calls: got %d, want 2", env.advisor.calls)
	}
}

// ════════════════════════════════════════════════════════════════════
// Waitlist
// ════════════════════════════════════════════════════════════════════

func TestHandleWaitlist(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/v1/waitlist", `{"email":"a@b.co","listType":"automation"}`)
	expectStatus(t, rec, http.StatusOK)

	sub := decode[waitlist.Subscription](t, rec).Data
	if sub.ID != "m1" {
		t.Errorf("ID: %q", sub.ID)
	}
	if env.waitlist.email != "a@b.co" || env.waitlist.list != waitlist.ListAutomation {
		t.Errorf("subscriber got %q / %q", env.waitlist.email, env.waitlist.list)
	}

	env.do(t, http.MethodPost, "/api/v1/waitlist", `{"email":"a@b.co","list_type":"automation"}`)
	if env.waitlist.list != waitlist.ListAutomation {
		t.Error("list_type should be accepted too")
	}
}

func TestHandleWaitlist_Errors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"invalid email", waitlist.ErrInvalidEmail, http.StatusBadRequest, "Invalid email address"},
		{"member exists", waitlist.ErrMemberExists, http.StatusBadRequest, "This email is already subscribed!"},
		{"not configured", waitlist.ErrNotConfigured, http.StatusInternalServerError, "Server configuration error"},
		{"api error", &waitlist.APIError{StatusCode: http.StatusUnauthorized, Detail: "Your API key may be invalid."}, http.StatusUnauthorized, "Your API key may be invalid."},
		{"api error without detail", &waitlist.APIError{StatusCode: http.StatusBadGateway}, http.StatusBadGateway, "Failed to subscribe"},
		{"transport", errors.New("dial tcp: refused"), http.StatusInternalServerError, "Internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.waitlist.err = tt.err
			env.waitlist.sub = nil

			rec := env.do(t, http.MethodPost, "/api/v1/waitlist", `{"email":"a@b.co"}`)
			expectStatus(t, rec, tt.status)
			if resp := decode[any](t, rec); resp.Error != tt.message {
				t.Errorf("error: got %q, want %q", resp.Error, tt.message)
			}
		})
	}
}

// ════════════════════════════════════════════════════════════════════
// Config and dashboard
// ════════════════════════════════════════════════════════════════════

func TestHandleGetConfig_RedactsSecrets(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/v1/config", "")
	expectStatus(t, rec, http.StatusOK)
	if strings.Contains(rec.Body.String(), "secret-gemini-key") {
		t.Error("config response leaked the Gemini key")
	}

	rec = env.do(t, http.MethodGet, "/api/v1/config/keys", "")
	expectStatus(t, rec, http.StatusOK)
	keys := decode[[]config.KeyStatus](t, rec).Data
	if len(keys) != 3 {
		t.Fatalf("keys: got %d", len(keys))
	}
	if !keys[0].IsSet || strings.Contains(keys[0].Masked, "secret-gemini-key") {
		t.Errorf("gemini key status: %+v", keys[0])
	}
}

func TestHandleDashboard(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/dashboard?theme=dark", "")
	expectStatus(t, rec, http.StatusOK)
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type: %q", ct)
	}
	body := rec.Body.String()
	for _, want := range []string{`data-theme="dark"`, "1. Are we Profitable?", "₹38,87,288", "d2c_dashboard_v1"} {
		if !strings.Contains(body, want) {
			t.Errorf("dashboard missing %q", want)
		}
	}
	if strings.Contains(body, "Advisor Commentary") {
		t.Error("no commentary expected before insights are generated")
	}

	env.do(t, http.MethodPost, "/api/v1/ai/insights", `{"key":"d2c_dashboard_v1"}`)
	rec = env.do(t, http.MethodGet, "/dashboard/d2c_dashboard_v1", "")
	body = rec.Body.String()
	if !strings.Contains(body, "Advisor Commentary") || !strings.Contains(body, "Looks healthy.") {
		t.Error("cached insights should be rendered on the dashboard")
	}
	if !strings.Contains(body, `data-theme="light"`) {
		t.Error("theme should default to display.theme")
	}
}

// ════════════════════════════════════════════════════════════════════
// WebSocket
// ════════════════════════════════════════════════════════════════════

func TestWebSocketSubscription(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.srv.Router())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	if err := conn.WriteJSON(WSMessage{Type: "subscribe", Data: "brand-ws"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var ack struct {
		Type string `json:"type"`
		Data string `json:"data"`
	}
	if err := conn.ReadJSON(&ack); err != nil {
		t.Fatalf("read ack: %v", err)
	}
	if ack.Type != "subscribed" || ack.Data != "brand-ws" {
		t.Fatalf("ack: %+v", ack)
	}

	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/v1/inputs/brand-ws", strings.NewReader(`{"ad_spend_total":1000}`))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	resp.Body.Close()

	var update struct {
		Type string           `json:"type"`
		Data SnapshotResponse `json:"data"`
	}
	if err := conn.ReadJSON(&update); err != nil {
		t.Fatalf("read update: %v", err)
	}
	if update.Type != "metrics" || update.Data.Key != "brand-ws" || update.Data.Metrics.AdSpendTotal != 1000 {
		t.Errorf("update: %+v", update)
	}
}

func TestWebSocketPingAndUnknown(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.srv.Router())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/v1/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	for _, tc := range []struct{ send, want string }{{"ping", "pong"}, {"bogus", "error"}} {
		if err := conn.WriteJSON(WSMessage{Type: tc.send}); err != nil {
			t.Fatalf("write: %v", err)
		}
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		if msg.Type != tc.want {
			t.Errorf("%s: got %q, want %q", tc.send, msg.Type, tc.want)
		}
	}
}

func TestWSHubStopsCleanly(t *testing.T) {
	hub := NewWSHub(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	c := NewWSClient(hub)
	hub.Register(c)
	cancel()
	<-done

	if _, ok := <-c.Messages(); ok {
		t.Error("client queue should be closed when the hub stops")
	}
	// Neither call may block once the hub has stopped.
	hub.Unregister(c)
	late := NewWSClient(hub)
	hub.Register(late)
	if _, ok := <-late.Messages(); ok {
		t.Error("late client should be closed")
	}
}
