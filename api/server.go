// Package api provides the HTTP server for signalroi.
//
// It exposes metrics computation, keyed input storage, advisor commentary,
// waitlist signup, a server-rendered dashboard and a WebSocket feed that
// pushes recomputed metrics when a snapshot's inputs change.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/signalroi/signalroi/internal/advisor"
	"github.com/signalroi/signalroi/internal/config"
	"github.com/signalroi/signalroi/internal/infra"
	"github.com/signalroi/signalroi/internal/metrics"
	"github.com/signalroi/signalroi/internal/store"
	"github.com/signalroi/signalroi/internal/waitlist"
	"github.com/signalroi/signalroi/pkg/models"
)

// maxBodyBytes bounds request bodies; an input record is well under 4 KiB.
const maxBodyBytes = 1 << 20

// Subscriber adds an email address to a waitlist.
type Subscriber interface {
	Subscribe(ctx context.Context, email string, list waitlist.ListType) (*waitlist.Subscription, error)
}

// Deps are the collaborators the server routes to.
type Deps struct {
	Store    store.InputStore
	Advisor  advisor.Generator
	Waitlist Subscriber
	Logger   zerolog.Logger
	Version  string
}

// Server is the HTTP API server.
type Server struct {
	router   chi.Router
	cfg      *config.Config
	store    store.InputStore
	advisor  advisor.Generator
	waitlist Subscriber
	wsHub    *WSHub
	insights *infra.Cache[string]
	limiter  *infra.ClientLimiter
	log      zerolog.Logger
	version  string
}

// NewServer creates a configured API server with all routes and middleware.
func NewServer(cfg *config.Config, deps Deps) *Server {
	log := deps.Logger.With().Str("component", "api").Logger()
	version := deps.Version
	if version == "" {
		version = "dev"
	}

	s := &Server{
		cfg:      cfg,
		store:    deps.Store,
		advisor:  deps.Advisor,
		waitlist: deps.Waitlist,
		wsHub:    NewWSHub(log),
		insights: infra.NewCache[string](time.Duration(cfg.Advisor.CacheTTLSec) * time.Second),
		limiter:  infra.NewClientLimiter(cfg.API.AIRequestsPerMinute),
		log:      log,
		version:  version,
	}
	s.router = s.buildRouter()
	return s
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *WSHub {
	return s.wsHub
}

// ListenAndServe starts the HTTP server and shuts it down gracefully when
// ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go s.wsHub.Run(hubCtx)

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-hubCtx.Done():
				return
			case <-ticker.C:
				s.insights.Cleanup()
				s.limiter.Cleanup()
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(peerAddrMiddleware)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)

	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// WebSocket connections outlive the request timeout.
	r.Get("/api/v1/ws", s.handleWebSocket)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(120 * time.Second))

		r.Get("/health", s.handleHealth)
		r.Get("/dashboard", s.handleDashboard)
		r.Get("/dashboard/{key}", s.handleDashboard)

		r.Route("/api/v1", func(r chi.Router) {
			r.Get("/health", s.handleHealth)

			// Metrics
			r.Post("/metrics", s.handleComputeMetrics)
			r.Get("/metrics/{key}", s.handleStoredMetrics)

			// Inputs
			r.Get("/inputs", s.handleListInputs)
			r.Get("/inputs/{key}", s.handleGetInputs)
			r.Put("/inputs/{key}", s.handlePutInputs)
			r.Delete("/inputs/{key}", s.handleResetInputs)

			// Advisor
			r.Route("/ai", func(r chi.Router) {
				r.Use(s.rateLimitMiddleware)
				r.Post("/insights", s.handleInsights)
				r.Post("/chat", s.handleChat)
			})

			// Waitlist
			r.Post("/waitlist", s.handleWaitlist)

			// Configuration
			r.Get("/config", s.handleGetConfig)
			r.Get("/config/keys", s.handleGetConfigKeys)
		})
	})

	return r
}

// loggingMiddleware logs HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

type peerAddrKey struct{}

// peerAddrMiddleware records the socket peer address before RealIP replaces
// RemoteAddr with the client-supplied forwarding headers.
func peerAddrMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), peerAddrKey{}, r.RemoteAddr)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// rateLimitMiddleware caps advisor calls per client address.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(s.clientAddr(r)) {
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "Too many AI requests, please slow down")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientAddr is the host that rate limits are keyed on. Forwarding headers
// are honoured only when api.trust_proxy is set.
func (s *Server) clientAddr(r *http.Request) string {
	addr := r.RemoteAddr
	if !s.cfg.API.TrustProxy {
		if peer, ok := r.Context().Value(peerAddrKey{}).(string); ok {
			addr = peer
		}
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

// ============================================================
// Request / Response types
// ============================================================

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// SnapshotResponse pairs a snapshot key with its derived metrics.
type SnapshotResponse struct {
	Key     string          `json:"key"`
	Metrics metrics.Metrics `json:"metrics"`
}

// InputsResponse is returned by GET /api/v1/inputs/{key}.
type InputsResponse struct {
	Key    string       `json:"key"`
	Inputs models.Input `json:"inputs"`
}

// ============================================================
// Handlers
// ============================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	data := map[string]interface{}{
		"status":   "ok",
		"version":  s.version,
		"advisor":  configured(s.advisor),
		"waitlist": configured(s.waitlist),
		"ws":       s.wsHub.ClientCount(),
		"cached":   s.insights.Len(),
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: data})
}

func (s *Server) handleComputeMetrics(w http.ResponseWriter, r *http.Request) {
	in, err := readInput(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: metrics.Compute(in)})
}

func (s *Server) handleStoredMetrics(w http.ResponseWriter, r *http.Request) {
	key := s.key(r)
	in, err := s.store.Load(r.Context(), key)
	if err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("load inputs")
		writeError(w, http.StatusInternalServerError, "failed to load inputs")
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    SnapshotResponse{Key: key, Metrics: metrics.Compute(in)},
	})
}

func (s *Server) handleListInputs(w http.ResponseWriter, r *http.Request) {
	snaps, err := s.store.List(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("list inputs")
		writeError(w, http.StatusInternalServerError, "failed to list inputs")
		return
	}
	if snaps == nil {
		snaps = []store.Snapshot{}
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: snaps})
}

func (s *Server) handleGetInputs(w http.ResponseWriter, r *http.Request) {
	key := s.key(r)
	in, err := s.store.Load(r.Context(), key)
	if err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("load inputs")
		writeError(w, http.StatusInternalServerError, "failed to load inputs")
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: InputsResponse{Key: key, Inputs: in}})
}

func (s *Server) handlePutInputs(w http.ResponseWriter, r *http.Request) {
	key := s.key(r)
	in, err := readInput(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	stale := s.insightsKey(r, key)
	if err := s.store.Save(r.Context(), key, in); err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("save inputs")
		writeError(w, http.StatusInternalServerError, "failed to save inputs")
		return
	}

	snap := SnapshotResponse{Key: key, Metrics: metrics.Compute(in)}
	s.dropInsights(stale, snap.Metrics)
	s.wsHub.Publish(key, WSMessage{Type: "metrics", Data: snap})
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: snap})
}

func (s *Server) handleResetInputs(w http.ResponseWriter, r *http.Request) {
	key := s.key(r)
	stale := s.insightsKey(r, key)
	if err := s.store.Reset(r.Context(), key); err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("reset inputs")
		writeError(w, http.StatusInternalServerError, "failed to reset inputs")
		return
	}

	snap := SnapshotResponse{Key: key, Metrics: metrics.Compute(models.DefaultInput())}
	s.dropInsights(stale, snap.Metrics)
	s.wsHub.Publish(key, WSMessage{Type: "metrics", Data: snap})
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: snap})
}

// ============================================================
// Helpers
// ============================================================

// configured reports whether a collaborator is present and, when it can
// tell, whether it has its credentials.
func configured(v interface{}) bool {
	if v == nil {
		return false
	}
	if c, ok := v.(interface{ Configured() bool }); ok {
		return c.Configured()
	}
	return true
}

// insightsKey returns the cache key of the insights generated for the
// snapshot currently stored under key, or "" when it cannot be computed.
func (s *Server) insightsKey(r *http.Request, key string) string {
	in, err := s.store.Load(r.Context(), key)
	if err != nil {
		return ""
	}
	fp, err := infra.Fingerprint(metrics.Compute(in))
	if err != nil {
		return ""
	}
	return fp
}

// dropInsights forgets commentary cached under stale once the snapshot has
// changed to m.
func (s *Server) dropInsights(stale string, m metrics.Metrics) {
	if stale == "" {
		return
	}
	if fp, err := infra.Fingerprint(m); err == nil && fp == stale {
		return
	}
	s.insights.Invalidate(stale)
}

// key returns the {key} URL parameter, or the configured default key.
func (s *Server) key(r *http.Request) string {
	if k := chi.URLParam(r, "key"); k != "" {
		return k
	}
	return s.defaultKey()
}

func (s *Server) defaultKey() string {
	if s.cfg.Store.DefaultKey != "" {
		return s.cfg.Store.DefaultKey
	}
	return store.DefaultKey
}

// readInput decodes a raw input record from the request body.
func readInput(r *http.Request) (models.Input, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return models.Input{}, fmt.Errorf("failed to read request body")
	}
	in, err := models.ParseInput(data)
	if err != nil {
		return models.Input{}, fmt.Errorf("inputs must be a JSON object")
	}
	return in, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}
