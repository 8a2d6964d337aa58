package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/signalroi/signalroi/internal/advisor"
	"github.com/signalroi/signalroi/internal/infra"
	"github.com/signalroi/signalroi/internal/metrics"
	"github.com/signalroi/signalroi/pkg/models"
)

var errNoSource = errors.New("inputs or key is required")

// AIRequest is the body for the advisor endpoints. The snapshot is taken
// from Metrics, else Inputs, else the stored inputs under Key.
type AIRequest struct {
	Key      string                `json:"key,omitempty"`
	Inputs   json.RawMessage       `json:"inputs,omitempty"`
	Metrics  *metrics.Metrics      `json:"metrics,omitempty"`
	Messages []advisor.ChatMessage `json:"messages,omitempty"`
}

// InsightsResponse is returned by POST /api/v1/ai/insights.
type InsightsResponse struct {
	Insights  string `json:"insights"`
	Truncated bool   `json:"truncated,omitempty"`
	Cached    bool   `json:"cached,omitempty"`
}

// ChatResponse is returned by POST /api/v1/ai/chat.
type ChatResponse struct {
	Reply     string `json:"reply"`
	Truncated bool   `json:"truncated,omitempty"`
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	_, m, ok := s.decodeAIRequest(w, r)
	if !ok {
		return
	}

	fp, fpErr := infra.Fingerprint(m)
	if fpErr == nil {
		if text, hit := s.insights.Get(fp); hit {
			writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: InsightsResponse{Insights: text, Cached: true}})
			return
		}
	}

	text, err := s.advisor.Insights(r.Context(), m)
	truncated := errors.Is(err, advisor.ErrTruncated)
	if err != nil && !truncated {
		s.writeAdvisorError(w, r, "insights", err)
		return
	}
	if fpErr == nil && !truncated {
		s.insights.Set(fp, text)
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    InsightsResponse{Insights: text, Truncated: truncated},
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	req, m, ok := s.decodeAIRequest(w, r)
	if !ok {
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "messages are required")
		return
	}

	reply, err := s.advisor.Chat(r.Context(), m, req.Messages)
	truncated := errors.Is(err, advisor.ErrTruncated)
	if err != nil && !truncated {
		s.writeAdvisorError(w, r, "chat", err)
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    ChatResponse{Reply: reply, Truncated: truncated},
	})
}

// decodeAIRequest parses the body and resolves the snapshot metrics. On
// failure it has already written the response.
func (s *Server) decodeAIRequest(w http.ResponseWriter, r *http.Request) (AIRequest, metrics.Metrics, bool) {
	var req AIRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return req, metrics.Metrics{}, false
	}

	m, err := s.resolveMetrics(r, req)
	switch {
	case errors.Is(err, errNoSource):
		writeError(w, http.StatusBadRequest, err.Error())
		return req, metrics.Metrics{}, false
	case err != nil:
		s.log.Error().Err(err).Str("key", req.Key).Msg("resolve metrics")
		writeError(w, http.StatusInternalServerError, "failed to load inputs")
		return req, metrics.Metrics{}, false
	}
	return req, m, true
}

func (s *Server) resolveMetrics(r *http.Request, req AIRequest) (metrics.Metrics, error) {
	switch {
	case req.Metrics != nil:
		return *req.Metrics, nil
	case len(req.Inputs) > 0 && !bytes.Equal(bytes.TrimSpace(req.Inputs), []byte("null")):
		in, err := models.ParseInput(req.Inputs)
		if err != nil {
			return metrics.Metrics{}, errNoSource
		}
		return metrics.Compute(in), nil
	case req.Key != "":
		in, err := s.store.Load(r.Context(), req.Key)
		if err != nil {
			return metrics.Metrics{}, err
		}
		return metrics.Compute(in), nil
	}
	return metrics.Metrics{}, errNoSource
}

// writeAdvisorError maps advisor failures to HTTP statuses.
func (s *Server) writeAdvisorError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, msg := http.StatusBadGateway, "AI service unavailable"
	switch {
	case errors.Is(err, advisor.ErrNotConfigured):
		status, msg = http.StatusInternalServerError, "AI service not configured"
	case errors.Is(err, advisor.ErrContentFiltered):
		status, msg = http.StatusBadRequest, "Content filtered by safety settings"
	case errors.Is(err, advisor.ErrNoMessages):
		status, msg = http.StatusBadRequest, "messages are required"
	}

	var aerr *advisor.Error
	ev := s.log.Warn().Err(err).Str("op", op).Int("status", status).
		Str("request_id", middleware.GetReqID(r.Context()))
	if errors.As(err, &aerr) {
		ev = ev.Str("advisor_request_id", aerr.RequestID).Str("kind", aerr.Kind.String())
	}
	ev.Msg("advisor request failed")

	writeError(w, status, msg)
}
