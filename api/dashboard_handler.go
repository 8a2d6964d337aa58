package api

import (
	"net/http"

	"github.com/signalroi/signalroi/internal/infra"
	"github.com/signalroi/signalroi/internal/metrics"
	"github.com/signalroi/signalroi/internal/report"
)

// handleDashboard renders the stored snapshot as an HTML page. The theme
// comes from ?theme=, falling back to display.theme. Insights already
// generated for the same figures are shown as commentary.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	key := s.key(r)
	in, err := s.store.Load(r.Context(), key)
	if err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("load inputs")
		http.Error(w, "failed to load inputs", http.StatusInternalServerError)
		return
	}
	m := metrics.Compute(in)

	theme := r.URL.Query().Get("theme")
	if theme == "" {
		theme = s.cfg.Display.Theme
	}
	opts := report.Options{
		Theme:  report.ParseTheme(theme),
		Key:    key,
		Charts: true,
	}
	if fp, err := infra.Fingerprint(m); err == nil {
		if text, ok := s.insights.Get(fp); ok {
			opts.Commentary = text
		}
	}

	html, err := report.GenerateHTML(m, opts)
	if err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("render dashboard")
		http.Error(w, "failed to render dashboard", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(html))
}
