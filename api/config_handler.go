package api

import (
	"net/http"

	"github.com/signalroi/signalroi/internal/config"
)

// handleGetConfig returns the running configuration. Secrets are excluded
// by their json:"-" tags.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: s.cfg})
}

// handleGetConfigKeys returns the masked status of each credential.
func (s *Server) handleGetConfigKeys(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: config.CheckAPIKeys(s.cfg)})
}
