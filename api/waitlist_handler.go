package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/signalroi/signalroi/internal/waitlist"
)

// WaitlistRequest is the body for POST /api/v1/waitlist. Both listType and
// list_type are accepted.
type WaitlistRequest struct {
	Email     string `json:"email"`
	ListType  string `json:"listType,omitempty"`
	ListTypeS string `json:"list_type,omitempty"`
}

func (s *Server) handleWaitlist(w http.ResponseWriter, r *http.Request) {
	var req WaitlistRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if s.waitlist == nil {
		writeError(w, http.StatusInternalServerError, "Server configuration error")
		return
	}

	list := req.ListType
	if list == "" {
		list = req.ListTypeS
	}

	sub, err := s.waitlist.Subscribe(r.Context(), req.Email, waitlist.ParseListType(list))
	if err != nil {
		var apiErr *waitlist.APIError
		switch {
		case errors.Is(err, waitlist.ErrInvalidEmail):
			writeError(w, http.StatusBadRequest, "Invalid email address")
		case errors.Is(err, waitlist.ErrMemberExists):
			writeError(w, http.StatusBadRequest, "This email is already subscribed!")
		case errors.Is(err, waitlist.ErrNotConfigured):
			writeError(w, http.StatusInternalServerError, "Server configuration error")
		case errors.As(err, &apiErr):
			msg := apiErr.Detail
			if msg == "" {
				msg = "Failed to subscribe"
			}
			writeError(w, apiErr.StatusCode, msg)
		default:
			s.log.Error().Err(err).Msg("waitlist subscribe")
			writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: sub})
}
