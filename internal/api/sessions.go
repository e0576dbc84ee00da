package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/banshee-data/eeg.report/internal/db"
	"github.com/banshee-data/eeg.report/internal/httputil"
)

// defaultSessionRows caps /api/sessions/{id}/raw and /bands when no n is given.
const defaultSessionRows = 1024

func (s *Server) recordingDisabled(w http.ResponseWriter) bool {
	if s.db == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "recording is disabled")
		return true
	}
	return false
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.recordingDisabled(w) {
		return
	}
	sessions, err := s.db.Sessions(r.Context())
	if err != nil {
		httputil.InternalServerError(w, "failed to list sessions")
		return
	}
	if sessions == nil {
		sessions = []db.Session{}
	}
	httputil.WriteJSONOK(w, sessions)
}

// handleSession serves /api/sessions/{id}, /api/sessions/{id}/raw and
// /api/sessions/{id}/bands.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.recordingDisabled(w) {
		return
	}

	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/sessions/"), "/"), "/")
	id := parts[0]
	if id == "" || len(parts) > 2 {
		httputil.NotFound(w, "not found")
		return
	}

	sess, err := s.db.GetSession(r.Context(), id)
	if errors.Is(err, db.ErrSessionNotFound) {
		httputil.NotFound(w, err.Error())
		return
	} else if err != nil {
		httputil.InternalServerError(w, "failed to load session")
		return
	}
	if len(parts) == 1 {
		httputil.WriteJSONOK(w, sess)
		return
	}

	limit, err := parseCount(r, "n", defaultSessionRows)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	switch parts[1] {
	case "raw":
		rows, err := s.db.RawSamples(r.Context(), id, limit)
		if err != nil {
			httputil.InternalServerError(w, "failed to load raw samples")
			return
		}
		if rows == nil {
			rows = []db.RawRow{}
		}
		httputil.WriteJSONOK(w, rows)
	case "bands":
		rows, err := s.db.BandSamples(r.Context(), id, limit)
		if err != nil {
			httputil.InternalServerError(w, "failed to load band samples")
			return
		}
		if rows == nil {
			rows = []db.BandRow{}
		}
		httputil.WriteJSONOK(w, rows)
	default:
		httputil.NotFound(w, "not found")
	}
}
