package api

import (
	"net/http"

	"github.com/sells-group/futuretree/internal/report"
)

func (s *Server) handleContradictions(w http.ResponseWriter, r *http.Request) {
	policy := s.Policy
	limit, err := intParam(r, "limit", policy.TopLimit, 1, 100)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	policy.TopLimit = limit

	summary, err := report.Contradictions(r.Context(), s.Store, policy)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	hours, err := intParam(r, "hours", s.LookbackHours, 1, 24*90)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	snap, err := s.Collector.Collect(r.Context(), hours)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
