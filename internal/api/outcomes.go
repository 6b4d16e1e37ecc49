package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/futuretree/internal/model"
	"github.com/sells-group/futuretree/internal/outcome"
	"github.com/sells-group/futuretree/internal/predict"
)

type startExplorationRequest struct {
	ProfileID string `json:"profileId"`
	PathID    string `json:"pathId"`
}

func (s *Server) handleStartExploration(w http.ResponseWriter, r *http.Request) {
	var req startExplorationRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	e, err := s.Outcomes.StartExploration(r.Context(), req.ProfileID, req.PathID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) handleEngagement(w http.ResponseWriter, r *http.Request) {
	var eng outcome.Engagement
	if err := decode(r, &eng); err != nil {
		s.writeError(w, r, err)
		return
	}
	e, err := s.Outcomes.RecordEngagement(r.Context(), chi.URLParam(r, "id"), eng)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleEndExploration(w http.ResponseWriter, r *http.Request) {
	e, err := s.Outcomes.EndExploration(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

type commitResponse struct {
	Outcome    *model.PathOutcome  `json:"outcome"`
	Prediction *predict.Prediction `json:"prediction"`
}

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	o, p, err := s.Outcomes.CommitPrediction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, commitResponse{Outcome: o, Prediction: p})
}

func (s *Server) handleSurvey(w http.ResponseWriter, r *http.Request) {
	var resp outcome.SurveyResponse
	if err := decode(r, &resp); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.Outcomes.ResolveSurvey(r.Context(), chi.URLParam(r, "id"), resp)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
