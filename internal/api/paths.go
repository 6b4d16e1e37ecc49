package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/futuretree/internal/model"
	"github.com/sells-group/futuretree/internal/recalc"
	"github.com/sells-group/futuretree/internal/store"
	"github.com/sells-group/futuretree/internal/tree"
)

func (s *Server) handleListPaths(w http.ResponseWriter, r *http.Request) {
	paths, err := s.Store.ListPaths(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if paths == nil {
		paths = []model.StrategicPath{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"paths": paths})
}

func (s *Server) handleGetPath(w http.ResponseWriter, r *http.Request) {
	p, err := s.Store.GetPath(r.Context(), chi.URLParam(r, "pathID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type treeResponse struct {
	PathID  string               `json:"pathId"`
	Level   int                  `json:"level"`
	Nodes   []model.DecisionNode `json:"nodes"`
	Rollups []tree.Rollup        `json:"rollups"`
}

// handleTree returns the nodes revealed at the requested disclosure level,
// with a root-to-leaf rollup for every visible leaf.
func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	level, err := intParam(r, "level", model.DisclosureSummary, model.DisclosureSummary, model.DisclosureDeepDive)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx := r.Context()
	p, err := s.Store.GetPath(ctx, chi.URLParam(r, "pathID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	nodes, err := s.Store.ListNodes(ctx, p.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	tr, err := tree.New(nodes)
	if err != nil {
		s.writeError(w, r, eris.Wrapf(err, "api: build tree for %s", p.ID))
		return
	}

	resp := treeResponse{PathID: p.ID, Level: level, Nodes: tr.Visible(level), Rollups: []tree.Rollup{}}
	if resp.Nodes == nil {
		resp.Nodes = []model.DecisionNode{}
	}
	visible := make(map[string]bool, len(resp.Nodes))
	for _, n := range resp.Nodes {
		visible[n.ID] = true
	}
	for _, n := range resp.Nodes {
		leaf := true
		for _, c := range tr.Children(n.ID) {
			if visible[c] {
				leaf = false
				break
			}
		}
		if !leaf {
			continue
		}
		ru, err := tr.RollupTo(n.ID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		resp.Rollups = append(resp.Rollups, ru)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handlePrediction previews the prediction for a profile on a path without
// committing it.
func (s *Server) handlePrediction(w http.ResponseWriter, r *http.Request) {
	profileID := r.URL.Query().Get("profileId")
	if profileID == "" {
		verr := &model.ValidationError{}
		verr.Add("profileId", "is required")
		s.writeError(w, r, verr)
		return
	}
	p, err := s.Outcomes.Predict(r.Context(), profileID, chi.URLParam(r, "pathID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type recalculateRequest struct {
	NodeID string `json:"nodeId"`
}

// handleRecalculate runs a manual recalculation of the path, or of one of
// its nodes. A trigger that lands on a running job is coalesced and answered
// with 202.
func (s *Server) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	var req recalculateRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	tr := recalc.TriggerRequest{
		Scope:   model.ScopePath,
		PathID:  chi.URLParam(r, "pathID"),
		Trigger: model.TriggerManual,
		Ref:     "api",
	}
	if req.NodeID != "" {
		tr.Scope = model.ScopeNode
		tr.NodeID = req.NodeID
	}
	res, err := s.Recalc.Trigger(r.Context(), tr)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if res.Coalesced {
		status = http.StatusAccepted
	}
	writeJSON(w, status, res)
}

func (s *Server) handlePathJobs(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 50, 1, 500)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	status := model.JobStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		verr := &model.ValidationError{}
		verr.Add("status", "must be one of pending, processing, completed, failed")
		s.writeError(w, r, verr)
		return
	}
	ctx := r.Context()
	p, err := s.Store.GetPath(ctx, chi.URLParam(r, "pathID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	jobs, err := s.Store.ListJobs(ctx, store.JobFilter{
		PathID: p.ID,
		Status: status,
		Limit:  limit,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if jobs == nil {
		jobs = []model.MetricRecalculationJob{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.Store.GetJob(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleRetryJob(w http.ResponseWriter, r *http.Request) {
	res, err := s.Recalc.Retry(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if res.Coalesced {
		status = http.StatusAccepted
	}
	writeJSON(w, status, res)
}
