package api

import (
	"context"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/sells-group/futuretree/internal/intake"
	"github.com/sells-group/futuretree/internal/matcher"
	"github.com/sells-group/futuretree/internal/model"
	"github.com/sells-group/futuretree/internal/store"
)

type discoverResponse struct {
	Profile    *model.BusinessProfile `json:"profile"`
	Matches    []matcher.APIMatch     `json:"matches"`
	Summary    *matcher.Summary       `json:"summary,omitempty"`
	RedirectTo string                 `json:"redirectTo,omitempty"`
}

// handleDiscover creates a profile from the intake form and matches it
// against the full corpus.
func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	var payload intake.DiscoverPayload
	if err := decode(r, &payload); err != nil {
		s.writeError(w, r, err)
		return
	}
	prof, err := intake.ParseDiscover(payload)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.Store.CreateProfile(r.Context(), prof); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.computeMatches(r.Context(), prof)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, discoverResponse{
		Profile:    prof,
		Matches:    matcher.FormatForAPI(res.Matches),
		Summary:    &res.Summary,
		RedirectTo: "/discover?profileId=" + url.QueryEscape(prof.ID),
	})
}

// handleGetDiscover returns a stored profile with its matches, computing and
// storing them first when none exist.
func (s *Server) handleGetDiscover(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("profileId")
	if id == "" {
		verr := &model.ValidationError{}
		verr.Add("profileId", "is required")
		s.writeError(w, r, verr)
		return
	}
	ctx := r.Context()
	prof, err := s.Store.GetProfile(ctx, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	stored, err := s.Store.ListMatches(ctx, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(stored) == 0 {
		v, err, _ := s.computing.Do(id, func() (any, error) {
			return s.computeMatches(context.WithoutCancel(ctx), prof)
		})
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		res := v.(*matcher.Result)
		// Re-read so the analysis written by computeMatches is included.
		if prof, err = s.Store.GetProfile(ctx, id); err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, discoverResponse{
			Profile: prof,
			Matches: matcher.FormatForAPI(res.Matches),
			Summary: &res.Summary,
		})
		return
	}

	corpus, err := s.Store.ListCaseStudies(ctx, store.CaseStudyFilter{})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	byID := make(map[string]*model.CaseStudy, len(corpus))
	for i := range corpus {
		byID[corpus[i].ID] = &corpus[i]
	}
	writeJSON(w, http.StatusOK, discoverResponse{
		Profile: prof,
		Matches: matcher.FormatStored(stored, byID),
	})
}

// computeMatches ranks the corpus for prof, stores the matches, and writes
// the profile analysis.
func (s *Server) computeMatches(ctx context.Context, prof *model.BusinessProfile) (*matcher.Result, error) {
	res, err := s.Matcher.MatchAndStore(ctx, s.Store, prof, s.Options, s.now())
	if err != nil {
		return nil, err
	}
	s.log.Info("profile matched",
		zap.String("profile_id", prof.ID),
		zap.Int("matches", res.Summary.TotalMatches),
		zap.String("best_strategy", string(res.Summary.BestStrategyType)),
	)
	return res, nil
}
