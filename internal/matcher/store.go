package matcher

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/futuretree/internal/model"
	"github.com/sells-group/futuretree/internal/store"
)

// MatchStore is the persistence a stored matching run needs.
type MatchStore interface {
	ListCaseStudies(ctx context.Context, filter store.CaseStudyFilter) ([]model.CaseStudy, error)
	UpsertMatches(ctx context.Context, profileID string, matches []model.Match) error
	SetProfileAnalysis(ctx context.Context, id string, a model.ProfileAnalysis) error
}

// MatchAndStore ranks the full corpus for prof, upserts the matches, and
// writes the profile analysis. prof.Analysis is updated in place.
func (mt *Matcher) MatchAndStore(ctx context.Context, st MatchStore, prof *model.BusinessProfile, opts Options, now time.Time) (*Result, error) {
	corpus, err := st.ListCaseStudies(ctx, store.CaseStudyFilter{})
	if err != nil {
		return nil, eris.Wrap(err, "matcher: load corpus")
	}
	res := mt.FindMatches(prof, corpus, opts)

	rows := ToModelMatches(prof.ID, mt.model.Version(), res.Matches, now)
	if err := st.UpsertMatches(ctx, prof.ID, rows); err != nil {
		return nil, eris.Wrapf(err, "matcher: store matches for %s", prof.ID)
	}
	analysis := Analyze(prof, res, now)
	if err := st.SetProfileAnalysis(ctx, prof.ID, analysis); err != nil {
		return nil, eris.Wrapf(err, "matcher: store analysis for %s", prof.ID)
	}
	prof.Analysis = &analysis
	return &res, nil
}
