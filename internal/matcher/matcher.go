// Package matcher ranks a case-study corpus against a business profile.
package matcher

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/futuretree/internal/config"
	"github.com/sells-group/futuretree/internal/model"
	"github.com/sells-group/futuretree/internal/scorer"
)

// Options controls filtering and truncation.
type Options struct {
	Threshold  float64
	MaxResults int
	// SummaryTop is how many top matches vote for the best strategy type.
	SummaryTop int
}

// DefaultOptions returns the standard matching options.
func DefaultOptions() Options {
	return Options{Threshold: 30, MaxResults: 50, SummaryTop: 10}
}

// OptionsFromConfig converts matcher config to Options.
func OptionsFromConfig(c config.MatcherConfig) Options {
	return Options{Threshold: c.Threshold, MaxResults: c.MaxResults, SummaryTop: c.SummaryTop}
}

// Scored is one case study that cleared the threshold.
type Scored struct {
	CaseStudy *model.CaseStudy
	Score     scorer.Result
}

// Summary describes a matching run.
type Summary struct {
	BestStrategyType model.StrategyType `json:"bestStrategyType,omitempty"`
	TotalCandidates  int                `json:"totalCandidates"`
	TotalMatches     int                `json:"totalMatches"`
	Skipped          int                `json:"skipped"`
}

// Result is the ranked output of FindMatches. An empty Matches slice is a
// valid result, not an error.
type Result struct {
	Matches []Scored `json:"-"`
	Summary Summary  `json:"summary"`
}

// Matcher runs a score model over a corpus.
type Matcher struct {
	model *scorer.Model
	log   *zap.Logger
}

// New creates a Matcher.
func New(m *scorer.Model) *Matcher {
	return &Matcher{model: m, log: zap.L().With(zap.String("component", "matcher"))}
}

// Model returns the underlying score model.
func (mt *Matcher) Model() *scorer.Model { return mt.model }

// FindMatches scores every case study, drops those under the threshold, and
// returns the rest sorted by score descending then case-study ID ascending.
// Invalid case studies are skipped and counted; they never abort the run.
func (mt *Matcher) FindMatches(profile *model.BusinessProfile, corpus []model.CaseStudy, opts Options) Result {
	res := Result{Matches: []Scored{}}
	res.Summary.TotalCandidates = len(corpus)

	for i := range corpus {
		cs := &corpus[i]
		scored, ok := mt.scoreOne(profile, cs)
		if !ok {
			res.Summary.Skipped++
			continue
		}
		if scored.Score.Overall < opts.Threshold {
			continue
		}
		res.Matches = append(res.Matches, scored)
	}

	sort.SliceStable(res.Matches, func(i, j int) bool {
		a, b := res.Matches[i], res.Matches[j]
		if a.Score.Overall != b.Score.Overall {
			return a.Score.Overall > b.Score.Overall
		}
		return a.CaseStudy.ID < b.CaseStudy.ID
	})

	res.Summary.TotalMatches = len(res.Matches)
	if opts.MaxResults > 0 && len(res.Matches) > opts.MaxResults {
		res.Matches = res.Matches[:opts.MaxResults]
	}
	res.Summary.BestStrategyType = bestStrategy(res.Matches, opts.SummaryTop)

	mt.log.Debug("matcher: run complete",
		zap.String("profile_id", profile.ID),
		zap.Int("candidates", res.Summary.TotalCandidates),
		zap.Int("matches", res.Summary.TotalMatches),
		zap.Int("skipped", res.Summary.Skipped),
	)
	return res
}

// scoreOne scores one case study, recovering from bad records.
func (mt *Matcher) scoreOne(profile *model.BusinessProfile, cs *model.CaseStudy) (s Scored, ok bool) {
	if cs.ID == "" {
		mt.log.Warn("matcher: skipping case study without id", zap.String("company", cs.CompanyName))
		return Scored{}, false
	}
	defer func() {
		if r := recover(); r != nil {
			mt.log.Error("matcher: scoring panicked",
				zap.String("case_study_id", cs.ID),
				zap.Any("panic", r),
			)
			s, ok = Scored{}, false
		}
	}()
	return Scored{CaseStudy: cs, Score: mt.model.Score(profile, cs)}, true
}

// bestStrategy returns the most frequent strategy type among the first topN
// matches. Ties go to the type that appears first in rank order.
func bestStrategy(matches []Scored, topN int) model.StrategyType {
	if topN <= 0 || topN > len(matches) {
		topN = len(matches)
	}
	counts := make(map[model.StrategyType]int)
	var order []model.StrategyType
	for _, m := range matches[:topN] {
		st := m.CaseStudy.StrategyType
		if st == "" {
			continue
		}
		if counts[st] == 0 {
			order = append(order, st)
		}
		counts[st]++
	}
	var best model.StrategyType
	for _, st := range order {
		if counts[st] > counts[best] {
			best = st
		}
	}
	return best
}

// ToModelMatches converts ranked results to persisted match rows.
func ToModelMatches(profileID, weightsVersion string, matches []Scored, now time.Time) []model.Match {
	out := make([]model.Match, len(matches))
	for i, m := range matches {
		out[i] = model.Match{
			ProfileID:      profileID,
			CaseStudyID:    m.CaseStudy.ID,
			Rank:           i + 1,
			OverallScore:   m.Score.Overall,
			Breakdown:      m.Score.Breakdown,
			MatchReason:    m.Score.Explanation,
			KeyTakeaways:   m.Score.KeyTakeaways,
			StrategyType:   m.CaseStudy.StrategyType,
			WeightsVersion: weightsVersion,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
	}
	return out
}
