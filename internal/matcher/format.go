package matcher

import (
	"github.com/sells-group/futuretree/internal/model"
)

// APIMatch is the boundary representation of one ranked match.
type APIMatch struct {
	Rank            int                   `json:"rank"`
	CaseStudyID     string                `json:"caseStudyId"`
	CompanyName     string                `json:"companyName"`
	Industry        string                `json:"industry"`
	StrategyType    model.StrategyType    `json:"strategyType"`
	Summary         string                `json:"summary"`
	MatchScore      float64               `json:"matchScore"`
	MatchReason     string                `json:"matchReason"`
	Breakdown       model.DimensionScores `json:"breakdown"`
	KeyTakeaways    []string              `json:"keyTakeaways"`
	TimelineMonths  *float64              `json:"timelineMonths,omitempty"`
	CapitalInvested *float64              `json:"capitalInvested,omitempty"`
}

// FormatForAPI converts ranked results to their boundary shape without
// changing scores or order.
func FormatForAPI(matches []Scored) []APIMatch {
	out := make([]APIMatch, len(matches))
	for i, m := range matches {
		out[i] = apiMatch(i+1, m.CaseStudy, m.Score.Overall, m.Score.Explanation, m.Score.Breakdown, m.Score.KeyTakeaways)
	}
	return out
}

// FormatStored converts persisted matches to their boundary shape. Matches
// whose case study is missing from corpus are dropped.
func FormatStored(matches []model.Match, corpus map[string]*model.CaseStudy) []APIMatch {
	out := make([]APIMatch, 0, len(matches))
	for _, m := range matches {
		cs, ok := corpus[m.CaseStudyID]
		if !ok {
			continue
		}
		out = append(out, apiMatch(m.Rank, cs, m.OverallScore, m.MatchReason, m.Breakdown, m.KeyTakeaways))
	}
	return out
}

func apiMatch(rank int, cs *model.CaseStudy, score float64, reason string, b model.DimensionScores, takeaways []string) APIMatch {
	if takeaways == nil {
		takeaways = []string{}
	}
	return APIMatch{
		Rank:            rank,
		CaseStudyID:     cs.ID,
		CompanyName:     cs.CompanyName,
		Industry:        cs.Industry,
		StrategyType:    cs.StrategyType,
		Summary:         cs.Summary,
		MatchScore:      score,
		MatchReason:     reason,
		Breakdown:       b,
		KeyTakeaways:    takeaways,
		TimelineMonths:  cs.Timeline.TotalMonths,
		CapitalInvested: cs.CapitalInvested,
	}
}
