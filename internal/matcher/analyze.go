package matcher

import (
	"sort"
	"strings"
	"time"

	"github.com/sells-group/futuretree/internal/model"
)

// Analyze derives the re-analysis fields of a profile from its matches.
func Analyze(p *model.BusinessProfile, res Result, now time.Time) model.ProfileAnalysis {
	return model.ProfileAnalysis{
		MarketPosition: marketPosition(p),
		Competencies:   competencies(p),
		ExpansionPaths: expansionPaths(res.Matches),
		AnalyzedAt:     now,
	}
}

func marketPosition(p *model.BusinessProfile) string {
	var stage string
	switch idx := p.CurrentRevenue.Index(); {
	case idx < 0:
		stage = "unknown"
	case idx <= 1:
		stage = "early-stage"
	case idx <= 3:
		stage = "established"
	default:
		stage = "scaling"
	}

	trend := ""
	if p.GrowthRate != nil {
		switch *p.GrowthRate {
		case model.GrowthRapid:
			trend = ", growing fast"
		case model.GrowthSteady:
			trend = ", growing steadily"
		case model.GrowthFlat:
			trend = ", plateaued"
		case model.GrowthDeclining:
			trend = ", declining"
		}
	}

	industry := strings.ReplaceAll(p.Industry, "_", " ")
	return stage + " " + industry + " business" + trend
}

func competencies(p *model.BusinessProfile) []string {
	seen := make(map[string]bool)
	var out []string
	for _, q := range p.Qualifications.All() {
		key := strings.ToLower(strings.TrimSpace(q))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, strings.TrimSpace(q))
	}
	return out
}

// expansionPaths orders the strategy types among matches by count, then by
// best rank.
func expansionPaths(matches []Scored) []model.StrategyType {
	counts := make(map[model.StrategyType]int)
	firstRank := make(map[model.StrategyType]int)
	for i, m := range matches {
		st := m.CaseStudy.StrategyType
		if !st.Valid() {
			continue
		}
		if _, ok := firstRank[st]; !ok {
			firstRank[st] = i
		}
		counts[st]++
	}
	out := make([]model.StrategyType, 0, len(counts))
	for st := range counts {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool {
		if counts[out[i]] != counts[out[j]] {
			return counts[out[i]] > counts[out[j]]
		}
		return firstRank[out[i]] < firstRank[out[j]]
	})
	return out
}
