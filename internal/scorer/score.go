package scorer

import (
	"fmt"
	"math"
	"strings"

	"github.com/sells-group/futuretree/internal/config"
	"github.com/sells-group/futuretree/internal/model"
)

const (
	maxTakeaways    = 3
	partialMatchMsg = "Partial match across multiple dimensions"
)

// Result is the score of one case study against one profile.
type Result struct {
	Overall      float64               `json:"overall"`
	Breakdown    model.DimensionScores `json:"breakdown"`
	Explanation  string                `json:"explanation"`
	KeyTakeaways []string              `json:"keyTakeaways"`
}

// Model scores profiles against case studies with one fixed weight profile.
// A Model is immutable and safe for concurrent use.
type Model struct {
	cfg         config.ScorerConfig
	parents     map[string]string
	fingerprint string
}

// New validates cfg and returns a Model bound to it. A config whose weights
// do not sum to 1.0 is rejected.
func New(cfg config.ScorerConfig) (*Model, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if len(cfg.IndustryParents) == 0 {
		cfg.IndustryParents = DefaultIndustryParents
	}
	parents := make(map[string]string, len(cfg.IndustryParents))
	for k, v := range cfg.IndustryParents {
		parents[normalizeKey(k)] = normalizeKey(v)
	}
	steps := make([]float64, len(cfg.BandSteps))
	copy(steps, cfg.BandSteps)
	cfg.BandSteps = steps
	return &Model{cfg: cfg, parents: parents, fingerprint: ConfigHash(cfg)}, nil
}

// Version returns the configured weights version label.
func (m *Model) Version() string { return m.cfg.Version }

// Fingerprint returns a hash of the full scoring config.
func (m *Model) Fingerprint() string { return m.fingerprint }

// Config returns a copy of the scoring config.
func (m *Model) Config() config.ScorerConfig { return m.cfg }

// Score computes the per-dimension and overall similarity of cs to p.
func (m *Model) Score(p *model.BusinessProfile, cs *model.CaseStudy) Result {
	b := model.DimensionScores{
		Industry:   round2(m.industryScore(p, cs)),
		Revenue:    round2(m.revenueScore(p, cs)),
		TeamSize:   round2(m.teamSizeScore(p, cs)),
		Capability: round2(capabilityScore(p, cs)),
		Challenge:  round2(challengeScore(p, cs)),
	}
	return Result{
		Overall:      m.Overall(b),
		Breakdown:    b,
		Explanation:  m.explain(b, p, cs),
		KeyTakeaways: m.takeaways(b, cs),
	}
}

// Overall returns the weighted sum of the breakdown, rounded to 2 decimals
// and clamped to [0,100].
func (m *Model) Overall(b model.DimensionScores) float64 {
	sum := b.Industry*m.cfg.IndustryWeight +
		b.Revenue*m.cfg.RevenueWeight +
		b.TeamSize*m.cfg.TeamSizeWeight +
		b.Capability*m.cfg.CapabilityWeight +
		b.Challenge*m.cfg.ChallengeWeight
	return round2(math.Max(0, math.Min(100, sum)))
}

func (m *Model) industryScore(p *model.BusinessProfile, cs *model.CaseStudy) float64 {
	pi, ci := normalizeKey(p.Industry), normalizeKey(cs.Industry)
	if pi == "" || ci == "" {
		return 0
	}
	if pi == ci {
		psub, csub := normalizeKey(model.Deref(p.SubIndustry)), normalizeKey(model.Deref(cs.SubIndustry))
		if psub != "" && csub != "" && psub != csub {
			return m.cfg.SubIndustryMismatchScore
		}
		return 100
	}
	if m.parentOf(pi) == m.parentOf(ci) {
		return m.cfg.IndustryPartialScore
	}
	return 0
}

func (m *Model) parentOf(industry string) string {
	if parent, ok := m.parents[industry]; ok {
		return parent
	}
	return industry
}

func (m *Model) revenueScore(p *model.BusinessProfile, cs *model.CaseStudy) float64 {
	if cs.StartingState.Revenue == nil {
		return 0
	}
	return BandScore(p.CurrentRevenue.Index(), cs.StartingState.Revenue.Index(), m.cfg.BandSteps)
}

func (m *Model) teamSizeScore(p *model.BusinessProfile, cs *model.CaseStudy) float64 {
	band := cs.StartingState.TeamBand()
	if band == "" {
		return 0
	}
	return BandScore(p.CompanySize.Index(), band.Index(), m.cfg.BandSteps)
}

// BandScore scores two band indexes by distance: steps[|a-b|], or 0 when the
// distance runs past the configured steps. Unknown bands (negative index)
// score 0.
func BandScore(a, b int, steps []float64) float64 {
	if a < 0 || b < 0 {
		return 0
	}
	d := a - b
	if d < 0 {
		d = -d
	}
	if d >= len(steps) {
		return 0
	}
	return steps[d]
}

func capabilityScore(p *model.BusinessProfile, cs *model.CaseStudy) float64 {
	caseSide := make([]string, 0, len(cs.Capabilities)+len(cs.KeyActions))
	caseSide = append(caseSide, cs.Capabilities...)
	caseSide = append(caseSide, cs.KeyActions...)
	return jaccard(tokenSet(p.Qualifications.All()...), tokenSet(caseSide...))
}

func challengeScore(p *model.BusinessProfile, cs *model.CaseStudy) float64 {
	return jaccard(tokenSet(model.Deref(p.BiggestChallenge)), tokenSet(cs.StartingState.Challenges...))
}

// explain lists the strong dimensions in priority order.
func (m *Model) explain(b model.DimensionScores, p *model.BusinessProfile, cs *model.CaseStudy) string {
	var parts []string
	for _, d := range model.DimensionPriority {
		if b.Get(d) < m.cfg.StrongMatchCutoff {
			continue
		}
		switch d {
		case model.DimensionIndustry:
			if b.Industry >= 100 {
				parts = append(parts, fmt.Sprintf("Same industry (%s)", cs.Industry))
			} else {
				parts = append(parts, fmt.Sprintf("Closely related industry (%s)", cs.Industry))
			}
		case model.DimensionRevenue:
			if cs.StartingState.Revenue != nil && *cs.StartingState.Revenue == p.CurrentRevenue {
				parts = append(parts, fmt.Sprintf("Started at the same revenue stage (%s)", p.CurrentRevenue))
			} else {
				parts = append(parts, "Started at a similar revenue stage")
			}
		case model.DimensionCapability:
			parts = append(parts, "Overlapping capabilities")
		case model.DimensionChallenge:
			parts = append(parts, "Faced a similar challenge")
		case model.DimensionTeamSize:
			parts = append(parts, "Comparable team size")
		}
	}
	if len(parts) == 0 {
		return partialMatchMsg
	}
	return strings.Join(parts, "; ")
}

// takeaways derives up to maxTakeaways lessons from the case study, one per
// strong dimension in priority order.
func (m *Model) takeaways(b model.DimensionScores, cs *model.CaseStudy) []string {
	out := make([]string, 0, maxTakeaways)
	seen := make(map[string]bool)
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] || len(out) >= maxTakeaways {
			return
		}
		seen[s] = true
		out = append(out, s)
	}

	for _, d := range model.DimensionPriority {
		if b.Get(d) < m.cfg.StrongMatchCutoff {
			continue
		}
		switch d {
		case model.DimensionIndustry:
			add(cs.Advice)
		case model.DimensionRevenue:
			if cs.StartingState.Revenue != nil && cs.EndingState.Revenue != nil {
				msg := fmt.Sprintf("Grew from %s to %s revenue", *cs.StartingState.Revenue, *cs.EndingState.Revenue)
				if cs.Timeline.TotalMonths != nil {
					msg += fmt.Sprintf(" in %g months", *cs.Timeline.TotalMonths)
				}
				add(msg)
			}
		case model.DimensionCapability:
			if len(cs.KeyActions) > 0 {
				add("Key action: " + cs.KeyActions[0])
			}
		case model.DimensionChallenge:
			add(cs.LessonsLearned)
		case model.DimensionTeamSize:
			if cs.EndingState.TeamSize != nil {
				add(fmt.Sprintf("Scaled the team to %d people", *cs.EndingState.TeamSize))
			}
		}
	}
	if len(out) == 0 {
		add(cs.Advice)
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
