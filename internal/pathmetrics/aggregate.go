// Package pathmetrics aggregates case studies and resolved outcomes into
// strategic path metrics.
package pathmetrics

import (
	"fmt"
	"math"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/futuretree/internal/config"
	"github.com/sells-group/futuretree/internal/model"
	"github.com/sells-group/futuretree/internal/variance"
)

// Confidence thresholds on case count.
const (
	DefaultHighConfidenceMin   = 20
	DefaultMediumConfidenceMin = 8
	// DefaultShrinkageSamples is the pseudo-sample weight pulling risk
	// toward 0.5.
	DefaultShrinkageSamples = 5.0
)

// neutralRisk is the risk score with no evidence.
const neutralRisk = 0.5

// ErrInvalidInput is returned for corrupt sample values.
var ErrInvalidInput = eris.New("pathmetrics: invalid input")

// Config controls aggregation thresholds.
type Config struct {
	HighConfidenceMin   int
	MediumConfidenceMin int
	ShrinkageSamples    float64
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		HighConfidenceMin:   DefaultHighConfidenceMin,
		MediumConfidenceMin: DefaultMediumConfidenceMin,
		ShrinkageSamples:    DefaultShrinkageSamples,
	}
}

// ConfigFrom converts aggregator config.
func ConfigFrom(c config.AggregatorConfig) Config {
	return Config{
		HighConfidenceMin:   c.HighConfidenceMin,
		MediumConfidenceMin: c.MediumConfidenceMin,
		ShrinkageSamples:    c.ShrinkageSamples,
	}
}

// Aggregate computes a path's metrics from the case studies sharing its
// strategy type and its resolved outcomes. Missing values are excluded from
// samples; negative or non-finite values are an error. The result depends
// only on the inputs.
func Aggregate(path *model.StrategicPath, cases []model.CaseStudy, outcomes []model.PathOutcome, cfg Config) (model.PathMetrics, error) {
	var (
		months, capital []float64
		caseCount       int
		caseWins        int
		caseLabeled     int
		outcomeCount    int
		outcomeWins     int
		outcomeLabeled  int
	)

	for i := range cases {
		cs := &cases[i]
		if cs.StrategyType != path.StrategyType {
			continue
		}
		caseCount++
		if cs.Timeline.TotalMonths != nil {
			if err := checkValue("case "+cs.ID+" timeline.total_months", *cs.Timeline.TotalMonths); err != nil {
				return model.PathMetrics{}, err
			}
			months = append(months, *cs.Timeline.TotalMonths)
		}
		if cs.CapitalInvested != nil {
			if err := checkValue("case "+cs.ID+" capital_invested", *cs.CapitalInvested); err != nil {
				return model.PathMetrics{}, err
			}
			capital = append(capital, *cs.CapitalInvested)
		}
		if cs.Outcomes.Result != "" {
			caseLabeled++
			if cs.Outcomes.Result == model.CaseResultSuccess {
				caseWins++
			}
		}
	}

	for i := range outcomes {
		o := &outcomes[i]
		if o.PathID != path.ID || !o.Resolved() {
			continue
		}
		outcomeCount++
		if o.ActualMonths != nil {
			if err := checkValue("outcome "+o.ID+" actual_months", *o.ActualMonths); err != nil {
				return model.PathMetrics{}, err
			}
			months = append(months, *o.ActualMonths)
		}
		if o.ActualCost != nil {
			if err := checkValue("outcome "+o.ID+" actual_cost", *o.ActualCost); err != nil {
				return model.PathMetrics{}, err
			}
			capital = append(capital, *o.ActualCost)
		}
		if o.ActualSuccess != nil {
			outcomeLabeled++
			if *o.ActualSuccess {
				outcomeWins++
			}
		}
	}

	// Observed outcomes take precedence over static case-study labels.
	wins, labeled := caseWins, caseLabeled
	if outcomeLabeled > 0 {
		wins, labeled = outcomeWins, outcomeLabeled
	}

	m := model.PathMetrics{
		CaseCount:      caseCount + outcomeCount,
		OutcomeCount:   outcomeCount,
		SuccessSamples: labeled,
	}
	if labeled > 0 {
		m.SuccessRate = round2(float64(wins) / float64(labeled) * 100)
	}
	m.RiskScore = round4(RiskScore(m.SuccessRate, labeled, cfg.ShrinkageSamples))
	m.ConfidenceLevel = ConfidenceFor(m.CaseCount, cfg)
	m.TimelineP25, m.TimelineP75 = quartiles(months)
	m.CapitalP25, m.CapitalP75 = quartiles(capital)
	return m, nil
}

// RiskScore returns 1 - successRate/100 shrunk toward 0.5 by n/(n+k).
func RiskScore(successRate float64, n int, k float64) float64 {
	raw := 1 - successRate/100
	if k <= 0 {
		return clamp01(raw)
	}
	weight := float64(n) / (float64(n) + k)
	return clamp01(neutralRisk + (raw-neutralRisk)*weight)
}

// ConfidenceFor maps a case count to a confidence level.
func ConfidenceFor(caseCount int, cfg Config) model.ConfidenceLevel {
	switch {
	case caseCount >= cfg.HighConfidenceMin:
		return model.ConfidenceHigh
	case caseCount >= cfg.MediumConfidenceMin:
		return model.ConfidenceMedium
	default:
		return model.ConfidenceLow
	}
}

// Percentile returns the p-th percentile (0..1) of sorted using linear
// interpolation between order statistics: index = p*(n-1).
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	idx := p * float64(n-1)
	lo := int(math.Floor(idx))
	hi := int(math.Ceil(idx))
	if lo == hi {
		return sorted[lo]
	}
	frac := idx - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

func quartiles(sample []float64) (p25, p75 *float64) {
	if len(sample) == 0 {
		return nil, nil
	}
	sorted := make([]float64, len(sample))
	copy(sorted, sample)
	sort.Float64s(sorted)
	a := round2(Percentile(sorted, 0.25))
	b := round2(Percentile(sorted, 0.75))
	return &a, &b
}

// Diff builds the before/after record of a recalculation. A change percent is
// nil when the previous value was zero or either side is missing.
func Diff(prev, next model.PathMetrics) model.MetricsChange {
	change := map[string]*float64{
		"successRate": pct(&prev.SuccessRate, &next.SuccessRate),
		"riskScore":   pct(&prev.RiskScore, &next.RiskScore),
		"timelineP25": pct(prev.TimelineP25, next.TimelineP25),
		"timelineP75": pct(prev.TimelineP75, next.TimelineP75),
		"capitalP25":  pct(prev.CapitalP25, next.CapitalP25),
		"capitalP75":  pct(prev.CapitalP75, next.CapitalP75),
	}
	pc, nc := float64(prev.CaseCount), float64(next.CaseCount)
	change["caseCount"] = pct(&pc, &nc)
	return model.MetricsChange{PreviousValues: prev, NewValues: next, ChangePercent: change}
}

func pct(prev, next *float64) *float64 {
	if prev == nil || next == nil {
		return nil
	}
	v, err := variance.Percent(*prev, *next)
	if err != nil {
		return nil
	}
	r := round2(*v)
	return &r
}

func checkValue(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return eris.Wrap(ErrInvalidInput, fmt.Sprintf("%s = %v", field, v))
	}
	return nil
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
