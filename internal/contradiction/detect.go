package contradiction

import (
	"math"
	"sort"

	"github.com/sells-group/futuretree/internal/model"
	"github.com/sells-group/futuretree/internal/variance"
)

// Evidence is the aggregate prediction gap behind a contradiction.
type Evidence struct {
	Predicted       float64 `json:"predicted"`
	Actual          float64 `json:"actual"`
	VariancePercent float64 `json:"variancePercent"`
}

// Contradiction is a systematic gap between predicted and actual values of
// one metric on one path.
type Contradiction struct {
	PathID          string                     `json:"pathId"`
	Metric          Metric                     `json:"metric"`
	Severity        Severity                   `json:"severity"`
	Evidence        Evidence                   `json:"evidence"`
	SampleSize      int                        `json:"sampleSize"`
	SuggestedAction string                     `json:"suggestedAction"`
	FailureLayers   map[model.FailureLayer]int `json:"failureLayers,omitempty"`
}

// Summary aggregates all contradictions found in one run.
type Summary struct {
	TotalContradictions int                        `json:"totalContradictions"`
	BySeverity          map[Severity]int           `json:"bySeverity"`
	ByMetric            map[Metric]int             `json:"byMetric"`
	ByFailureLayer      map[model.FailureLayer]int `json:"byFailureLayer"`
	PathsAnalyzed       int                        `json:"pathsAnalyzed"`
	TopContradictions   []Contradiction            `json:"topContradictions"`
	Contradictions      []Contradiction            `json:"-"`
}

// Detect flags every metric whose mean variance exceeds the policy tolerance
// on at least MinSamples outcomes. Failure-layer counts come from the
// caller-supplied attribution on each outcome; they are never inferred here.
func Detect(data []variance.PathVarianceData, p Policy) Summary {
	s := Summary{
		BySeverity:        make(map[Severity]int, len(Severities)),
		ByMetric:          make(map[Metric]int, len(Metrics)),
		ByFailureLayer:    make(map[model.FailureLayer]int, len(model.FailureLayers)),
		PathsAnalyzed:     len(data),
		TopContradictions: []Contradiction{},
	}
	for _, sev := range Severities {
		s.BySeverity[sev] = 0
	}
	for _, m := range Metrics {
		s.ByMetric[m] = 0
	}
	for _, l := range model.FailureLayers {
		s.ByFailureLayer[l] = 0
	}

	for _, pv := range data {
		flagged := false
		for _, m := range Metrics {
			mv := metricOf(pv, m)
			if mv.MeanVariancePercent == nil || mv.SampleSize < p.MinSamples {
				continue
			}
			v := *mv.MeanVariancePercent
			if math.Abs(v) <= p.TolerancePercent {
				continue
			}
			sev := p.Classify(v)
			s.Contradictions = append(s.Contradictions, Contradiction{
				PathID:   pv.PathID,
				Metric:   m,
				Severity: sev,
				Evidence: Evidence{
					Predicted:       mv.MeanPredicted,
					Actual:          mv.MeanActual,
					VariancePercent: v,
				},
				SampleSize:      mv.SampleSize,
				SuggestedAction: SuggestedAction(m, sev),
				FailureLayers:   copyLayers(pv.FailureLayers),
			})
			s.BySeverity[sev]++
			s.ByMetric[m]++
			flagged = true
		}
		if flagged {
			for l, n := range pv.FailureLayers {
				s.ByFailureLayer[l] += n
			}
		}
	}

	s.TotalContradictions = len(s.Contradictions)
	sortContradictions(s.Contradictions)

	limit := p.TopLimit
	if limit <= 0 || limit > len(s.Contradictions) {
		limit = len(s.Contradictions)
	}
	s.TopContradictions = append(s.TopContradictions, s.Contradictions[:limit]...)
	return s
}

func metricOf(pv variance.PathVarianceData, m Metric) variance.MetricVariance {
	switch m {
	case MetricTimeline:
		return pv.Timeline
	case MetricCost:
		return pv.Cost
	case MetricSuccess:
		return pv.Success
	}
	return variance.MetricVariance{}
}

// sortContradictions orders by severity, then magnitude, descending. Path and
// metric break remaining ties.
func sortContradictions(cs []Contradiction) {
	sort.SliceStable(cs, func(i, j int) bool {
		a, b := cs[i], cs[j]
		if a.Severity.rank() != b.Severity.rank() {
			return a.Severity.rank() > b.Severity.rank()
		}
		ma, mb := math.Abs(a.Evidence.VariancePercent), math.Abs(b.Evidence.VariancePercent)
		if ma != mb {
			return ma > mb
		}
		if a.PathID != b.PathID {
			return a.PathID < b.PathID
		}
		return a.Metric < b.Metric
	})
}

func copyLayers(in map[model.FailureLayer]int) map[model.FailureLayer]int {
	if len(in) == 0 {
		return nil
	}
	out := make(map[model.FailureLayer]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
