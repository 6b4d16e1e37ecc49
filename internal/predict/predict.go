// Package predict estimates how a strategic path will go for one business,
// from the path's evidence-derived metrics, the business's case-study
// matches, and the path's decision tree.
package predict

import (
	"fmt"
	"math"

	"github.com/sells-group/futuretree/internal/model"
	"github.com/sells-group/futuretree/internal/tree"
)

// Neutral values used when a path has no evidence yet.
const (
	FallbackProbability = 0.5
	FallbackConfidence  = 0.3
	FallbackTimeline    = "12-18 months"
	FallbackMonths      = 15.0
	FallbackCapital     = 25000.0
)

// Blend weights between the path's observed success rate and the mean score
// of the business's matches on the same strategy.
const (
	metricsWeight = 0.6
	matchWeight   = 0.4
	minProb       = 0.05
	maxProb       = 0.95

	// riskDisclosure is the deepest level whose risk nodes are reported.
	riskDisclosure     = model.DisclosureDetail
	maxRecommendations = 3
)

var confidenceValue = map[model.ConfidenceLevel]float64{
	model.ConfidenceHigh:   0.85,
	model.ConfidenceMedium: 0.6,
	model.ConfidenceLow:    0.4,
}

// Input is everything a prediction reads. Tree and Matches may be empty.
type Input struct {
	Path    *model.StrategicPath
	Tree    *tree.Tree
	Matches []model.Match
}

// Prediction is the expected result of following a path.
type Prediction struct {
	PathID             string   `json:"pathId"`
	ModelVersion       int      `json:"modelVersion"`
	SuccessProbability float64  `json:"successProbability"`
	Confidence         float64  `json:"confidence"`
	TimelineEstimate   string   `json:"timelineEstimate"`
	TimelineMonths     float64  `json:"timelineMonths"`
	CapitalRequired    float64  `json:"capitalRequired"`
	RiskFactors        []string `json:"riskFactors"`
	Recommendations    []string `json:"recommendations"`
	SimilarCases       []string `json:"similarCases"`
	Reasoning          string   `json:"reasoning"`
	Fallback           bool     `json:"fallback"`
}

// Predict builds a prediction for in.Path. A path whose metrics were never
// computed from any evidence yields the neutral fallback values.
func Predict(in Input) Prediction {
	p := Prediction{
		PathID:          in.Path.ID,
		ModelVersion:    in.Path.ModelVersion,
		RiskFactors:     []string{},
		Recommendations: []string{},
		SimilarCases:    []string{},
	}
	m := in.Path.Metrics

	var scoreSum float64
	for _, match := range in.Matches {
		if match.StrategyType != in.Path.StrategyType {
			continue
		}
		scoreSum += match.OverallScore
		p.SimilarCases = append(p.SimilarCases, match.CaseStudyID)
	}

	if m.CaseCount == 0 {
		p.Fallback = true
		p.SuccessProbability = FallbackProbability
		p.Confidence = FallbackConfidence
		p.TimelineEstimate = FallbackTimeline
		p.TimelineMonths = FallbackMonths
		p.CapitalRequired = FallbackCapital
		p.RiskFactors = append(p.RiskFactors, "Insufficient data for accurate prediction")
		p.Recommendations = append(p.Recommendations, "Gather more information before proceeding")
		p.Reasoning = "No case studies or outcomes exist for this path yet; neutral estimates apply."
		return p
	}

	base := FallbackProbability
	if m.SuccessSamples > 0 {
		base = m.SuccessRate / 100
	}
	prob := base
	if n := len(p.SimilarCases); n > 0 {
		prob = metricsWeight*base + matchWeight*(scoreSum/float64(n)/100)
	}
	p.SuccessProbability = round4(math.Min(maxProb, math.Max(minProb, prob)))

	p.Confidence = confidenceValue[m.ConfidenceLevel]
	if p.Confidence == 0 {
		p.Confidence = FallbackConfidence
	}

	p.TimelineEstimate, p.TimelineMonths = timeline(m.TimelineP25, m.TimelineP75)
	p.CapitalRequired = capital(m.CapitalP25, m.CapitalP75)

	if in.Tree != nil {
		for _, n := range in.Tree.RisksUpTo(riskDisclosure) {
			p.RiskFactors = append(p.RiskFactors, n.Title)
		}
		for _, n := range in.Tree.FirstOfType(model.NodeDecision, riskDisclosure, maxRecommendations) {
			p.Recommendations = append(p.Recommendations, n.Title)
		}
	}

	p.Reasoning = fmt.Sprintf("%.0f%% success across %d samples (%s confidence), %d similar case studies.",
		m.SuccessRate, m.SuccessSamples, m.ConfidenceLevel, len(p.SimilarCases))
	return p
}

// timeline renders the P25-P75 range in whole months and returns its
// midpoint. A single-sided range collapses to that value.
func timeline(p25, p75 *float64) (string, float64) {
	switch {
	case p25 == nil && p75 == nil:
		return FallbackTimeline, FallbackMonths
	case p25 == nil:
		p25 = p75
	case p75 == nil:
		p75 = p25
	}
	lo, hi := math.Round(*p25), math.Round(*p75)
	mid := round4((*p25 + *p75) / 2)
	if lo == hi {
		return fmt.Sprintf("%.0f months", lo), mid
	}
	return fmt.Sprintf("%.0f-%.0f months", lo, hi), mid
}

func capital(p25, p75 *float64) float64 {
	switch {
	case p25 == nil && p75 == nil:
		return FallbackCapital
	case p25 == nil:
		return *p75
	case p75 == nil:
		return *p25
	}
	return math.Round((*p25 + *p75) / 2)
}

// ForOutcome copies the prediction into a new pending outcome for
// explorationID.
func (p Prediction) ForOutcome(explorationID string) *model.PathOutcome {
	return &model.PathOutcome{
		ExplorationID:    explorationID,
		PathID:           p.PathID,
		ModelVersion:     p.ModelVersion,
		PredictedMonths:  p.TimelineMonths,
		PredictedCost:    p.CapitalRequired,
		PredictedSuccess: p.SuccessProbability,
		Status:           model.OutcomePending,
	}
}

func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
