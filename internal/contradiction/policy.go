// Package contradiction flags paths whose predictions are systematically
// wrong.
package contradiction

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/futuretree/internal/config"
)

// Severity grades the magnitude of a contradiction.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Severities lists severities from most to least severe.
var Severities = []Severity{SeverityHigh, SeverityMedium, SeverityLow}

func (s Severity) rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// Metric is the predicted quantity that was contradicted.
type Metric string

const (
	MetricTimeline Metric = "timeline"
	MetricCost     Metric = "cost"
	MetricSuccess  Metric = "success"
)

// Metrics lists all metrics in reporting order.
var Metrics = []Metric{MetricTimeline, MetricCost, MetricSuccess}

// Policy classifies variance magnitudes into severities.
type Policy struct {
	// LowMaxPercent is the largest |variance| classified low.
	LowMaxPercent float64
	// MediumMaxPercent is the largest |variance| classified medium.
	MediumMaxPercent float64
	// TolerancePercent is the |variance| at or below which no contradiction
	// is raised.
	TolerancePercent float64
	// MinSamples is the fewest outcomes a metric needs to be judged.
	MinSamples int
	// TopLimit caps TopContradictions.
	TopLimit int
}

// DefaultPolicy returns the standard severity policy. Metrics with fewer
// than two outcomes or within 5% of prediction are not flagged.
func DefaultPolicy() Policy {
	return Policy{
		LowMaxPercent:    10,
		MediumMaxPercent: 25,
		TolerancePercent: 5,
		MinSamples:       2,
		TopLimit:         10,
	}
}

// PolicyFromConfig converts contradiction config to a Policy.
func PolicyFromConfig(c config.ContradictionConfig) Policy {
	return Policy{
		LowMaxPercent:    c.LowMaxPercent,
		MediumMaxPercent: c.MediumMaxPercent,
		TolerancePercent: c.TolerancePercent,
		MinSamples:       c.MinSamples,
		TopLimit:         c.TopLimit,
	}
}

// Validate checks that thresholds are ordered.
func (p Policy) Validate() error {
	var errs []string
	if p.LowMaxPercent <= 0 {
		errs = append(errs, "low_max_percent must be > 0")
	}
	if p.MediumMaxPercent <= p.LowMaxPercent {
		errs = append(errs, "medium_max_percent must be > low_max_percent")
	}
	if p.TolerancePercent < 0 || p.TolerancePercent >= p.LowMaxPercent {
		errs = append(errs, fmt.Sprintf("tolerance_percent must be in [0, %g)", p.LowMaxPercent))
	}
	if p.MinSamples < 1 {
		errs = append(errs, "min_samples must be >= 1")
	}
	if p.TopLimit < 0 {
		errs = append(errs, "top_limit must be >= 0")
	}
	if len(errs) > 0 {
		return eris.Errorf("contradiction: invalid policy: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Classify returns the severity of a variance percent by magnitude.
func (p Policy) Classify(variancePercent float64) Severity {
	mag := math.Abs(variancePercent)
	switch {
	case mag <= p.LowMaxPercent:
		return SeverityLow
	case mag <= p.MediumMaxPercent:
		return SeverityMedium
	default:
		return SeverityHigh
	}
}

// actions maps every (metric, severity) pair to a suggested action.
var actions = map[Metric]map[Severity]string{
	MetricTimeline: {
		SeverityLow:    "Monitor timeline estimates as more outcomes arrive",
		SeverityMedium: "Review phase durations in the decision tree",
		SeverityHigh:   "Recalculate timeline estimates from recent outcomes",
	},
	MetricCost: {
		SeverityLow:    "Monitor cost estimates as more outcomes arrive",
		SeverityMedium: "Review node cost estimates against reported spend",
		SeverityHigh:   "Recalculate capital estimates",
	},
	MetricSuccess: {
		SeverityLow:    "Monitor success rate as more outcomes arrive",
		SeverityMedium: "Review case-study fit and success probabilities",
		SeverityHigh:   "Re-examine path recommendation criteria and success probabilities",
	},
}

// SuggestedAction returns the action for a metric and severity.
func SuggestedAction(m Metric, s Severity) string {
	if a, ok := actions[m][s]; ok {
		return a
	}
	return "Review path metrics"
}
