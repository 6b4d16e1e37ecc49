// Package variance compares predicted and actual outcome values.
package variance

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/futuretree/internal/model"
)

var (
	// ErrDivisionByZero is returned when the predicted value is zero.
	ErrDivisionByZero = eris.Wrap(model.ErrDivisionByZero, "variance")
	// ErrNonFinite is returned when an input is NaN or infinite.
	ErrNonFinite = eris.New("variance: non-finite input")
)

// Percent returns (actual - predicted) / predicted * 100. Positive means the
// actual exceeded the prediction. A zero prediction yields nil and
// ErrDivisionByZero; the caller excludes that value from aggregates.
func Percent(predicted, actual float64) (*float64, error) {
	if !finite(predicted) || !finite(actual) {
		return nil, ErrNonFinite
	}
	if predicted == 0 {
		return nil, ErrDivisionByZero
	}
	v := (actual - predicted) / predicted * 100
	return &v, nil
}

// Result holds the per-metric variances of one outcome. A nil field means the
// metric could not be computed.
type Result struct {
	TimelineVariancePercent *float64 `json:"timelineVariancePercent"`
	CostVariancePercent     *float64 `json:"costVariancePercent"`
	SuccessVariancePercent  *float64 `json:"successVariancePercent"`
}

// ComputeVariance computes timeline, cost and success variance for one
// outcome. Missing actuals and zero predictions produce nil fields.
func ComputeVariance(o *model.PathOutcome) Result {
	var r Result
	if o.ActualMonths != nil {
		r.TimelineVariancePercent = percentOrNil(o, "timeline", o.PredictedMonths, *o.ActualMonths)
	}
	if o.ActualCost != nil {
		r.CostVariancePercent = percentOrNil(o, "cost", o.PredictedCost, *o.ActualCost)
	}
	if o.ActualSuccess != nil {
		actual := 0.0
		if *o.ActualSuccess {
			actual = 1
		}
		r.SuccessVariancePercent = percentOrNil(o, "success", o.PredictedSuccess, actual)
	}
	return r
}

func percentOrNil(o *model.PathOutcome, metric string, predicted, actual float64) *float64 {
	v, err := Percent(predicted, actual)
	if err != nil {
		zap.L().Warn("variance: excluded from aggregate",
			zap.String("outcome_id", o.ID),
			zap.String("path_id", o.PathID),
			zap.String("metric", metric),
			zap.Error(err),
		)
		return nil
	}
	return v
}

// MetricVariance is the aggregate variance of one metric on one path.
type MetricVariance struct {
	MeanVariancePercent *float64 `json:"meanVariancePercent"`
	MeanPredicted       float64  `json:"meanPredicted"`
	MeanActual          float64  `json:"meanActual"`
	SampleSize          int      `json:"sampleSize"`
}

// PathVarianceData is the aggregate variance of one path's resolved outcomes.
type PathVarianceData struct {
	PathID        string                     `json:"pathId"`
	SampleSize    int                        `json:"sampleSize"`
	Timeline      MetricVariance             `json:"timeline"`
	Cost          MetricVariance             `json:"cost"`
	Success       MetricVariance             `json:"success"`
	FailureLayers map[model.FailureLayer]int `json:"failureLayers"`
}

type accumulator struct {
	sumVar, sumPred, sumAct float64
	n                       int
}

func (a *accumulator) add(variance *float64, predicted, actual float64) {
	if variance == nil {
		return
	}
	a.sumVar += *variance
	a.sumPred += predicted
	a.sumAct += actual
	a.n++
}

func (a *accumulator) result() MetricVariance {
	if a.n == 0 {
		return MetricVariance{}
	}
	n := float64(a.n)
	mean := a.sumVar / n
	return MetricVariance{
		MeanVariancePercent: &mean,
		MeanPredicted:       a.sumPred / n,
		MeanActual:          a.sumAct / n,
		SampleSize:          a.n,
	}
}

// AggregateAcrossPaths groups resolved outcomes by path and averages each
// metric's variance over the outcomes where it could be computed. Paths with
// no resolved outcomes are omitted. Results are sorted by path ID.
func AggregateAcrossPaths(outcomes []model.PathOutcome) []PathVarianceData {
	type pathAcc struct {
		timeline, cost, success accumulator
		samples                 int
		layers                  map[model.FailureLayer]int
	}
	byPath := make(map[string]*pathAcc)

	for i := range outcomes {
		o := &outcomes[i]
		if !o.Resolved() {
			continue
		}
		acc, ok := byPath[o.PathID]
		if !ok {
			acc = &pathAcc{layers: make(map[model.FailureLayer]int)}
			byPath[o.PathID] = acc
		}
		acc.samples++
		if o.FailureLayer != nil && o.FailureLayer.Valid() {
			acc.layers[*o.FailureLayer]++
		}

		r := ComputeVariance(o)
		if o.ActualMonths != nil {
			acc.timeline.add(r.TimelineVariancePercent, o.PredictedMonths, *o.ActualMonths)
		}
		if o.ActualCost != nil {
			acc.cost.add(r.CostVariancePercent, o.PredictedCost, *o.ActualCost)
		}
		if o.ActualSuccess != nil {
			actual := 0.0
			if *o.ActualSuccess {
				actual = 1
			}
			acc.success.add(r.SuccessVariancePercent, o.PredictedSuccess, actual)
		}
	}

	out := make([]PathVarianceData, 0, len(byPath))
	for pathID, acc := range byPath {
		out = append(out, PathVarianceData{
			PathID:        pathID,
			SampleSize:    acc.samples,
			Timeline:      acc.timeline.result(),
			Cost:          acc.cost.result(),
			Success:       acc.success.result(),
			FailureLayers: acc.layers,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PathID < out[j].PathID })
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
