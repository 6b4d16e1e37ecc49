package contradiction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/futuretree/internal/model"
	"github.com/sells-group/futuretree/internal/variance"
)

func ptrFloat64(v float64) *float64 { return &v }

func mv(mean float64, n int) variance.MetricVariance {
	return variance.MetricVariance{MeanVariancePercent: ptrFloat64(mean), MeanPredicted: 10, MeanActual: 10 * (1 + mean/100), SampleSize: n}
}

func TestClassify(t *testing.T) {
	p := DefaultPolicy()
	tests := []struct {
		v    float64
		want Severity
	}{
		{0, SeverityLow},
		{10, SeverityLow},
		{-10, SeverityLow},
		{10.01, SeverityMedium},
		{25, SeverityMedium},
		{-25, SeverityMedium},
		{25.01, SeverityHigh},
		{-300, SeverityHigh},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.Classify(tt.v), "variance %v", tt.v)
	}
}

func TestSuggestedAction_Total(t *testing.T) {
	for _, m := range Metrics {
		for _, s := range Severities {
			assert.NotEmpty(t, actions[m][s], "missing action for %s/%s", m, s)
		}
	}
	assert.Equal(t, "Recalculate capital estimates", SuggestedAction(MetricCost, SeverityHigh))
}

func TestPolicyValidate(t *testing.T) {
	require.NoError(t, DefaultPolicy().Validate())

	p := DefaultPolicy()
	p.MediumMaxPercent = 5
	err := p.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "medium_max_percent must be > low_max_percent")

	p = DefaultPolicy()
	p.MinSamples = 0
	p.TolerancePercent = 50
	err = p.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min_samples")
	assert.Contains(t, err.Error(), "tolerance_percent")
}

func TestDetect(t *testing.T) {
	data := []variance.PathVarianceData{
		{
			PathID:        "path-a",
			SampleSize:    4,
			Timeline:      mv(40, 4),
			Cost:          mv(-12, 4),
			Success:       mv(3, 4),
			FailureLayers: map[model.FailureLayer]int{model.FailureAction: 2, model.FailureReality: 1},
		},
		{
			PathID:        "path-b",
			SampleSize:    3,
			Timeline:      mv(8, 3),
			Cost:          mv(60, 3),
			FailureLayers: map[model.FailureLayer]int{model.FailureDecision: 1},
		},
		{
			PathID:        "path-c",
			SampleSize:    1,
			Timeline:      mv(90, 1),
			FailureLayers: map[model.FailureLayer]int{model.FailureUnderstanding: 1},
		},
	}

	s := Detect(data, DefaultPolicy())

	// path-a: timeline high, cost medium, success within tolerance.
	// path-b: timeline low, cost high. path-c: too few samples.
	assert.Equal(t, 4, s.TotalContradictions)
	assert.Equal(t, 3, s.PathsAnalyzed)
	assert.Equal(t, 2, s.BySeverity[SeverityHigh])
	assert.Equal(t, 1, s.BySeverity[SeverityMedium])
	assert.Equal(t, 1, s.BySeverity[SeverityLow])

	sum := 0
	for _, n := range s.BySeverity {
		sum += n
	}
	assert.Equal(t, s.TotalContradictions, sum)

	assert.Equal(t, 2, s.ByMetric[MetricTimeline])
	assert.Equal(t, 2, s.ByMetric[MetricCost])
	assert.Equal(t, 0, s.ByMetric[MetricSuccess])

	assert.Equal(t, 2, s.ByFailureLayer[model.FailureAction])
	assert.Equal(t, 1, s.ByFailureLayer[model.FailureReality])
	assert.Equal(t, 1, s.ByFailureLayer[model.FailureDecision])
	assert.Equal(t, 0, s.ByFailureLayer[model.FailureUnderstanding], "path-c was not flagged")

	require.Len(t, s.TopContradictions, 4)
	top := s.TopContradictions
	assert.Equal(t, "path-b", top[0].PathID)
	assert.Equal(t, MetricCost, top[0].Metric)
	assert.Equal(t, "Recalculate capital estimates", top[0].SuggestedAction)
	assert.Equal(t, "path-a", top[1].PathID)
	assert.Equal(t, MetricTimeline, top[1].Metric)
	assert.Equal(t, SeverityMedium, top[2].Severity)
	assert.Equal(t, SeverityLow, top[3].Severity)
	assert.InDelta(t, 60, top[0].Evidence.VariancePercent, 1e-9)
	for _, c := range top {
		assert.NotEmpty(t, c.SuggestedAction)
	}
}

func TestDetect_NoiseGates(t *testing.T) {
	data := []variance.PathVarianceData{
		{PathID: "single-overrun", SampleSize: 1, Cost: mv(80, 1)},
		{PathID: "near-miss", SampleSize: 6, Timeline: mv(-4.5, 6)},
	}

	s := Detect(data, DefaultPolicy())
	assert.Equal(t, 0, s.TotalContradictions, "one outcome and a 4.5 percent miss are below the default gates")

	p := DefaultPolicy()
	p.TolerancePercent = 0
	p.MinSamples = 1
	s = Detect(data, p)
	require.Equal(t, 2, s.TotalContradictions)
	assert.Equal(t, 1, s.BySeverity[SeverityHigh])
	assert.Equal(t, 1, s.BySeverity[SeverityLow])
}

func TestDetect_TopLimit(t *testing.T) {
	var data []variance.PathVarianceData
	for i, id := range []string{"p1", "p2", "p3", "p4"} {
		data = append(data, variance.PathVarianceData{PathID: id, SampleSize: 5, Cost: mv(float64(30+i), 5)})
	}
	p := DefaultPolicy()
	p.TopLimit = 2

	s := Detect(data, p)
	assert.Equal(t, 4, s.TotalContradictions)
	require.Len(t, s.TopContradictions, 2)
	assert.Equal(t, "p4", s.TopContradictions[0].PathID)
	assert.Equal(t, "p3", s.TopContradictions[1].PathID)
}

func TestDetect_Empty(t *testing.T) {
	s := Detect(nil, DefaultPolicy())
	assert.Equal(t, 0, s.TotalContradictions)
	assert.NotNil(t, s.TopContradictions)
	assert.Empty(t, s.TopContradictions)
	assert.Equal(t, 0, s.BySeverity[SeverityHigh])
}
