package scorer

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/futuretree/internal/model"
)

func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }
func ptrRevenue(b model.RevenueBand) *model.RevenueBand {
	return &b
}

func newTestModel(t *testing.T) *Model {
	t.Helper()
	m, err := New(DefaultScorerConfig())
	require.NoError(t, err)
	return m
}

func videoProfile() *model.BusinessProfile {
	return &model.BusinessProfile{
		ID:             "p1",
		Industry:       "video_production",
		CompanySize:    model.Team2To5,
		CurrentRevenue: model.Revenue250K500K,
		Qualifications: model.Qualifications{
			Skills:    []string{"drone cinematography", "color grading"},
			Equipment: []string{"RED camera"},
		},
		BiggestChallenge: ptrString("Inconsistent project pipeline and feast-or-famine revenue"),
	}
}

func videoCase() *model.CaseStudy {
	return &model.CaseStudy{
		ID:           "cs-video",
		CompanyName:  "Northlight Films",
		Industry:     "video_production",
		StrategyType: model.StrategyVerticalSpecialization,
		StartingState: model.CompanyState{
			Revenue:    ptrRevenue(model.Revenue100K250K),
			TeamSize:   ptrInt(3),
			Challenges: []string{"feast-or-famine revenue", "inconsistent pipeline"},
		},
		EndingState: model.CompanyState{
			Revenue:  ptrRevenue(model.Revenue1M5M),
			TeamSize: ptrInt(12),
		},
		Timeline:       model.Timeline{TotalMonths: ptrFloat64(30)},
		Capabilities:   []string{"drone cinematography", "healthcare compliance"},
		KeyActions:     []string{"Niched into healthcare video"},
		Advice:         "Pick one vertical and say no to everything else.",
		LessonsLearned: "Retainers smooth out the pipeline.",
	}
}

func TestNew_RejectsBadWeights(t *testing.T) {
	cfg := DefaultScorerConfig()
	cfg.IndustryWeight = 0.5
	_, err := New(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weights must sum to 1.0")
}

func TestScore_EndToEndVideoProduction(t *testing.T) {
	m := newTestModel(t)
	res := m.Score(videoProfile(), videoCase())

	assert.InDelta(t, 100, res.Breakdown.Industry, 0.001)
	assert.InDelta(t, 75, res.Breakdown.Revenue, 0.001)
	assert.Greater(t, res.Overall, 0.0)
	assert.NotEmpty(t, res.Explanation)
	assert.Contains(t, res.Explanation, "industry")
	assert.Equal(t, "Pick one vertical and say no to everything else.", res.KeyTakeaways[0])
}

func TestScore_OverallIsWeightedSum(t *testing.T) {
	m := newTestModel(t)
	cfg := m.Config()
	res := m.Score(videoProfile(), videoCase())

	b := res.Breakdown
	want := b.Industry*cfg.IndustryWeight + b.Revenue*cfg.RevenueWeight +
		b.TeamSize*cfg.TeamSizeWeight + b.Capability*cfg.CapabilityWeight +
		b.Challenge*cfg.ChallengeWeight
	assert.InDelta(t, want, res.Overall, 0.005)
	assert.GreaterOrEqual(t, res.Overall, 0.0)
	assert.LessOrEqual(t, res.Overall, 100.0)
}

func TestScore_Deterministic(t *testing.T) {
	m := newTestModel(t)
	first := m.Score(videoProfile(), videoCase())

	var wg sync.WaitGroup
	results := make([]Result, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = m.Score(videoProfile(), videoCase())
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, first, r)
	}
}

func TestIndustryScore(t *testing.T) {
	m := newTestModel(t)
	tests := []struct {
		name       string
		profileInd string
		profileSub *string
		caseInd    string
		caseSub    *string
		want       float64
	}{
		{"exact", "video_production", nil, "video_production", nil, 100},
		{"exact case-insensitive", "Video Production", nil, "video_production", nil, 100},
		{"same sub-industry", "video_production", ptrString("weddings"), "video_production", ptrString("weddings"), 100},
		{"sub-industry mismatch", "video_production", ptrString("weddings"), "video_production", ptrString("corporate"), 85},
		{"one sub-industry missing", "video_production", ptrString("weddings"), "video_production", nil, 100},
		{"same parent", "video_production", nil, "photography", nil, 50},
		{"parent itself", "creative_services", nil, "animation", nil, 50},
		{"unrelated", "video_production", nil, "plumbing", nil, 0},
		{"unknown industries differ", "bakery", nil, "brewery", nil, 0},
		{"empty profile industry", "", nil, "video_production", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &model.BusinessProfile{Industry: tt.profileInd, SubIndustry: tt.profileSub}
			cs := &model.CaseStudy{Industry: tt.caseInd, SubIndustry: tt.caseSub}
			assert.InDelta(t, tt.want, m.industryScore(p, cs), 0.001)
		})
	}
}

func TestBandScore(t *testing.T) {
	defaultSteps := []float64{100, 75, 50, 25}
	steep := []float64{100, 40}

	tests := []struct {
		name  string
		a, b  int
		steps []float64
		want  float64
	}{
		{"same band", 2, 2, defaultSteps, 100},
		{"adjacent up", 2, 3, defaultSteps, 75},
		{"adjacent down", 3, 2, defaultSteps, 75},
		{"two apart", 0, 2, defaultSteps, 50},
		{"three apart", 5, 2, defaultSteps, 25},
		{"four apart floors at zero", 0, 4, defaultSteps, 0},
		{"five apart", 0, 5, defaultSteps, 0},
		{"steep adjacent", 1, 2, steep, 40},
		{"steep two apart", 1, 3, steep, 0},
		{"unknown a", -1, 2, defaultSteps, 0},
		{"unknown b", 2, -1, defaultSteps, 0},
		{"exact only", 4, 4, []float64{100}, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, BandScore(tt.a, tt.b, tt.steps), 0.001)
		})
	}
}

func TestRevenueAndTeamScore_MissingCaseValues(t *testing.T) {
	m := newTestModel(t)
	p := videoProfile()
	cs := &model.CaseStudy{ID: "bare", Industry: "video_production"}

	assert.Zero(t, m.revenueScore(p, cs))
	assert.Zero(t, m.teamSizeScore(p, cs))
}

func TestTeamSizeScore_UsesHeadcountBand(t *testing.T) {
	m := newTestModel(t)
	p := &model.BusinessProfile{CompanySize: model.Team6To10}
	cs := &model.CaseStudy{StartingState: model.CompanyState{TeamSize: ptrInt(4)}}
	assert.InDelta(t, 75, m.teamSizeScore(p, cs), 0.001)
}

func TestChallengeScore_EmptyTextScoresZero(t *testing.T) {
	p := &model.BusinessProfile{BiggestChallenge: nil}
	cs := &model.CaseStudy{StartingState: model.CompanyState{Challenges: []string{"cash flow"}}}
	assert.Zero(t, challengeScore(p, cs))

	p.BiggestChallenge = ptrString("   ")
	assert.Zero(t, challengeScore(p, cs))

	p.BiggestChallenge = ptrString("Cash flow")
	cs.StartingState.Challenges = nil
	assert.Zero(t, challengeScore(p, cs))
}

func TestCapabilityScore_Jaccard(t *testing.T) {
	p := &model.BusinessProfile{Qualifications: model.Qualifications{Skills: []string{"drone cinematography"}}}
	cs := &model.CaseStudy{Capabilities: []string{"drone mapping"}}
	// {drone, cinematography} vs {drone, mapping}: 1/3
	assert.InDelta(t, 100.0/3, capabilityScore(p, cs), 0.001)
}

func TestTokenSet_Normalizes(t *testing.T) {
	set := tokenSet("Café branding, the BRANDING and an AI")
	_, cafe := set["cafe"]
	_, branding := set["branding"]
	_, the := set["the"]
	_, ai := set["ai"]
	assert.True(t, cafe)
	assert.True(t, branding)
	assert.False(t, the, "stopwords are dropped")
	assert.False(t, ai, "short tokens are dropped")
	assert.Len(t, set, 2)
}

func TestExplanation_NoStrongDimensions(t *testing.T) {
	m := newTestModel(t)
	p := &model.BusinessProfile{Industry: "bakery", CurrentRevenue: model.RevenueUnder100K, CompanySize: model.TeamSolo}
	cs := &model.CaseStudy{ID: "x", Industry: "plumbing", Advice: "Hire early."}

	res := m.Score(p, cs)
	assert.Equal(t, partialMatchMsg, res.Explanation)
	assert.Equal(t, []string{"Hire early."}, res.KeyTakeaways)
}

func TestExplanation_PriorityOrder(t *testing.T) {
	m := newTestModel(t)
	p := videoProfile()
	cs := videoCase()
	cs.StartingState.Revenue = ptrRevenue(model.Revenue250K500K)

	res := m.Score(p, cs)
	assert.Equal(t, "Same industry (video_production); Started at the same revenue stage (250k_500k); Faced a similar challenge; Comparable team size", res.Explanation)
	assert.LessOrEqual(t, len(res.KeyTakeaways), maxTakeaways)
	assert.Equal(t, "Grew from 250k_500k to 1m_5m revenue in 30 months", res.KeyTakeaways[1])
}

func TestScore_CustomWeights(t *testing.T) {
	cfg := DefaultScorerConfig()
	cfg.Version = "industry-only"
	cfg.IndustryWeight = 1
	cfg.RevenueWeight = 0
	cfg.TeamSizeWeight = 0
	cfg.CapabilityWeight = 0
	cfg.ChallengeWeight = 0
	m, err := New(cfg)
	require.NoError(t, err)

	res := m.Score(videoProfile(), videoCase())
	assert.InDelta(t, 100, res.Overall, 0.001)
	assert.Equal(t, "industry-only", m.Version())
	assert.NotEqual(t, newTestModel(t).Fingerprint(), m.Fingerprint())
}

func TestRound2(t *testing.T) {
	assert.InDelta(t, 33.33, round2(100.0/3), 1e-9)
	assert.False(t, math.IsNaN(round2(0)))
}
