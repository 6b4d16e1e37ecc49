package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/futuretree/internal/contradiction"
	"github.com/sells-group/futuretree/internal/model"
	"github.com/sells-group/futuretree/internal/monitoring"
	"github.com/sells-group/futuretree/internal/recalc"
)

func TestPaths(t *testing.T) {
	env := newTestEnv(t, defaultServerConfig())

	rr := env.do(t, http.MethodGet, "/paths", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var list struct {
		Paths []model.StrategicPath `json:"paths"`
	}
	decodeBody(t, rr, &list)
	assert.Len(t, list.Paths, 5)

	rr = env.do(t, http.MethodGet, "/paths/content_led_growth", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var p model.StrategicPath
	decodeBody(t, rr, &p)
	assert.Equal(t, model.StrategyContentLedGrowth, p.StrategyType)
	assert.Equal(t, 0, p.ModelVersion)

	rr = env.do(t, http.MethodGet, "/paths/nope", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestTree_Disclosure(t *testing.T) {
	env := newTestEnv(t, defaultServerConfig())

	var summary, deep treeResponse
	rr := env.do(t, http.MethodGet, "/paths/vertical_specialization/tree", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	decodeBody(t, rr, &summary)
	assert.Equal(t, model.DisclosureSummary, summary.Level)
	require.NotEmpty(t, summary.Nodes)
	for _, n := range summary.Nodes {
		assert.Equal(t, model.DisclosureSummary, n.DisclosureLevel)
	}
	assert.NotEmpty(t, summary.Rollups)

	rr = env.do(t, http.MethodGet, "/paths/vertical_specialization/tree?level=3", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	decodeBody(t, rr, &deep)
	assert.Greater(t, len(deep.Nodes), len(summary.Nodes))

	// Every rollup ends at a node with no visible children.
	visible := make(map[string]bool)
	for _, n := range deep.Nodes {
		visible[n.ID] = true
	}
	for _, ru := range deep.Rollups {
		for _, n := range deep.Nodes {
			if n.ParentID != nil && *n.ParentID == ru.NodeID {
				t.Errorf("rollup %s is not a leaf", ru.NodeID)
			}
		}
		assert.True(t, visible[ru.NodeID])
	}

	rr = env.do(t, http.MethodGet, "/paths/vertical_specialization/tree?level=9", nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "level", errorOf(t, rr).Error.Fields[0].Field)

	rr = env.do(t, http.MethodGet, "/paths/nope/tree", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRecalculateAndJobs(t *testing.T) {
	env := newTestEnv(t, defaultServerConfig())

	rr := env.do(t, http.MethodPost, "/paths/vertical_specialization/recalculate", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var res recalc.Result
	decodeBody(t, rr, &res)
	require.NotNil(t, res.Job)
	assert.False(t, res.Coalesced)
	assert.Equal(t, model.JobCompleted, res.Job.Status)
	assert.Equal(t, model.TriggerManual, res.Job.Trigger)
	require.NotNil(t, res.Job.NewVersion)
	assert.Equal(t, 1, *res.Job.NewVersion)

	rr = env.do(t, http.MethodGet, "/paths/vertical_specialization", nil)
	var p model.StrategicPath
	decodeBody(t, rr, &p)
	assert.Equal(t, 1, p.ModelVersion)
	assert.Equal(t, 3, p.Metrics.CaseCount)

	rr = env.do(t, http.MethodGet, "/paths/vertical_specialization/jobs", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var jobs struct {
		Jobs []model.MetricRecalculationJob `json:"jobs"`
	}
	decodeBody(t, rr, &jobs)
	require.Len(t, jobs.Jobs, 1)
	assert.Equal(t, res.Job.ID, jobs.Jobs[0].ID)

	rr = env.do(t, http.MethodGet, "/jobs/"+res.Job.ID, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	// Only failed jobs can be retried.
	rr = env.do(t, http.MethodPost, "/jobs/"+res.Job.ID+"/retry", nil)
	require.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "invalid_transition", errorOf(t, rr).Error.Kind)

	rr = env.do(t, http.MethodPost, "/paths/nope/recalculate", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr = env.do(t, http.MethodGet, "/paths/vertical_specialization/jobs?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	rr = env.do(t, http.MethodGet, "/paths/vertical_specialization/jobs?status=done", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	rr = env.do(t, http.MethodGet, "/paths/vertical_specialization/jobs?status=failed", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	decodeBody(t, rr, &jobs)
	assert.Empty(t, jobs.Jobs)
}

func TestRecalculate_NodeScope(t *testing.T) {
	env := newTestEnv(t, defaultServerConfig())

	nodes, err := env.st.ListNodes(context.Background(), "content_led_growth")
	require.NoError(t, err)
	require.NotEmpty(t, nodes)

	rr := env.do(t, http.MethodPost, "/paths/content_led_growth/recalculate", map[string]string{"nodeId": nodes[0].ID})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var res recalc.Result
	decodeBody(t, rr, &res)
	assert.Equal(t, model.ScopeNode, res.Job.Scope)
	assert.Equal(t, model.PathScopeKey("content_led_growth"), res.Job.ScopeKey)

	rr = env.do(t, http.MethodPost, "/paths/vertical_specialization/recalculate", map[string]string{"nodeId": nodes[0].ID})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "nodeId", errorOf(t, rr).Error.Fields[0].Field)
}

func TestExplorationToSurvey(t *testing.T) {
	env := newTestEnv(t, defaultServerConfig())

	rr := env.do(t, http.MethodPost, "/discover", videoPayload())
	require.Equal(t, http.StatusCreated, rr.Code)
	var disc discoverResult
	decodeBody(t, rr, &disc)

	rr = env.do(t, http.MethodPost, "/explorations", map[string]string{"profileId": disc.Profile.ID, "pathId": "vertical_specialization"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var e model.PathExploration
	decodeBody(t, rr, &e)

	rr = env.do(t, http.MethodPost, "/explorations/"+e.ID+"/engagement", map[string]any{
		"nodesExpanded": []string{"a", "b"}, "maxDepth": 2, "timeSpentSeconds": 40,
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	decodeBody(t, rr, &e)
	assert.Equal(t, []string{"a", "b"}, e.NodesExpanded)
	assert.Equal(t, 40, e.TimeSpentSeconds)

	rr = env.do(t, http.MethodGet, "/paths/vertical_specialization/prediction?profileId="+disc.Profile.ID, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = env.do(t, http.MethodPost, "/explorations/"+e.ID+"/commit", nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var committed commitResponse
	decodeBody(t, rr, &committed)
	require.NotNil(t, committed.Outcome)
	require.NotNil(t, committed.Prediction)
	assert.Equal(t, model.OutcomePending, committed.Outcome.Status)
	assert.Equal(t, "vertical_specialization", committed.Outcome.PathID)
	assert.InDelta(t, committed.Prediction.SuccessProbability, committed.Outcome.PredictedSuccess, 1e-9)

	rr = env.do(t, http.MethodPost, "/outcomes/"+committed.Outcome.ID+"/survey", map[string]any{"outcome": "sideways"})
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodPost, "/outcomes/"+committed.Outcome.ID+"/survey", map[string]any{
		"outcome": "success", "actualMonths": 12, "actualSpend": 30000, "wouldRecommend": true,
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var resolution struct {
		Outcome     model.PathOutcome `json:"outcome"`
		Recalc      *recalc.Result    `json:"recalc"`
		RecalcError string            `json:"recalcError"`
	}
	decodeBody(t, rr, &resolution)
	assert.Equal(t, model.OutcomeResolved, resolution.Outcome.Status)
	assert.NotNil(t, resolution.Outcome.TimelineVariancePercent)
	assert.Empty(t, resolution.RecalcError)
	require.NotNil(t, resolution.Recalc)
	assert.Equal(t, model.TriggerOutcomeReceived, resolution.Recalc.Job.Trigger)
	assert.Equal(t, model.JobCompleted, resolution.Recalc.Job.Status)

	rr = env.do(t, http.MethodPost, "/outcomes/"+committed.Outcome.ID+"/survey", map[string]any{"outcome": "failure"})
	require.Equal(t, http.StatusConflict, rr.Code)

	rr = env.do(t, http.MethodPost, "/explorations/"+e.ID+"/end", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	rr = env.do(t, http.MethodPost, "/explorations/"+e.ID+"/engagement", map[string]any{"maxDepth": 3})
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = env.do(t, http.MethodPost, "/explorations", map[string]string{"profileId": disc.Profile.ID})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	rr = env.do(t, http.MethodPost, "/explorations/missing/commit", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestContradictionsAndStats(t *testing.T) {
	env := newTestEnv(t, defaultServerConfig())

	rr := env.do(t, http.MethodGet, "/contradictions", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var summary contradiction.Summary
	decodeBody(t, rr, &summary)
	assert.Equal(t, 0, summary.TotalContradictions)
	assert.NotNil(t, summary.TopContradictions)

	rr = env.do(t, http.MethodGet, "/contradictions?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodPost, "/paths/geographic_expansion/recalculate", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(t, http.MethodGet, "/stats?hours=1", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var snap monitoring.MetricsSnapshot
	decodeBody(t, rr, &snap)
	assert.Equal(t, 5, snap.PathCount)
	assert.Equal(t, 1, snap.JobsCompleted)
	assert.Equal(t, 1, snap.LookbackHours)

	rr = env.do(t, http.MethodGet, "/stats?hours=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
