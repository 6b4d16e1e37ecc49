package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/futuretree/internal/catalog"
	"github.com/sells-group/futuretree/internal/contradiction"
	"github.com/sells-group/futuretree/internal/intake"
	"github.com/sells-group/futuretree/internal/model"
	"github.com/sells-group/futuretree/internal/report"
	"github.com/sells-group/futuretree/internal/store"
)

func TestInitEnv_SeedMatchRecalc(t *testing.T) {
	withConfig(t, testConfig(t))
	ctx := context.Background()

	env, err := initEnv(ctx, "recalc")
	require.NoError(t, err)
	defer env.Close()

	c, err := catalog.Load()
	require.NoError(t, err)
	_, err = catalog.Seed(ctx, env.Store, c)
	require.NoError(t, err)

	prof, err := intake.ParseDiscover(intake.DiscoverPayload{
		Industry:       "Video Production",
		CompanySize:    "2-5",
		CurrentRevenue: "250k_500k",
	})
	require.NoError(t, err)
	require.NoError(t, env.Store.CreateProfile(ctx, prof))
	res, err := env.Matcher.MatchAndStore(ctx, env.Store, prof, env.Options, prof.CreatedAt)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Matches)

	sum, err := env.Recalc.RecalculateAll(ctx, model.TriggerManual, nil)
	require.NoError(t, err)
	assert.Equal(t, len(c.Paths), sum.Completed)

	jobs, err := env.Store.ListJobs(ctx, store.JobFilter{})
	require.NoError(t, err)
	var buf bytes.Buffer
	formatJobsList(&buf, jobs)
	assert.Contains(t, buf.String(), "completed")
	assert.Contains(t, buf.String(), "0->1")
}

func TestInitEnv_RejectsBadScorerWeights(t *testing.T) {
	c := testConfig(t)
	c.Scorer.IndustryWeight = 0.9
	withConfig(t, c)

	_, err := initEnv(context.Background(), "store")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scorer config")
}

func TestWriteContradictions_EmptyCSV(t *testing.T) {
	withConfig(t, testConfig(t))
	ctx := context.Background()

	env, err := initEnv(ctx, "store")
	require.NoError(t, err)
	defer env.Close()

	var buf bytes.Buffer
	require.NoError(t, writeContradictions(&buf, "csv", mustContradictions(t, env)))
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Path", rows[0][0])
}

func mustContradictions(t *testing.T, env *appEnv) contradiction.Summary {
	t.Helper()
	sum, err := report.Contradictions(context.Background(), env.Store, env.Policy)
	require.NoError(t, err)
	return sum
}
