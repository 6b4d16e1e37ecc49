package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/futuretree/internal/config"
	"github.com/sells-group/futuretree/internal/scorer"
)

func withConfig(t *testing.T, c *config.Config) {
	t.Helper()
	prev := cfg
	cfg = c
	t.Cleanup(func() { cfg = prev })
}

// testConfig returns a config valid for every mode, backed by a fresh
// SQLite file.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	c := &config.Config{}
	c.Store.Driver = "sqlite"
	c.Store.DatabaseURL = filepath.Join(t.TempDir(), "cli.db")
	c.Server.Port = 8080
	c.Server.RateLimitRPS = 5
	c.Scorer = scorer.DefaultScorerConfig()
	c.Matcher.Threshold = 30
	c.Matcher.MaxResults = 50
	c.Matcher.SummaryTop = 10
	c.Aggregator.HighConfidenceMin = 20
	c.Aggregator.MediumConfidenceMin = 8
	c.Aggregator.ShrinkageSamples = 5
	c.Contradiction.LowMaxPercent = 10
	c.Contradiction.MediumMaxPercent = 25
	c.Contradiction.TolerancePercent = 5
	c.Contradiction.MinSamples = 2
	c.Contradiction.TopLimit = 10
	c.Recalc.ThresholdOutcomes = 5
	c.Recalc.JobTimeoutSecs = 30
	c.Recalc.MaxConcurrent = 2
	c.Recalc.CommitRetries = 2
	c.Temporal.HostPort = "localhost:7233"
	c.Temporal.TaskQueue = "futuretree-recalc"
	c.Monitoring.LookbackWindowHours = 24
	return c
}

func TestInitStore_UnsupportedDriver(t *testing.T) {
	withConfig(t, &config.Config{Store: config.StoreConfig{Driver: "mysql"}})
	_, err := initStore(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store driver")
}

func TestOpenStore_SQLiteMigrates(t *testing.T) {
	withConfig(t, testConfig(t))
	ctx := context.Background()

	st, err := openStore(ctx, "store")
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	paths, err := st.ListPaths(ctx)
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestOpenStore_ValidatesMode(t *testing.T) {
	c := testConfig(t)
	c.Store.DatabaseURL = ""
	withConfig(t, c)
	_, err := openStore(context.Background(), "store")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
}
