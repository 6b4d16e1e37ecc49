package monitoring

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/futuretree/internal/model"
	"github.com/sells-group/futuretree/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "monitoring.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func seedPath(t *testing.T, st store.Store, id string, level model.ConfidenceLevel) {
	t.Helper()
	require.NoError(t, st.UpsertPath(context.Background(), &model.StrategicPath{
		ID:           id,
		Name:         id,
		StrategyType: model.StrategyContentLedGrowth,
		Metrics:      model.PathMetrics{ConfidenceLevel: level},
	}))
}

func acquire(t *testing.T, st store.Store, pathID string) (*model.MetricRecalculationJob, bool) {
	t.Helper()
	id := pathID
	job, acquired, err := st.AcquireJob(context.Background(), &model.MetricRecalculationJob{
		Scope:    model.ScopePath,
		ScopeKey: model.PathScopeKey(pathID),
		PathID:   &id,
		Trigger:  model.TriggerManual,
	})
	require.NoError(t, err)
	return job, acquired
}

// seedActivity leaves one completed, one failed, and one processing job
// with a coalesced trigger, plus one pending and one resolved outcome.
func seedActivity(t *testing.T, st store.Store) {
	t.Helper()
	ctx := context.Background()
	seedPath(t, st, "p-done", "")
	seedPath(t, st, "p-failed", model.ConfidenceHigh)
	seedPath(t, st, "p-busy", model.ConfidenceLow)

	done, _ := acquire(t, st, "p-done")
	_, err := st.CommitRecalculation(ctx, store.RecalcCommit{
		JobID:   done.ID,
		PathID:  "p-done",
		Metrics: model.PathMetrics{ConfidenceLevel: model.ConfidenceMedium},
	})
	require.NoError(t, err)

	failed, _ := acquire(t, st, "p-failed")
	require.NoError(t, st.FailJob(ctx, failed.ID, "aggregate: bad data", time.Now().UTC()))

	_, acquired := acquire(t, st, "p-busy")
	require.True(t, acquired)
	_, acquired = acquire(t, st, "p-busy")
	require.False(t, acquired)

	for i := 0; i < 2; i++ {
		require.NoError(t, st.CreateOutcome(ctx, &model.PathOutcome{
			ExplorationID: "exp", PathID: "p-done", PredictedMonths: 12, PredictedCost: 10000, PredictedSuccess: 0.5,
		}))
	}
	outcomes, err := st.ListOutcomes(ctx, store.OutcomeFilter{})
	require.NoError(t, err)
	months := 10.0
	outcomes[0].ActualMonths = &months
	require.NoError(t, st.ResolveOutcome(ctx, &outcomes[0]))
}

func TestCollector_Collect(t *testing.T) {
	st := newTestStore(t)
	seedActivity(t, st)

	c := NewCollector(st, 15*time.Minute)
	snap, err := c.Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 3, snap.JobsTotal)
	assert.Equal(t, 1, snap.JobsCompleted)
	assert.Equal(t, 1, snap.JobsFailed)
	assert.Equal(t, 1, snap.JobsProcessing)
	assert.Equal(t, 0, snap.JobsPending)
	assert.InDelta(t, 0.5, snap.JobFailRate, 0.001)
	assert.Equal(t, 1, snap.CoalescedTriggers)
	assert.Equal(t, 0, snap.JobsStuck)

	assert.Equal(t, 1, snap.OutcomesPending)
	assert.Equal(t, 1, snap.OutcomesResolved)
	assert.Equal(t, 1, snap.OutcomesResolvedInWindow)

	assert.Equal(t, 3, snap.PathCount)
	assert.Equal(t, []string{"p-busy"}, snap.LowConfidencePaths)
	assert.Equal(t, 24, snap.LookbackHours)
}

func TestCollector_StuckJobs(t *testing.T) {
	st := newTestStore(t)
	seedActivity(t, st)

	c := NewCollector(st, 15*time.Minute)
	c.now = func() time.Time { return time.Now().UTC().Add(time.Hour) }

	snap, err := c.Collect(context.Background(), 24)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.JobsStuck)

	c.staleAfter = 0
	snap, err = c.Collect(context.Background(), 24)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.JobsStuck)
}

func TestCollector_LookbackExcludesOldJobs(t *testing.T) {
	st := newTestStore(t)
	seedActivity(t, st)

	c := NewCollector(st, 0)
	c.now = func() time.Time { return time.Now().UTC().Add(48 * time.Hour) }

	snap, err := c.Collect(context.Background(), 24)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.JobsTotal)
	assert.Zero(t, snap.JobFailRate)
	assert.Equal(t, 0, snap.OutcomesResolvedInWindow)
	assert.Equal(t, 1, snap.OutcomesResolved)
}

func TestCollector_EmptyStore(t *testing.T) {
	st := newTestStore(t)

	snap, err := NewCollector(st, time.Minute).Collect(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.JobsTotal)
	assert.Equal(t, 0, snap.PathCount)
	assert.NotNil(t, snap.LowConfidencePaths)
}

func TestCollector_StoreError(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.Close())

	_, err := NewCollector(st, 0).Collect(context.Background(), 24)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "monitoring: list jobs")
}
