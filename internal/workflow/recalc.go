// Package workflow runs scheduled recalculation passes on Temporal.
package workflow

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/sells-group/futuretree/internal/model"
	"github.com/sells-group/futuretree/internal/recalc"
	"github.com/sells-group/futuretree/internal/store"
)

const (
	// RecalculateAllName is the registered workflow type name.
	RecalculateAllName = "RecalculateAllWorkflow"

	defaultActivityTimeout = 5 * time.Minute
	defaultConcurrency     = 4
)

// RecalculateAllInput parameterizes one scheduled pass.
type RecalculateAllInput struct {
	Trigger         model.TriggerType `json:"trigger"`
	MaxConcurrent   int               `json:"maxConcurrent"`
	ActivityTimeout time.Duration     `json:"activityTimeout"`
}

// PathInput is the argument of the RecalculatePath activity.
type PathInput struct {
	PathID  string            `json:"pathId"`
	Trigger model.TriggerType `json:"trigger"`
}

// RecalculateAllWorkflow recovers stale jobs, lists every strategic path and
// runs one path-scoped recalculation per path. Activities are never retried:
// a failed path is reported in the summary and left for the next pass.
func RecalculateAllWorkflow(ctx workflow.Context, in RecalculateAllInput) (*recalc.Summary, error) {
	if in.Trigger == "" {
		in.Trigger = model.TriggerScheduled
	}
	if in.MaxConcurrent < 1 {
		in.MaxConcurrent = defaultConcurrency
	}
	if in.ActivityTimeout <= 0 {
		in.ActivityTimeout = defaultActivityTimeout
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: in.ActivityTimeout,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})
	log := workflow.GetLogger(ctx)

	var a *Activities
	var recovered int
	if err := workflow.ExecuteActivity(ctx, a.RecoverStale).Get(ctx, &recovered); err != nil {
		return nil, err
	}
	var pathIDs []string
	if err := workflow.ExecuteActivity(ctx, a.ListPaths).Get(ctx, &pathIDs); err != nil {
		return nil, err
	}
	log.Info("recalculating paths", "paths", len(pathIDs), "recovered_stale", recovered, "trigger", string(in.Trigger))

	sum := &recalc.Summary{Runs: make([]recalc.PathRun, 0, len(pathIDs))}
	for start := 0; start < len(pathIDs); start += in.MaxConcurrent {
		end := min(start+in.MaxConcurrent, len(pathIDs))
		futures := make([]workflow.Future, 0, end-start)
		for _, id := range pathIDs[start:end] {
			futures = append(futures, workflow.ExecuteActivity(ctx, a.RecalculatePath, PathInput{PathID: id, Trigger: in.Trigger}))
		}
		for i, f := range futures {
			var run recalc.PathRun
			if err := f.Get(ctx, &run); err != nil {
				run = recalc.PathRun{
					PathID: pathIDs[start+i],
					Status: string(model.JobFailed),
					Error:  err.Error(),
				}
			}
			sum.Runs = append(sum.Runs, run)
		}
	}

	for _, r := range sum.Runs {
		switch {
		case r.Coalesced:
			sum.Coalesced++
		case r.Status == string(model.JobCompleted):
			sum.Completed++
		default:
			sum.Failed++
		}
	}
	log.Info("recalculation pass finished", "completed", sum.Completed, "failed", sum.Failed, "coalesced", sum.Coalesced)
	return sum, nil
}

// Activities binds the recalculation scheduler to Temporal activities.
type Activities struct {
	Store     store.Store
	Scheduler *recalc.Scheduler
}

// RecoverStale fails processing jobs abandoned by a crashed worker.
func (a *Activities) RecoverStale(ctx context.Context) (int, error) {
	n, err := a.Scheduler.RecoverStale(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "workflow: recover stale jobs")
	}
	return n, nil
}

// ListPaths returns the IDs of every strategic path.
func (a *Activities) ListPaths(ctx context.Context) ([]string, error) {
	paths, err := a.Store.ListPaths(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "workflow: list paths")
	}
	ids := make([]string, len(paths))
	for i, p := range paths {
		ids[i] = p.ID
	}
	return ids, nil
}

// RecalculatePath runs one path-scoped job. A job that fails is reported in
// the returned run, not as an activity error.
func (a *Activities) RecalculatePath(ctx context.Context, in PathInput) (recalc.PathRun, error) {
	run := a.Scheduler.RunPath(ctx, in.PathID, in.Trigger)
	activity.GetLogger(ctx).Info("path recalculated",
		"path_id", run.PathID, "job_id", run.JobID, "status", run.Status, "coalesced", run.Coalesced)
	return run, nil
}
