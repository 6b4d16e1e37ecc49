package recalc

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/futuretree/internal/model"
)

// PathRun is the outcome of one path in a RecalculateAll pass.
type PathRun struct {
	PathID    string `json:"pathId"`
	JobID     string `json:"jobId,omitempty"`
	Status    string `json:"status"`
	Coalesced bool   `json:"coalesced"`
	Error     string `json:"error,omitempty"`
}

// Summary tallies a RecalculateAll pass.
type Summary struct {
	Runs      []PathRun `json:"runs"`
	Completed int       `json:"completed"`
	Failed    int       `json:"failed"`
	Coalesced int       `json:"coalesced"`
}

// RecalculateAll runs one path-scoped job per strategic path, at most
// MaxConcurrent at a time. A failing path does not stop the others; its
// failure is recorded in the summary. progress, when non-nil, is called once
// per finished path.
func (s *Scheduler) RecalculateAll(ctx context.Context, trigger model.TriggerType, progress func(PathRun)) (*Summary, error) {
	if !trigger.Valid() {
		verr := &model.ValidationError{}
		verr.Add("trigger", "must be one of outcome_received, threshold_reached, scheduled, manual")
		return nil, verr
	}
	if _, err := s.RecoverStale(ctx); err != nil {
		return nil, err
	}

	paths, err := s.store.ListPaths(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "recalc: list paths")
	}

	limit := s.cfg.MaxConcurrent
	if limit < 1 {
		limit = 1
	}
	s.log.Info("recalculating all paths",
		zap.Int("paths", len(paths)),
		zap.Int("concurrency", limit),
		zap.String("trigger", string(trigger)),
	)

	runs := make([]PathRun, len(paths))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := range paths {
		pathID := paths[i].ID
		g.Go(func() error {
			run := s.RunPath(gctx, pathID, trigger)
			mu.Lock()
			runs[i] = run
			if progress != nil {
				progress(run)
			}
			mu.Unlock()
			return nil // don't abort the pass on one path's failure
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sum := &Summary{Runs: runs}
	for _, r := range runs {
		switch {
		case r.Coalesced:
			sum.Coalesced++
		case r.Status == string(model.JobCompleted):
			sum.Completed++
		default:
			sum.Failed++
		}
	}
	return sum, nil
}

// RunPath triggers one path-scoped job and reports how it ended. Errors are
// folded into the run rather than returned.
func (s *Scheduler) RunPath(ctx context.Context, pathID string, trigger model.TriggerType) PathRun {
	run := PathRun{PathID: pathID}
	res, err := s.Trigger(ctx, TriggerRequest{Scope: model.ScopePath, PathID: pathID, Trigger: trigger})
	if res != nil && res.Job != nil {
		run.JobID = res.Job.ID
		run.Status = string(res.Job.Status)
		run.Coalesced = res.Coalesced
	}
	if err != nil {
		run.Error = err.Error()
		if run.Status == "" {
			run.Status = string(model.JobFailed)
		}
	}
	return run
}
