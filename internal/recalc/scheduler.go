// Package recalc runs metric recalculation jobs. Each job holds the
// exclusive lock for its scope; triggers arriving while a job is in flight
// are coalesced onto it instead of running again.
package recalc

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/futuretree/internal/config"
	"github.com/sells-group/futuretree/internal/model"
	"github.com/sells-group/futuretree/internal/pathmetrics"
	"github.com/sells-group/futuretree/internal/resilience"
	"github.com/sells-group/futuretree/internal/store"
)

const (
	defaultJobTimeout = 2 * time.Minute
	// finalizeTimeout bounds the writes that close out a job.
	finalizeTimeout = 10 * time.Second
)

// TriggerRequest asks for one recalculation.
type TriggerRequest struct {
	Scope   model.JobScope    `json:"scope"`
	PathID  string            `json:"pathId,omitempty"`
	NodeID  string            `json:"nodeId,omitempty"`
	Trigger model.TriggerType `json:"trigger"`
	// Ref identifies what caused the trigger, such as an outcome ID.
	Ref string `json:"ref,omitempty"`
}

// Result is the job a trigger ran or was coalesced onto.
type Result struct {
	Job       *model.MetricRecalculationJob `json:"job"`
	Coalesced bool                          `json:"coalesced"`
}

// Scheduler validates triggers, acquires scope locks, and runs
// recalculations against a store.
type Scheduler struct {
	store  store.Store
	cfg    config.RecalcConfig
	aggCfg pathmetrics.Config
	now    func() time.Time
	counts singleflight.Group
	log    *zap.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock overrides the scheduler clock.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New creates a scheduler over st.
func New(st store.Store, cfg config.RecalcConfig, aggCfg pathmetrics.Config, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:  st,
		cfg:    cfg,
		aggCfg: aggCfg,
		now:    func() time.Time { return time.Now().UTC() },
		log:    zap.L().With(zap.String("component", "recalc")),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Trigger validates req, takes the scope lock, and runs the recalculation
// synchronously. When another job already holds the scope the trigger is
// recorded on that job and Result.Coalesced is true. A failed recalculation
// returns the failed job together with a *model.RecalculationError.
func (s *Scheduler) Trigger(ctx context.Context, req TriggerRequest) (*Result, error) {
	job, err := s.buildJob(ctx, req)
	if err != nil {
		return nil, err
	}

	holder, acquired, err := s.store.AcquireJob(ctx, job)
	if err != nil {
		return nil, eris.Wrapf(err, "recalc: acquire %s", job.ScopeKey)
	}
	if !acquired {
		s.log.Info("trigger coalesced onto in-flight job",
			zap.String("scope_key", job.ScopeKey),
			zap.String("trigger", string(req.Trigger)),
			zap.String("job_id", holder.ID),
			zap.Int("coalesced_triggers", holder.CoalescedTriggers),
		)
		return &Result{Job: holder, Coalesced: true}, nil
	}

	s.log.Info("recalculation started",
		zap.String("job_id", holder.ID),
		zap.String("scope_key", holder.ScopeKey),
		zap.String("trigger", string(holder.Trigger)),
	)
	done, runErr := s.run(ctx, holder)
	return &Result{Job: done}, runErr
}

// buildJob validates req and resolves it to a path-scoped lock key. Node
// recalculations recompute their path, so they share the path's lock.
func (s *Scheduler) buildJob(ctx context.Context, req TriggerRequest) (*model.MetricRecalculationJob, error) {
	verr := &model.ValidationError{}
	if !req.Trigger.Valid() {
		verr.Add("trigger", "must be one of outcome_received, threshold_reached, scheduled, manual")
	}
	switch req.Scope {
	case model.ScopePath:
		if req.PathID == "" {
			verr.Add("pathId", "is required for path scope")
		}
	case model.ScopeNode:
		if req.NodeID == "" {
			verr.Add("nodeId", "is required for node scope")
		}
	case model.ScopeGlobal:
		verr.Add("scope", "global recalculation runs through RecalculateAll")
	default:
		verr.Add("scope", "must be path or node")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	job := &model.MetricRecalculationJob{
		Scope:      req.Scope,
		Trigger:    req.Trigger,
		TriggerRef: model.StringPtr(req.Ref),
	}
	pathID := req.PathID
	if req.Scope == model.ScopeNode {
		node, err := s.store.GetNode(ctx, req.NodeID)
		if err != nil {
			return nil, eris.Wrapf(err, "recalc: resolve node %s", req.NodeID)
		}
		if pathID != "" && pathID != node.PathID {
			verr.Add("nodeId", "does not belong to path "+pathID)
			return nil, verr
		}
		pathID = node.PathID
		nodeID := node.ID
		job.NodeID = &nodeID
	}

	path, err := s.store.GetPath(ctx, pathID)
	if err != nil {
		return nil, eris.Wrapf(err, "recalc: resolve path %s", pathID)
	}
	job.PathID = &path.ID
	job.ScopeKey = model.PathScopeKey(path.ID)
	job.PreviousVersion = path.ModelVersion
	return job, nil
}

// run computes and commits the job's metrics. Any failure moves the job to
// failed and leaves the path untouched.
func (s *Scheduler) run(ctx context.Context, job *model.MetricRecalculationJob) (*model.MetricRecalculationJob, error) {
	log := s.log.With(zap.String("job_id", job.ID), zap.String("scope_key", job.ScopeKey))
	start := time.Now()

	// The job holds the scope lock, so it finishes or fails under its own
	// deadline even when the caller goes away.
	jobCtx := context.WithoutCancel(ctx)
	runCtx, cancel := context.WithTimeout(jobCtx, s.jobTimeout())
	defer cancel()

	version, err := s.compute(runCtx, job)
	if err != nil {
		return s.fail(jobCtx, job, err)
	}

	log.Info("recalculation completed",
		zap.Int("previous_version", version-1),
		zap.Int("new_version", version),
		zap.Duration("elapsed", time.Since(start)),
	)
	reloadCtx, cancelReload := context.WithTimeout(jobCtx, finalizeTimeout)
	defer cancelReload()
	done, err := s.store.GetJob(reloadCtx, job.ID)
	if err != nil {
		return nil, eris.Wrapf(err, "recalc: reload job %s", job.ID)
	}
	return done, nil
}

func (s *Scheduler) jobTimeout() time.Duration {
	if s.cfg.JobTimeoutSecs > 0 {
		return time.Duration(s.cfg.JobTimeoutSecs) * time.Second
	}
	return defaultJobTimeout
}

func (s *Scheduler) compute(ctx context.Context, job *model.MetricRecalculationJob) (int, error) {
	pathID := model.Deref(job.PathID)
	path, err := s.store.GetPath(ctx, pathID)
	if err != nil {
		return 0, eris.Wrapf(err, "load path %s", pathID)
	}
	cases, err := s.store.ListCaseStudies(ctx, store.CaseStudyFilter{StrategyType: path.StrategyType})
	if err != nil {
		return 0, eris.Wrap(err, "load case studies")
	}
	outcomes, err := s.store.ListOutcomes(ctx, store.OutcomeFilter{PathID: path.ID, Status: model.OutcomeResolved})
	if err != nil {
		return 0, eris.Wrap(err, "load outcomes")
	}

	metrics, err := pathmetrics.Aggregate(path, cases, outcomes, s.aggCfg)
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, eris.Wrap(err, "job deadline")
	}

	commit := store.RecalcCommit{
		JobID:              job.ID,
		PathID:             path.ID,
		ExpectedVersion:    path.ModelVersion,
		Metrics:            metrics,
		Change:             pathmetrics.Diff(path.Metrics, metrics),
		OutcomesConsidered: metrics.OutcomeCount,
		At:                 s.now(),
	}
	return resilience.DoVal(ctx, resilience.StoreRetryConfig(s.cfg.CommitRetries, "commit_recalculation"),
		func(ctx context.Context) (int, error) {
			return s.store.CommitRecalculation(ctx, commit)
		})
}

// fail records cause on the job. ctx must not carry the job deadline, so a
// job that timed out can still be marked failed and release its lock.
func (s *Scheduler) fail(ctx context.Context, job *model.MetricRecalculationJob, cause error) (*model.MetricRecalculationJob, error) {
	ctx, cancel := context.WithTimeout(ctx, finalizeTimeout)
	defer cancel()
	rerr := &model.RecalculationError{JobID: job.ID, Err: cause}
	s.log.Error("recalculation failed",
		zap.String("job_id", job.ID),
		zap.String("scope_key", job.ScopeKey),
		zap.Error(cause),
	)
	if err := s.store.FailJob(ctx, job.ID, cause.Error(), s.now()); err != nil {
		return nil, eris.Wrapf(err, "recalc: record failure of job %s", job.ID)
	}
	failed, err := s.store.GetJob(ctx, job.ID)
	if err != nil {
		return nil, eris.Wrapf(err, "recalc: reload job %s", job.ID)
	}
	return failed, rerr
}

// ResolvedSinceLast counts resolved outcomes on pathID that arrived after the
// path's last completed recalculation. Concurrent calls for the same path
// share one count.
func (s *Scheduler) ResolvedSinceLast(ctx context.Context, pathID string) (int, error) {
	v, err, _ := s.counts.Do(pathID, func() (any, error) {
		last, err := s.store.ListJobs(ctx, store.JobFilter{PathID: pathID, Status: model.JobCompleted, Limit: 1})
		if err != nil {
			return 0, err
		}
		outcomes, err := s.store.ListOutcomes(ctx, store.OutcomeFilter{PathID: pathID, Status: model.OutcomeResolved})
		if err != nil {
			return 0, err
		}
		var since time.Time
		if len(last) > 0 && last[0].CompletedAt != nil {
			since = *last[0].CompletedAt
		}
		n := 0
		for _, o := range outcomes {
			if o.ResolvedAt != nil && o.ResolvedAt.After(since) {
				n++
			}
		}
		return n, nil
	})
	if err != nil {
		return 0, eris.Wrapf(err, "recalc: count resolved outcomes for %s", pathID)
	}
	return v.(int), nil
}

// OnOutcomeResolved issues the trigger for a newly resolved outcome. It is a
// threshold_reached trigger once enough outcomes have accumulated since the
// last recalculation, otherwise outcome_received.
func (s *Scheduler) OnOutcomeResolved(ctx context.Context, pathID, outcomeID string) (*Result, error) {
	trigger := model.TriggerOutcomeReceived
	n, err := s.ResolvedSinceLast(ctx, pathID)
	if err != nil {
		return nil, err
	}
	if n >= s.cfg.ThresholdOutcomes {
		trigger = model.TriggerThresholdReached
		s.log.Info("outcome threshold reached",
			zap.String("path_id", pathID),
			zap.Int("resolved_since_last", n),
			zap.Int("threshold", s.cfg.ThresholdOutcomes),
		)
	}
	return s.Trigger(ctx, TriggerRequest{
		Scope:   model.ScopePath,
		PathID:  pathID,
		Trigger: trigger,
		Ref:     outcomeID,
	})
}

// Retry issues a manual trigger for the scope of a failed job. Failed jobs
// are never rerun automatically.
func (s *Scheduler) Retry(ctx context.Context, jobID string) (*Result, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, eris.Wrapf(err, "recalc: load job %s", jobID)
	}
	if job.Status != model.JobFailed {
		return nil, eris.Wrapf(model.ErrInvalidTransition, "recalc: job %s is %s, only failed jobs can be retried", jobID, job.Status)
	}
	req := TriggerRequest{
		Scope:   job.Scope,
		PathID:  model.Deref(job.PathID),
		NodeID:  model.Deref(job.NodeID),
		Trigger: model.TriggerManual,
		Ref:     "retry:" + job.ID,
	}
	return s.Trigger(ctx, req)
}

// RecoverStale fails processing jobs older than the configured stale age.
func (s *Scheduler) RecoverStale(ctx context.Context) (int, error) {
	if s.cfg.StaleAfterSecs <= 0 {
		return 0, nil
	}
	now := s.now()
	cutoff := now.Add(-time.Duration(s.cfg.StaleAfterSecs) * time.Second)
	n, err := s.store.RecoverStaleJobs(ctx, cutoff, now)
	if err != nil {
		return n, eris.Wrap(err, "recalc: recover stale jobs")
	}
	if n > 0 {
		s.log.Warn("recovered stale jobs", zap.Int("count", n), zap.String("cutoff", cutoff.Format(time.RFC3339)))
	}
	return n, nil
}
