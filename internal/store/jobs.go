package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/futuretree/internal/model"
)

const jobColumns = `id, scope, scope_key, path_id, node_id, trigger_type, trigger_ref, status,
	metrics_updated, previous_version, new_version, outcomes_considered, coalesced_triggers,
	error_message, created_at, started_at, completed_at`

// staleJobMessage is recorded on processing jobs whose worker never finished.
const staleJobMessage = "recovered: worker did not finish"

// AcquireJob takes the exclusive lock for job.ScopeKey. When no job holds the
// scope, job is inserted, moved pending -> processing, and returned with
// acquired = true. Otherwise the trigger is counted on the in-flight job,
// which is returned with acquired = false.
func (c *core) AcquireJob(ctx context.Context, job *model.MetricRecalculationJob) (*model.MetricRecalculationJob, bool, error) {
	if job.ScopeKey == "" {
		return nil, false, eris.Errorf("%s: acquire job: empty scope key", c.name)
	}
	holder, acquired, err := c.acquireOnce(ctx, job)
	if err != nil && c.b.isUniqueViolation(err) {
		// Lost the race to a concurrent acquirer; the retry coalesces onto it.
		holder, acquired, err = c.acquireOnce(ctx, job)
	}
	if err != nil {
		return nil, false, err
	}
	if acquired {
		*job = *holder
	}
	return holder, acquired, nil
}

func (c *core) acquireOnce(ctx context.Context, job *model.MetricRecalculationJob) (*model.MetricRecalculationJob, bool, error) {
	var (
		holder   *model.MetricRecalculationJob
		acquired bool
	)
	err := c.b.withTx(ctx, func(q querier) error {
		existing, err := scanJob(q.queryRow(ctx,
			`SELECT `+jobColumns+` FROM recalculation_jobs WHERE scope_key = ? AND status = ?`,
			job.ScopeKey, string(model.JobProcessing)))
		switch {
		case err == nil:
			if _, err := q.exec(ctx,
				`UPDATE recalculation_jobs SET coalesced_triggers = coalesced_triggers + 1 WHERE id = ?`,
				existing.ID); err != nil {
				return c.wrap(err, "coalesce onto job %s", existing.ID)
			}
			existing.CoalescedTriggers++
			holder = existing
			return nil
		case !c.b.isNoRows(err):
			return c.wrap(err, "find in-flight job for %s", job.ScopeKey)
		}

		now := c.now()
		j := *job
		j.ID = uuid.New().String()
		j.Status = model.JobPending
		j.CreatedAt = now
		if _, err := q.exec(ctx,
			`INSERT INTO recalculation_jobs (id, scope, scope_key, path_id, node_id, trigger_type,
				trigger_ref, status, previous_version, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			j.ID, string(j.Scope), j.ScopeKey, j.PathID, j.NodeID, string(j.Trigger),
			j.TriggerRef, string(j.Status), j.PreviousVersion, j.CreatedAt,
		); err != nil {
			return c.wrap(err, "insert job %s", j.ID)
		}

		if err := j.Transition(model.JobProcessing, now); err != nil {
			return err
		}
		if _, err := q.exec(ctx,
			`UPDATE recalculation_jobs SET status = ?, started_at = ? WHERE id = ? AND status = ?`,
			string(j.Status), j.StartedAt, j.ID, string(model.JobPending),
		); err != nil {
			return c.wrap(err, "start job %s", j.ID)
		}
		holder = &j
		acquired = true
		return nil
	})
	return holder, acquired, err
}

// CommitRecalculation writes new path metrics, increments the path's model
// version by one, and completes the job in a single transaction. It returns
// the new version.
func (c *core) CommitRecalculation(ctx context.Context, rc RecalcCommit) (int, error) {
	metrics, err := toJSON(rc.Metrics)
	if err != nil {
		return 0, c.wrap(err, "commit job %s", rc.JobID)
	}
	change, err := toJSON(rc.Change)
	if err != nil {
		return 0, c.wrap(err, "commit job %s", rc.JobID)
	}
	at := rc.At
	if at.IsZero() {
		at = c.now()
	}
	newVersion := rc.ExpectedVersion + 1

	err = c.b.withTx(ctx, func(q querier) error {
		n, err := q.exec(ctx,
			`UPDATE strategic_paths SET metrics = ?, last_calculated_at = ?, updated_at = ?
			WHERE id = ? AND model_version = ?`,
			metrics, at, at, rc.PathID, rc.ExpectedVersion)
		if err != nil {
			return c.wrap(err, "write metrics for %s", rc.PathID)
		}
		if n == 0 {
			return eris.Wrapf(model.ErrConflict, "%s: path %s is no longer at version %d", c.name, rc.PathID, rc.ExpectedVersion)
		}

		if c.hook != nil {
			if err := c.hook(ctx, rc.JobID); err != nil {
				return err
			}
		}

		n, err = q.exec(ctx,
			`UPDATE strategic_paths SET model_version = model_version + 1 WHERE id = ? AND model_version = ?`,
			rc.PathID, rc.ExpectedVersion)
		if err != nil {
			return c.wrap(err, "bump version for %s", rc.PathID)
		}
		if n == 0 {
			return eris.Wrapf(model.ErrConflict, "%s: path %s is no longer at version %d", c.name, rc.PathID, rc.ExpectedVersion)
		}

		n, err = q.exec(ctx,
			`UPDATE recalculation_jobs
			SET status = ?, metrics_updated = ?, previous_version = ?, new_version = ?, outcomes_considered = ?,
				completed_at = ?
			WHERE id = ? AND status = ?`,
			string(model.JobCompleted), change, rc.ExpectedVersion, newVersion, rc.OutcomesConsidered, at,
			rc.JobID, string(model.JobProcessing))
		if err != nil {
			return c.wrap(err, "complete job %s", rc.JobID)
		}
		if n == 0 {
			return eris.Wrapf(model.ErrInvalidTransition, "%s: job %s is not processing", c.name, rc.JobID)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return newVersion, nil
}

// FailJob moves a processing job to failed with message. Metrics and version
// are not touched.
func (c *core) FailJob(ctx context.Context, jobID, message string, at time.Time) error {
	n, err := c.b.exec(ctx,
		`UPDATE recalculation_jobs SET status = ?, error_message = ?, completed_at = ?
		WHERE id = ? AND status = ?`,
		string(model.JobFailed), message, at, jobID, string(model.JobProcessing))
	if err != nil {
		return c.wrap(err, "fail job %s", jobID)
	}
	if n == 0 {
		j, err := c.GetJob(ctx, jobID)
		if err != nil {
			return err
		}
		return eris.Wrapf(model.ErrInvalidTransition, "%s: job %s: %s -> %s", c.name, jobID, j.Status, model.JobFailed)
	}
	return nil
}

func (c *core) GetJob(ctx context.Context, id string) (*model.MetricRecalculationJob, error) {
	j, err := scanJob(c.b.queryRow(ctx, `SELECT `+jobColumns+` FROM recalculation_jobs WHERE id = ?`, id))
	if err != nil {
		return nil, c.notFound(err, "job", id)
	}
	return j, nil
}

func (c *core) ListJobs(ctx context.Context, filter JobFilter) ([]model.MetricRecalculationJob, error) {
	q := `SELECT ` + jobColumns + ` FROM recalculation_jobs WHERE 1=1`
	var args []any
	if filter.PathID != "" {
		q += ` AND path_id = ?`
		args = append(args, filter.PathID)
	}
	if filter.Status != "" {
		q += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	q += ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := c.b.query(ctx, q, args...)
	if err != nil {
		return nil, c.wrap(err, "list jobs")
	}
	defer rows.Close()

	var out []model.MetricRecalculationJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, c.wrap(err, "scan job")
		}
		out = append(out, *j)
	}
	return out, rows.Err()
}

// RecoverStaleJobs fails processing jobs started before startedBefore. A
// process that crashed mid-recalculation leaves such a row behind; its
// transaction never committed, so metrics and version are unchanged.
func (c *core) RecoverStaleJobs(ctx context.Context, startedBefore, at time.Time) (int, error) {
	jobs, err := c.ListJobs(ctx, JobFilter{Status: model.JobProcessing})
	if err != nil {
		return 0, err
	}
	log := zap.L().With(zap.String("component", c.name))
	recovered := 0
	for _, j := range jobs {
		if j.StartedAt == nil || !j.StartedAt.Before(startedBefore) {
			continue
		}
		if err := c.FailJob(ctx, j.ID, staleJobMessage, at); err != nil {
			return recovered, err
		}
		log.Warn("recovered stale recalculation job",
			zap.String("job_id", j.ID), zap.String("scope_key", j.ScopeKey))
		recovered++
	}
	return recovered, nil
}

func scanJob(row scannable) (*model.MetricRecalculationJob, error) {
	var (
		j                      model.MetricRecalculationJob
		scope, trigger, status string
		metrics                *string
	)
	if err := row.Scan(
		&j.ID, &scope, &j.ScopeKey, &j.PathID, &j.NodeID, &trigger, &j.TriggerRef, &status,
		&metrics, &j.PreviousVersion, &j.NewVersion, &j.OutcomesConsidered, &j.CoalescedTriggers,
		&j.ErrorMessage, &j.CreatedAt, &j.StartedAt, &j.CompletedAt,
	); err != nil {
		return nil, err
	}
	j.Scope = model.JobScope(scope)
	j.Trigger = model.TriggerType(trigger)
	j.Status = model.JobStatus(status)
	if metrics != nil {
		j.MetricsUpdated = &model.MetricsChange{}
		if err := fromJSON(*metrics, j.MetricsUpdated); err != nil {
			return nil, err
		}
	}
	return &j, nil
}
