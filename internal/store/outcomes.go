package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/futuretree/internal/model"
)

const explorationColumns = `id, profile_id, path_id, nodes_expanded, max_depth, time_spent_seconds,
	exported, converted, started_at, ended_at`

func (c *core) CreateExploration(ctx context.Context, e *model.PathExploration) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.StartedAt.IsZero() {
		e.StartedAt = c.now()
	}
	nodes, err := toJSON(stringsOrEmpty(e.NodesExpanded))
	if err != nil {
		return c.wrap(err, "exploration %s", e.ID)
	}
	_, err = c.b.exec(ctx,
		`INSERT INTO path_explorations (`+explorationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ProfileID, e.PathID, nodes, e.MaxDepth, e.TimeSpentSeconds,
		e.Exported, e.Converted, e.StartedAt, e.EndedAt,
	)
	if err != nil {
		return c.wrap(err, "insert exploration %s", e.ID)
	}
	return nil
}

func (c *core) GetExploration(ctx context.Context, id string) (*model.PathExploration, error) {
	var (
		e     model.PathExploration
		nodes string
	)
	err := c.b.queryRow(ctx, `SELECT `+explorationColumns+` FROM path_explorations WHERE id = ?`, id).Scan(
		&e.ID, &e.ProfileID, &e.PathID, &nodes, &e.MaxDepth, &e.TimeSpentSeconds,
		&e.Exported, &e.Converted, &e.StartedAt, &e.EndedAt,
	)
	if err != nil {
		return nil, c.notFound(err, "exploration", id)
	}
	if err := fromJSON(nodes, &e.NodesExpanded); err != nil {
		return nil, c.wrap(err, "exploration %s", id)
	}
	return &e, nil
}

// UpdateExploration writes engagement fields of an open exploration.
func (c *core) UpdateExploration(ctx context.Context, e *model.PathExploration) error {
	nodes, err := toJSON(stringsOrEmpty(e.NodesExpanded))
	if err != nil {
		return c.wrap(err, "exploration %s", e.ID)
	}
	n, err := c.b.exec(ctx,
		`UPDATE path_explorations
		SET nodes_expanded = ?, max_depth = ?, time_spent_seconds = ?, exported = ?, converted = ?
		WHERE id = ? AND ended_at IS NULL`,
		nodes, e.MaxDepth, e.TimeSpentSeconds, e.Exported, e.Converted, e.ID,
	)
	if err != nil {
		return c.wrap(err, "update exploration %s", e.ID)
	}
	if n == 0 {
		return c.closedOrMissing(ctx, e.ID)
	}
	return nil
}

// EndExploration stamps ended_at once. Ending a closed exploration is an
// invalid transition.
func (c *core) EndExploration(ctx context.Context, id string, at time.Time) error {
	n, err := c.b.exec(ctx,
		`UPDATE path_explorations SET ended_at = ? WHERE id = ? AND ended_at IS NULL`, at, id)
	if err != nil {
		return c.wrap(err, "end exploration %s", id)
	}
	if n == 0 {
		return c.closedOrMissing(ctx, id)
	}
	return nil
}

func (c *core) closedOrMissing(ctx context.Context, id string) error {
	if _, err := c.GetExploration(ctx, id); err != nil {
		return err
	}
	return eris.Wrapf(model.ErrInvalidTransition, "%s: exploration %s already ended", c.name, id)
}

const outcomeColumns = `id, exploration_id, path_id, model_version, predicted_months, predicted_cost,
	predicted_success, actual_months, actual_cost, actual_success, progress_percent,
	would_recommend, lessons, timeline_variance_percent, cost_variance_percent,
	failure_layer, status, committed_at, resolved_at`

func (c *core) CreateOutcome(ctx context.Context, o *model.PathOutcome) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	if o.CommittedAt.IsZero() {
		o.CommittedAt = c.now()
	}
	if o.Status == "" {
		o.Status = model.OutcomePending
	}
	_, err := c.b.exec(ctx,
		`INSERT INTO path_outcomes (`+outcomeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.ExplorationID, o.PathID, o.ModelVersion, o.PredictedMonths, o.PredictedCost,
		o.PredictedSuccess, o.ActualMonths, o.ActualCost, o.ActualSuccess, o.ProgressPercent,
		o.WouldRecommend, o.Lessons, o.TimelineVariancePercent, o.CostVariancePercent,
		enumPtr(o.FailureLayer), string(o.Status), o.CommittedAt, o.ResolvedAt,
	)
	if err != nil {
		return c.wrap(err, "insert outcome %s", o.ID)
	}
	return nil
}

func (c *core) GetOutcome(ctx context.Context, id string) (*model.PathOutcome, error) {
	o, err := scanOutcome(c.b.queryRow(ctx, `SELECT `+outcomeColumns+` FROM path_outcomes WHERE id = ?`, id))
	if err != nil {
		return nil, c.notFound(err, "outcome", id)
	}
	return o, nil
}

// ResolveOutcome records actuals on a pending outcome. An outcome is
// resolved at most once.
func (c *core) ResolveOutcome(ctx context.Context, o *model.PathOutcome) error {
	if o.ResolvedAt == nil {
		now := c.now()
		o.ResolvedAt = &now
	}
	n, err := c.b.exec(ctx,
		`UPDATE path_outcomes SET
			actual_months = ?, actual_cost = ?, actual_success = ?, progress_percent = ?,
			would_recommend = ?, lessons = ?, timeline_variance_percent = ?,
			cost_variance_percent = ?, failure_layer = ?, status = ?, resolved_at = ?
		WHERE id = ? AND status = ?`,
		o.ActualMonths, o.ActualCost, o.ActualSuccess, o.ProgressPercent,
		o.WouldRecommend, o.Lessons, o.TimelineVariancePercent,
		o.CostVariancePercent, enumPtr(o.FailureLayer), string(model.OutcomeResolved), o.ResolvedAt,
		o.ID, string(model.OutcomePending),
	)
	if err != nil {
		return c.wrap(err, "resolve outcome %s", o.ID)
	}
	if n == 0 {
		if _, err := c.GetOutcome(ctx, o.ID); err != nil {
			return err
		}
		return eris.Wrapf(model.ErrInvalidTransition, "%s: outcome %s already resolved", c.name, o.ID)
	}
	o.Status = model.OutcomeResolved
	return nil
}

func (c *core) ListOutcomes(ctx context.Context, filter OutcomeFilter) ([]model.PathOutcome, error) {
	q := `SELECT ` + outcomeColumns + ` FROM path_outcomes WHERE 1=1`
	var args []any
	if filter.PathID != "" {
		q += ` AND path_id = ?`
		args = append(args, filter.PathID)
	}
	if filter.Status != "" {
		q += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	q += ` ORDER BY committed_at, id`
	if filter.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := c.b.query(ctx, q, args...)
	if err != nil {
		return nil, c.wrap(err, "list outcomes")
	}
	defer rows.Close()

	var out []model.PathOutcome
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return nil, c.wrap(err, "scan outcome")
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func scanOutcome(row scannable) (*model.PathOutcome, error) {
	var (
		o      model.PathOutcome
		layer  *string
		status string
	)
	if err := row.Scan(
		&o.ID, &o.ExplorationID, &o.PathID, &o.ModelVersion, &o.PredictedMonths, &o.PredictedCost,
		&o.PredictedSuccess, &o.ActualMonths, &o.ActualCost, &o.ActualSuccess, &o.ProgressPercent,
		&o.WouldRecommend, &o.Lessons, &o.TimelineVariancePercent, &o.CostVariancePercent,
		&layer, &status, &o.CommittedAt, &o.ResolvedAt,
	); err != nil {
		return nil, err
	}
	o.FailureLayer = enumFrom[model.FailureLayer](layer)
	o.Status = model.OutcomeStatus(status)
	return &o, nil
}
