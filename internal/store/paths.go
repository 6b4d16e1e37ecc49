package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/sells-group/futuretree/internal/model"
)

const pathColumns = `id, name, description, strategy_type, best_for, typical_timeline, base_risk,
	metrics, model_version, root_node_id, last_calculated_at, created_at, updated_at`

// UpsertPath inserts a path or refreshes its descriptive fields. Metrics and
// model version of an existing path are never touched here.
func (c *core) UpsertPath(ctx context.Context, p *model.StrategicPath) error {
	now := c.now()
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	bestFor, err := toJSON(stringsOrEmpty(p.BestFor))
	if err != nil {
		return c.wrap(err, "path %s", p.ID)
	}
	metrics, err := toJSON(p.Metrics)
	if err != nil {
		return c.wrap(err, "path %s", p.ID)
	}
	_, err = c.b.exec(ctx,
		`INSERT INTO strategic_paths (`+pathColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			strategy_type = excluded.strategy_type,
			best_for = excluded.best_for,
			typical_timeline = excluded.typical_timeline,
			base_risk = excluded.base_risk,
			root_node_id = excluded.root_node_id,
			updated_at = excluded.updated_at`,
		p.ID, p.Name, p.Description, string(p.StrategyType), bestFor, p.TypicalTimeline, p.BaseRisk,
		metrics, p.ModelVersion, p.RootNodeID, p.LastCalculatedAt, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return c.wrap(err, "upsert path %s", p.ID)
	}
	return nil
}

func (c *core) GetPath(ctx context.Context, id string) (*model.StrategicPath, error) {
	p, err := scanPath(c.b.queryRow(ctx, `SELECT `+pathColumns+` FROM strategic_paths WHERE id = ?`, id))
	if err != nil {
		return nil, c.notFound(err, "path", id)
	}
	return p, nil
}

func (c *core) ListPaths(ctx context.Context) ([]model.StrategicPath, error) {
	rows, err := c.b.query(ctx, `SELECT `+pathColumns+` FROM strategic_paths ORDER BY id`)
	if err != nil {
		return nil, c.wrap(err, "list paths")
	}
	defer rows.Close()

	var out []model.StrategicPath
	for rows.Next() {
		p, err := scanPath(rows)
		if err != nil {
			return nil, c.wrap(err, "scan path")
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func scanPath(row scannable) (*model.StrategicPath, error) {
	var (
		p                model.StrategicPath
		strategy         string
		bestFor, metrics string
	)
	if err := row.Scan(
		&p.ID, &p.Name, &p.Description, &strategy, &bestFor, &p.TypicalTimeline, &p.BaseRisk,
		&metrics, &p.ModelVersion, &p.RootNodeID, &p.LastCalculatedAt, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.StrategyType = model.StrategyType(strategy)
	if err := fromJSON(bestFor, &p.BestFor); err != nil {
		return nil, err
	}
	if err := fromJSON(metrics, &p.Metrics); err != nil {
		return nil, err
	}
	return &p, nil
}

var nodeColumns = []string{
	"id", "path_id", "parent_id", "node_type", "title", "description", "disclosure_level",
	"sort_order", "estimated_cost", "estimated_months", "success_probability",
	"risk_factors", "dependencies",
}

func nodeRow(pathID string, n *model.DecisionNode) ([]any, error) {
	risks := n.RiskFactors
	if risks == nil {
		risks = []model.RiskFactor{}
	}
	riskJSON, err := toJSON(risks)
	if err != nil {
		return nil, err
	}
	deps, err := toJSON(stringsOrEmpty(n.Dependencies))
	if err != nil {
		return nil, err
	}
	return []any{
		n.ID, pathID, n.ParentID, string(n.Type), n.Title, n.Description, n.DisclosureLevel,
		n.SortOrder, n.EstimatedCost, n.EstimatedMonths, n.SuccessProbability,
		riskJSON, deps,
	}, nil
}

// ReplaceNodes swaps the whole decision tree of a path in one transaction.
func (c *core) ReplaceNodes(ctx context.Context, pathID string, nodes []model.DecisionNode) error {
	stmt := `INSERT INTO decision_nodes (` + joinCols(nodeColumns) + `) VALUES (` + placeholders(len(nodeColumns)) + `)`
	return c.b.withTx(ctx, func(q querier) error {
		if _, err := q.exec(ctx, `DELETE FROM decision_nodes WHERE path_id = ?`, pathID); err != nil {
			return c.wrap(err, "clear nodes of %s", pathID)
		}
		for i := range nodes {
			args, err := nodeRow(pathID, &nodes[i])
			if err != nil {
				return c.wrap(err, "node %s", nodes[i].ID)
			}
			if _, err := q.exec(ctx, stmt, args...); err != nil {
				return c.wrap(err, "insert node %s", nodes[i].ID)
			}
		}
		return nil
	})
}

func (c *core) ListNodes(ctx context.Context, pathID string) ([]model.DecisionNode, error) {
	rows, err := c.b.query(ctx,
		`SELECT `+joinCols(nodeColumns)+` FROM decision_nodes WHERE path_id = ? ORDER BY sort_order, id`, pathID)
	if err != nil {
		return nil, c.wrap(err, "list nodes %s", pathID)
	}
	defer rows.Close()

	var out []model.DecisionNode
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, c.wrap(err, "scan node")
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

func (c *core) GetNode(ctx context.Context, id string) (*model.DecisionNode, error) {
	n, err := scanNode(c.b.queryRow(ctx, `SELECT `+joinCols(nodeColumns)+` FROM decision_nodes WHERE id = ?`, id))
	if err != nil {
		return nil, c.notFound(err, "node", id)
	}
	return n, nil
}

func scanNode(row scannable) (*model.DecisionNode, error) {
	var (
		n           model.DecisionNode
		nodeType    string
		risks, deps string
	)
	if err := row.Scan(
		&n.ID, &n.PathID, &n.ParentID, &nodeType, &n.Title, &n.Description, &n.DisclosureLevel,
		&n.SortOrder, &n.EstimatedCost, &n.EstimatedMonths, &n.SuccessProbability,
		&risks, &deps,
	); err != nil {
		return nil, err
	}
	n.Type = model.NodeType(nodeType)
	if err := fromJSON(risks, &n.RiskFactors); err != nil {
		return nil, err
	}
	if err := fromJSON(deps, &n.Dependencies); err != nil {
		return nil, err
	}
	return &n, nil
}
