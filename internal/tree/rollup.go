package tree

import "github.com/sells-group/futuretree/internal/model"

// Rollup is the accumulated estimate from a root down to a node.
type Rollup struct {
	NodeID            string  `json:"nodeId"`
	Depth             int     `json:"depth"`
	ExpectedCost      float64 `json:"expectedCost"`
	ExpectedMonths    float64 `json:"expectedMonths"`
	CumulativeSuccess float64 `json:"cumulativeSuccess"`
	// Estimated counts ancestors that carried any estimate.
	Estimated int `json:"estimated"`
}

// RollupTo sums cost and duration along the root path to id and multiplies
// success probabilities. Missing estimates contribute nothing; a path with no
// success estimates has cumulative success 1.
func (t *Tree) RollupTo(id string) (Rollup, error) {
	path, err := t.Ancestry(id)
	if err != nil {
		return Rollup{}, err
	}
	r := Rollup{NodeID: id, Depth: len(path) - 1, CumulativeSuccess: 1}
	for _, pid := range path {
		n := t.nodes[pid]
		estimated := false
		if n.EstimatedCost != nil {
			r.ExpectedCost += *n.EstimatedCost
			estimated = true
		}
		if n.EstimatedMonths != nil {
			r.ExpectedMonths += *n.EstimatedMonths
			estimated = true
		}
		if n.SuccessProbability != nil {
			r.CumulativeSuccess *= *n.SuccessProbability
			estimated = true
		}
		if estimated {
			r.Estimated++
		}
	}
	return r, nil
}

// RisksUpTo returns the risk-type nodes visible at maxLevel.
func (t *Tree) RisksUpTo(maxLevel int) []model.DecisionNode {
	var out []model.DecisionNode
	for _, n := range t.Visible(maxLevel) {
		if n.Type == model.NodeRisk {
			out = append(out, n)
		}
	}
	return out
}

// FirstOfType returns up to limit visible nodes of type nt in depth-first
// order.
func (t *Tree) FirstOfType(nt model.NodeType, maxLevel, limit int) []model.DecisionNode {
	var out []model.DecisionNode
	for _, n := range t.Visible(maxLevel) {
		if n.Type != nt {
			continue
		}
		out = append(out, n)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}
