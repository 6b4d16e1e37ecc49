package tree

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/futuretree/internal/model"
)

// NodeStore loads and replaces the decision nodes of one path.
type NodeStore interface {
	ListNodes(ctx context.Context, pathID string) ([]model.DecisionNode, error)
	ReplaceNodes(ctx context.Context, pathID string, nodes []model.DecisionNode) error
}

// Edit loads the tree of pathID, applies fn and writes the whole tree back.
// Nothing is written when fn fails. Concurrent edits of one path are last
// writer wins.
func Edit(ctx context.Context, st NodeStore, pathID string, fn func(*Tree) error) (*Tree, error) {
	nodes, err := st.ListNodes(ctx, pathID)
	if err != nil {
		return nil, eris.Wrapf(err, "tree: load %s", pathID)
	}
	t, err := New(nodes)
	if err != nil {
		return nil, eris.Wrapf(err, "tree: build %s", pathID)
	}
	if err := fn(t); err != nil {
		return nil, err
	}

	out := t.Walk()
	for i := range out {
		out[i].PathID = pathID
	}
	if err := st.ReplaceNodes(ctx, pathID, out); err != nil {
		return nil, eris.Wrapf(err, "tree: save %s", pathID)
	}
	return t, nil
}
