package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/futuretree/internal/model"
)

func ptrString(v string) *string    { return &v }
func ptrFloat64(v float64) *float64 { return &v }

func node(id string, parent string, nt model.NodeType, level, order int) model.DecisionNode {
	n := model.DecisionNode{ID: id, Type: nt, Title: id, DisclosureLevel: level, SortOrder: order}
	if parent != "" {
		n.ParentID = ptrString(parent)
	}
	return n
}

// sampleNodes builds:
//
//	root
//	├── research (1)
//	│   └── risk-niche (2)
//	└── launch (1)
//	    ├── pick (2)
//	    └── deep (3)
func sampleNodes() []model.DecisionNode {
	root := node("root", "", model.NodePhase, 1, 0)
	root.EstimatedCost = ptrFloat64(1000)
	root.EstimatedMonths = ptrFloat64(1)
	root.SuccessProbability = ptrFloat64(0.9)

	launch := node("launch", "root", model.NodePhase, 1, 2)
	launch.EstimatedCost = ptrFloat64(5000)
	launch.EstimatedMonths = ptrFloat64(3)
	launch.SuccessProbability = ptrFloat64(0.5)

	pick := node("pick", "launch", model.NodeDecision, 2, 0)
	pick.EstimatedMonths = ptrFloat64(2)

	return []model.DecisionNode{
		pick,
		node("deep", "launch", model.NodeMilestone, 3, 1),
		launch,
		node("research", "root", model.NodePhase, 1, 1),
		node("risk-niche", "research", model.NodeRisk, 2, 0),
		root,
	}
}

func mustTree(t *testing.T) *Tree {
	t.Helper()
	tr, err := New(sampleNodes())
	require.NoError(t, err)
	return tr
}

func TestNew_BuildsIndexFromParentLinks(t *testing.T) {
	tr := mustTree(t)

	assert.Equal(t, 6, tr.Len())
	assert.Equal(t, []string{"root"}, tr.Roots())
	assert.Equal(t, []string{"research", "launch"}, tr.Children("root"))
	assert.Equal(t, []string{"pick", "deep"}, tr.Children("launch"))
	assert.Empty(t, tr.Children("pick"))

	// Every child's parent link points back to the node listing it.
	for _, n := range tr.Walk() {
		for _, c := range tr.Children(n.ID) {
			p, err := tr.Parent(c)
			require.NoError(t, err)
			assert.Equal(t, n.ID, p)
		}
	}
}

func TestNew_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		nodes   []model.DecisionNode
		wantErr error
	}{
		{"unknown parent", []model.DecisionNode{node("a", "ghost", model.NodePhase, 1, 0)}, ErrUnknownNode},
		{"self parent", []model.DecisionNode{node("a", "a", model.NodePhase, 1, 0)}, ErrCycle},
		{"cycle", []model.DecisionNode{
			node("a", "b", model.NodePhase, 1, 0),
			node("b", "c", model.NodePhase, 1, 0),
			node("c", "a", model.NodePhase, 1, 0),
		}, ErrCycle},
		{"duplicate", []model.DecisionNode{node("a", "", model.NodePhase, 1, 0), node("a", "", model.NodeRisk, 1, 0)}, ErrDuplicateNode},
		{"bad type", []model.DecisionNode{node("a", "", "chapter", 1, 0)}, ErrInvalidNode},
		{"bad level", []model.DecisionNode{node("a", "", model.NodePhase, 4, 0)}, ErrInvalidNode},
		{"empty id", []model.DecisionNode{node("", "", model.NodePhase, 1, 0)}, ErrInvalidNode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.nodes)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAncestryAndDepth(t *testing.T) {
	tr := mustTree(t)

	path, err := tr.Ancestry("deep")
	require.NoError(t, err)
	assert.Equal(t, []string{"root", "launch", "deep"}, path)

	d, err := tr.Depth("deep")
	require.NoError(t, err)
	assert.Equal(t, 2, d)

	d, err = tr.Depth("root")
	require.NoError(t, err)
	assert.Equal(t, 0, d)

	_, err = tr.Depth("missing")
	assert.ErrorIs(t, err, ErrUnknownNode)
}

func TestSubtreeAndWalk(t *testing.T) {
	tr := mustTree(t)

	sub, err := tr.Subtree("launch")
	require.NoError(t, err)
	assert.Equal(t, []string{"launch", "pick", "deep"}, sub)

	var ids []string
	for _, n := range tr.Walk() {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"root", "research", "risk-niche", "launch", "pick", "deep"}, ids)
}

func TestVisible(t *testing.T) {
	tr := mustTree(t)

	ids := func(nodes []model.DecisionNode) []string {
		var out []string
		for _, n := range nodes {
			out = append(out, n.ID)
		}
		return out
	}
	assert.Equal(t, []string{"root", "research", "launch"}, ids(tr.Visible(1)))
	assert.Equal(t, []string{"root", "research", "risk-niche", "launch", "pick"}, ids(tr.Visible(2)))
	assert.Len(t, tr.Visible(3), 6)

	// A detail node under a deep-dive parent stays hidden at level 2.
	require.NoError(t, tr.Add(node("under-deep", "deep", model.NodeOutcome, 2, 0)))
	assert.NotContains(t, ids(tr.Visible(2)), "under-deep")
}

func TestAddMoveRemove(t *testing.T) {
	tr := mustTree(t)

	require.NoError(t, tr.Add(node("extra", "research", model.NodeMilestone, 2, 5)))
	assert.Equal(t, []string{"risk-niche", "extra"}, tr.Children("research"))

	err := tr.Add(node("extra", "", model.NodePhase, 1, 0))
	assert.ErrorIs(t, err, ErrDuplicateNode)
	err = tr.Add(node("orphan", "ghost", model.NodePhase, 1, 0))
	assert.ErrorIs(t, err, ErrUnknownNode)

	// Move keeps both indexes in sync.
	require.NoError(t, tr.Move("extra", "launch"))
	assert.Equal(t, []string{"risk-niche"}, tr.Children("research"))
	assert.Equal(t, []string{"pick", "deep", "extra"}, tr.Children("launch"))
	p, err := tr.Parent("extra")
	require.NoError(t, err)
	assert.Equal(t, "launch", p)

	err = tr.Move("launch", "pick")
	assert.ErrorIs(t, err, ErrCycle)
	err = tr.Move("launch", "launch")
	assert.ErrorIs(t, err, ErrCycle)

	require.NoError(t, tr.Move("research", ""))
	assert.Equal(t, []string{"root", "research"}, tr.Roots())

	err = tr.Remove("launch")
	assert.ErrorIs(t, err, ErrNotLeaf)
	require.NoError(t, tr.Remove("extra"))
	assert.Equal(t, []string{"pick", "deep"}, tr.Children("launch"))
	_, ok := tr.Node("extra")
	assert.False(t, ok)
}

func TestRollupTo(t *testing.T) {
	tr := mustTree(t)

	r, err := tr.RollupTo("pick")
	require.NoError(t, err)
	assert.Equal(t, 2, r.Depth)
	assert.InDelta(t, 6000, r.ExpectedCost, 1e-9)
	assert.InDelta(t, 6, r.ExpectedMonths, 1e-9)
	assert.InDelta(t, 0.45, r.CumulativeSuccess, 1e-9)
	assert.Equal(t, 3, r.Estimated)

	r, err = tr.RollupTo("risk-niche")
	require.NoError(t, err)
	assert.InDelta(t, 0.9, r.CumulativeSuccess, 1e-9)
	assert.Equal(t, 1, r.Estimated)
}

func TestRisksAndFirstOfType(t *testing.T) {
	tr := mustTree(t)

	risks := tr.RisksUpTo(2)
	require.Len(t, risks, 1)
	assert.Equal(t, "risk-niche", risks[0].ID)
	assert.Empty(t, tr.RisksUpTo(1))

	phases := tr.FirstOfType(model.NodePhase, 3, 2)
	require.Len(t, phases, 2)
	assert.Equal(t, "root", phases[0].ID)
	assert.Equal(t, "research", phases[1].ID)
}

func TestNode_ReturnsCopy(t *testing.T) {
	tr := mustTree(t)
	n, ok := tr.Node("root")
	require.True(t, ok)
	n.Title = "changed"
	again, _ := tr.Node("root")
	assert.Equal(t, "root", again.Title)
}
