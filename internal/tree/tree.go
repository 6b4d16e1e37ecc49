// Package tree holds a strategic path's decision nodes as an arena. Nodes are
// stored by ID and children are derived from a parent index rebuilt on every
// write, so parent links are the only source of truth.
package tree

import (
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/futuretree/internal/model"
)

var (
	// ErrUnknownNode is returned when a node ID is not in the tree.
	ErrUnknownNode = eris.New("tree: unknown node")
	// ErrDuplicateNode is returned when two nodes share an ID.
	ErrDuplicateNode = eris.New("tree: duplicate node")
	// ErrCycle is returned when parent links would form a cycle.
	ErrCycle = eris.New("tree: cycle")
	// ErrNotLeaf is returned when removing a node that has children.
	ErrNotLeaf = eris.New("tree: node has children")
	// ErrInvalidNode is returned for nodes with invalid fields.
	ErrInvalidNode = eris.New("tree: invalid node")
)

// Tree is a forest of decision nodes. It is not safe for concurrent writes.
type Tree struct {
	nodes    map[string]*model.DecisionNode
	children map[string][]string
	roots    []string
}

// New validates nodes and builds a tree. Nodes are copied.
func New(nodes []model.DecisionNode) (*Tree, error) {
	t := &Tree{nodes: make(map[string]*model.DecisionNode, len(nodes))}
	for i := range nodes {
		n := nodes[i]
		if err := validateNode(&n); err != nil {
			return nil, err
		}
		if _, dup := t.nodes[n.ID]; dup {
			return nil, eris.Wrapf(ErrDuplicateNode, "id %s", n.ID)
		}
		t.nodes[n.ID] = &n
	}
	for id, n := range t.nodes {
		if n.ParentID == nil {
			continue
		}
		if _, ok := t.nodes[*n.ParentID]; !ok {
			return nil, eris.Wrapf(ErrUnknownNode, "parent %s of %s", *n.ParentID, id)
		}
	}
	for id := range t.nodes {
		if t.hasCycleFrom(id) {
			return nil, eris.Wrapf(ErrCycle, "at %s", id)
		}
	}
	t.reindex()
	return t, nil
}

func validateNode(n *model.DecisionNode) error {
	switch {
	case n.ID == "":
		return eris.Wrap(ErrInvalidNode, "empty id")
	case !n.Type.Valid():
		return eris.Wrapf(ErrInvalidNode, "%s: type %q", n.ID, n.Type)
	case n.DisclosureLevel < model.DisclosureSummary || n.DisclosureLevel > model.DisclosureDeepDive:
		return eris.Wrapf(ErrInvalidNode, "%s: disclosure level %d", n.ID, n.DisclosureLevel)
	case n.ParentID != nil && *n.ParentID == n.ID:
		return eris.Wrapf(ErrCycle, "%s is its own parent", n.ID)
	case n.SuccessProbability != nil && (*n.SuccessProbability < 0 || *n.SuccessProbability > 1):
		return eris.Wrapf(ErrInvalidNode, "%s: success probability %v", n.ID, *n.SuccessProbability)
	}
	return nil
}

// hasCycleFrom walks parent links from id and reports whether it revisits a
// node.
func (t *Tree) hasCycleFrom(id string) bool {
	seen := make(map[string]bool)
	for cur := id; ; {
		if seen[cur] {
			return true
		}
		seen[cur] = true
		n := t.nodes[cur]
		if n == nil || n.ParentID == nil {
			return false
		}
		cur = *n.ParentID
	}
}

// reindex rebuilds the child and root indexes from parent links.
func (t *Tree) reindex() {
	t.children = make(map[string][]string, len(t.nodes))
	t.roots = t.roots[:0]
	for id, n := range t.nodes {
		if n.ParentID == nil {
			t.roots = append(t.roots, id)
			continue
		}
		t.children[*n.ParentID] = append(t.children[*n.ParentID], id)
	}
	t.sortIDs(t.roots)
	for _, ids := range t.children {
		t.sortIDs(ids)
	}
}

// sortIDs orders siblings by sort order, then ID.
func (t *Tree) sortIDs(ids []string) {
	sort.Slice(ids, func(i, j int) bool {
		a, b := t.nodes[ids[i]], t.nodes[ids[j]]
		if a.SortOrder != b.SortOrder {
			return a.SortOrder < b.SortOrder
		}
		return a.ID < b.ID
	})
}

// Len returns the number of nodes.
func (t *Tree) Len() int { return len(t.nodes) }

// Node returns a copy of the node with id.
func (t *Tree) Node(id string) (model.DecisionNode, bool) {
	n, ok := t.nodes[id]
	if !ok {
		return model.DecisionNode{}, false
	}
	return *n, true
}

// Roots returns the root node IDs in sibling order.
func (t *Tree) Roots() []string {
	return append([]string(nil), t.roots...)
}

// Children returns the child IDs of id in sibling order.
func (t *Tree) Children(id string) []string {
	return append([]string(nil), t.children[id]...)
}

// Parent returns the parent ID of id, or "" for a root.
func (t *Tree) Parent(id string) (string, error) {
	n, ok := t.nodes[id]
	if !ok {
		return "", eris.Wrapf(ErrUnknownNode, "id %s", id)
	}
	if n.ParentID == nil {
		return "", nil
	}
	return *n.ParentID, nil
}

// Ancestry returns the IDs from the root down to id, inclusive.
func (t *Tree) Ancestry(id string) ([]string, error) {
	if _, ok := t.nodes[id]; !ok {
		return nil, eris.Wrapf(ErrUnknownNode, "id %s", id)
	}
	var path []string
	for cur := id; cur != ""; {
		path = append(path, cur)
		n := t.nodes[cur]
		if n.ParentID == nil {
			break
		}
		cur = *n.ParentID
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}

// Depth returns 0 for a root, 1 for its children, and so on.
func (t *Tree) Depth(id string) (int, error) {
	path, err := t.Ancestry(id)
	if err != nil {
		return 0, err
	}
	return len(path) - 1, nil
}

// Subtree returns id and all its descendants in depth-first sibling order.
func (t *Tree) Subtree(id string) ([]string, error) {
	if _, ok := t.nodes[id]; !ok {
		return nil, eris.Wrapf(ErrUnknownNode, "id %s", id)
	}
	var out []string
	var walk func(string)
	walk = func(cur string) {
		out = append(out, cur)
		for _, c := range t.children[cur] {
			walk(c)
		}
	}
	walk(id)
	return out, nil
}

// Walk returns every node in depth-first order starting from the roots.
func (t *Tree) Walk() []model.DecisionNode {
	out := make([]model.DecisionNode, 0, len(t.nodes))
	for _, r := range t.roots {
		ids, _ := t.Subtree(r)
		for _, id := range ids {
			out = append(out, *t.nodes[id])
		}
	}
	return out
}

// Add inserts a node. Its parent, if any, must already exist.
func (t *Tree) Add(n model.DecisionNode) error {
	if err := validateNode(&n); err != nil {
		return err
	}
	if _, dup := t.nodes[n.ID]; dup {
		return eris.Wrapf(ErrDuplicateNode, "id %s", n.ID)
	}
	if n.ParentID != nil {
		if _, ok := t.nodes[*n.ParentID]; !ok {
			return eris.Wrapf(ErrUnknownNode, "parent %s", *n.ParentID)
		}
	}
	t.nodes[n.ID] = &n
	t.reindex()
	return nil
}

// Move reparents id under newParent, or makes it a root when newParent is "".
// Moving a node beneath its own descendant is rejected.
func (t *Tree) Move(id, newParent string) error {
	n, ok := t.nodes[id]
	if !ok {
		return eris.Wrapf(ErrUnknownNode, "id %s", id)
	}
	if newParent == "" {
		n.ParentID = nil
		t.reindex()
		return nil
	}
	if _, ok := t.nodes[newParent]; !ok {
		return eris.Wrapf(ErrUnknownNode, "parent %s", newParent)
	}
	sub, _ := t.Subtree(id)
	for _, d := range sub {
		if d == newParent {
			return eris.Wrapf(ErrCycle, "move %s under descendant %s", id, newParent)
		}
	}
	p := newParent
	n.ParentID = &p
	t.reindex()
	return nil
}

// Remove deletes a leaf node.
func (t *Tree) Remove(id string) error {
	if _, ok := t.nodes[id]; !ok {
		return eris.Wrapf(ErrUnknownNode, "id %s", id)
	}
	if len(t.children[id]) > 0 {
		return eris.Wrapf(ErrNotLeaf, "id %s", id)
	}
	delete(t.nodes, id)
	t.reindex()
	return nil
}

// Visible returns the nodes revealed at maxLevel. A node is visible when its
// disclosure level is at most maxLevel and every ancestor is visible, so the
// result is itself a forest.
func (t *Tree) Visible(maxLevel int) []model.DecisionNode {
	var out []model.DecisionNode
	var walk func(string)
	walk = func(id string) {
		n := t.nodes[id]
		if n.DisclosureLevel > maxLevel {
			return
		}
		out = append(out, *n)
		for _, c := range t.children[id] {
			walk(c)
		}
	}
	for _, r := range t.roots {
		walk(r)
	}
	return out
}
