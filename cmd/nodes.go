package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/futuretree/internal/model"
	"github.com/sells-group/futuretree/internal/tree"
)

var pathsNodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Edit the decision nodes of a path",
}

// -- paths node add --

var pathsNodeAddCmd = &cobra.Command{
	Use:   "add <path-id> <node-file>",
	Short: "Add a node read from a YAML file (- for stdin)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := io.Reader(os.Stdin)
		if args[1] != "-" {
			f, err := os.Open(args[1])
			if err != nil {
				return eris.Wrap(err, "paths node add")
			}
			defer f.Close() //nolint:errcheck
			in = f
		}
		n, err := readNode(in)
		if err != nil {
			return eris.Wrap(err, "paths node add")
		}
		return editPathNodes(cmd.Context(), args[0], "add", func(tr *tree.Tree) error { return tr.Add(n) })
	},
}

// -- paths node move --

var pathsNodeMoveCmd = &cobra.Command{
	Use:   "move <path-id> <node-id>",
	Short: "Reparent a node (no --parent makes it a root)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		parent, _ := cmd.Flags().GetString("parent")
		return editPathNodes(cmd.Context(), args[0], "move", func(tr *tree.Tree) error { return tr.Move(args[1], parent) })
	},
}

// -- paths node remove --

var pathsNodeRemoveCmd = &cobra.Command{
	Use:   "remove <path-id> <node-id>",
	Short: "Remove a leaf node",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editPathNodes(cmd.Context(), args[0], "remove", func(tr *tree.Tree) error { return tr.Remove(args[1]) })
	},
}

func init() {
	pathsNodeMoveCmd.Flags().String("parent", "", "new parent node ID")

	pathsNodeCmd.AddCommand(pathsNodeAddCmd)
	pathsNodeCmd.AddCommand(pathsNodeMoveCmd)
	pathsNodeCmd.AddCommand(pathsNodeRemoveCmd)
	pathsCmd.AddCommand(pathsNodeCmd)
}

// editPathNodes applies fn to the stored tree of pathID and prints the
// resulting outline at full disclosure.
func editPathNodes(ctx context.Context, pathID, op string, fn func(*tree.Tree) error) error {
	st, err := openStore(ctx, "store")
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	if _, err := st.GetPath(ctx, pathID); err != nil {
		return eris.Wrapf(err, "paths node %s", op)
	}
	tr, err := tree.Edit(ctx, st, pathID, fn)
	if err != nil {
		return eris.Wrapf(err, "paths node %s: %s", op, pathID)
	}
	fmt.Fprintf(os.Stderr, "Updated %s (%d nodes)\n", pathID, tr.Len())
	return formatTree(os.Stdout, tr, model.DisclosureDeepDive)
}

// readNode decodes one decision node in the catalog's YAML shape.
func readNode(r io.Reader) (model.DecisionNode, error) {
	var n model.DecisionNode
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&n); err != nil {
		return n, eris.Wrap(err, "decode node")
	}
	return n, nil
}
