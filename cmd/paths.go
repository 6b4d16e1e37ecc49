package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/futuretree/internal/model"
	"github.com/sells-group/futuretree/internal/tree"
)

var pathsCmd = &cobra.Command{
	Use:   "paths",
	Short: "Inspect strategic paths and their decision trees",
}

// -- paths list --

var pathsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List strategic paths with their current metrics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, "store")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		paths, err := st.ListPaths(ctx)
		if err != nil {
			return eris.Wrap(err, "paths list")
		}
		if len(paths) == 0 {
			fmt.Fprintln(os.Stderr, "No paths found. Run `futuretree seed` first.")
			return nil
		}

		formatPathsList(os.Stdout, paths)
		return nil
	},
}

// -- paths show --

var pathsShowCmd = &cobra.Command{
	Use:   "show <path-id>",
	Short: "Show full details of a path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, "store")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		p, err := st.GetPath(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "paths show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	},
}

// -- paths tree --

var pathsTreeCmd = &cobra.Command{
	Use:   "tree <path-id>",
	Short: "Print a path's decision tree up to a disclosure level",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		level, _ := cmd.Flags().GetInt("level")
		if level < model.DisclosureSummary || level > model.DisclosureDeepDive {
			return eris.Errorf("paths tree: --level must be between %d and %d", model.DisclosureSummary, model.DisclosureDeepDive)
		}

		st, err := openStore(ctx, "store")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if _, err := st.GetPath(ctx, args[0]); err != nil {
			return eris.Wrap(err, "paths tree")
		}
		nodes, err := st.ListNodes(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "paths tree")
		}
		tr, err := tree.New(nodes)
		if err != nil {
			return eris.Wrapf(err, "paths tree: %s", args[0])
		}

		return formatTree(os.Stdout, tr, level)
	},
}

func init() {
	pathsTreeCmd.Flags().Int("level", model.DisclosureSummary, "disclosure level (1 summary, 2 detail, 3 deep dive)")

	pathsCmd.AddCommand(pathsListCmd)
	pathsCmd.AddCommand(pathsShowCmd)
	pathsCmd.AddCommand(pathsTreeCmd)
	rootCmd.AddCommand(pathsCmd)
}

// formatPathsList writes a tabular list of paths to out.
func formatPathsList(out io.Writer, paths []model.StrategicPath) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSTRATEGY\tVERSION\tCONFIDENCE\tSUCCESS\tCASES\tOUTCOMES\tCALCULATED")
	_, _ = fmt.Fprintln(w, "--\t--------\t-------\t----------\t-------\t-----\t--------\t----------")

	for _, p := range paths {
		confidence := string(p.Metrics.ConfidenceLevel)
		calculated := "never"
		if p.LastCalculatedAt != nil {
			calculated = p.LastCalculatedAt.Format("2006-01-02 15:04")
		}
		if confidence == "" {
			confidence = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%.0f%%\t%d\t%d\t%s\n",
			p.ID,
			p.StrategyType,
			p.ModelVersion,
			confidence,
			p.Metrics.SuccessRate*100,
			p.Metrics.CaseCount,
			p.Metrics.OutcomeCount,
			calculated,
		)
	}
	_ = w.Flush()
}

// formatTree writes the nodes visible at level as an indented outline.
func formatTree(out io.Writer, tr *tree.Tree, level int) error {
	for _, n := range tr.Visible(level) {
		depth, err := tr.Depth(n.ID)
		if err != nil {
			return err
		}
		line := fmt.Sprintf("%s- [%s] %s", strings.Repeat("  ", depth), n.Type, n.Title)
		if n.EstimatedMonths != nil {
			line += fmt.Sprintf(" (%.0f mo)", *n.EstimatedMonths)
		}
		if n.EstimatedCost != nil {
			line += fmt.Sprintf(" ($%.0f)", *n.EstimatedCost)
		}
		if _, err := fmt.Fprintln(out, line); err != nil {
			return err
		}
	}
	return nil
}
