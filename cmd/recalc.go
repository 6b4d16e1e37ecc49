package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/futuretree/internal/model"
	"github.com/sells-group/futuretree/internal/recalc"
)

var recalcCmd = &cobra.Command{
	Use:   "recalc",
	Short: "Recalculate path metrics",
}

// -- recalc path --

var recalcPathCmd = &cobra.Command{
	Use:   "path <path-id>",
	Short: "Recalculate one path, or one node's path with --node",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		nodeID, _ := cmd.Flags().GetString("node")
		env, err := initEnv(ctx, "recalc")
		if err != nil {
			return err
		}
		defer env.Close()

		req := recalc.TriggerRequest{Scope: model.ScopePath, PathID: args[0], Trigger: model.TriggerManual, Ref: "cli"}
		if nodeID != "" {
			req.Scope = model.ScopeNode
			req.NodeID = nodeID
		}
		res, err := env.Recalc.Trigger(ctx, req)
		if res != nil && res.Job != nil {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if encErr := enc.Encode(res); encErr != nil {
				return encErr
			}
		}
		if err != nil {
			return eris.Wrap(err, "recalc path")
		}
		if res.Coalesced {
			fmt.Fprintln(os.Stderr, "A recalculation of this path is already running; the trigger was coalesced into it.")
		}
		return nil
	},
}

// -- recalc all --

var recalcAllCmd = &cobra.Command{
	Use:   "all",
	Short: "Recalculate every strategic path",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		quiet, _ := cmd.Flags().GetBool("quiet")
		env, err := initEnv(ctx, "recalc")
		if err != nil {
			return err
		}
		defer env.Close()

		paths, err := env.Store.ListPaths(ctx)
		if err != nil {
			return eris.Wrap(err, "recalc all")
		}

		var progress func(recalc.PathRun)
		if !quiet {
			bar := progressbar.NewOptions(len(paths),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionShowCount(),
				progressbar.OptionShowElapsedTimeOnFinish(),
				progressbar.OptionSetWidth(40),
				progressbar.OptionSetDescription("Recalculating paths"),
				progressbar.OptionOnCompletion(func() { fmt.Fprintln(os.Stderr) }),
			)
			progress = func(recalc.PathRun) {
				if err := bar.Add(1); err != nil {
					zap.L().Debug("progress bar update failed", zap.Error(err))
				}
			}
		}

		sum, err := env.Recalc.RecalculateAll(ctx, model.TriggerManual, progress)
		if err != nil {
			return eris.Wrap(err, "recalc all")
		}

		formatRecalcSummary(os.Stdout, sum)
		if sum.Failed > 0 {
			return eris.Errorf("recalc all: %d of %d paths failed", sum.Failed, len(sum.Runs))
		}
		return nil
	},
}

func init() {
	recalcPathCmd.Flags().String("node", "", "recalculate the path that owns this decision node")
	recalcAllCmd.Flags().Bool("quiet", false, "disable the progress bar")

	recalcCmd.AddCommand(recalcPathCmd)
	recalcCmd.AddCommand(recalcAllCmd)
	rootCmd.AddCommand(recalcCmd)
}

// formatRecalcSummary writes one line per path followed by totals.
func formatRecalcSummary(out io.Writer, sum *recalc.Summary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "PATH\tJOB\tSTATUS\tERROR")
	_, _ = fmt.Fprintln(w, "----\t---\t------\t-----")
	for _, r := range sum.Runs {
		status := r.Status
		if r.Coalesced {
			status += " (coalesced)"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.PathID, truncateID(r.JobID), status, truncate(r.Error, 60))
	}
	_ = w.Flush()
	_, _ = fmt.Fprintf(out, "\nCompleted: %d  Failed: %d  Coalesced: %d\n", sum.Completed, sum.Failed, sum.Coalesced)
}
