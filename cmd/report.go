package main

import (
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/futuretree/internal/contradiction"
	"github.com/sells-group/futuretree/internal/report"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Export learning reports",
}

var reportContradictionsCmd = &cobra.Command{
	Use:   "contradictions",
	Short: "Export contradictions between predictions and observed outcomes",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		format, _ := cmd.Flags().GetString("format")
		outPath, _ := cmd.Flags().GetString("out")
		limit, _ := cmd.Flags().GetInt("limit")
		format = strings.ToLower(format)
		if format != "csv" && format != "xlsx" {
			return eris.Errorf("report contradictions: unknown format %q (want csv or xlsx)", format)
		}
		if format == "xlsx" && outPath == "" {
			return eris.New("report contradictions: --out is required for xlsx")
		}

		env, err := initEnv(ctx, "store")
		if err != nil {
			return err
		}
		defer env.Close()

		policy := env.Policy
		if limit > 0 {
			policy.TopLimit = limit
		}
		sum, err := report.Contradictions(ctx, env.Store, policy)
		if err != nil {
			return err
		}

		var w io.Writer = os.Stdout
		if outPath != "" {
			f, err := os.Create(outPath)
			if err != nil {
				return eris.Wrapf(err, "report contradictions: create %s", outPath)
			}
			defer f.Close() //nolint:errcheck
			w = f
		}

		if err := writeContradictions(w, format, sum); err != nil {
			return err
		}
		zap.L().Info("contradiction report written",
			zap.String("format", format),
			zap.Int("contradictions", sum.TotalContradictions),
			zap.Int("paths_analyzed", sum.PathsAnalyzed),
		)
		return nil
	},
}

func init() {
	reportContradictionsCmd.Flags().String("format", "csv", "output format (csv or xlsx)")
	reportContradictionsCmd.Flags().String("out", "", "output file (default stdout; required for xlsx)")
	reportContradictionsCmd.Flags().Int("limit", 0, "max contradictions (default from config)")

	reportCmd.AddCommand(reportContradictionsCmd)
	rootCmd.AddCommand(reportCmd)
}

func writeContradictions(w io.Writer, format string, sum contradiction.Summary) error {
	if format == "xlsx" {
		return report.WriteContradictionsXLSX(w, sum)
	}
	return report.WriteContradictionsCSV(w, sum)
}
