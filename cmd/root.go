package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/futuretree/internal/config"
)

var (
	cfg *config.Config

	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "futuretree",
	Short:         "Strategic path discovery and outcome learning",
	Long:          "Matches business profiles to case studies, serves strategic decision trees, and recalculates path metrics from observed outcomes.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		c, err := config.LoadFile(configPath)
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		if cmd.Flags().Changed("log-level") {
			c.Log.Level = logLevel
		}
		cfg = c

		return eris.Wrap(config.InitLogger(cfg.Log), "init logger")
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		zap.L().Error("command failed", zap.Error(err))
		os.Stderr.WriteString("error: " + err.Error() + "\n") //nolint:errcheck
		os.Exit(1)
	}
}
