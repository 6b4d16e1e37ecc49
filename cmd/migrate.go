package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/futuretree/internal/catalog"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := openStore(cmd.Context(), "store")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		zap.L().Info("migrations applied", zap.String("driver", cfg.Store.Driver))
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed strategic paths, decision trees, and case studies",
	Long:  "Loads the built-in catalog (or --file) and upserts it. Seeding is idempotent and keeps existing path metrics.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		file, _ := cmd.Flags().GetString("file")
		var (
			c   *catalog.Catalog
			err error
		)
		if file != "" {
			c, err = catalog.LoadFile(file)
		} else {
			c, err = catalog.Load()
		}
		if err != nil {
			return eris.Wrap(err, "seed")
		}

		st, err := openStore(ctx, "store")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		res, err := catalog.Seed(ctx, st, c)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func init() {
	seedCmd.Flags().String("file", "", "catalog YAML file (default: built-in catalog)")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
}
