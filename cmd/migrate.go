package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/sports-qc/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the warehouse schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if cfg.Ingest.DatabaseURL == "" {
			return eris.New("ingest.database_url is required (SPORTSQC_INGEST_DATABASE_URL)")
		}

		pool, err := db.Connect(ctx, cfg.Ingest.DatabaseURL, cfg.Ingest.Pool)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := db.Migrate(ctx, pool); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Warehouse schema is up to date.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
