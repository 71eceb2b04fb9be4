package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"confluence-backend/internal/config"
	"confluence-backend/internal/infrastructure/db"
)

var migrateDryRun bool

// migrateCmd creates the Postgres schema
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the signal tracking tables",
	Long: `Create the Postgres tables used for signal performance tracking.
Every statement is idempotent, so running it twice is safe.

Examples:
  confluence migrate            # Apply against DB_URL
  confluence migrate --dry-run  # Print the statements only`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if migrateDryRun {
			for _, stmt := range db.Statements() {
				fmt.Fprintln(cmd.OutOrStdout(), stmt)
			}
			return nil
		}

		ctx := cmd.Context()
		cfg, err := config.Load(ctx, envFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if cfg.Database.URL == "" {
			return fmt.Errorf("DB_URL is required")
		}

		pool, err := db.NewPool(ctx, cfg.Database.URL, db.PoolConfigFrom(cfg.Database))
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pool.Close()

		if err := db.Migrate(ctx, pool); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Applied %d statements\n", len(db.Statements()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "Print statements without executing")
}
