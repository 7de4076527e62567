package cmd

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/tendant/attendance-gate/pkg/device"
	"github.com/tendant/attendance-gate/pkg/restriction"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Create the device, history and restriction tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		pool, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := applySchema(cmd.Context(), pool); err != nil {
			return err
		}
		slog.Info("Schema applied", "database", cfg.DatabaseConfig.Database)
		return nil
	},
}

func applySchema(ctx context.Context, pool *pgxpool.Pool) error {
	if err := device.EnsureSchema(ctx, pool); err != nil {
		return err
	}
	return restriction.EnsureSchema(ctx, pool)
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}
