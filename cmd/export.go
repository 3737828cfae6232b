package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/matheusoption-bit/construction-data-pipeline/internal/model"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Mirror the current fact snapshots into PostgreSQL",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		mirror, err := env.initMirror(ctx)
		if err != nil {
			return err
		}
		if mirror == nil {
			return eris.New("export: no export.database_url configured")
		}

		for _, table := range env.cat.Tables() {
			rows, err := env.store.ReadTable(ctx, table)
			if err != nil {
				return err
			}
			records, err := model.RowsToRecords(rows)
			if err != nil {
				return err
			}
			if err := mirror.Sync(ctx, table, records); err != nil {
				return err
			}
			zap.L().Info("export: table mirrored",
				zap.String("table", table),
				zap.Int("records", len(records)))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
}
