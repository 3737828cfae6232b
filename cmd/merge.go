package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/matheusoption-bit/construction-data-pipeline/internal/merge"
)

var mergeCmd = &cobra.Command{
	Use:   "merge <source-id>",
	Short: "Fetch, normalize, and merge a single source into its fact table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		src := env.cat.ByID(args[0])
		records, err := fetchAndNormalize(cmd, env, args[0])
		if err != nil {
			return err
		}

		result, err := merge.New(env.store).Merge(ctx, src.Table, records)
		if err != nil {
			return err
		}
		zap.L().Info("merge finished",
			zap.String("table", result.Table),
			zap.Int("incoming", result.Incoming),
			zap.Int("new", result.BrandNew),
			zap.Int("updated", result.Updated),
			zap.Int("removed", result.Removed),
			zap.Int("total", result.Total))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mergeCmd)
}
