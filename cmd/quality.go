package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/matheusoption-bit/construction-data-pipeline/internal/model"
	"github.com/matheusoption-bit/construction-data-pipeline/internal/quality"
)

var qualityCmd = &cobra.Command{
	Use:   "quality <table>",
	Short: "Run quality checks against a stored snapshot and print the flags",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		table := args[0]

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		rows, err := env.store.ReadTable(ctx, table)
		if err != nil {
			return err
		}
		records, err := model.RowsToRecords(rows)
		if err != nil {
			return err
		}

		engine := quality.New(qualityConfig(env.cat, time.Now().UTC()))
		flags := engine.Run(records)

		if len(flags) == 0 {
			fmt.Printf("%s: %d records, no flags\n", table, len(records))
			return nil
		}
		for _, f := range flags {
			fmt.Printf("%s %s %s [%s] %s\n",
				f.SeriesID,
				f.RefDate.Format(model.DateLayout),
				f.Kind,
				f.Severity,
				f.Detail)
		}
		fmt.Printf("%d flags over %d records\n", len(flags), len(records))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(qualityCmd)
}
