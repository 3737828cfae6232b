package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matheusoption-bit/construction-data-pipeline/internal/model"
	"github.com/matheusoption-bit/construction-data-pipeline/internal/pipeline"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Report record counts and quality flag totals per fact table",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		flagsBySeries := map[string]int{}
		flagRows, err := env.store.ReadTable(ctx, pipeline.FlagTable)
		if err != nil {
			return err
		}
		if len(flagRows) > 1 {
			for _, row := range flagRows[1:] {
				if len(row) > 0 {
					flagsBySeries[row[0]]++
				}
			}
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

			counts := map[string]int{}
			flags := 0
			var oldest, newest string
			for i, r := range records {
				counts[r.SeriesID]++
				date := r.RefDate.Format(model.DateLayout)
				if i == 0 || date < oldest {
					oldest = date
				}
				if date > newest {
					newest = date
				}
			}
			for series := range counts {
				flags += flagsBySeries[series]
			}

			fmt.Printf("%s: %d records, %d series, %d flags", table, len(records), len(counts), flags)
			if len(records) > 0 {
				fmt.Printf(", %s to %s", oldest, newest)
			}
			fmt.Println()
			for series, n := range counts {
				fmt.Printf("  %s: %d\n", series, n)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(auditCmd)
}
