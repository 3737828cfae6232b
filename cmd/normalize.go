package main

import (
	"encoding/csv"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/matheusoption-bit/construction-data-pipeline/internal/catalog"
	"github.com/matheusoption-bit/construction-data-pipeline/internal/model"
	"github.com/matheusoption-bit/construction-data-pipeline/internal/normalize"
	"github.com/matheusoption-bit/construction-data-pipeline/internal/source"
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize <source-id>",
	Short: "Fetch one source and print its canonical rows without writing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		records, err := fetchAndNormalize(cmd, env, args[0])
		if err != nil {
			return err
		}

		w := csv.NewWriter(os.Stdout)
		defer w.Flush()
		for _, row := range model.RecordsToRows(records) {
			if err := w.Write(row); err != nil {
				return eris.Wrap(err, "write csv")
			}
		}
		return nil
	},
}

// fetchAndNormalize runs the fetch and normalize stages for a single
// catalog source.
func fetchAndNormalize(cmd *cobra.Command, env *env, sourceID string) ([]model.CanonicalRecord, error) {
	src := env.cat.ByID(sourceID)
	if src == nil {
		return nil, eris.Errorf("unknown source %q", sourceID)
	}

	ctx := cmd.Context()
	fetcher := env.newFetcher()

	var raw model.RawTable
	var err error
	switch src.Kind {
	case catalog.KindBCB:
		raw, err = source.NewBCBClient(fetcher).FetchSeries(ctx, src.ID, src.BCBCode, time.Time{})
	case catalog.KindCBIC:
		raw, err = source.NewCBICClient(fetcher, env.cache).FetchTable(ctx, src.ID, *src.CBIC)
	default:
		err = eris.Errorf("unknown source kind %q", src.Kind)
	}
	if err != nil {
		return nil, err
	}

	return normalize.Table(raw, normalize.Options{
		SeriesID:   src.SeriesID,
		Dimensions: src.Dimensions,
		IngestedAt: time.Now().UTC().Truncate(time.Second),
	}), nil
}

func init() {
	rootCmd.AddCommand(normalizeCmd)
}
