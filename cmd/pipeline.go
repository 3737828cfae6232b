package main

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/matheusoption-bit/construction-data-pipeline/internal/pipeline"
	"github.com/matheusoption-bit/construction-data-pipeline/internal/source"
)

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Ingest every catalog source into the fact store",
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

		fetcher := env.newFetcher()
		opts := pipeline.Options{}
		if mirror != nil {
			opts.Mirror = mirror
		}

		p := pipeline.New(
			env.cat,
			source.NewBCBClient(fetcher),
			source.NewCBICClient(fetcher, env.cache),
			env.store,
			qualityConfig(env.cat, time.Now().UTC()),
			opts,
		)

		summary, err := p.Run(ctx)
		if err != nil {
			return err
		}
		zap.L().Info("run finished",
			zap.String("execution_id", summary.ExecutionID),
			zap.Int("tables", summary.Tables),
			zap.Int("records", summary.Records),
			zap.Int("flags", summary.Flags),
			zap.Strings("failed_sources", summary.FailedSources))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pipelineCmd)
}
