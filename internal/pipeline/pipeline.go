// Package pipeline orchestrates a full ingestion run: fetch each
// catalog source, normalize it, merge it into its fact table, check
// quality, and record the run.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/matheusoption-bit/construction-data-pipeline/internal/catalog"
	"github.com/matheusoption-bit/construction-data-pipeline/internal/ingestlog"
	"github.com/matheusoption-bit/construction-data-pipeline/internal/merge"
	"github.com/matheusoption-bit/construction-data-pipeline/internal/model"
	"github.com/matheusoption-bit/construction-data-pipeline/internal/normalize"
	"github.com/matheusoption-bit/construction-data-pipeline/internal/quality"
	"github.com/matheusoption-bit/construction-data-pipeline/internal/sheets"
)

// FlagTable is the advisory sheet quality flags are written to.
const FlagTable = "quality_flags"

// maxConcurrentTables bounds parallel table ingestion. Tables are
// independent; sources within one table share a snapshot and run
// sequentially.
const maxConcurrentTables = 4

// BCBFetcher fetches one SGS series as a raw table.
type BCBFetcher interface {
	FetchSeries(ctx context.Context, name string, code int, since time.Time) (model.RawTable, error)
}

// CBICFetcher fetches one CBIC workbook sheet as a raw table.
type CBICFetcher interface {
	FetchTable(ctx context.Context, name string, src catalog.CBICSource) (model.RawTable, error)
}

// Mirrorer replicates a merged snapshot to secondary storage.
type Mirrorer interface {
	Sync(ctx context.Context, table string, records []model.CanonicalRecord) error
}

// Pipeline wires the ingestion stages together.
type Pipeline struct {
	cat     *catalog.Catalog
	bcb     BCBFetcher
	cbic    CBICFetcher
	store   sheets.Store
	merger  *merge.Merger
	quality quality.Config
	runlog  *ingestlog.Logger
	mirror  Mirrorer

	now func() time.Time
}

// Options carries optional pipeline collaborators.
type Options struct {
	Mirror Mirrorer
	Now    func() time.Time
}

func New(cat *catalog.Catalog, bcb BCBFetcher, cbic CBICFetcher, store sheets.Store, qcfg quality.Config, opts Options) *Pipeline {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Pipeline{
		cat:     cat,
		bcb:     bcb,
		cbic:    cbic,
		store:   store,
		merger:  merge.New(store),
		quality: qcfg,
		runlog:  ingestlog.New(store),
		mirror:  opts.Mirror,
		now:     opts.Now,
	}
}

// Summary aggregates one run across all tables.
type Summary struct {
	ExecutionID   string
	Tables        int
	Records       int
	Flags         int
	FailedSources []string
}

// Run ingests every catalog source. Tables proceed independently; a
// source that fails to fetch is logged and skipped so the remaining
// sources of its table still merge.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	ingested := p.now().UTC().Truncate(time.Second)
	summary := &Summary{ExecutionID: p.runlog.ExecutionID()}

	var mu sync.Mutex
	var allFlags []model.QualityFlag

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentTables)

	for _, table := range p.cat.Tables() {
		table := table
		g.Go(func() error {
			records, flags, failed, err := p.runTable(gctx, table, ingested)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			summary.Tables++
			summary.Records += records
			summary.FailedSources = append(summary.FailedSources, failed...)
			allFlags = append(allFlags, flags...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary.Flags = len(allFlags)
	if err := p.writeFlags(ctx, allFlags); err != nil {
		return nil, err
	}

	zap.L().Info("pipeline: run complete",
		zap.String("execution_id", summary.ExecutionID),
		zap.Int("tables", summary.Tables),
		zap.Int("records", summary.Records),
		zap.Int("flags", summary.Flags),
		zap.Strings("failed_sources", summary.FailedSources))
	return summary, nil
}

// runTable fetches and normalizes every source of one table, merges
// the combined batch, and checks the merged snapshot.
func (p *Pipeline) runTable(ctx context.Context, table string, ingested time.Time) (int, []model.QualityFlag, []string, error) {
	var batch []model.CanonicalRecord
	var failed []string

	for _, src := range p.cat.Sources {
		if src.Table != table {
			continue
		}
		records, err := p.fetchSource(ctx, src, ingested)
		entry := ingestlog.Entry{
			SourceID:   src.ID,
			Table:      table,
			Status:     ingestlog.StatusOK,
			Records:    len(records),
			StartedAt:  ingested,
			FinishedAt: p.now().UTC(),
		}
		if err != nil {
			zap.L().Error("pipeline: source failed",
				zap.String("source", src.ID),
				zap.Error(err))
			entry.Status = ingestlog.StatusFailed
			entry.Message = err.Error()
			failed = append(failed, src.ID)
		}
		if logErr := p.runlog.Record(ctx, entry); logErr != nil {
			zap.L().Warn("pipeline: ingestion log write failed", zap.Error(logErr))
		}
		batch = append(batch, records...)
	}

	if len(batch) == 0 && len(failed) > 0 {
		// Nothing fetched for this table; leave the snapshot alone.
		return 0, nil, failed, nil
	}

	result, err := p.merger.Merge(ctx, table, batch)
	if err != nil {
		return 0, nil, failed, eris.Wrapf(err, "pipeline: merge %s", table)
	}

	snapshot, err := p.readSnapshot(ctx, table)
	if err != nil {
		return 0, nil, failed, err
	}

	engine := quality.New(p.quality)
	flags := engine.Run(snapshot)

	if p.mirror != nil {
		if err := p.mirror.Sync(ctx, table, snapshot); err != nil {
			return 0, nil, failed, eris.Wrapf(err, "pipeline: mirror %s", table)
		}
	}
	return result.Total, flags, failed, nil
}

func (p *Pipeline) fetchSource(ctx context.Context, src catalog.Source, ingested time.Time) ([]model.CanonicalRecord, error) {
	var raw model.RawTable
	var err error
	switch src.Kind {
	case catalog.KindBCB:
		raw, err = p.bcb.FetchSeries(ctx, src.ID, src.BCBCode, time.Time{})
	case catalog.KindCBIC:
		raw, err = p.cbic.FetchTable(ctx, src.ID, *src.CBIC)
	default:
		err = eris.Errorf("pipeline: unknown source kind %q", src.Kind)
	}
	if err != nil {
		return nil, err
	}

	return normalize.Table(raw, normalize.Options{
		SeriesID:   src.SeriesID,
		Dimensions: src.Dimensions,
		IngestedAt: ingested,
	}), nil
}

func (p *Pipeline) readSnapshot(ctx context.Context, table string) ([]model.CanonicalRecord, error) {
	rows, err := p.store.ReadTable(ctx, table)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: read back %s", table)
	}
	records, err := model.RowsToRecords(rows)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: decode snapshot of %s", table)
	}
	return records, nil
}

// writeFlags rewrites the advisory flag sheet with this run's
// findings.
func (p *Pipeline) writeFlags(ctx context.Context, flags []model.QualityFlag) error {
	if err := p.store.WriteTable(ctx, FlagTable, model.FlagsToRows(flags)); err != nil {
		return eris.Wrap(err, "pipeline: write quality flags")
	}
	return nil
}
