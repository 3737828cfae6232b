package main

import (
	"context"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/matheusoption-bit/construction-data-pipeline/internal/catalog"
	"github.com/matheusoption-bit/construction-data-pipeline/internal/export"
	"github.com/matheusoption-bit/construction-data-pipeline/internal/quality"
	"github.com/matheusoption-bit/construction-data-pipeline/internal/sheets"
	"github.com/matheusoption-bit/construction-data-pipeline/internal/source"
)

// env bundles the collaborators the commands share.
type env struct {
	cat   *catalog.Catalog
	store sheets.Store
	cache *source.Cache
	pool  *pgxpool.Pool
}

func (e *env) Close() {
	if e.cache != nil {
		_ = e.cache.Close()
	}
	if e.pool != nil {
		e.pool.Close()
	}
}

// initEnv builds the catalog, the fact store client, and the download
// cache from the loaded configuration.
func initEnv(ctx context.Context) (*env, error) {
	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return nil, err
	}

	creds, err := os.ReadFile(cfg.Sheets.CredentialsFile)
	if err != nil {
		return nil, eris.Wrapf(err, "read credentials %s", cfg.Sheets.CredentialsFile)
	}
	store, err := sheets.NewClient(ctx, creds, cfg.Sheets.SpreadsheetID)
	if err != nil {
		return nil, err
	}

	cache, err := source.NewCache(cfg.Cache.Dir, time.Duration(cfg.Cache.TTLHours)*time.Hour)
	if err != nil {
		return nil, err
	}

	return &env{cat: cat, store: store, cache: cache}, nil
}

// initMirror connects the PostgreSQL mirror when one is configured.
func (e *env) initMirror(ctx context.Context) (*export.Mirror, error) {
	if cfg.Export.DatabaseURL == "" {
		return nil, nil
	}
	pool, err := pgxpool.New(ctx, cfg.Export.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "connect mirror database")
	}
	e.pool = pool

	mirror := export.NewMirror(pool)
	if err := mirror.Migrate(ctx); err != nil {
		return nil, err
	}
	return mirror, nil
}

// qualityConfig applies the configured check toggles and the
// catalog's non-negative declarations.
func qualityConfig(cat *catalog.Catalog, now time.Time) quality.Config {
	qc := quality.DefaultConfig(now)
	qc.Outliers = cfg.Quality.Outliers
	qc.Variation = cfg.Quality.Variation
	qc.Negatives = cfg.Quality.Negatives
	qc.FutureDates = cfg.Quality.FutureDates
	qc.ConstantSeries = cfg.Quality.ConstantSeries
	qc.NonNegative = cat.NonNegativeSeries()
	return qc
}

func (e *env) newFetcher() *source.Fetcher {
	return source.NewFetcher(source.FetcherOptions{
		UserAgent:  cfg.Fetch.UserAgent,
		Timeout:    time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		MaxRetries: cfg.Fetch.MaxRetries,
	})
}
