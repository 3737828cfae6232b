// Package export mirrors merged fact snapshots into PostgreSQL so
// they can be queried with SQL and joined by BI tools.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/matheusoption-bit/construction-data-pipeline/internal/model"
)

// Pool is the subset of pgxpool.Pool the mirror needs. pgxmock
// satisfies it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

const mirrorMigration = `
CREATE TABLE IF NOT EXISTS fact_records (
	fact_table     TEXT NOT NULL,
	record_key     TEXT NOT NULL,
	series_id      TEXT NOT NULL,
	reference_date DATE NOT NULL,
	value          DOUBLE PRECISION,
	variation_mom  DOUBLE PRECISION,
	variation_yoy  DOUBLE PRECISION,
	dimensions     JSONB NOT NULL DEFAULT '{}',
	source_url     TEXT,
	ingested_at    TIMESTAMPTZ,
	PRIMARY KEY (fact_table, record_key)
);

CREATE INDEX IF NOT EXISTS idx_fact_records_series
	ON fact_records (series_id, reference_date);
`

// mirrorColumns is the COPY column order for fact_records.
var mirrorColumns = []string{
	"fact_table", "record_key", "series_id", "reference_date",
	"value", "variation_mom", "variation_yoy",
	"dimensions", "source_url", "ingested_at",
}

// Mirror replicates snapshots into the fact_records table.
type Mirror struct {
	pool Pool
}

func NewMirror(pool Pool) *Mirror {
	return &Mirror{pool: pool}
}

// Migrate creates the mirror schema if it does not exist.
func (m *Mirror) Migrate(ctx context.Context) error {
	if _, err := m.pool.Exec(ctx, mirrorMigration); err != nil {
		return eris.Wrap(err, "export: migrate mirror schema")
	}
	return nil
}

const tempTable = "_tmp_fact_records"

// Sync upserts the given snapshot into the mirror and removes rows
// whose keys left the snapshot. Rows go through a temp table with
// COPY, then one INSERT ... ON CONFLICT, all in a single transaction
// so readers never see a half-written table.
func (m *Mirror) Sync(ctx context.Context, table string, records []model.CanonicalRecord) error {
	rows, err := mirrorRows(table, records)
	if err != nil {
		return err
	}

	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "export: begin sync tx")
	}
	defer tx.Rollback(ctx)

	if len(rows) > 0 {
		createSQL := fmt.Sprintf(
			"CREATE TEMP TABLE %s (LIKE fact_records INCLUDING DEFAULTS) ON COMMIT DROP",
			pgx.Identifier{tempTable}.Sanitize(),
		)
		if _, err := tx.Exec(ctx, createSQL); err != nil {
			return eris.Wrapf(err, "export: create temp table for %s", table)
		}

		n, err := tx.CopyFrom(ctx, pgx.Identifier{tempTable}, mirrorColumns, pgx.CopyFromRows(rows))
		if err != nil {
			return eris.Wrapf(err, "export: COPY snapshot of %s", table)
		}
		if int(n) != len(rows) {
			return eris.Errorf("export: copied %d of %d rows for %s", n, len(rows), table)
		}

		if _, err := tx.Exec(ctx, upsertSQL()); err != nil {
			return eris.Wrapf(err, "export: upsert snapshot of %s", table)
		}

		staleSQL := fmt.Sprintf(
			"DELETE FROM fact_records WHERE fact_table = $1 AND record_key NOT IN (SELECT record_key FROM %s)",
			pgx.Identifier{tempTable}.Sanitize(),
		)
		if _, err := tx.Exec(ctx, staleSQL, table); err != nil {
			return eris.Wrapf(err, "export: remove stale rows of %s", table)
		}
	} else {
		if _, err := tx.Exec(ctx, "DELETE FROM fact_records WHERE fact_table = $1", table); err != nil {
			return eris.Wrapf(err, "export: clear mirror of %s", table)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "export: commit sync tx")
	}
	zap.L().Info("export: mirrored snapshot",
		zap.String("table", table),
		zap.Int("records", len(records)))
	return nil
}

// upsertSQL folds the temp table into fact_records, updating every
// non-key column on conflict.
func upsertSQL() string {
	var setClauses []string
	for _, col := range mirrorColumns {
		if col == "fact_table" || col == "record_key" {
			continue
		}
		quoted := pgx.Identifier{col}.Sanitize()
		setClauses = append(setClauses, fmt.Sprintf("%s = EXCLUDED.%s", quoted, quoted))
	}
	quotedCols := make([]string, len(mirrorColumns))
	for i, col := range mirrorColumns {
		quotedCols[i] = pgx.Identifier{col}.Sanitize()
	}
	colList := strings.Join(quotedCols, ", ")

	conflictCols := strings.Join([]string{
		pgx.Identifier{"fact_table"}.Sanitize(),
		pgx.Identifier{"record_key"}.Sanitize(),
	}, ", ")

	return fmt.Sprintf(
		"INSERT INTO fact_records (%s) SELECT %s FROM %s ON CONFLICT (%s) DO UPDATE SET %s",
		colList,
		colList,
		pgx.Identifier{tempTable}.Sanitize(),
		conflictCols,
		strings.Join(setClauses, ", "),
	)
}

func mirrorRows(table string, records []model.CanonicalRecord) ([][]any, error) {
	rows := make([][]any, 0, len(records))
	for _, r := range records {
		dims := r.Dimensions
		if dims == nil {
			dims = map[string]string{}
		}
		dimsJSON, err := json.Marshal(dims)
		if err != nil {
			return nil, eris.Wrapf(err, "export: marshal dimensions of %s", r.Key)
		}
		rows = append(rows, []any{
			table, r.Key, r.SeriesID, r.RefDate,
			floatOrNil(r.Value), floatOrNil(r.VariationMoM), floatOrNil(r.VariationYoY),
			dimsJSON, r.SourceURL, r.IngestedAt,
		})
	}
	return rows, nil
}

// floatOrNil widens a *float64 to any so database/sql null handling
// sees a real nil instead of a typed nil pointer.
func floatOrNil(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
