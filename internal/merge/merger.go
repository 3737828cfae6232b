// Package merge combines a normalized batch with the persisted snapshot
// of a logical table: keyed keep-latest substitution, defensive dedup,
// fresh variation derivation, and a whole-snapshot write-back.
package merge

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/matheusoption-bit/construction-data-pipeline/internal/model"
	"github.com/matheusoption-bit/construction-data-pipeline/internal/sheets"
)

// Merger runs the READ_EXISTING -> MERGE -> WRITE_BACK sequence against
// one logical table at a time. It holds no retry logic: a failure in any
// step aborts, and the caller decides whether to re-run the whole merge.
//
// The merger assumes exclusive access to the table between read and
// write-back; concurrent merges against the same table race and can lose
// updates. Serializing per-table merges is the caller's job.
type Merger struct {
	store sheets.Store
}

// New returns a Merger persisting through store.
func New(store sheets.Store) *Merger {
	return &Merger{store: store}
}

// Result summarizes one merge for logging and the ingestion log.
type Result struct {
	Table    string `json:"table"`
	Existing int    `json:"existing"`
	Incoming int    `json:"incoming"`
	BrandNew int    `json:"brand_new"`
	Updated  int    `json:"updated"`
	Removed  int    `json:"removed"`
	Total    int    `json:"total"`
}

// Merge folds batch into the persisted snapshot for table and writes the
// merged snapshot back wholesale. Merging the same batch twice yields the
// same snapshot as merging it once.
func (m *Merger) Merge(ctx context.Context, table string, batch []model.CanonicalRecord) (*Result, error) {
	log := zap.L().With(zap.String("table", table))

	// READ_EXISTING. An absent table is the empty set.
	rows, err := m.store.ReadTable(ctx, table)
	if err != nil {
		return nil, eris.Wrapf(err, "merge: read existing snapshot for %s", table)
	}
	existing, err := model.RowsToRecords(rows)
	if err != nil {
		return nil, eris.Wrapf(err, "merge: decode existing snapshot for %s", table)
	}

	// MERGE.
	existing, removed := dedupeSnapshot(existing)

	index := make(map[string]int, len(existing))
	for i, r := range existing {
		index[r.Key] = i
	}

	result := &Result{Table: table, Existing: len(existing) + removed, Incoming: len(batch), Removed: removed}
	for _, r := range batch {
		if i, ok := index[r.Key]; ok {
			// Keep latest: the new batch is always fresher than the
			// stored snapshot; no field-by-field timestamp comparison.
			existing[i] = r
			result.Updated++
		} else {
			index[r.Key] = len(existing)
			existing = append(existing, r)
			result.BrandNew++
		}
	}

	model.SortRecords(existing)
	Recompute(existing)

	if key, ok := duplicateKey(existing); ok {
		// A duplicate surviving to this point is a merge bug; aborting
		// here keeps the corrupted snapshot out of the store.
		return nil, eris.Errorf("merge: duplicate record_key %q survived merge for %s", key, table)
	}

	// WRITE_BACK: the full snapshot, never a delta.
	if err := m.store.WriteTable(ctx, table, model.RecordsToRows(existing)); err != nil {
		return nil, eris.Wrapf(err, "merge: write back snapshot for %s", table)
	}

	result.Total = len(existing)
	log.Info("snapshot merged",
		zap.Int("existing", result.Existing),
		zap.Int("incoming", result.Incoming),
		zap.Int("brand_new", result.BrandNew),
		zap.Int("updated", result.Updated),
		zap.Int("removed", result.Removed),
		zap.Int("total", result.Total))
	return result, nil
}

// dedupeSnapshot removes residual key duplicates from a stored snapshot,
// keeping the record with the lexicographically-last ingested_at. Manual
// sheet edits and interrupted writers can leave these behind.
func dedupeSnapshot(records []model.CanonicalRecord) ([]model.CanonicalRecord, int) {
	winner := make(map[string]int, len(records))
	for i, r := range records {
		j, seen := winner[r.Key]
		if !seen || !r.IngestedAt.Before(records[j].IngestedAt) {
			winner[r.Key] = i
		}
	}
	if len(winner) == len(records) {
		return records, 0
	}

	out := make([]model.CanonicalRecord, 0, len(winner))
	for i, r := range records {
		if winner[r.Key] == i {
			out = append(out, r)
		}
	}
	return out, len(records) - len(out)
}

func duplicateKey(records []model.CanonicalRecord) (string, bool) {
	seen := make(map[string]bool, len(records))
	for _, r := range records {
		if seen[r.Key] {
			return r.Key, true
		}
		seen[r.Key] = true
	}
	return "", false
}
