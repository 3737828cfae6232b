package merge

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matheusoption-bit/construction-data-pipeline/internal/model"
	"github.com/matheusoption-bit/construction-data-pipeline/internal/sheets"
)

func monthly(seriesID string, year int, month time.Month, value float64, ingested time.Time) model.CanonicalRecord {
	d := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return model.CanonicalRecord{
		Key:        model.RecordKey(seriesID, d, nil),
		SeriesID:   seriesID,
		RefDate:    d,
		Value:      model.Float64Ptr(value),
		IngestedAt: ingested,
	}
}

var ingestedAt = time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC)

func snapshot(t *testing.T, store sheets.Store, table string) []model.CanonicalRecord {
	t.Helper()
	rows, err := store.ReadTable(context.Background(), table)
	require.NoError(t, err)
	records, err := model.RowsToRecords(rows)
	require.NoError(t, err)
	return records
}

func TestMerge_IntoEmptyStore(t *testing.T) {
	store := sheets.NewMemory()
	m := New(store)

	batch := []model.CanonicalRecord{
		monthly("cub", 2023, time.January, 1200, ingestedAt),
		monthly("cub", 2023, time.February, 1215, ingestedAt),
	}

	result, err := m.Merge(context.Background(), "fact_cub", batch)
	require.NoError(t, err)
	assert.Equal(t, 2, result.BrandNew)
	assert.Equal(t, 0, result.Updated)
	assert.Equal(t, 2, result.Total)

	rows, err := store.ReadTable(context.Background(), "fact_cub")
	require.NoError(t, err)
	records, err := model.RowsToRecords(rows)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// variation_mom derived over the merged series: (1215-1200)/1200.
	require.NotNil(t, records[1].VariationMoM)
	assert.InDelta(t, 0.0125, *records[1].VariationMoM, 1e-9)
	assert.Nil(t, records[0].VariationMoM)
}

func TestMerge_KeepLatest(t *testing.T) {
	store := sheets.NewMemory()
	m := New(store)
	ctx := context.Background()

	_, err := m.Merge(ctx, "fact_cub", []model.CanonicalRecord{
		monthly("cub", 2023, time.January, 1200, ingestedAt),
	})
	require.NoError(t, err)

	// Revised figure for the same key replaces the stored one outright.
	result, err := m.Merge(ctx, "fact_cub", []model.CanonicalRecord{
		monthly("cub", 2023, time.January, 1250, ingestedAt.Add(time.Hour)),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 0, result.BrandNew)

	records := snapshot(t, store, "fact_cub")
	require.Len(t, records, 1)
	assert.Equal(t, 1250.0, *records[0].Value)
}

func TestMerge_Idempotent(t *testing.T) {
	store := sheets.NewMemory()
	m := New(store)
	ctx := context.Background()

	batch := []model.CanonicalRecord{
		monthly("cub", 2023, time.January, 1200, ingestedAt),
		monthly("cub", 2023, time.February, 1215, ingestedAt),
		monthly("ipca", 2023, time.January, 0.53, ingestedAt),
	}

	_, err := m.Merge(ctx, "fact_series", batch)
	require.NoError(t, err)
	first, err := store.ReadTable(ctx, "fact_series")
	require.NoError(t, err)

	_, err = m.Merge(ctx, "fact_series", batch)
	require.NoError(t, err)
	second, err := store.ReadTable(ctx, "fact_series")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestMerge_DefensiveDedup(t *testing.T) {
	store := sheets.NewMemory()
	ctx := context.Background()

	// Seed a snapshot that already violates the key invariant, as a
	// manual edit could. The later ingested_at must win.
	older := monthly("cub", 2023, time.January, 1100, ingestedAt.Add(-48*time.Hour))
	newer := monthly("cub", 2023, time.January, 1200, ingestedAt)
	require.NoError(t, store.WriteTable(ctx, "fact_cub", model.RecordsToRows([]model.CanonicalRecord{older, newer})))

	m := New(store)
	result, err := m.Merge(ctx, "fact_cub", []model.CanonicalRecord{
		monthly("cub", 2023, time.February, 1215, ingestedAt),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Removed)

	records := snapshot(t, store, "fact_cub")
	require.Len(t, records, 2)
	assert.Equal(t, 1200.0, *records[0].Value)
}

func TestMerge_NoDuplicateKeysEver(t *testing.T) {
	store := sheets.NewMemory()
	m := New(store)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		batch := []model.CanonicalRecord{
			monthly("cub", 2023, time.January, float64(1200 + i), ingestedAt),
			monthly("cub", 2023, time.February, float64(1215 + i), ingestedAt),
		}
		_, err := m.Merge(ctx, "fact_cub", batch)
		require.NoError(t, err)

		seen := map[string]bool{}
		for _, r := range snapshot(t, store, "fact_cub") {
			assert.False(t, seen[r.Key], "duplicate key %s", r.Key)
			seen[r.Key] = true
		}
	}
}

func TestMerge_VariationYoY(t *testing.T) {
	store := sheets.NewMemory()
	m := New(store)
	ctx := context.Background()

	batch := []model.CanonicalRecord{
		monthly("cub", 2022, time.March, 1000, ingestedAt),
		monthly("cub", 2023, time.March, 1100, ingestedAt),
	}
	_, err := m.Merge(ctx, "fact_cub", batch)
	require.NoError(t, err)

	records := snapshot(t, store, "fact_cub")
	require.Len(t, records, 2)
	require.NotNil(t, records[1].VariationYoY)
	assert.InDelta(t, 0.10, *records[1].VariationYoY, 1e-9)
	// Eleven months apart is not a year lag; MoM stays unset too.
	assert.Nil(t, records[1].VariationMoM)
}

func TestMerge_StoreFailuresPropagate(t *testing.T) {
	store := sheets.NewMemory()
	store.ReadErr = eris.New("quota exceeded")
	m := New(store)

	_, err := m.Merge(context.Background(), "fact_cub", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")

	store.ReadErr = nil
	store.WriteErr = eris.New("rate limited")
	_, err = m.Merge(context.Background(), "fact_cub", []model.CanonicalRecord{
		monthly("cub", 2023, time.January, 1, ingestedAt),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestRecompute_FreshEachTime(t *testing.T) {
	stale := model.Float64Ptr(9.9)
	records := []model.CanonicalRecord{
		monthly("cub", 2023, time.January, 1200, ingestedAt),
		monthly("cub", 2023, time.February, 1215, ingestedAt),
	}
	records[0].VariationMoM = stale
	records[0].VariationYoY = stale

	Recompute(records)

	assert.Nil(t, records[0].VariationMoM)
	assert.Nil(t, records[0].VariationYoY)
	require.NotNil(t, records[1].VariationMoM)
	assert.InDelta(t, 0.0125, *records[1].VariationMoM, 1e-9)
}

func TestRecompute_PerDimensionSlice(t *testing.T) {
	mk := func(region string, month time.Month, v float64) model.CanonicalRecord {
		d := time.Date(2023, month, 1, 0, 0, 0, 0, time.UTC)
		dims := map[string]string{"regiao": region}
		return model.CanonicalRecord{
			Key:        model.RecordKey("cub", d, dims),
			SeriesID:   "cub",
			RefDate:    d,
			Value:      model.Float64Ptr(v),
			Dimensions: dims,
		}
	}

	records := []model.CanonicalRecord{
		mk("BRASIL", time.January, 100),
		mk("SUL", time.January, 200),
		mk("BRASIL", time.February, 110),
		mk("SUL", time.February, 220),
	}
	model.SortRecords(records)
	Recompute(records)

	for _, r := range records {
		if r.RefDate.Month() == time.February {
			require.NotNil(t, r.VariationMoM, "regiao %s", r.Dimensions["regiao"])
			assert.InDelta(t, 0.10, *r.VariationMoM, 1e-9)
		} else {
			assert.Nil(t, r.VariationMoM)
		}
	}
}
