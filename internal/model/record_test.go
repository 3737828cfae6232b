package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordKey(t *testing.T) {
	d := time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "ipca_2023-02-01", RecordKey("ipca", d, nil))
	assert.Equal(t, "cub_2023-02-01_sul_desonerado",
		RecordKey("cub", d, map[string]string{"regiao": "SUL", "tipo": "DESONERADO"}))

	// Empty dimension values do not contribute to the key.
	assert.Equal(t, "cub_2023-02-01", RecordKey("cub", d, map[string]string{"regiao": ""}))
}

func TestRecordRowRoundTrip(t *testing.T) {
	records := []CanonicalRecord{
		{
			Key:          "ipca_2023-01-01_sp",
			SeriesID:     "ipca",
			RefDate:      time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
			Value:        Float64Ptr(100.5),
			VariationMoM: Float64Ptr(0.0125),
			Dimensions:   map[string]string{"regiao": "SP"},
			SourceURL:    "https://api.bcb.gov.br",
			IngestedAt:   time.Date(2023, 1, 2, 10, 30, 0, 0, time.UTC),
		},
		{
			Key:      "ipca_2023-02-01",
			SeriesID: "ipca",
			RefDate:  time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC),
			// Value nil: a known gap serializes as "".
		},
	}

	rows := RecordsToRows(records)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{
		"record_key", "series_id", "reference_date", "value",
		"variation_mom", "variation_yoy", "regiao", "source_url", "ingested_at",
	}, rows[0])
	assert.Equal(t, "100.5", rows[1][3])
	assert.Equal(t, "0.0125", rows[1][4])
	assert.Equal(t, "", rows[1][5])
	assert.Equal(t, "SP", rows[1][6])
	assert.Equal(t, "", rows[2][3])

	back, err := RowsToRecords(rows)
	require.NoError(t, err)
	require.Len(t, back, 2)
	assert.Equal(t, records[0].Key, back[0].Key)
	assert.Equal(t, *records[0].Value, *back[0].Value)
	assert.Equal(t, records[0].Dimensions, back[0].Dimensions)
	assert.Equal(t, records[0].IngestedAt, back[0].IngestedAt)
	assert.Nil(t, back[1].Value)
	assert.Nil(t, back[1].Dimensions)
}

func TestRowsToRecords_SkipsDamagedRows(t *testing.T) {
	rows := [][]string{
		{"record_key", "series_id", "reference_date", "value", "variation_mom", "variation_yoy", "source_url", "ingested_at"},
		{"", "ipca", "2023-01-01", "1", "", "", "", ""},
		{"ipca_bad-date", "ipca", "not-a-date", "1", "", "", "", ""},
		{"ipca_2023-01-01", "ipca", "2023-01-01", "1", "", "", "", ""},
	}
	records, err := RowsToRecords(rows)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "ipca_2023-01-01", records[0].Key)
}

func TestRowsToRecords_NoHeader(t *testing.T) {
	_, err := RowsToRecords([][]string{{"a", "b"}})
	assert.Error(t, err)

	records, err := RowsToRecords(nil)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSortRecords(t *testing.T) {
	records := []CanonicalRecord{
		{Key: "b_2023-01-01", SeriesID: "b", RefDate: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)},
		{Key: "a_2023-02-01", SeriesID: "a", RefDate: time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)},
		{Key: "a_2023-01-01", SeriesID: "a", RefDate: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	SortRecords(records)
	assert.Equal(t, []string{"a_2023-01-01", "a_2023-02-01", "b_2023-01-01"},
		[]string{records[0].Key, records[1].Key, records[2].Key})
}

func TestFlagRow(t *testing.T) {
	f := QualityFlag{
		SeriesID:      "ipca",
		RefDate:       time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC),
		Kind:          FlagOutlier,
		Severity:      SeverityHigh,
		ObservedValue: Float64Ptr(200),
		Detail:        "z-score 4.10, mean 103.00",
	}
	assert.Equal(t, []string{"ipca", "2023-06-01", "OUTLIER", "HIGH", "200", "z-score 4.10, mean 103.00"}, f.Row())

	rows := FlagsToRows([]QualityFlag{f})
	require.Len(t, rows, 2)
	assert.Equal(t, FlagHeader(), rows[0])
}
