package quality

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matheusoption-bit/construction-data-pipeline/internal/model"
)

var processingDate = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

func series(id string, start time.Time, values ...float64) []model.CanonicalRecord {
	records := make([]model.CanonicalRecord, 0, len(values))
	for i, v := range values {
		d := start.AddDate(0, i, 0)
		records = append(records, model.CanonicalRecord{
			Key:      model.RecordKey(id, d, nil),
			SeriesID: id,
			RefDate:  d,
			Value:    model.Float64Ptr(v),
		})
	}
	return records
}

func TestOutlier_ExactlyOne(t *testing.T) {
	records := series("custo", time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		100, 102, 101, 103, 105, 200, 106, 107)

	e := New(Config{Outliers: true, Now: processingDate})
	flags := e.Run(records)

	require.Len(t, flags, 1)
	assert.Equal(t, model.FlagOutlier, flags[0].Kind)
	assert.Equal(t, 200.0, *flags[0].ObservedValue)
	assert.Equal(t, time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC), flags[0].RefDate)
	assert.Equal(t, model.SeverityHigh, flags[0].Severity)
}

func TestOutlier_SkippedBelowThreePoints(t *testing.T) {
	records := series("custo", time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), 100, 5000)
	e := New(Config{Outliers: true, Now: processingDate})
	assert.Empty(t, e.Run(records))
}

func TestVariation(t *testing.T) {
	// 100 -> 112 is +12% (MEDIUM), 112 -> 150 is +34% (HIGH).
	records := series("cub", time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), 100, 112, 150)

	e := New(Config{Variation: true, Now: processingDate})
	flags := e.Run(records)

	require.Len(t, flags, 2)
	assert.Equal(t, model.FlagHighVariation, flags[0].Kind)
	assert.Equal(t, model.SeverityMedium, flags[0].Severity)
	assert.Equal(t, model.SeverityHigh, flags[1].Severity)
}

func TestVariation_SpansNullGaps(t *testing.T) {
	records := series("cub", time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), 100, 0, 103)
	records[1].Value = nil // gap, not zero

	e := New(Config{Variation: true, Now: processingDate})
	// 100 -> 103 is +3%: under the threshold, no flag.
	assert.Empty(t, e.Run(records))
}

func TestNegative_OnlyDeclaredSeries(t *testing.T) {
	records := series("indice", time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), 100, -50.5, 101)

	// Not declared non-negative: the engine does not guess.
	e := New(Config{Negatives: true, Now: processingDate})
	assert.Empty(t, e.Run(records))

	e = New(Config{Negatives: true, NonNegative: map[string]bool{"indice": true}, Now: processingDate})
	flags := e.Run(records)
	require.Len(t, flags, 1)
	assert.Equal(t, model.FlagNegativeValue, flags[0].Kind)
	assert.Equal(t, model.SeverityHigh, flags[0].Severity)
	assert.Equal(t, -50.5, *flags[0].ObservedValue)
}

func TestFutureDate_AlwaysHigh(t *testing.T) {
	records := series("ipca", processingDate.AddDate(1, 0, 0), 0)

	e := New(Config{FutureDates: true, Now: processingDate})
	flags := e.Run(records)

	require.Len(t, flags, 1)
	assert.Equal(t, model.FlagFutureDate, flags[0].Kind)
	assert.Equal(t, model.SeverityHigh, flags[0].Severity)
}

func TestConstantSeries(t *testing.T) {
	records := series("selic", time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		13.75, 13.75, 13.75, 13.75, 12.25, 13.75)

	e := New(Config{ConstantSeries: true, Now: processingDate})
	flags := e.Run(records)

	require.Len(t, flags, 1)
	assert.Equal(t, model.FlagConstantSeries, flags[0].Kind)
	assert.Equal(t, model.SeverityMedium, flags[0].Severity)
	assert.Equal(t, 13.75, *flags[0].ObservedValue)
}

func TestConstantSeries_NeedsFivePoints(t *testing.T) {
	records := series("selic", time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		13.75, 13.75, 13.75, 13.75)
	e := New(Config{ConstantSeries: true, Now: processingDate})
	assert.Empty(t, e.Run(records))
}

func TestRun_GroupsBySeries(t *testing.T) {
	a := series("a", processingDate.AddDate(1, 0, 0), 1)
	b := series("b", processingDate.AddDate(2, 0, 0), 2)

	e := New(Config{FutureDates: true, Now: processingDate})
	flags := e.Run(append(a, b...))

	require.Len(t, flags, 2)
	assert.Equal(t, "a", flags[0].SeriesID)
	assert.Equal(t, "b", flags[1].SeriesID)
}

func TestRecordsNeverMutated(t *testing.T) {
	records := series("ipca", time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), 100, 500, 101)
	before := *records[1].Value

	e := New(DefaultConfig(processingDate))
	e.Run(records)

	assert.Equal(t, before, *records[1].Value)
	assert.Len(t, records, 3)
}
