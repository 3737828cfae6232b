package merge

import (
	"github.com/matheusoption-bit/construction-data-pipeline/internal/model"
)

// Recompute derives variation_mom and variation_yoy in place over a
// date-sorted record slice. Derived fields are never carried over from
// either merge input; they are always recomputed from the merged
// sequence so stored values cannot drift from the series they describe.
func Recompute(records []model.CanonicalRecord) {
	byDate := make(map[string]*model.CanonicalRecord, len(records))
	for i := range records {
		records[i].VariationMoM = nil
		records[i].VariationYoY = nil
		byDate[dateKey(records[i])] = &records[i]
	}

	for i := range records {
		r := &records[i]
		if r.Value == nil {
			continue
		}

		// Period over period: previous calendar month, same series and
		// dimension slice. Calendar lookup (rather than the adjacent
		// slice entry) keeps multi-region series from comparing across
		// slices.
		if prev, ok := byDate[lagKey(*r, 0, -1)]; ok && prev.Value != nil && *prev.Value != 0 {
			v := (*r.Value - *prev.Value) / *prev.Value
			r.VariationMoM = &v
		}

		// Year over year: 12-month lag by calendar lookup, so a missing
		// month cannot shift the comparison point.
		if lag, ok := byDate[lagKey(*r, -1, 0)]; ok && lag.Value != nil && *lag.Value != 0 {
			v := (*r.Value - *lag.Value) / *lag.Value
			r.VariationYoY = &v
		}
	}
}

// dateKey recomputes the composite key so lag lookups stay consistent
// even when a stored key was hand-edited.
func dateKey(r model.CanonicalRecord) string {
	return model.RecordKey(r.SeriesID, r.RefDate, r.Dimensions)
}

func lagKey(r model.CanonicalRecord, years, months int) string {
	return model.RecordKey(r.SeriesID, r.RefDate.AddDate(years, months, 0), r.Dimensions)
}
