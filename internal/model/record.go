package model

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the wire format for reference dates.
const DateLayout = "2006-01-02"

// TimestampLayout is the wire format for provenance timestamps.
const TimestampLayout = "2006-01-02 15:04:05"

// CanonicalRecord is one fully typed fact row with a stable key.
// Key is the merge/dedup identity; SourceURL and IngestedAt are provenance
// only and never participate in equality.
type CanonicalRecord struct {
	Key          string            `json:"record_key"`
	SeriesID     string            `json:"series_id"`
	RefDate      time.Time         `json:"reference_date"`
	Value        *float64          `json:"value"`
	VariationMoM *float64          `json:"variation_mom,omitempty"`
	VariationYoY *float64          `json:"variation_yoy,omitempty"`
	Dimensions   map[string]string `json:"dimensions,omitempty"`
	SourceURL    string            `json:"source_url,omitempty"`
	IngestedAt   time.Time         `json:"ingested_at"`
}

// RecordKey builds the deterministic composite key for a record:
// series id, reference date, then any disambiguating dimension values in
// dimension-name order.
func RecordKey(seriesID string, refDate time.Time, dims map[string]string) string {
	parts := []string{seriesID, refDate.Format(DateLayout)}
	for _, name := range sortedKeys(dims) {
		if v := dims[name]; v != "" {
			parts = append(parts, strings.ToLower(v))
		}
	}
	return strings.Join(parts, "_")
}

// DimensionNames returns the union of dimension names across records,
// sorted, giving the stable column order for serialization.
func DimensionNames(records []CanonicalRecord) []string {
	seen := map[string]bool{}
	for _, r := range records {
		for name := range r.Dimensions {
			seen[name] = true
		}
	}
	return sortedKeys2(seen)
}

// Header returns the export header row for the given dimension columns:
// [record_key, series_id, reference_date, value, variation_mom,
// variation_yoy, ...dims, source_url, ingested_at].
func Header(dims []string) []string {
	h := []string{"record_key", "series_id", "reference_date", "value", "variation_mom", "variation_yoy"}
	h = append(h, dims...)
	return append(h, "source_url", "ingested_at")
}

// Row serializes the record under the given dimension column order.
// Nulls serialize as empty strings.
func (r CanonicalRecord) Row(dims []string) []string {
	row := []string{
		r.Key,
		r.SeriesID,
		r.RefDate.Format(DateLayout),
		formatFloat(r.Value),
		formatFloat(r.VariationMoM),
		formatFloat(r.VariationYoY),
	}
	for _, d := range dims {
		row = append(row, r.Dimensions[d])
	}
	return append(row, r.SourceURL, r.IngestedAt.UTC().Format(TimestampLayout))
}

// RecordsToRows serializes records to wire rows, header first.
func RecordsToRows(records []CanonicalRecord) [][]string {
	dims := DimensionNames(records)
	rows := make([][]string, 0, len(records)+1)
	rows = append(rows, Header(dims))
	for _, r := range records {
		rows = append(rows, r.Row(dims))
	}
	return rows
}

// RowsToRecords parses wire rows (header first) back into records.
// Unknown header columns between variation_yoy and source_url are read as
// dimensions. Rows with a missing key or an unparseable date are skipped:
// cells are text on the wire and boilerplate may survive manual edits.
func RowsToRecords(rows [][]string) ([]CanonicalRecord, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	header := rows[0]
	idx := map[string]int{}
	for i, name := range header {
		idx[strings.TrimSpace(strings.ToLower(name))] = i
	}
	if _, ok := idx["record_key"]; !ok {
		return nil, fmt.Errorf("model: header has no record_key column: %v", header)
	}

	fixed := map[string]bool{
		"record_key": true, "series_id": true, "reference_date": true,
		"value": true, "variation_mom": true, "variation_yoy": true,
		"source_url": true, "ingested_at": true,
	}
	var dims []string
	for _, name := range header {
		n := strings.TrimSpace(strings.ToLower(name))
		if !fixed[n] && n != "" {
			dims = append(dims, n)
		}
	}

	cell := func(row []string, name string) string {
		i, ok := idx[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var records []CanonicalRecord
	for _, row := range rows[1:] {
		key := cell(row, "record_key")
		if key == "" {
			continue
		}
		refDate, err := time.Parse(DateLayout, cell(row, "reference_date"))
		if err != nil {
			continue
		}
		rec := CanonicalRecord{
			Key:          key,
			SeriesID:     cell(row, "series_id"),
			RefDate:      refDate,
			Value:        parseFloatCell(cell(row, "value")),
			VariationMoM: parseFloatCell(cell(row, "variation_mom")),
			VariationYoY: parseFloatCell(cell(row, "variation_yoy")),
			SourceURL:    cell(row, "source_url"),
		}
		if ts, err := time.Parse(TimestampLayout, cell(row, "ingested_at")); err == nil {
			rec.IngestedAt = ts.UTC()
		}
		for _, d := range dims {
			if v := cell(row, d); v != "" {
				if rec.Dimensions == nil {
					rec.Dimensions = map[string]string{}
				}
				rec.Dimensions[d] = v
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// SortRecords orders records by (series_id, reference_date, key) in place.
// Consumers rely on this ordering for range scans and variation math.
func SortRecords(records []CanonicalRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].SeriesID != records[j].SeriesID {
			return records[i].SeriesID < records[j].SeriesID
		}
		if !records[i].RefDate.Equal(records[j].RefDate) {
			return records[i].RefDate.Before(records[j].RefDate)
		}
		return records[i].Key < records[j].Key
	})
}

// Float64Ptr returns a pointer to v. Test and builder helper.
func Float64Ptr(v float64) *float64 { return &v }

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func parseFloatCell(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedKeys2(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
