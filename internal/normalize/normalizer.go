package normalize

import (
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/matheusoption-bit/construction-data-pipeline/internal/model"
	"github.com/matheusoption-bit/construction-data-pipeline/internal/parse"
)

// Options controls how a table normalizes into one logical series.
type Options struct {
	// SeriesID identifies the logical indicator the table feeds.
	SeriesID string
	// Dimensions are fixed dimension values stamped on every record
	// (e.g. tipo -> "DESONERADO").
	Dimensions map[string]string
	// IngestedAt is the provenance timestamp for this batch.
	IngestedAt time.Time
}

// Table converts a raw table into date-sorted canonical records. The
// layout is decided once by Detect; an unrecognized layout yields zero
// records rather than an error.
func Table(t model.RawTable, opts Options) []model.CanonicalRecord {
	shape := Detect(t)

	var records []model.CanonicalRecord
	switch shape.Kind {
	case KindTall:
		records = normalizeTall(t, *shape.Tall, opts)
	case KindWide:
		records = normalizeWide(t, *shape.Wide, opts)
	case KindMonthColumn:
		records = normalizeMonthColumn(t, *shape.Wide, opts)
	case KindUnrecognized:
		zap.L().Warn("unrecognized table layout",
			zap.String("table", t.Name),
			zap.Int("raw_rows", len(t.Rows)))
		return nil
	}

	records = dedupeLastWins(records)
	model.SortRecords(records)

	zap.L().Debug("table normalized",
		zap.String("table", t.Name),
		zap.String("shape", shape.Kind.String()),
		zap.Int("raw_rows", len(t.Rows)),
		zap.Int("records", len(records)))

	return records
}

// normalizeTall emits one record per data row under the header.
func normalizeTall(t model.RawTable, layout TallLayout, opts Options) []model.CanonicalRecord {
	var records []model.CanonicalRecord

	for _, row := range t.Rows {
		if row.Index <= layout.HeaderRow || parse.IsNoise(row.Cells) {
			continue
		}

		refDate, ok := tallDate(row.Cell(layout.DateCol))
		if !ok {
			continue
		}

		dims := cloneDims(opts.Dimensions)
		for name, col := range layout.DimensionCols {
			if v := strings.TrimSpace(row.Cell(col)); v != "" {
				dims[name] = v
			}
		}

		records = append(records, record(opts, t, refDate, parse.Numeric(row.Cell(layout.ValueCol)), dims))
	}

	return records
}

func tallDate(cell string) (time.Time, bool) {
	s := strings.TrimSpace(cell)
	if d, err := time.Parse(model.DateLayout, s); err == nil {
		return d.UTC(), true
	}
	if d, err := time.Parse("02/01/2006", s); err == nil {
		return d.UTC(), true
	}
	if d, ok := parse.Period(s); ok {
		return d, true
	}
	if y, ok := parse.Year(s); ok {
		return parse.MonthlyDate(y, time.January), true
	}
	return time.Time{}, false
}

var regionCaption = regexp.MustCompile(`REGIAO\s+([A-Z]+)`)

// sectionRegion recognizes section captions like "CUB MEDIO - REGIAO SUL"
// that open a new block of year rows in wide tables.
func sectionRegion(firstCell string) (string, bool) {
	s := strings.ToUpper(parse.Fold(strings.TrimSpace(firstCell)))
	if !strings.Contains(s, "CUB MEDIO") && !strings.Contains(s, "REGIAO") {
		return "", false
	}
	if m := regionCaption.FindStringSubmatch(s); m != nil {
		return m[1], true
	}
	if strings.Contains(s, "BRASIL") {
		return "BRASIL", true
	}
	return "", false
}

// normalizeWide walks a months-across-columns table carrying the group
// label (year, plus any open region section) down sparse rows. A cell
// that parses to exactly zero is treated as absent: the source layout
// renders blanks as zeros, at the documented cost of dropping true zero
// readings.
func normalizeWide(t model.RawTable, layout WideLayout, opts Options) []model.CanonicalRecord {
	var records []model.CanonicalRecord

	currentYear := 0
	currentRegion := ""

	for _, row := range t.Rows {
		if row.Index <= layout.HeaderRow {
			continue
		}

		first := row.Cell(0)
		if region, ok := sectionRegion(first); ok {
			currentRegion = region
			currentYear = 0
			continue
		}

		if parse.IsNoise(row.Cells) && strings.TrimSpace(first) == "" {
			// Blank separator rows do not reset the carry-forward group.
			continue
		}

		if y, ok := parse.Year(first); ok {
			currentYear = y
		}
		if currentYear == 0 {
			continue
		}
		if parse.IsNoise(row.Cells) {
			continue
		}

		dims := cloneDims(opts.Dimensions)
		if currentRegion != "" {
			dims["regiao"] = currentRegion
		}

		for col, month := range layout.PeriodCols {
			v := parse.Numeric(row.Cell(col))
			if v == nil || *v == 0 {
				continue
			}
			records = append(records, record(opts, t, parse.MonthlyDate(currentYear, month), v, dims))
		}
	}

	return records
}

// periodMonth reads a month or quarter label. Quarterly labels fold to
// the quarter's middle month.
func periodMonth(token string) (time.Month, bool) {
	if m, ok := parse.Month(token); ok {
		return m, true
	}
	return parse.Quarter(token)
}

// normalizeMonthColumn walks the ANO | MES | VALOR layout, carrying the
// year forward across rows where only the month changes. The MES column
// may also carry quarter labels (ANO | TRIMESTRE | TAXA).
func normalizeMonthColumn(t model.RawTable, layout WideLayout, opts Options) []model.CanonicalRecord {
	var records []model.CanonicalRecord

	currentYear := 0

	for _, row := range t.Rows {
		if row.Index < layout.HeaderRow || parse.IsNoise(row.Cells) {
			continue
		}

		if y, ok := parse.Year(row.Cell(0)); ok {
			currentYear = y
		}
		if currentYear == 0 {
			continue
		}

		month, ok := periodMonth(row.Cell(layout.MonthCol))
		if !ok {
			continue
		}

		v := parse.Numeric(row.Cell(layout.ValueCol))
		if v == nil {
			continue
		}

		records = append(records, record(opts, t, parse.MonthlyDate(currentYear, month), v, cloneDims(opts.Dimensions)))
	}

	return records
}

func record(opts Options, t model.RawTable, refDate time.Time, value *float64, dims map[string]string) model.CanonicalRecord {
	if len(dims) == 0 {
		dims = nil
	}
	return model.CanonicalRecord{
		Key:        model.RecordKey(opts.SeriesID, refDate, dims),
		SeriesID:   opts.SeriesID,
		RefDate:    refDate,
		Value:      value,
		Dimensions: dims,
		SourceURL:  t.SourceURL,
		IngestedAt: opts.IngestedAt.UTC(),
	}
}

// dedupeLastWins removes in-batch key duplicates keeping the last emitted
// record: rows read later in natural top-to-bottom order win.
func dedupeLastWins(records []model.CanonicalRecord) []model.CanonicalRecord {
	last := make(map[string]int, len(records))
	for i, r := range records {
		last[r.Key] = i
	}
	out := records[:0]
	for i, r := range records {
		if last[r.Key] == i {
			out = append(out, r)
		}
	}
	return out
}

func cloneDims(dims map[string]string) map[string]string {
	out := make(map[string]string, len(dims)+1)
	for k, v := range dims {
		out[k] = v
	}
	return out
}
