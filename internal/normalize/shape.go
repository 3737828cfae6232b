// Package normalize turns raw spreadsheet tables into ordered canonical
// records. Table layout is decided once by Detect and then handled by an
// exhaustive switch; there is no try-one-parser-then-the-other control
// flow.
package normalize

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/matheusoption-bit/construction-data-pipeline/internal/model"
	"github.com/matheusoption-bit/construction-data-pipeline/internal/parse"
)

// Kind tags the detected table layout.
type Kind int

const (
	// KindUnrecognized means no parseable layout was found. The table
	// normalizes to zero records; callers distinguish this from a
	// legitimately empty source by comparing raw and canonical counts.
	KindUnrecognized Kind = iota
	// KindTall is one record per row under a header row.
	KindTall
	// KindWide is months pivoted across columns, with a sparse group
	// label (year or section caption) carried down the first column.
	KindWide
	// KindMonthColumn is the sparse-year variant with a month label
	// column: ANO | MES | VALOR [| ...]. The year is present only on the
	// row where it changes.
	KindMonthColumn
)

func (k Kind) String() string {
	switch k {
	case KindTall:
		return "tall"
	case KindWide:
		return "wide"
	case KindMonthColumn:
		return "month_column"
	default:
		return "unrecognized"
	}
}

// Shape is the detector's verdict. Exactly one of the layout fields is
// populated, matching Kind.
type Shape struct {
	Kind Kind
	Tall *TallLayout
	Wide *WideLayout
}

// TallLayout maps header positions to record fields.
type TallLayout struct {
	HeaderRow int
	DateCol   int
	ValueCol  int
	// DimensionCols maps normalized column name to position for every
	// column that is neither the date nor the value.
	DimensionCols map[string]int
}

// WideLayout maps period columns for pivoted tables. For KindMonthColumn
// PeriodCols is empty and MonthCol/ValueCol are set instead.
type WideLayout struct {
	HeaderRow  int
	PeriodCols map[int]time.Month
	MonthCol   int
	ValueCol   int
}

// detectScanLimit bounds how deep Detect looks for a header row. Real
// sources put it within the first handful of rows.
const detectScanLimit = 12

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeColumn canonicalizes a header cell into a dimension key:
// lower-cased, accents folded, non-alphanumeric runs collapsed to "_".
// Blank or pandas-style "Unnamed: N" headers become "col_<pos>".
func NormalizeColumn(name string, pos int) string {
	n := strings.ToLower(parse.Fold(strings.TrimSpace(name)))
	n = strings.Trim(nonAlnum.ReplaceAllString(n, "_"), "_")
	if n == "" || strings.HasPrefix(n, "unnamed") {
		return fmt.Sprintf("col_%d", pos)
	}
	return n
}

var dateColumns = map[string]bool{
	"data": true, "data_referencia": true, "date": true,
	"reference_date": true, "periodo": true, "mes_ano": true,
}

var valueColumns = map[string]bool{
	"valor": true, "value": true, "indice": true, "taxa": true,
	"valor_m2": true, "valor_toneladas": true,
}

// Detect inspects the first rows of a table and returns its layout.
func Detect(t model.RawTable) Shape {
	limit := len(t.Rows)
	if limit > detectScanLimit {
		limit = detectScanLimit
	}

	for i := 0; i < limit; i++ {
		cells := t.Rows[i].Cells

		// Wide: a header row carrying several month abbreviations.
		if cols := monthColumns(cells); len(cols) >= 3 {
			return Shape{Kind: KindWide, Wide: &WideLayout{HeaderRow: i, PeriodCols: cols}}
		}

		if parse.IsNoise(cells) {
			continue
		}

		// Month-column: a data row whose first cell is a year (or blank
		// under carry-forward) and whose second cell is a month or
		// quarter token.
		if len(cells) >= 3 {
			if _, yearOK := parse.Year(cells[0]); yearOK {
				if _, ok := parse.Month(cells[1]); ok {
					return Shape{Kind: KindMonthColumn, Wide: &WideLayout{HeaderRow: i, MonthCol: 1, ValueCol: 2}}
				}
				if _, ok := parse.Quarter(cells[1]); ok {
					return Shape{Kind: KindMonthColumn, Wide: &WideLayout{HeaderRow: i, MonthCol: 1, ValueCol: 2}}
				}
			}
		}

		// Tall: a header row naming a date column and a value column.
		if layout, ok := tallLayout(cells, i); ok {
			return Shape{Kind: KindTall, Tall: layout}
		}
	}

	return Shape{Kind: KindUnrecognized}
}

func monthColumns(cells []string) map[int]time.Month {
	cols := map[int]time.Month{}
	for i, c := range cells {
		if i == 0 {
			// First column is the group label, never a period.
			continue
		}
		if m, ok := parse.Month(c); ok {
			cols[i] = m
		}
	}
	return cols
}

func tallLayout(cells []string, rowIdx int) (*TallLayout, bool) {
	layout := &TallLayout{HeaderRow: rowIdx, DateCol: -1, ValueCol: -1, DimensionCols: map[string]int{}}
	for i, c := range cells {
		name := NormalizeColumn(c, i)
		switch {
		case dateColumns[name] && layout.DateCol == -1:
			layout.DateCol = i
		case valueColumns[name] && layout.ValueCol == -1:
			layout.ValueCol = i
		default:
			layout.DimensionCols[name] = i
		}
	}
	if layout.DateCol == -1 || layout.ValueCol == -1 {
		return nil, false
	}
	return layout, true
}
