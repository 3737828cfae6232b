package model

// RawRow is one row of untyped cells as read from a source table, together
// with its 0-based position in that table.
type RawRow struct {
	Index int      `json:"index"`
	Cells []string `json:"cells"`
}

// Cell returns the cell at column i, or "" when the row is shorter.
func (r RawRow) Cell(i int) string {
	if i < 0 || i >= len(r.Cells) {
		return ""
	}
	return r.Cells[i]
}

// RawTable is an ordered sequence of raw rows plus source identity.
// It is produced by a fetcher or the spreadsheet store and consumed once.
type RawTable struct {
	Name      string   `json:"name"`
	SourceURL string   `json:"source_url"`
	Rows      []RawRow `json:"rows"`
}

// NewRawTable builds a RawTable from plain string rows, assigning indices.
func NewRawTable(name, sourceURL string, rows [][]string) RawTable {
	t := RawTable{Name: name, SourceURL: sourceURL, Rows: make([]RawRow, 0, len(rows))}
	for i, cells := range rows {
		t.Rows = append(t.Rows, RawRow{Index: i, Cells: cells})
	}
	return t
}
