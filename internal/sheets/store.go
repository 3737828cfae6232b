// Package sheets defines the spreadsheet store contract the pipeline
// persists through, plus the Google Sheets implementation and an
// in-memory store for tests.
package sheets

import "context"

// Store is the remote key/value-of-tables service the pipeline reads and
// writes snapshots through. Cells are text on the wire; all typing
// happens in this module's callers.
//
// ReadTable returns the full contents of a table, header row first. A
// missing or empty table returns (nil, nil): absence is a valid state,
// not an error. WriteTable replaces the table's entire contents.
// AppendRows adds rows without clearing.
//
// Calls may be rate limited remotely and a single logical write may take
// multiple seconds (the store chunks large writes to respect quotas).
// Quota and transport failures are returned as-is; retry policy belongs
// to the caller.
type Store interface {
	ReadTable(ctx context.Context, name string) ([][]string, error)
	WriteTable(ctx context.Context, name string, rows [][]string) error
	AppendRows(ctx context.Context, name string, rows [][]string) error
}
