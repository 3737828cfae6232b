package sheets

import (
	"context"
	"sync"
)

// Memory is an in-process Store used by tests and the audit tooling.
type Memory struct {
	mu     sync.Mutex
	tables map[string][][]string

	// ReadErr / WriteErr, when set, are returned by the corresponding
	// call to simulate store failures.
	ReadErr  error
	WriteErr error
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{tables: map[string][][]string{}}
}

// ReadTable returns a copy of the stored rows, or (nil, nil) for an
// absent table.
func (m *Memory) ReadTable(_ context.Context, name string) ([][]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	return copyRows(m.tables[name]), nil
}

// WriteTable replaces the table's contents.
func (m *Memory) WriteTable(_ context.Context, name string, rows [][]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.tables[name] = copyRows(rows)
	return nil
}

// AppendRows adds rows to the end of the table.
func (m *Memory) AppendRows(_ context.Context, name string, rows [][]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.tables[name] = append(m.tables[name], copyRows(rows)...)
	return nil
}

func copyRows(rows [][]string) [][]string {
	if rows == nil {
		return nil
	}
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}
