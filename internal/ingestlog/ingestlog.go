// Package ingestlog appends one audit row per source run to the
// _ingestion_log sheet.
package ingestlog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/matheusoption-bit/construction-data-pipeline/internal/model"
	"github.com/matheusoption-bit/construction-data-pipeline/internal/sheets"
)

// TableName is the reserved sheet holding the run log.
const TableName = "_ingestion_log"

// Status values recorded per entry.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Entry is one logged source run.
type Entry struct {
	ExecutionID string
	SourceID    string
	Table       string
	Status      string
	Records     int
	Flags       int
	Message     string
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Header returns the log sheet header row.
func Header() []string {
	return []string{
		"execution_id", "source_id", "table", "status",
		"records", "flags", "message", "started_at", "finished_at",
	}
}

func (e Entry) row() []string {
	return []string{
		e.ExecutionID,
		e.SourceID,
		e.Table,
		e.Status,
		fmt.Sprintf("%d", e.Records),
		fmt.Sprintf("%d", e.Flags),
		e.Message,
		e.StartedAt.UTC().Format(model.TimestampLayout),
		e.FinishedAt.UTC().Format(model.TimestampLayout),
	}
}

// Logger appends entries for a single pipeline execution. All entries
// share one execution id so a run can be traced across sources.
type Logger struct {
	store       sheets.Store
	executionID string

	// mu serializes appends; tables ingest concurrently but the log
	// header must be seeded exactly once.
	mu sync.Mutex
}

func New(store sheets.Store) *Logger {
	return &Logger{store: store, executionID: uuid.NewString()}
}

// ExecutionID returns the id stamped on every entry of this run.
func (l *Logger) ExecutionID() string { return l.executionID }

// Record appends one entry. A missing header row is seeded first so a
// fresh spreadsheet gets a readable log sheet.
func (l *Logger) Record(ctx context.Context, e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.ExecutionID = l.executionID

	existing, err := l.store.ReadTable(ctx, TableName)
	if err != nil {
		return eris.Wrap(err, "ingestlog: read log sheet")
	}
	rows := [][]string{}
	if len(existing) == 0 {
		rows = append(rows, Header())
	}
	rows = append(rows, e.row())

	if err := l.store.AppendRows(ctx, TableName, rows); err != nil {
		return eris.Wrapf(err, "ingestlog: append entry for %s", e.SourceID)
	}
	zap.L().Info("ingestlog: recorded run",
		zap.String("execution_id", l.executionID),
		zap.String("source", e.SourceID),
		zap.String("status", e.Status),
		zap.Int("records", e.Records))
	return nil
}
