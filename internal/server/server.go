// Package server exposes merged fact tables over a small read-only
// JSON API.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/matheusoption-bit/construction-data-pipeline/internal/catalog"
	"github.com/matheusoption-bit/construction-data-pipeline/internal/ingestlog"
	"github.com/matheusoption-bit/construction-data-pipeline/internal/model"
	"github.com/matheusoption-bit/construction-data-pipeline/internal/sheets"
)

// Server serves snapshots straight from the fact store. It holds no
// state of its own; every request reads the current sheet contents.
type Server struct {
	store sheets.Store
	cat   *catalog.Catalog
}

func New(store sheets.Store, cat *catalog.Catalog) *Server {
	return &Server{store: store, cat: cat}
}

// Router builds the chi routing tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/tables", s.handleTables)
		r.Get("/tables/{table}/records", s.handleRecords)
		r.Get("/tables/{table}/series/{series}", s.handleRecords)
		r.Get("/tables/{table}/flags", s.handleFlags)
		r.Get("/runs", s.handleRuns)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTables(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tables": s.cat.Tables()})
}

// recordResponse is the wire shape of one fact record. Null metrics
// stay null rather than zero.
type recordResponse struct {
	RecordKey     string            `json:"record_key"`
	SeriesID      string            `json:"series_id"`
	ReferenceDate string            `json:"reference_date"`
	Value         *float64          `json:"value"`
	VariationMoM  *float64          `json:"variation_mom"`
	VariationYoY  *float64          `json:"variation_yoy"`
	Dimensions    map[string]string `json:"dimensions,omitempty"`
	SourceURL     string            `json:"source_url,omitempty"`
	IngestedAt    string            `json:"ingested_at,omitempty"`
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	if !s.knownTable(table) {
		writeError(w, http.StatusNotFound, "unknown table")
		return
	}

	rows, err := s.store.ReadTable(r.Context(), table)
	if err != nil {
		zap.L().Error("server: read table failed", zap.String("table", table), zap.Error(err))
		writeError(w, http.StatusBadGateway, "fact store unavailable")
		return
	}
	records, err := model.RowsToRecords(rows)
	if err != nil {
		zap.L().Error("server: snapshot unreadable", zap.String("table", table), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "snapshot unreadable")
		return
	}

	series := chi.URLParam(r, "series")
	if series == "" {
		series = r.URL.Query().Get("series")
	}
	from, ok := parseDateParam(r, "from")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid from date")
		return
	}
	to, ok := parseDateParam(r, "to")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid to date")
		return
	}

	out := make([]recordResponse, 0, len(records))
	for _, rec := range records {
		if series != "" && rec.SeriesID != series {
			continue
		}
		if !from.IsZero() && rec.RefDate.Before(from) {
			continue
		}
		if !to.IsZero() && rec.RefDate.After(to) {
			continue
		}
		out = append(out, toResponse(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"table": table, "count": len(out), "records": out})
}

// handleFlags serves the advisory quality flags raised for the series
// of one table.
func (s *Server) handleFlags(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	if !s.knownTable(table) {
		writeError(w, http.StatusNotFound, "unknown table")
		return
	}

	series := map[string]bool{}
	for _, src := range s.cat.Sources {
		if src.Table == table {
			series[src.SeriesID] = true
		}
	}

	rows, err := s.store.ReadTable(r.Context(), "quality_flags")
	if err != nil {
		zap.L().Error("server: read flags failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "fact store unavailable")
		return
	}

	flags := []map[string]string{}
	if len(rows) > 1 {
		header := rows[0]
		for _, row := range rows[1:] {
			if len(row) == 0 || !series[row[0]] {
				continue
			}
			flag := map[string]string{}
			for i, col := range header {
				if i < len(row) {
					flag[col] = row[i]
				}
			}
			flags = append(flags, flag)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"table": table, "count": len(flags), "flags": flags})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	rows, err := s.store.ReadTable(r.Context(), ingestlog.TableName)
	if err != nil {
		zap.L().Error("server: read ingestion log failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "fact store unavailable")
		return
	}

	runs := []map[string]string{}
	if len(rows) > 1 {
		header := rows[0]
		for _, row := range rows[1:] {
			entry := map[string]string{}
			for i, col := range header {
				if i < len(row) {
					entry[col] = row[i]
				}
			}
			runs = append(runs, entry)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(runs), "runs": runs})
}

func (s *Server) knownTable(table string) bool {
	for _, t := range s.cat.Tables() {
		if t == table {
			return true
		}
	}
	return false
}

func toResponse(r model.CanonicalRecord) recordResponse {
	resp := recordResponse{
		RecordKey:     r.Key,
		SeriesID:      r.SeriesID,
		ReferenceDate: r.RefDate.Format(model.DateLayout),
		Value:         r.Value,
		VariationMoM:  r.VariationMoM,
		VariationYoY:  r.VariationYoY,
		Dimensions:    r.Dimensions,
		SourceURL:     r.SourceURL,
	}
	if !r.IngestedAt.IsZero() {
		resp.IngestedAt = r.IngestedAt.Format(model.TimestampLayout)
	}
	return resp
}

func parseDateParam(r *http.Request, name string) (time.Time, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(model.DateLayout, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
