package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matheusoption-bit/construction-data-pipeline/internal/catalog"
	"github.com/matheusoption-bit/construction-data-pipeline/internal/model"
	"github.com/matheusoption-bit/construction-data-pipeline/internal/sheets"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Parse([]byte(`
sources:
  - {id: ipca, kind: bcb, table: fact_ipca, series_id: ipca, bcb_code: 433}
`))
	require.NoError(t, err)
	return cat
}

func seedStore(t *testing.T) *sheets.Memory {
	t.Helper()
	store := sheets.NewMemory()

	var records []model.CanonicalRecord
	for m := time.January; m <= time.March; m++ {
		d := time.Date(2023, m, 1, 0, 0, 0, 0, time.UTC)
		records = append(records, model.CanonicalRecord{
			Key:      model.RecordKey("ipca", d, nil),
			SeriesID: "ipca",
			RefDate:  d,
			Value:    model.Float64Ptr(float64(m)),
		})
	}
	err := store.WriteTable(context.Background(), "fact_ipca", model.RecordsToRows(records))
	require.NoError(t, err)
	return store
}

func doGet(t *testing.T, handler http.Handler, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var body map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestHealth(t *testing.T) {
	handler := New(sheets.NewMemory(), testCatalog(t)).Router()
	rec, body := doGet(t, handler, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestTables(t *testing.T) {
	handler := New(sheets.NewMemory(), testCatalog(t)).Router()
	rec, body := doGet(t, handler, "/api/tables")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"fact_ipca"}, body["tables"])
}

func TestRecords(t *testing.T) {
	handler := New(seedStore(t), testCatalog(t)).Router()

	rec, body := doGet(t, handler, "/api/tables/fact_ipca/records")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(3), body["count"])

	records := body["records"].([]any)
	first := records[0].(map[string]any)
	assert.Equal(t, "ipca", first["series_id"])
	assert.Equal(t, "2023-01-01", first["reference_date"])
	assert.Equal(t, 1.0, first["value"])
	assert.Nil(t, first["variation_mom"])
}

func TestRecords_Filters(t *testing.T) {
	handler := New(seedStore(t), testCatalog(t)).Router()

	rec, body := doGet(t, handler, "/api/tables/fact_ipca/records?from=2023-02-01&to=2023-02-28")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["count"])

	rec, _ = doGet(t, handler, "/api/tables/fact_ipca/records?from=notadate")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = doGet(t, handler, "/api/tables/fact_ipca/records?series=selic")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), body["count"])
}

func TestRecords_SeriesPath(t *testing.T) {
	handler := New(seedStore(t), testCatalog(t)).Router()

	rec, body := doGet(t, handler, "/api/tables/fact_ipca/series/ipca")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(3), body["count"])

	rec, body = doGet(t, handler, "/api/tables/fact_ipca/series/selic")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), body["count"])
}

func TestRecords_UnknownTable(t *testing.T) {
	handler := New(seedStore(t), testCatalog(t)).Router()
	rec, _ := doGet(t, handler, "/api/tables/fact_selic/records")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecords_StoreError(t *testing.T) {
	store := seedStore(t)
	store.ReadErr = eris.New("quota exceeded")
	handler := New(store, testCatalog(t)).Router()

	rec, _ := doGet(t, handler, "/api/tables/fact_ipca/records")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestFlags(t *testing.T) {
	store := seedStore(t)
	require.NoError(t, store.WriteTable(context.Background(), "quality_flags", [][]string{
		model.FlagHeader(),
		{"ipca", "2023-02-01", "HIGH_VARIATION", "MEDIUM", "2.0", "mom 1.000 exceeds 0.10"},
		{"selic", "2023-02-01", "NEGATIVE_VALUE", "HIGH", "-1.0", "negative value"},
	}))
	handler := New(store, testCatalog(t)).Router()

	rec, body := doGet(t, handler, "/api/tables/fact_ipca/flags")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["count"])

	flag := body["flags"].([]any)[0].(map[string]any)
	assert.Equal(t, "HIGH_VARIATION", flag["flag_kind"])
	assert.Equal(t, "ipca", flag["series_id"])
}

func TestRuns(t *testing.T) {
	store := seedStore(t)
	require.NoError(t, store.AppendRows(context.Background(), "_ingestion_log", [][]string{
		{"execution_id", "source_id", "table", "status", "records", "flags", "message", "started_at", "finished_at"},
		{"abc", "ipca", "fact_ipca", "ok", "3", "0", "", "2024-05-10 08:00:00", "2024-05-10 08:00:03"},
	}))
	handler := New(store, testCatalog(t)).Router()

	rec, body := doGet(t, handler, "/api/runs")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["count"])

	run := body["runs"].([]any)[0].(map[string]any)
	assert.Equal(t, "ipca", run["source_id"])
	assert.Equal(t, "ok", run["status"])
}
