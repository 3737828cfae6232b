package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matheusoption-bit/construction-data-pipeline/internal/model"
)

func TestNormalizeColumn(t *testing.T) {
	assert.Equal(t, "data_referencia", NormalizeColumn("Data Referência", 0))
	assert.Equal(t, "valor_m2", NormalizeColumn("Valor (m²)", 1))
	assert.Equal(t, "col_3", NormalizeColumn("Unnamed: 3", 3))
	assert.Equal(t, "col_2", NormalizeColumn("", 2))
	assert.Equal(t, "taxa", NormalizeColumn("  TAXA  ", 0))
}

func TestDetect_Wide(t *testing.T) {
	table := model.NewRawTable("cub_on_global", "", [][]string{
		{"Fonte: CBIC", "", "", ""},
		{"ANO", "JAN", "FEV", "MAR"},
		{"2023", "1200", "1215", "0"},
	})
	shape := Detect(table)
	require.Equal(t, KindWide, shape.Kind)
	require.NotNil(t, shape.Wide)
	assert.Equal(t, 1, shape.Wide.HeaderRow)
	assert.Equal(t, map[int]time.Month{1: time.January, 2: time.February, 3: time.March}, shape.Wide.PeriodCols)
}

func TestDetect_MonthColumn(t *testing.T) {
	table := model.NewRawTable("ind_taxa_selic", "", [][]string{
		{"2020", "JAN", "100"},
		{"", "FEV", "102"},
	})
	shape := Detect(table)
	require.Equal(t, KindMonthColumn, shape.Kind)
	require.NotNil(t, shape.Wide)
	assert.Equal(t, 0, shape.Wide.HeaderRow)
	assert.Equal(t, 1, shape.Wide.MonthCol)
	assert.Equal(t, 2, shape.Wide.ValueCol)
}

func TestDetect_Tall(t *testing.T) {
	table := model.NewRawTable("bcb_ipca", "", [][]string{
		{"data_referencia", "valor", "regiao"},
		{"2023-01-01", "100,5", "SP"},
	})
	shape := Detect(table)
	require.Equal(t, KindTall, shape.Kind)
	require.NotNil(t, shape.Tall)
	assert.Equal(t, 0, shape.Tall.DateCol)
	assert.Equal(t, 1, shape.Tall.ValueCol)
	assert.Equal(t, map[string]int{"regiao": 2}, shape.Tall.DimensionCols)
}

func TestDetect_Unrecognized(t *testing.T) {
	table := model.NewRawTable("junk", "", [][]string{
		{"Fonte: CBIC"},
		{"texto livre", "sem estrutura"},
	})
	assert.Equal(t, KindUnrecognized, Detect(table).Kind)

	assert.Equal(t, KindUnrecognized, Detect(model.RawTable{Name: "empty"}).Kind)
}
