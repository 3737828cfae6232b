package parse

import "strings"

// noisePrefixes mark boilerplate rows by their first cell: footnote
// markers, source/methodology captions, and repeated header text carried
// over from the visual layout.
var noisePrefixes = []string{
	"fonte:",
	"fontes:",
	"elaboracao:",
	"nota:",
	"notas:",
	"observacao:",
	"obs:",
	"obs.:",
	"unnamed",
	"nbr 12",
	"banco de dados",
	"variacoes percentuais",
	"nova metodologia",
	"precos correntes",
	"dado nao disponivel",
	"nan",
	"nat",
	"caderneta_de_poupanca",
	"taxa_referencial",
	"indicadores_do_pib",
	"valor_adicionado",
	"custo_unitario",
}

// emptyFractionLimit drops rows that are mostly blank. The bias is toward
// dropping: the merge is idempotent, so re-running on cleaner input is
// harmless, while a kept boilerplate row would mint a garbage record key.
const emptyFractionLimit = 0.8

// IsNoise reports whether a row carries no data: all cells empty, a
// boilerplate first cell, or more than 80% empty cells.
func IsNoise(cells []string) bool {
	if len(cells) == 0 {
		return true
	}

	empty := 0
	for _, c := range cells {
		if strings.TrimSpace(c) == "" {
			empty++
		}
	}
	if empty == len(cells) {
		return true
	}

	first := strings.ToLower(Fold(strings.TrimSpace(cells[0])))
	for _, p := range noisePrefixes {
		if strings.HasPrefix(first, p) {
			return true
		}
	}

	return float64(empty)/float64(len(cells)) > emptyFractionLimit
}
