// Package parse holds the locale-aware cell parsers and the row noise
// classifier. Everything here is pure and total: unparseable input yields
// a nil/zero result, never an error. Callers treat nil as "skip this
// value", not as a failure.
package parse

import (
	"strconv"
	"strings"
)

// sentinels are the source vocabulary for "known gap". They map to nil,
// which is distinct from a parsed zero.
var sentinels = map[string]bool{
	"...":   true,
	"-":     true,
	"":      true,
	"nan":   true,
	"none":  true,
	"n/d":   true,
	"(...)": true,
}

// Numeric interprets a decimal-comma, thousands-dot cell ("1.234,56" →
// 1234.56). Currency and percent markers are stripped. Sentinels and any
// other unparseable text yield nil.
func Numeric(text string) *float64 {
	s := strings.TrimSpace(text)
	if sentinels[strings.ToLower(s)] {
		return nil
	}

	s = strings.NewReplacer("R$", "", "%", "", " ", "", " ", "").Replace(s)
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
