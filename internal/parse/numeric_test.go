package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumeric_BrazilianFormats(t *testing.T) {
	v := Numeric("1.234,56")
	require.NotNil(t, v)
	assert.Equal(t, 1234.56, *v)

	v = Numeric("-50,5")
	require.NotNil(t, v)
	assert.Equal(t, -50.5, *v)

	v = Numeric("R$ 2.500,00")
	require.NotNil(t, v)
	assert.Equal(t, 2500.0, *v)

	v = Numeric("12,5%")
	require.NotNil(t, v)
	assert.Equal(t, 12.5, *v)

	v = Numeric("2024")
	require.NotNil(t, v)
	assert.Equal(t, 2024.0, *v)
}

func TestNumeric_Sentinels(t *testing.T) {
	for _, s := range []string{"...", "-", "", "nan", "None", "N/D", "(...)", "  "} {
		assert.Nil(t, Numeric(s), "sentinel %q", s)
	}
}

func TestNumeric_Garbage(t *testing.T) {
	assert.Nil(t, Numeric("abc"))
	assert.Nil(t, Numeric("12x"))
	assert.Nil(t, Numeric("1,2,3"))
}

func TestNumeric_ZeroIsParsed(t *testing.T) {
	// Zero parses; treating it as absent is the wide normalizer's call,
	// not the parser's.
	v := Numeric("0")
	require.NotNil(t, v)
	assert.Equal(t, 0.0, *v)
}
