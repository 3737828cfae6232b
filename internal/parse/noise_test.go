package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsNoise(t *testing.T) {
	assert.True(t, IsNoise(nil))
	assert.True(t, IsNoise([]string{"", "", ""}))
	assert.True(t, IsNoise([]string{"Fonte: CBIC", "", ""}))
	assert.True(t, IsNoise([]string{"Nota: valores correntes", "x"}))
	assert.True(t, IsNoise([]string{"Elaboração: Banco de Dados", ""}))
	assert.True(t, IsNoise([]string{"Unnamed: 3", "Unnamed: 4"}))

	assert.False(t, IsNoise([]string{"2024", "150.3", "160.2"}))
	assert.False(t, IsNoise([]string{"ANO", "JAN", "FEV"}))
	assert.False(t, IsNoise([]string{"2020", "", "102,5"}))
}

func TestIsNoise_EmptyFraction(t *testing.T) {
	// 9 of 10 cells empty -> 0.9 > 0.8 -> noise.
	row := []string{"100,5", "", "", "", "", "", "", "", "", ""}
	assert.True(t, IsNoise(row))

	// 7 of 10 empty -> kept.
	row = []string{"2020", "1", "2", "", "", "", "", "", "", ""}
	assert.False(t, IsNoise(row))
}
