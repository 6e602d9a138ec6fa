package mocks

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataGenerator_Generate(t *testing.T) {
	gen := NewDataGenerator(42) // Fixed seed for reproducibility
	config := DefaultConfig()
	config.Count = 100

	bars := gen.Generate(config)
	require.Len(t, bars, 100)

	for i, b := range bars {
		assert.Equal(t, config.Symbol, b.Symbol)
		assert.NoError(t, b.Validate(), "bar %d", i)
		assert.GreaterOrEqual(t, b.High, b.Low)
		assert.Greater(t, b.Low, 0.0)

		if i > 0 {
			assert.Equal(t, config.Interval, b.Time.Sub(bars[i-1].Time))
		}
	}
}

func TestDataGenerator_Reproducibility(t *testing.T) {
	config := DefaultConfig()
	config.Count = 50

	a := NewDataGenerator(7).Generate(config)
	b := NewDataGenerator(7).Generate(config)
	c := NewDataGenerator(8).Generate(config)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestBarsFromClosesAndPages(t *testing.T) {
	bars := BarsFromCloses("X", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), []float64{1, 2, 3, 4, 5})
	require.Len(t, bars, 5)
	assert.Equal(t, 3.0, bars[2].High)

	f := NewDataGenerator(3).GenerateFrame(DefaultConfig())
	pages := Pages(f, 120)
	require.Len(t, pages, 5)
	assert.Equal(t, 20, pages[4].Len())
}
