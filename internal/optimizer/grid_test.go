package optimizer

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strategy-lab/internal/domain"
)

var testPairs = []string{"BTC-EUR", "ETH-EUR", "SOL-EUR"}

func testConstraints() Constraints {
	cfg := domain.DefaultBacktestConfig(testPairs)
	cfg.EndTime = 1_699_999_200
	return Constraints{Backtest: cfg}
}

func centerParams() domain.StrategyParams {
	return domain.StrategyParams{
		MaxTradePercent:        0.10,
		StopLossPercent:        0.05,
		CooldownMinutes:        60,
		RSIOversoldThreshold:   30,
		RSIOverboughtThreshold: 70,
		BaseWeights:            map[string]float64{"BTC-EUR": 0.5, "ETH-EUR": 0.3, "SOL-EUR": 0.2},
	}
}

func assertUnique(t *testing.T, combos []domain.StrategyParams) {
	t.Helper()
	for i := range combos {
		for j := i + 1; j < len(combos); j++ {
			if combos[i].Equal(combos[j]) {
				t.Fatalf("combinations %d and %d are equal: %+v", i, j, combos[i])
			}
		}
	}
}

func TestRange_Values(t *testing.T) {
	assert.Equal(t, []float64{0.05, 0.1, 0.15, 0.2, 0.25}, Range{Min: 0.05, Max: 0.25, Step: 0.05}.Values())
	assert.Equal(t, []float64{0.03, 0.06, 0.09}, Range{Min: 0.03, Max: 0.09, Step: 0.03}.Values())
	assert.Equal(t, []float64{7}, Range{Min: 7, Max: 10, Step: 0}.Values())
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("reduced")
	require.NoError(t, err)
	assert.Equal(t, ModeReduced, m)

	_, err = ParseMode("random")
	assert.True(t, errors.Is(err, ErrUnknownMode))

	_, err = Generate(Mode("random"), testConstraints())
	assert.True(t, errors.Is(err, ErrUnknownMode))
}

func TestGenerate_Reduced(t *testing.T) {
	combos, err := Generate(ModeReduced, testConstraints())
	require.NoError(t, err)

	// 3 trade x 3 stop x 3 cooldown x 2 oversold x 2 overbought x 2 weight variants
	assert.Len(t, combos, 216)
	for _, p := range combos {
		require.NoError(t, p.Validate())
	}
	assert.Equal(t, 0.05, combos[0].MaxTradePercent)
	assert.InDelta(t, 1.0/3, combos[0].BaseWeights["BTC-EUR"], 1e-12)
	assert.Equal(t, 0.5, combos[1].BaseWeights["BTC-EUR"])
}

func TestGenerate_Full(t *testing.T) {
	combos, err := Generate(ModeFull, testConstraints())
	require.NoError(t, err)

	// 5 x 5 x 5 x 4 x 4 grid points x (1 equal + 3 heavy) weight variants
	assert.Len(t, combos, 8000)
}

func TestGenerate_GridOverride(t *testing.T) {
	c := testConstraints()
	c.Grid = &Grid{
		MaxTradePercent: Range{Min: 0.1, Max: 0.3, Step: 0.1},
		StopLossPercent: Range{Min: 0.05},
		CooldownMinutes: Range{Min: 60},
		RSIOversold:     Range{Min: 30},
		RSIOverbought:   Range{Min: 70},
		WeightVariants:  1,
	}
	combos, err := Generate(ModeReduced, c)
	require.NoError(t, err)
	require.Len(t, combos, 3)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, []float64{combos[0].MaxTradePercent, combos[1].MaxTradePercent, combos[2].MaxTradePercent})
}

func TestWeightVariants(t *testing.T) {
	variants := WeightVariants(testPairs)
	require.Len(t, variants, 4)

	for _, w := range variants {
		sum := 0.0
		for _, v := range w {
			assert.GreaterOrEqual(t, v, 0.0)
			sum += v
		}
		assert.InDelta(t, 1.0, sum, 1e-9)
	}
	assert.Equal(t, 0.5, variants[1]["BTC-EUR"])
	assert.Equal(t, 0.25, variants[1]["ETH-EUR"])
	assert.Equal(t, 0.5, variants[3]["SOL-EUR"])

	single := WeightVariants([]string{"BTC-EUR"})
	require.Len(t, single, 1)
	assert.Equal(t, 1.0, single[0]["BTC-EUR"])
}

func TestNeighborhood_Interior(t *testing.T) {
	center := centerParams()
	combos := Neighborhood(center, 1)

	require.Len(t, combos, 243)
	assertUnique(t, combos)
	for _, p := range combos {
		require.NoError(t, p.Validate())
		assert.Equal(t, center.BaseWeights, p.BaseWeights)
	}

	found := false
	for _, p := range combos {
		if p.Equal(center) {
			found = true
		}
	}
	assert.True(t, found, "center should be part of its neighborhood")
}

func TestNeighborhood_Multiplier(t *testing.T) {
	combos := Neighborhood(centerParams(), 2)
	require.Len(t, combos, 243)

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, p := range combos {
		lo = math.Min(lo, p.MaxTradePercent)
		hi = math.Max(hi, p.MaxTradePercent)
	}
	assert.Equal(t, 0.06, lo)
	assert.Equal(t, 0.14, hi)
}

func TestNeighborhood_ClampsAndDedupes(t *testing.T) {
	center := centerParams()
	center.StopLossPercent = 0
	center.CooldownMinutes = 0

	combos := Neighborhood(center, 1)

	// stop loss {0, 0.01} and cooldown {0, 15} after clamping
	assert.Len(t, combos, 3*2*2*3*3)
	assertUnique(t, combos)
	for _, p := range combos {
		assert.GreaterOrEqual(t, p.StopLossPercent, 0.0)
		assert.GreaterOrEqual(t, p.CooldownMinutes, 0)
	}
}

func TestNeighborhood_DropsInvalidThresholds(t *testing.T) {
	center := centerParams()
	center.RSIOversoldThreshold = 50
	center.RSIOverboughtThreshold = 55

	combos := Neighborhood(center, 1)

	// 3 of the 9 oversold/overbought pairs have oversold >= overbought
	assert.Len(t, combos, 3*3*3*6)
	for _, p := range combos {
		assert.Less(t, p.RSIOversoldThreshold, p.RSIOverboughtThreshold)
	}
}

func TestGenerate_NeighborhoodRequiresCenter(t *testing.T) {
	_, err := Generate(ModeNeighborhood, testConstraints())

	var invalid *domain.InvalidParameterError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "center", invalid.Field)
}

func TestSample(t *testing.T) {
	combos, err := Generate(ModeReduced, testConstraints())
	require.NoError(t, err)

	a := Sample(combos, 20, rand.New(rand.NewSource(7)))
	b := Sample(combos, 20, rand.New(rand.NewSource(7)))
	require.Len(t, a, 20)
	assertUnique(t, a)
	for i := range a {
		assert.True(t, a[i].Equal(b[i]), "same seed must give same sample")
	}

	assert.Len(t, Sample(combos, 0, rand.New(rand.NewSource(1))), len(combos))
	assert.Len(t, Sample(combos[:5], 20, rand.New(rand.NewSource(1))), 5)
	assert.Equal(t, 0.05, combos[0].MaxTradePercent, "input must not be reordered")
}
