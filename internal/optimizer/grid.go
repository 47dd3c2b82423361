// Package optimizer searches strategy parameter grids by running backtests
// and ranking them by combined score.
package optimizer

import (
	"errors"
	"fmt"
	"math"

	"strategy-lab/internal/domain"
)

// Mode selects how combinations are generated.
type Mode string

// Generation modes.
const (
	ModeFull         Mode = "full"
	ModeReduced      Mode = "reduced"
	ModeNeighborhood Mode = "neighborhood"
)

// ErrUnknownMode is returned for a mode other than full, reduced or neighborhood.
var ErrUnknownMode = errors.New("unknown optimization mode")

// ParseMode parses a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeFull, ModeReduced, ModeNeighborhood:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Range is an inclusive arithmetic range of parameter values.
type Range struct {
	Min  float64 `yaml:"min"`
	Max  float64 `yaml:"max"`
	Step float64 `yaml:"step"`
}

// Values expands the range. A non-positive step yields Min only.
func (r Range) Values() []float64 {
	if r.Step <= 0 || r.Max < r.Min {
		return []float64{r.Min}
	}
	n := int(math.Floor((r.Max-r.Min)/r.Step+1e-9)) + 1
	out := make([]float64, n)
	for i := range out {
		out[i] = roundTo(r.Min+float64(i)*r.Step)
	}
	return out
}

// Grid is the search space of the cartesian modes.
type Grid struct {
	MaxTradePercent Range `yaml:"max_trade_percent"`
	StopLossPercent Range `yaml:"stop_loss_percent"`
	CooldownMinutes Range `yaml:"cooldown_minutes"`
	RSIOversold     Range `yaml:"rsi_oversold"`
	RSIOverbought   Range `yaml:"rsi_overbought"`
	WeightVariants  int   `yaml:"weight_variants"` // 0 = all variants
}

// FullGrid returns the exhaustive search space.
func FullGrid() Grid {
	return Grid{
		MaxTradePercent: Range{Min: 0.05, Max: 0.25, Step: 0.05},
		StopLossPercent: Range{Min: 0.02, Max: 0.10, Step: 0.02},
		CooldownMinutes: Range{Min: 0, Max: 240, Step: 60},
		RSIOversold:     Range{Min: 20, Max: 35, Step: 5},
		RSIOverbought:   Range{Min: 65, Max: 80, Step: 5},
	}
}

// ReducedGrid returns the coarse search space used for time-bounded runs.
func ReducedGrid() Grid {
	return Grid{
		MaxTradePercent: Range{Min: 0.05, Max: 0.25, Step: 0.10},
		StopLossPercent: Range{Min: 0.03, Max: 0.09, Step: 0.03},
		CooldownMinutes: Range{Min: 60, Max: 240, Step: 90},
		RSIOversold:     Range{Min: 25, Max: 35, Step: 10},
		RSIOverbought:   Range{Min: 65, Max: 75, Step: 10},
		WeightVariants:  2,
	}
}

// NeighborhoodSteps is the unit perturbation of each tunable parameter.
var NeighborhoodSteps = struct {
	MaxTradePercent float64
	StopLossPercent float64
	CooldownMinutes float64
	RSIOversold     float64
	RSIOverbought   float64
}{
	MaxTradePercent: 0.02,
	StopLossPercent: 0.01,
	CooldownMinutes: 15,
	RSIOversold:     5,
	RSIOverbought:   5,
}

// Generate returns the combinations of a mode in generation order.
// Combinations that fail StrategyParams.Validate are dropped.
func Generate(mode Mode, c Constraints) ([]domain.StrategyParams, error) {
	switch mode {
	case ModeFull:
		g := FullGrid()
		if c.Grid != nil {
			g = *c.Grid
		}
		return cartesian(g, c.Backtest.Pairs), nil
	case ModeReduced:
		g := ReducedGrid()
		if c.Grid != nil {
			g = *c.Grid
		}
		return cartesian(g, c.Backtest.Pairs), nil
	case ModeNeighborhood:
		if c.Center == nil {
			return nil, &domain.InvalidParameterError{Field: "center", Reason: "required for neighborhood mode"}
		}
		return Neighborhood(*c.Center, c.Multiplier), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
}

func cartesian(g Grid, pairs []string) []domain.StrategyParams {
	variants := WeightVariants(pairs)
	if g.WeightVariants > 0 && g.WeightVariants < len(variants) {
		variants = variants[:g.WeightVariants]
	}

	var out []domain.StrategyParams
	for _, trade := range g.MaxTradePercent.Values() {
		for _, stop := range g.StopLossPercent.Values() {
			for _, cooldown := range g.CooldownMinutes.Values() {
				for _, oversold := range g.RSIOversold.Values() {
					for _, overbought := range g.RSIOverbought.Values() {
						for _, w := range variants {
							p := domain.StrategyParams{
								MaxTradePercent:        trade,
								StopLossPercent:        stop,
								CooldownMinutes:        int(math.Round(cooldown)),
								RSIOversoldThreshold:   oversold,
								RSIOverboughtThreshold: overbought,
								BaseWeights:            copyWeights(w),
							}
							if p.Validate() == nil {
								out = append(out, p)
							}
						}
					}
				}
			}
		}
	}
	return out
}

// WeightVariants returns equal weights first, then one variant per pair with
// that pair at 50% and the remainder split equally among the others.
func WeightVariants(pairs []string) []map[string]float64 {
	if len(pairs) == 0 {
		return nil
	}

	equal := make(map[string]float64, len(pairs))
	for _, p := range pairs {
		equal[p] = 1 / float64(len(pairs))
	}
	variants := []map[string]float64{equal}
	if len(pairs) == 1 {
		return variants
	}

	rest := 0.5 / float64(len(pairs)-1)
	for _, heavy := range pairs {
		w := make(map[string]float64, len(pairs))
		for _, p := range pairs {
			w[p] = rest
		}
		w[heavy] = 0.5
		variants = append(variants, w)
	}
	return variants
}

// Neighborhood returns every {-1, 0, +1} step perturbation of the five
// tunable parameters around center, steps scaled by multiplier (0 means 1).
// Base weights are held fixed. Values are clamped to valid ranges, invalid
// combinations dropped and duplicates removed.
func Neighborhood(center domain.StrategyParams, multiplier float64) []domain.StrategyParams {
	if multiplier <= 0 {
		multiplier = 1
	}
	s := NeighborhoodSteps
	deltas := []float64{-1, 0, 1}

	var out []domain.StrategyParams
	for _, d1 := range deltas {
		for _, d2 := range deltas {
			for _, d3 := range deltas {
				for _, d4 := range deltas {
					for _, d5 := range deltas {
						p := center.Clone()
						p.MaxTradePercent = clamp(roundTo(center.MaxTradePercent+d1*s.MaxTradePercent*multiplier), 0, 1)
						p.StopLossPercent = clamp(roundTo(center.StopLossPercent+d2*s.StopLossPercent*multiplier), 0, 1)
						p.CooldownMinutes = int(math.Max(0, math.Round(float64(center.CooldownMinutes)+d3*s.CooldownMinutes*multiplier)))
						p.RSIOversoldThreshold = clamp(roundTo(center.RSIOversoldThreshold+d4*s.RSIOversold*multiplier), 0, 100)
						p.RSIOverboughtThreshold = clamp(roundTo(center.RSIOverboughtThreshold+d5*s.RSIOverbought*multiplier), 0, 100)
						if p.Validate() != nil || containsParams(out, p) {
							continue
						}
						out = append(out, p)
					}
				}
			}
		}
	}
	return out
}

func containsParams(list []domain.StrategyParams, p domain.StrategyParams) bool {
	for _, q := range list {
		if q.Equal(p) {
			return true
		}
	}
	return false
}

func copyWeights(w map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// roundTo removes accumulated float error from stepped values.
func roundTo(v float64) float64 {
	return math.Round(v*1e9) / 1e9
}
