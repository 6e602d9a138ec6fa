package condition

import (
	"slices"

	"github.com/ashourz/AlgoRoyale-sub002/internal/columns"
)

// movingAverage builds the shared short/long SMA crossover on close. The crossing is
// detected between lag 2 and lag 1 and acted on at the current row.
func movingAverage(name string, role Role, cross func(prevA, prevB, a, b float64) bool) func(p Params) (Condition, error) {
	return func(p Params) (Condition, error) {
		short, err := p.Int("short_window")
		if err != nil {
			return nil, err
		}

		long, err := p.Int("long_window")
		if err != nil {
			return nil, err
		}

		if short < 1 || long <= short {
			return nil, Invalid(name, "need 1 <= short_window < long_window, got %d and %d", short, long)
		}

		return &predicate{
			name:     name,
			role:     role,
			required: []string{columns.Close},
			window:   long + 2,
			params:   p,
			eval: func(v View) bool {
				return cross(
					mean(v, columns.Close, 2, short), mean(v, columns.Close, 2, long),
					mean(v, columns.Close, 1, short), mean(v, columns.Close, 1, long),
				)
			},
		}, nil
	}
}

func movingAverageCrossEntryType() Type {
	return newType(typeDef{
		name: "MovingAverageCrossEntry",
		role: RoleEntry,
		space: Space{
			IntDim("long_window", 20, 100, 5, 50, 20, 50, 100),
			IntDim("short_window", 2, 19, 1, 10, 5, 10, 15),
		},
		build: movingAverage("MovingAverageCrossEntry", RoleEntry, crossedAbove),
	})
}

func rsiOversoldEntryType() Type {
	const name = "RSIOversoldEntry"

	return newType(typeDef{
		name: name,
		role: RoleEntry,
		space: Space{FloatDim("threshold", 10, 45, 5, 30, 20, 25, 30, 35)},
		build: func(p Params) (Condition, error) {
			threshold, err := p.Float("threshold")
			if err != nil {
				return nil, err
			}

			if threshold <= 0 || threshold >= 100 {
				return nil, Invalid(name, "threshold %v outside (0, 100)", threshold)
			}

			return &predicate{
				name:     name,
				role:     RoleEntry,
				required: []string{columns.RSI14},
				window:   1,
				params:   p,
				eval: func(v View) bool {
					return v.Value(columns.RSI14, 0) < threshold
				},
			}, nil
		},
	})
}

// macdCross fires when macd crosses its signal line on the current row.
func macdCross(name string, role Role, cross func(prevA, prevB, a, b float64) bool) func(p Params) (Condition, error) {
	return func(p Params) (Condition, error) {
		return &predicate{
			name:     name,
			role:     role,
			required: []string{columns.MACD, columns.MACDSignal},
			window:   2,
			params:   p,
			eval: func(v View) bool {
				return cross(
					v.Value(columns.MACD, 1), v.Value(columns.MACDSignal, 1),
					v.Value(columns.MACD, 0), v.Value(columns.MACDSignal, 0),
				)
			},
		}, nil
	}
}

func macdCrossEntryType() Type {
	return newType(typeDef{
		name:  "MACDCrossEntry",
		role:  RoleEntry,
		space: nil,
		build: macdCross("MACDCrossEntry", RoleEntry, crossedAbove),
	})
}

func bollingerBreakoutEntryType() Type {
	const name = "BollingerBreakoutEntry"

	bands := []string{columns.BBUpper20, columns.BBLower20}

	return newType(typeDef{
		name: name,
		role: RoleEntry,
		space: Space{ChoiceDim("column", columns.BBUpper20, bands...)},
		build: func(p Params) (Condition, error) {
			band, err := p.String("column")
			if err != nil {
				return nil, err
			}

			if !slices.Contains(bands, band) {
				return nil, Invalid(name, "column %q is not a Bollinger band", band)
			}

			return &predicate{
				name:     name,
				role:     RoleEntry,
				required: []string{columns.Close, band},
				window:   2,
				params:   p,
				eval: func(v View) bool {
					return crossedAbove(
						v.Value(columns.Close, 1), v.Value(band, 1),
						v.Value(columns.Close, 0), v.Value(band, 0),
					)
				},
			}, nil
		},
	})
}

func volumeSpikeEntryType() Type {
	const name = "VolumeSpikeEntry"

	return newType(typeDef{
		name: name,
		role: RoleEntry,
		space: Space{FloatDim("multiplier", 1.5, 4, 0.25, 2, 1.5, 2, 2.5, 3)},
		build: func(p Params) (Condition, error) {
			multiplier, err := p.Float("multiplier")
			if err != nil {
				return nil, err
			}

			if multiplier <= 0 {
				return nil, Invalid(name, "multiplier must be positive, got %v", multiplier)
			}

			return &predicate{
				name:     name,
				role:     RoleEntry,
				required: []string{columns.Open, columns.Close, columns.Volume, columns.VolumeMA20},
				window:   1,
				params:   p,
				eval: func(v View) bool {
					return v.Value(columns.Volume, 0) > multiplier*v.Value(columns.VolumeMA20, 0) &&
						v.Value(columns.Close, 0) > v.Value(columns.Open, 0)
				},
			}, nil
		},
	})
}

func pullbackEntryType() Type {
	const name = "PullbackEntry"

	return newType(typeDef{
		name: name,
		role: RoleEntry,
		space: Space{
			ChoiceDim("ma_column", columns.SMA20, columns.MovingAverageColumns()...),
			FloatDim("pct", 0, 0.05, 0.005, 0.01, 0.005, 0.01, 0.02),
		},
		build: func(p Params) (Condition, error) {
			ma, err := movingAverageColumn(name, p)
			if err != nil {
				return nil, err
			}

			pct, err := p.Float("pct")
			if err != nil {
				return nil, err
			}

			if pct < 0 || pct >= 1 {
				return nil, Invalid(name, "pct %v outside [0, 1)", pct)
			}

			return &predicate{
				name:     name,
				role:     RoleEntry,
				required: []string{columns.Low, columns.Close, ma},
				window:   1,
				params:   p,
				eval: func(v View) bool {
					level := v.Value(ma, 0)

					return v.Value(columns.Low, 0) <= level*(1+pct) && v.Value(columns.Close, 0) > level
				},
			}, nil
		},
	})
}

func movingAverageColumn(name string, p Params) (string, error) {
	ma, err := p.String("ma_column")
	if err != nil {
		return "", err
	}

	if !slices.Contains(columns.MovingAverageColumns(), ma) {
		return "", Invalid(name, "ma_column %q is not a moving-average column", ma)
	}

	return ma, nil
}
