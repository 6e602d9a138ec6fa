package condition

import "github.com/ashourz/AlgoRoyale-sub002/internal/columns"

func priceAboveMATrendType() Type {
	const name = "PriceAboveMATrend"

	return newType(typeDef{
		name: name,
		role: RoleTrend,
		space: Space{ChoiceDim("ma_column", columns.SMA50, columns.MovingAverageColumns()...)},
		build: func(p Params) (Condition, error) {
			ma, err := movingAverageColumn(name, p)
			if err != nil {
				return nil, err
			}

			return &predicate{
				name:     name,
				role:     RoleTrend,
				required: []string{columns.Close, ma},
				window:   1,
				params:   p,
				eval: func(v View) bool {
					return v.Value(columns.Close, 0) > v.Value(ma, 0)
				},
			}, nil
		},
	})
}

func adxTrendType() Type {
	const name = "ADXTrend"

	return newType(typeDef{
		name: name,
		role: RoleTrend,
		space: Space{FloatDim("threshold", 10, 50, 5, 25, 20, 25, 30)},
		build: func(p Params) (Condition, error) {
			threshold, err := p.Float("threshold")
			if err != nil {
				return nil, err
			}

			if threshold < 0 || threshold > 100 {
				return nil, Invalid(name, "threshold %v outside [0, 100]", threshold)
			}

			return &predicate{
				name:     name,
				role:     RoleTrend,
				required: []string{columns.ADX14},
				window:   1,
				params:   p,
				eval: func(v View) bool {
					return v.Value(columns.ADX14, 0) >= threshold
				},
			}, nil
		},
	})
}

func macdPositiveTrendType() Type {
	const name = "MACDPositiveTrend"

	return newType(typeDef{
		name: name,
		role: RoleTrend,
		space: nil,
		build: func(p Params) (Condition, error) {
			return &predicate{
				name:     name,
				role:     RoleTrend,
				required: []string{columns.MACD},
				window:   1,
				params:   p,
				eval: func(v View) bool {
					return v.Value(columns.MACD, 0) > 0
				},
			}, nil
		},
	})
}
