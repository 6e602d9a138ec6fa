package condition

import "github.com/ashourz/AlgoRoyale-sub002/internal/columns"

func volatilityFilterType() Type {
	const name = "VolatilityFilter"

	return newType(typeDef{
		name: name,
		role: RoleFilter,
		space: Space{FloatDim("max_volatility", 0.005, 0.1, 0.005, 0.02, 0.01, 0.02, 0.03, 0.05)},
		build: func(p Params) (Condition, error) {
			limit, err := p.Float("max_volatility")
			if err != nil {
				return nil, err
			}

			if limit <= 0 {
				return nil, Invalid(name, "max_volatility must be positive, got %v", limit)
			}

			return &predicate{
				name:     name,
				role:     RoleFilter,
				required: []string{columns.Volatility20},
				window:   1,
				params:   p,
				eval: func(v View) bool {
					return v.Value(columns.Volatility20, 0) <= limit
				},
			}, nil
		},
	})
}

// tradingHoursFilterType passes rows whose UTC hour is in [start_hour, end_hour).
func tradingHoursFilterType() Type {
	const name = "TradingHoursFilter"

	return newType(typeDef{
		name: name,
		role: RoleFilter,
		space: Space{
			IntDim("end_hour", 16, 24, 1, 21, 20, 21),
			IntDim("start_hour", 9, 15, 1, 13, 13, 14),
		},
		build: func(p Params) (Condition, error) {
			start, err := p.Int("start_hour")
			if err != nil {
				return nil, err
			}

			end, err := p.Int("end_hour")
			if err != nil {
				return nil, err
			}

			if start < 0 || end > 24 || start >= end {
				return nil, Invalid(name, "need 0 <= start_hour < end_hour <= 24, got %d and %d", start, end)
			}

			return &predicate{
				name:     name,
				role:     RoleFilter,
				required: []string{columns.Hour},
				window:   1,
				params:   p,
				eval: func(v View) bool {
					hour := v.Value(columns.Hour, 0)

					return hour >= float64(start) && hour < float64(end)
				},
			}, nil
		},
	})
}

func minVolumeFilterType() Type {
	const name = "MinVolumeFilter"

	return newType(typeDef{
		name: name,
		role: RoleFilter,
		space: Space{FloatDim("min_ratio", 0.1, 1.5, 0.05, 0.5, 0.5, 0.75, 1)},
		build: func(p Params) (Condition, error) {
			ratio, err := p.Float("min_ratio")
			if err != nil {
				return nil, err
			}

			if ratio < 0 {
				return nil, Invalid(name, "min_ratio must not be negative, got %v", ratio)
			}

			return &predicate{
				name:     name,
				role:     RoleFilter,
				required: []string{columns.Volume, columns.VolumeMA20},
				window:   1,
				params:   p,
				eval: func(v View) bool {
					return v.Value(columns.Volume, 0) >= ratio*v.Value(columns.VolumeMA20, 0)
				},
			}, nil
		},
	})
}
