package condition

import "github.com/ashourz/AlgoRoyale-sub002/internal/columns"

func movingAverageCrossExitType() Type {
	return newType(typeDef{
		name: "MovingAverageCrossExit",
		role: RoleExit,
		space: Space{
			IntDim("long_window", 20, 100, 5, 50, 20, 50, 100),
			IntDim("short_window", 2, 19, 1, 10, 5, 10, 15),
		},
		build: movingAverage("MovingAverageCrossExit", RoleExit, crossedBelow),
	})
}

func rsiOverboughtExitType() Type {
	const name = "RSIOverboughtExit"

	return newType(typeDef{
		name: name,
		role: RoleExit,
		space: Space{FloatDim("threshold", 55, 90, 5, 70, 65, 70, 75, 80)},
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
				role:     RoleExit,
				required: []string{columns.RSI14},
				window:   1,
				params:   p,
				eval: func(v View) bool {
					return v.Value(columns.RSI14, 0) > threshold
				},
			}, nil
		},
	})
}

func macdCrossExitType() Type {
	return newType(typeDef{
		name:  "MACDCrossExit",
		role:  RoleExit,
		space: nil,
		build: macdCross("MACDCrossExit", RoleExit, crossedBelow),
	})
}

func priceBelowMAExitType() Type {
	const name = "PriceBelowMAExit"

	return newType(typeDef{
		name: name,
		role: RoleExit,
		space: Space{ChoiceDim("ma_column", columns.SMA20, columns.MovingAverageColumns()...)},
		build: func(p Params) (Condition, error) {
			ma, err := movingAverageColumn(name, p)
			if err != nil {
				return nil, err
			}

			return &predicate{
				name:     name,
				role:     RoleExit,
				required: []string{columns.Close, ma},
				window:   1,
				params:   p,
				eval: func(v View) bool {
					return v.Value(columns.Close, 0) < v.Value(ma, 0)
				},
			}, nil
		},
	})
}
