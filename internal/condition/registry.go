package condition

import (
	"slices"

	"github.com/ashourz/AlgoRoyale-sub002/pkg/errors"
)

// registry is the closed set of condition classes. New classes are added here.
var registry = []Type{
	movingAverageCrossEntryType(),
	rsiOversoldEntryType(),
	macdCrossEntryType(),
	bollingerBreakoutEntryType(),
	volumeSpikeEntryType(),
	pullbackEntryType(),

	movingAverageCrossExitType(),
	rsiOverboughtExitType(),
	macdCrossExitType(),
	priceBelowMAExitType(),

	priceAboveMATrendType(),
	adxTrendType(),
	macdPositiveTrendType(),

	volatilityFilterType(),
	tradingHoursFilterType(),
	minVolumeFilterType(),
}

// Types returns every registered condition type.
func Types() []Type {
	return slices.Clone(registry)
}

// TypesFor returns the registered types of one role.
func TypesFor(role Role) []Type {
	var out []Type

	for _, t := range registry {
		if t.Role == role {
			out = append(out, t)
		}
	}

	return out
}

// Lookup finds a type by class name.
func Lookup(name string) (Type, error) {
	for _, t := range registry {
		if t.Name == name {
			return t, nil
		}
	}

	return Type{}, errors.Newf(errors.ErrCodeUnknownClass, "unknown condition class %q", name)
}

// Build rehydrates a condition from its class name and parameters.
func Build(name string, params map[string]any) (Condition, error) {
	t, err := Lookup(name)
	if err != nil {
		return nil, err
	}

	return t.Build(NewParams(params))
}
