package optimizer

import (
	"fmt"
	"math"
	"slices"
)

// Distribution describes the legal values of one parameter.
type Distribution interface {
	// Contains reports whether v is a legal value.
	Contains(v any) bool
	fmt.Stringer
}

// IntDistribution is the grid low, low+step, ..., high.
type IntDistribution struct {
	Low  int
	High int
	Step int
}

// FloatDistribution is [Low, High], on a grid when Step is positive.
type FloatDistribution struct {
	Low  float64
	High float64
	Step float64
}

// CategoricalDistribution is a finite set of strings.
type CategoricalDistribution struct {
	Choices []string
}

func newIntDistribution(low, high, step int) (IntDistribution, error) {
	if step <= 0 {
		return IntDistribution{}, fmt.Errorf("int step must be positive, got %d", step)
	}

	if high < low {
		return IntDistribution{}, fmt.Errorf("int high %d below low %d", high, low)
	}

	// snap high onto the grid
	high = low + (high-low)/step*step

	return IntDistribution{Low: low, High: high, Step: step}, nil
}

func newFloatDistribution(low, high, step float64) (FloatDistribution, error) {
	if math.IsNaN(low) || math.IsNaN(high) || high < low {
		return FloatDistribution{}, fmt.Errorf("invalid float range [%v, %v]", low, high)
	}

	if step < 0 {
		return FloatDistribution{}, fmt.Errorf("float step must not be negative, got %v", step)
	}

	if step > 0 {
		high = low + math.Floor((high-low)/step+1e-9)*step
	}

	return FloatDistribution{Low: low, High: high, Step: step}, nil
}

func newCategoricalDistribution(choices []string) (CategoricalDistribution, error) {
	if len(choices) == 0 {
		return CategoricalDistribution{}, fmt.Errorf("categorical distribution needs at least one choice")
	}

	return CategoricalDistribution{Choices: slices.Clone(choices)}, nil
}

func (d IntDistribution) Contains(v any) bool {
	i, ok := v.(int)

	return ok && i >= d.Low && i <= d.High && (i-d.Low)%d.Step == 0
}

func (d IntDistribution) String() string {
	return fmt.Sprintf("int[%d,%d;%d]", d.Low, d.High, d.Step)
}

// snap rounds a continuous value onto the grid and clamps it.
func (d IntDistribution) snap(x float64) int {
	k := math.Round((x - float64(d.Low)) / float64(d.Step))
	v := d.Low + int(k)*d.Step

	return min(max(v, d.Low), d.High)
}

func (d FloatDistribution) Contains(v any) bool {
	f, ok := v.(float64)
	if !ok || f < d.Low || f > d.High {
		return false
	}

	if d.Step == 0 {
		return true
	}

	k := (f - d.Low) / d.Step

	return math.Abs(k-math.Round(k)) < 1e-6
}

func (d FloatDistribution) String() string {
	return fmt.Sprintf("float[%v,%v;%v]", d.Low, d.High, d.Step)
}

func (d FloatDistribution) snap(x float64) float64 {
	if d.Step > 0 {
		k := math.Round((x - d.Low) / d.Step)
		x = d.Low + k*d.Step
		// keep grid values free of accumulated binary noise
		x = math.Round(x*1e9) / 1e9
	}

	return math.Min(math.Max(x, d.Low), d.High)
}

func (d CategoricalDistribution) Contains(v any) bool {
	s, ok := v.(string)

	return ok && slices.Contains(d.Choices, s)
}

func (d CategoricalDistribution) String() string {
	return fmt.Sprintf("categorical%v", d.Choices)
}

func sameDistribution(a, b Distribution) bool {
	switch x := a.(type) {
	case IntDistribution:
		y, ok := b.(IntDistribution)

		return ok && x == y
	case FloatDistribution:
		y, ok := b.(FloatDistribution)

		return ok && x == y
	case CategoricalDistribution:
		y, ok := b.(CategoricalDistribution)

		return ok && slices.Equal(x.Choices, y.Choices)
	default:
		return false
	}
}
