package optimizer

import (
	"math"
	"math/rand"
	"slices"
)

// tpeSampler samples multi-objective studies: observations are split by non-dominated
// rank and each parameter is drawn to maximise l(x)/g(x).
type tpeSampler struct {
	rng        *rand.Rand
	startup    int
	gamma      float64
	candidates int
}

func newTPESampler(seed int64, startup int, gamma float64, candidates int) *tpeSampler {
	return &tpeSampler{
		rng:        rand.New(rand.NewSource(seed)),
		startup:    startup,
		gamma:      gamma,
		candidates: candidates,
	}
}

// sample draws a value for one parameter. Until startup trials have finished, or while
// fewer than two trials have observed the parameter, values are uniform. Afterwards the
// observations are split into a good group (the best gamma fraction) and the rest, and
// the candidate maximising l(x)/g(x) is returned.
func (t *tpeSampler) sample(s *Study, name string, dist Distribution) any {
	trials := s.Trials()

	var observed []FrozenTrial

	for _, tr := range trials {
		if _, ok := tr.Params[name]; ok && sameDistribution(tr.Distributions[name], dist) {
			observed = append(observed, tr)
		}
	}

	if len(trials) < t.startup || len(observed) < 2 {
		return t.uniform(dist)
	}

	below, above := t.split(s, observed)

	switch d := dist.(type) {
	case IntDistribution:
		half := float64(d.Step) / 2
		x := t.numeric(paramFloats(below, name), paramFloats(above, name), float64(d.Low)-half, float64(d.High)+half)

		return d.snap(x)
	case FloatDistribution:
		low, high := d.Low, d.High
		if d.Step > 0 {
			low -= d.Step / 2
			high += d.Step / 2
		}

		return d.snap(t.numeric(paramFloats(below, name), paramFloats(above, name), low, high))
	case CategoricalDistribution:
		return t.categorical(d, paramStrings(below, name), paramStrings(above, name))
	default:
		return t.uniform(dist)
	}
}

func (t *tpeSampler) uniform(dist Distribution) any {
	switch d := dist.(type) {
	case IntDistribution:
		n := (d.High-d.Low)/d.Step + 1

		return d.Low + t.rng.Intn(n)*d.Step
	case FloatDistribution:
		if d.Step > 0 {
			n := int(math.Floor((d.High-d.Low)/d.Step+1e-9)) + 1

			return d.snap(d.Low + float64(t.rng.Intn(n))*d.Step)
		}

		return d.Low + t.rng.Float64()*(d.High-d.Low)
	case CategoricalDistribution:
		return d.Choices[t.rng.Intn(len(d.Choices))]
	default:
		return nil
	}
}

// split orders observations best first and cuts after ceil(gamma*n).
func (t *tpeSampler) split(s *Study, observed []FrozenTrial) (below, above []FrozenTrial) {
	losses := s.losses(observed)
	order := make([]int, len(observed))

	for i := range order {
		order[i] = i
	}

	if s.MultiObjective() {
		ranks := nonDominatedRanks(losses)
		slices.SortStableFunc(order, func(a, b int) int {
			return ranks[a] - ranks[b]
		})
	} else {
		slices.SortStableFunc(order, func(a, b int) int {
			switch {
			case losses[a][0] < losses[b][0]:
				return -1
			case losses[a][0] > losses[b][0]:
				return 1
			default:
				return 0
			}
		})
	}

	nBelow := int(math.Ceil(t.gamma * float64(len(observed))))
	nBelow = min(max(nBelow, 1), len(observed)-1)

	for i, idx := range order {
		if i < nBelow {
			below = append(below, observed[idx])
		} else {
			above = append(above, observed[idx])
		}
	}

	return below, above
}

func (t *tpeSampler) numeric(below, above []float64, low, high float64) float64 {
	if high <= low {
		return low
	}

	l := newParzen(below, low, high)
	g := newParzen(above, low, high)

	best := math.NaN()
	bestScore := math.Inf(-1)

	for range t.candidates {
		x := l.sample(t.rng)

		score := l.logPDF(x) - g.logPDF(x)
		if math.IsNaN(best) || score > bestScore {
			best = x
			bestScore = score
		}
	}

	return best
}

func (t *tpeSampler) categorical(d CategoricalDistribution, below, above []string) string {
	l := categoricalWeights(d.Choices, below)
	g := categoricalWeights(d.Choices, above)

	best := -1
	bestScore := math.Inf(-1)

	for range t.candidates {
		i := sampleIndex(t.rng, l)

		score := math.Log(l[i]) - math.Log(g[i])
		if best < 0 || score > bestScore {
			best = i
			bestScore = score
		}
	}

	return d.Choices[best]
}

// categoricalWeights are observation counts with one pseudo-count per choice.
func categoricalWeights(choices, observed []string) []float64 {
	weights := make([]float64, len(choices))
	total := 0.0

	for i, c := range choices {
		weights[i] = 1
		for _, o := range observed {
			if o == c {
				weights[i]++
			}
		}

		total += weights[i]
	}

	for i := range weights {
		weights[i] /= total
	}

	return weights
}

func sampleIndex(rng *rand.Rand, weights []float64) int {
	u := rng.Float64()
	acc := 0.0

	for i, w := range weights {
		acc += w
		if u < acc {
			return i
		}
	}

	return len(weights) - 1
}

func paramFloats(trials []FrozenTrial, name string) []float64 {
	out := make([]float64, 0, len(trials))

	for _, tr := range trials {
		switch v := tr.Params[name].(type) {
		case int:
			out = append(out, float64(v))
		case float64:
			out = append(out, v)
		}
	}

	return out
}

func paramStrings(trials []FrozenTrial, name string) []string {
	out := make([]string, 0, len(trials))

	for _, tr := range trials {
		if v, ok := tr.Params[name].(string); ok {
			out = append(out, v)
		}
	}

	return out
}
