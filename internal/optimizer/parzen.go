package optimizer

import (
	"math"
	"math/rand"
	"slices"
)

// parzen is a truncated Gaussian mixture over [low, high] with one component per
// observation plus a wide prior component at the centre.
type parzen struct {
	mus    []float64
	sigmas []float64
	low    float64
	high   float64
}

func newParzen(observations []float64, low, high float64) parzen {
	width := high - low
	prior := (low + high) / 2

	mus := append(slices.Clone(observations), prior)
	slices.Sort(mus)

	sigmas := make([]float64, len(mus))
	minSigma := width / math.Min(100, 1+float64(len(mus)))

	for i, mu := range mus {
		left := mu - low
		if i > 0 {
			left = mu - mus[i-1]
		}

		right := high - mu
		if i < len(mus)-1 {
			right = mus[i+1] - mu
		}

		sigmas[i] = math.Min(math.Max(math.Max(left, right), minSigma), width)
	}

	// the prior component always spans the whole range
	for i, mu := range mus {
		if mu == prior {
			sigmas[i] = width

			break
		}
	}

	return parzen{mus: mus, sigmas: sigmas, low: low, high: high}
}

func (p parzen) sample(rng *rand.Rand) float64 {
	i := rng.Intn(len(p.mus))

	for range 100 {
		x := p.mus[i] + rng.NormFloat64()*p.sigmas[i]
		if x >= p.low && x <= p.high {
			return x
		}
	}

	return math.Min(math.Max(p.mus[i], p.low), p.high)
}

func (p parzen) logPDF(x float64) float64 {
	weight := 1 / float64(len(p.mus))
	total := 0.0

	for i, mu := range p.mus {
		sigma := p.sigmas[i]

		mass := normalCDF((p.high-mu)/sigma) - normalCDF((p.low-mu)/sigma)
		if mass <= 0 {
			continue
		}

		z := (x - mu) / sigma
		total += weight * math.Exp(-0.5*z*z) / (sigma * math.Sqrt(2*math.Pi) * mass)
	}

	if total <= 0 {
		return math.Inf(-1)
	}

	return math.Log(total)
}

func normalCDF(z float64) float64 {
	return 0.5 * (1 + math.Erf(z/math.Sqrt2))
}
