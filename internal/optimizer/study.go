// Package optimizer runs seeded tree-structured Parzen estimator (TPE) studies.
// Single-objective studies sample with goptuna's TPE sampler; multi-objective studies
// rank trials by non-domination and keep their Pareto front.
package optimizer

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/ashourz/AlgoRoyale-sub002/internal/logger"
	"github.com/ashourz/AlgoRoyale-sub002/pkg/errors"
	"github.com/c-bata/goptuna"
	"go.uber.org/zap"
)

// Direction is the optimisation direction of one objective.
type Direction string

const (
	Maximize Direction = "maximize"
	Minimize Direction = "minimize"
)

// ParseDirection validates a direction name.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case Maximize, Minimize:
		return Direction(s), nil
	default:
		return "", errors.Newf(errors.ErrCodeInvalidParameter, "unknown direction %q", s)
	}
}

// Worst is the worst possible value in this direction.
func (d Direction) Worst() float64 {
	if d == Minimize {
		return math.Inf(1)
	}

	return math.Inf(-1)
}

// loss maps a value to a quantity to minimise. NaN is the worst loss.
func (d Direction) loss(v float64) float64 {
	if math.IsNaN(v) {
		return math.Inf(1)
	}

	if d == Maximize {
		return -v
	}

	return v
}

// ObjectiveFunc evaluates one trial and returns one value per study direction.
// A returned error marks the trial failed; it is scored with the worst values.
type ObjectiveFunc func(ctx context.Context, t Trial) ([]float64, error)

// Option configures a Study.
type Option func(*Study)

// WithSeed fixes the sampler's random source.
func WithSeed(seed int64) Option {
	return func(s *Study) {
		s.seed = seed
	}
}

// WithStartupTrials sets how many trials are sampled uniformly before TPE kicks in.
func WithStartupTrials(n int) Option {
	return func(s *Study) {
		s.startupTrials = max(n, 0)
	}
}

// WithGamma sets the fraction of trials forming the "good" group.
func WithGamma(gamma float64) Option {
	return func(s *Study) {
		if gamma > 0 && gamma < 1 {
			s.gamma = gamma
		}
	}
}

// WithCandidates sets how many candidates are drawn from l(x) per parameter.
func WithCandidates(n int) Option {
	return func(s *Study) {
		s.candidates = max(n, 1)
	}
}

// WithLogger sets the study logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Study) {
		if l != nil {
			s.logger = l
		}
	}
}

// Study runs trials sequentially and keeps their records.
type Study struct {
	directions    []Direction
	seed          int64
	startupTrials int
	gamma         float64
	candidates    int
	logger        *logger.Logger

	mu      sync.Mutex
	single  *goptuna.Study
	sampler *tpeSampler
	trials  []FrozenTrial
	dists   map[string]Distribution
}

// NewStudy creates a study with one direction per objective.
func NewStudy(directions []Direction, opts ...Option) (*Study, error) {
	if len(directions) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidParameter, "study needs at least one direction")
	}

	for _, d := range directions {
		if _, err := ParseDirection(string(d)); err != nil {
			return nil, err
		}
	}

	s := &Study{
		directions:    slices.Clone(directions),
		seed:          0,
		startupTrials: 10,
		gamma:         0.25,
		candidates:    24,
		logger:        logger.NewNopLogger(),
		mu:            sync.Mutex{},
		single:        nil,
		sampler:       nil,
		trials:        nil,
		dists:         make(map[string]Distribution),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.MultiObjective() {
		s.sampler = newTPESampler(s.seed, s.startupTrials, s.gamma, s.candidates)

		return s, nil
	}

	single, err := newSingleObjectiveStudy(s)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidParameter, "failed to create study", err)
	}

	s.single = single

	return s, nil
}

// Directions returns the objective directions.
func (s *Study) Directions() []Direction {
	return slices.Clone(s.directions)
}

// MultiObjective reports whether the study has more than one objective.
func (s *Study) MultiObjective() bool {
	return len(s.directions) > 1
}

// Optimize runs nTrials trials. Objective failures never stop the study; only context
// cancellation does.
func (s *Study) Optimize(ctx context.Context, objective ObjectiveFunc, nTrials int) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(errors.ErrCodeCanceled, "study canceled", err)
	}

	if s.single != nil {
		return s.optimizeSingle(ctx, objective, nTrials)
	}

	for range nTrials {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(errors.ErrCodeCanceled, "study canceled", err)
		}

		s.runTrial(ctx, objective, nil)
	}

	return nil
}

// runTrial evaluates one trial and records it. Suggestions come from backend when it is
// set and from the multi-objective sampler otherwise.
func (s *Study) runTrial(ctx context.Context, objective ObjectiveFunc, backend *goptuna.Trial) FrozenTrial {
	s.mu.Lock()
	t := &liveTrial{
		study:   s,
		backend: backend,
		number:  len(s.trials),
		params:  make(map[string]any),
		dists:   make(map[string]Distribution),
		attrs:   make(map[string]any),
	}
	s.mu.Unlock()

	start := time.Now()
	values, err := s.evaluate(ctx, objective, t)

	state := TrialComplete
	if err != nil {
		state = TrialFailed
		values = s.worstValues()

		s.logger.Debug("Trial failed",
			zap.Int("trial", t.number),
			zap.Error(err),
		)
	}

	t.attrs["duration_sec"] = time.Since(start).Seconds()
	frozen := t.freeze(state, values, err)

	s.mu.Lock()
	s.trials = append(s.trials, frozen)
	s.mu.Unlock()

	return frozen
}

func (s *Study) evaluate(ctx context.Context, objective ObjectiveFunc, t *liveTrial) (values []float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf(errors.ErrCodeTrialFailed, "objective panicked: %v", r)
		}
	}()

	values, err = objective(ctx, t)
	if err != nil {
		return nil, err
	}

	if len(values) != len(s.directions) {
		return nil, errors.Newf(errors.ErrCodeTrialFailed, "objective returned %d values for %d directions", len(values), len(s.directions))
	}

	return values, nil
}

func (s *Study) worstValues() []float64 {
	values := make([]float64, len(s.directions))
	for i, d := range s.directions {
		values[i] = d.Worst()
	}

	return values
}

func (s *Study) checkDistribution(name string, dist Distribution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.dists[name]; ok && !sameDistribution(existing, dist) {
		return errors.Newf(errors.ErrCodeInvalidParameter,
			"parameter %s already uses %s, got %s; use a distinct prefix", name, existing, dist)
	}

	s.dists[name] = dist

	return nil
}

// Trials returns a copy of every finished trial in order.
func (s *Study) Trials() []FrozenTrial {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.trials)
}

// BestTrial returns the best trial of a single-objective study. Ties keep the earliest.
func (s *Study) BestTrial() (FrozenTrial, error) {
	if s.MultiObjective() {
		return FrozenTrial{}, errors.New(errors.ErrCodeInvalidParameter, "BestTrial is undefined for multi-objective studies; use BestTrials")
	}

	trials := s.Trials()
	if len(trials) == 0 {
		return FrozenTrial{}, errors.New(errors.ErrCodeNoCompletedTrials, "study has no trials")
	}

	best := trials[0]
	for _, t := range trials[1:] {
		if s.directions[0].loss(t.Values[0]) < s.directions[0].loss(best.Values[0]) {
			best = t
		}
	}

	return best, nil
}

// BestTrials returns the Pareto front in trial order. For a single objective it holds the
// best trial only.
func (s *Study) BestTrials() []FrozenTrial {
	if !s.MultiObjective() {
		best, err := s.BestTrial()
		if err != nil {
			return nil
		}

		return []FrozenTrial{best}
	}

	trials := s.Trials()
	losses := s.losses(trials)
	ranks := nonDominatedRanks(losses)

	var front []FrozenTrial

	for i, t := range trials {
		if ranks[i] == 0 {
			front = append(front, t)
		}
	}

	return front
}

// HasFiniteTrial reports whether any trial produced only finite values.
func (s *Study) HasFiniteTrial() bool {
	for _, t := range s.Trials() {
		finite := true

		for _, v := range t.Values {
			if math.IsInf(v, 0) || math.IsNaN(v) {
				finite = false

				break
			}
		}

		if finite {
			return true
		}
	}

	return false
}

func (s *Study) losses(trials []FrozenTrial) [][]float64 {
	out := make([][]float64, len(trials))

	for i, t := range trials {
		out[i] = make([]float64, len(s.directions))
		for j, d := range s.directions {
			out[i][j] = d.loss(t.Values[j])
		}
	}

	return out
}

// String summarises the study for logs.
func (s *Study) String() string {
	return fmt.Sprintf("study(directions=%v, trials=%d)", s.directions, len(s.Trials()))
}
