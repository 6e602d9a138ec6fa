package optimizer

import (
	"fmt"
	"maps"

	"github.com/c-bata/goptuna"
)

// Trial is one parameter draw. Parameter names must be unique within a study; callers
// namespace them with an explicit prefix.
type Trial interface {
	Number() int
	SuggestInt(name string, low, high, step int) (int, error)
	SuggestFloat(name string, low, high, step float64) (float64, error)
	SuggestCategorical(name string, choices []string) (string, error)
	SetUserAttr(key string, value any)
}

// TrialState is the terminal state of a trial.
type TrialState string

const (
	// TrialComplete means the objective returned values.
	TrialComplete TrialState = "complete"
	// TrialFailed means the objective failed and the trial was scored worst-possible.
	TrialFailed TrialState = "failed"
)

// FrozenTrial is the record of a finished trial.
type FrozenTrial struct {
	Number        int
	State         TrialState
	Values        []float64
	Params        map[string]any
	Distributions map[string]Distribution
	UserAttrs     map[string]any
	Err           error
}

type liveTrial struct {
	study   *Study
	backend *goptuna.Trial
	number  int
	params  map[string]any
	dists   map[string]Distribution
	attrs   map[string]any
}

func (t *liveTrial) Number() int {
	return t.number
}

func (t *liveTrial) SuggestInt(name string, low, high, step int) (int, error) {
	dist, err := newIntDistribution(low, high, step)
	if err != nil {
		return 0, fmt.Errorf("parameter %s: %w", name, err)
	}

	v, err := t.suggest(name, dist)
	if err != nil {
		return 0, err
	}

	return v.(int), nil
}

func (t *liveTrial) SuggestFloat(name string, low, high, step float64) (float64, error) {
	dist, err := newFloatDistribution(low, high, step)
	if err != nil {
		return 0, fmt.Errorf("parameter %s: %w", name, err)
	}

	v, err := t.suggest(name, dist)
	if err != nil {
		return 0, err
	}

	return v.(float64), nil
}

func (t *liveTrial) SuggestCategorical(name string, choices []string) (string, error) {
	dist, err := newCategoricalDistribution(choices)
	if err != nil {
		return "", fmt.Errorf("parameter %s: %w", name, err)
	}

	v, err := t.suggest(name, dist)
	if err != nil {
		return "", err
	}

	return v.(string), nil
}

func (t *liveTrial) SetUserAttr(key string, value any) {
	t.attrs[key] = value
}

func (t *liveTrial) suggest(name string, dist Distribution) (any, error) {
	if existing, ok := t.dists[name]; ok {
		if !sameDistribution(existing, dist) {
			return nil, fmt.Errorf("parameter %s suggested twice with different distributions (%s, %s)", name, existing, dist)
		}

		return t.params[name], nil
	}

	if err := t.study.checkDistribution(name, dist); err != nil {
		return nil, err
	}

	var v any

	if t.backend != nil {
		sampled, err := suggestFrom(t.backend, name, dist)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", name, err)
		}

		v = sampled
	} else {
		v = t.study.sampler.sample(t.study, name, dist)
	}

	t.params[name] = v
	t.dists[name] = dist

	return v, nil
}

func (t *liveTrial) freeze(state TrialState, values []float64, err error) FrozenTrial {
	return FrozenTrial{
		Number:        t.number,
		State:         state,
		Values:        values,
		Params:        maps.Clone(t.params),
		Distributions: maps.Clone(t.dists),
		UserAttrs:     maps.Clone(t.attrs),
		Err:           err,
	}
}

// FixedTrial replays a fixed parameter set through the Trial interface.
type FixedTrial struct {
	number int
	params map[string]any
	attrs  map[string]any
}

// NewFixedTrial creates a trial that answers every suggestion from params.
func NewFixedTrial(number int, params map[string]any) *FixedTrial {
	return &FixedTrial{
		number: number,
		params: maps.Clone(params),
		attrs:  make(map[string]any),
	}
}

func (t *FixedTrial) Number() int {
	return t.number
}

func (t *FixedTrial) SuggestInt(name string, low, high, step int) (int, error) {
	dist, err := newIntDistribution(low, high, step)
	if err != nil {
		return 0, err
	}

	v, ok := t.params[name].(int)
	if !ok || !dist.Contains(v) {
		return 0, fmt.Errorf("fixed trial has no int %s in %s", name, dist)
	}

	return v, nil
}

func (t *FixedTrial) SuggestFloat(name string, low, high, step float64) (float64, error) {
	dist, err := newFloatDistribution(low, high, step)
	if err != nil {
		return 0, err
	}

	v, ok := t.params[name].(float64)
	if !ok || !dist.Contains(v) {
		return 0, fmt.Errorf("fixed trial has no float %s in %s", name, dist)
	}

	return v, nil
}

func (t *FixedTrial) SuggestCategorical(name string, choices []string) (string, error) {
	dist, err := newCategoricalDistribution(choices)
	if err != nil {
		return "", err
	}

	v, ok := t.params[name].(string)
	if !ok || !dist.Contains(v) {
		return "", fmt.Errorf("fixed trial has no choice %s in %s", name, dist)
	}

	return v, nil
}

func (t *FixedTrial) SetUserAttr(key string, value any) {
	t.attrs[key] = value
}

// UserAttrs returns the attributes set on the trial.
func (t *FixedTrial) UserAttrs() map[string]any {
	return maps.Clone(t.attrs)
}
