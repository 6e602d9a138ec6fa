package columns

import (
	"fmt"
	"slices"

	"github.com/ashourz/AlgoRoyale-sub002/internal/frame"
	"github.com/ashourz/AlgoRoyale-sub002/pkg/errors"
)

// Stage is a named step of the pipeline.
type Stage string

const (
	StageDataIngest    Stage = "data_ingest"
	StageFeatures      Stage = "features"
	StageSignalOpt     Stage = "signal_opt"
	StageSignalTest    Stage = "signal_test"
	StageSignalEval    Stage = "signal_eval"
	StagePortfolioOpt  Stage = "portfolio_opt"
	StagePortfolioTest Stage = "portfolio_test"
)

// StageSymbolSummary holds the per-symbol cross-strategy summary. It is an artefact
// directory rather than a pipeline step.
const StageSymbolSummary Stage = "symbol_summary"

type stageContract struct {
	input    []string
	output   []string
	upstream Stage
	strategy bool
	windowed bool
}

func contracts() map[Stage]stageContract {
	bars := append(BarColumns(), Symbol)
	featured := append(slices.Clone(bars), FeatureColumns()...)
	signals := append(append(slices.Clone(BarColumns()), FeatureColumns()...), SignalColumns()...)

	return map[Stage]stageContract{
		StageDataIngest:    {input: nil, output: bars, upstream: "", strategy: false, windowed: true},
		StageFeatures:      {input: BarColumns(), output: featured, upstream: StageDataIngest, strategy: false, windowed: true},
		StageSignalOpt:     {input: featured, output: signals, upstream: StageFeatures, strategy: true, windowed: true},
		StageSignalTest:    {input: featured, output: signals, upstream: StageFeatures, strategy: true, windowed: true},
		StageSignalEval:    {input: nil, output: nil, upstream: "", strategy: true, windowed: false},
		StagePortfolioOpt:  {input: nil, output: nil, upstream: "", strategy: false, windowed: true},
		StagePortfolioTest: {input: featured, output: signals, upstream: StageFeatures, strategy: false, windowed: true},
		StageSymbolSummary: {input: nil, output: nil, upstream: "", strategy: false, windowed: false},
	}
}

// Stages returns the pipeline steps in execution order.
func Stages() []Stage {
	return []Stage{
		StageDataIngest,
		StageFeatures,
		StageSignalOpt,
		StageSignalTest,
		StageSignalEval,
		StagePortfolioOpt,
		StagePortfolioTest,
	}
}

// ParseStage resolves a stage name.
func ParseStage(name string) (Stage, error) {
	s := Stage(name)
	if _, ok := contracts()[s]; !ok {
		return "", errors.Newf(errors.ErrCodeUnsupportedStage, "unknown stage %q", name)
	}

	return s, nil
}

func (s Stage) String() string {
	return string(s)
}

// InputColumns are the columns a stage requires from the frames it reads.
func (s Stage) InputColumns() []string {
	return slices.Clone(contracts()[s].input)
}

// OutputColumns are the columns of the frames a stage produces.
func (s Stage) OutputColumns() []string {
	return slices.Clone(contracts()[s].output)
}

// Upstream is the stage whose pages this stage reads.
func (s Stage) Upstream() (Stage, bool) {
	up := contracts()[s].upstream

	return up, up != ""
}

// Next is the following stage in execution order.
func (s Stage) Next() (Stage, bool) {
	stages := Stages()

	i := slices.Index(stages, s)
	if i < 0 || i == len(stages)-1 {
		return "", false
	}

	return stages[i+1], true
}

// HasStrategy reports whether the stage's artefacts are keyed by strategy.
func (s Stage) HasStrategy() bool {
	return contracts()[s].strategy
}

// HasWindow reports whether the stage's artefacts are keyed by window.
func (s Stage) HasWindow() bool {
	return contracts()[s].windowed
}

// ValidateInput checks a frame read by the stage.
func (s Stage) ValidateInput(f *frame.Frame) error {
	return requireColumns(s, "input", f, s.InputColumns())
}

// ValidateOutput checks a frame produced by the stage.
func (s Stage) ValidateOutput(f *frame.Frame) error {
	return requireColumns(s, "output", f, s.OutputColumns())
}

func requireColumns(s Stage, side string, f *frame.Frame, required []string) error {
	if f == nil {
		return errors.Newf(errors.ErrCodeMissingColumns, "%s: nil %s frame", s, side)
	}

	if missing := f.Missing(required); len(missing) > 0 {
		return errors.New(errors.ErrCodeMissingColumns, fmt.Sprintf("%s: %s frame missing columns %v", s, side, missing))
	}

	return nil
}
