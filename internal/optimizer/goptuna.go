package optimizer

import (
	"context"
	"math"

	"github.com/ashourz/AlgoRoyale-sub002/pkg/errors"
	"github.com/c-bata/goptuna"
	"github.com/c-bata/goptuna/tpe"
	"go.uber.org/zap"
)

func newSingleObjectiveStudy(s *Study) (*goptuna.Study, error) {
	direction := goptuna.StudyDirectionMaximize
	if s.directions[0] == Minimize {
		direction = goptuna.StudyDirectionMinimize
	}

	gamma := s.gamma
	sampler := tpe.NewSampler(
		tpe.SamplerOptionSeed(s.seed),
		tpe.SamplerOptionNumberOfStartupTrials(s.startupTrials),
		tpe.SamplerOptionNumberOfEICandidates(s.candidates),
		tpe.SamplerOptionGammaFunc(func(n int) int {
			return int(math.Ceil(gamma * float64(n)))
		}),
	)

	return goptuna.CreateStudy("signal-opt",
		goptuna.StudyOptionDirection(direction),
		goptuna.StudyOptionSampler(sampler),
		goptuna.StudyOptionLogger(&studyLogger{log: s.logger.Sugar()}),
	)
}

// optimizeSingle runs the trials through goptuna. Failed objectives are reported to
// goptuna with the worst value so its sampler keeps learning from them.
func (s *Study) optimizeSingle(ctx context.Context, objective ObjectiveFunc, nTrials int) error {
	err := s.single.Optimize(func(trial goptuna.Trial) (float64, error) {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		frozen := s.runTrial(ctx, objective, &trial)

		v := frozen.Values[0]
		if math.IsNaN(v) {
			v = s.directions[0].Worst()
		}

		return v, nil
	}, nTrials)

	if ctxErr := ctx.Err(); ctxErr != nil {
		return errors.Wrap(errors.ErrCodeCanceled, "study canceled", ctxErr)
	}

	if err != nil {
		return errors.Wrap(errors.ErrCodeTrialFailed, "study failed", err)
	}

	return nil
}

// suggestFrom draws a value of dist from a goptuna trial. Stepped grids are sampled as
// an index into the grid so every suggestion lands on it.
func suggestFrom(trial *goptuna.Trial, name string, dist Distribution) (any, error) {
	switch d := dist.(type) {
	case IntDistribution:
		n := (d.High - d.Low) / d.Step
		if n == 0 {
			return d.Low, nil
		}

		k, err := trial.SuggestInt(name, 0, n)
		if err != nil {
			return nil, err
		}

		return d.Low + k*d.Step, nil
	case FloatDistribution:
		if d.High == d.Low {
			return d.Low, nil
		}

		if d.Step == 0 {
			v, err := trial.SuggestFloat(name, d.Low, d.High)
			if err != nil {
				return nil, err
			}

			return v, nil
		}

		n := int(math.Floor((d.High-d.Low)/d.Step + 1e-9))

		k, err := trial.SuggestInt(name, 0, n)
		if err != nil {
			return nil, err
		}

		return d.snap(d.Low + float64(k)*d.Step), nil
	case CategoricalDistribution:
		if len(d.Choices) == 1 {
			return d.Choices[0], nil
		}

		v, err := trial.SuggestCategorical(name, d.Choices)
		if err != nil {
			return nil, err
		}

		return v, nil
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "unsupported distribution %s", dist)
	}
}

// studyLogger routes goptuna's key/value logs to zap. Per-trial progress is debug level.
type studyLogger struct {
	log *zap.SugaredLogger
}

func (l *studyLogger) Debug(msg string, fields ...any) {
	l.log.Debugw(msg, fields...)
}

func (l *studyLogger) Info(msg string, fields ...any) {
	l.log.Debugw(msg, fields...)
}

func (l *studyLogger) Warn(msg string, fields ...any) {
	l.log.Warnw(msg, fields...)
}

func (l *studyLogger) Error(msg string, fields ...any) {
	l.log.Errorw(msg, fields...)
}
