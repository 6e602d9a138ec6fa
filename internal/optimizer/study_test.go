package optimizer

import (
	"context"
	"errors"
	"math"
	"testing"

	werrors "github.com/ashourz/AlgoRoyale-sub002/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type StudyTestSuite struct {
	suite.Suite
}

func TestStudySuite(t *testing.T) {
	suite.Run(t, new(StudyTestSuite))
}

func quadratic(_ context.Context, t Trial) ([]float64, error) {
	x, err := t.SuggestInt("p_x", 0, 10, 1)
	if err != nil {
		return nil, err
	}

	y, err := t.SuggestFloat("p_y", -5, 5, 0)
	if err != nil {
		return nil, err
	}

	mode, err := t.SuggestCategorical("p_mode", []string{"a", "b", "c"})
	if err != nil {
		return nil, err
	}

	penalty := 0.0
	if mode != "b" {
		penalty = 1
	}

	t.SetUserAttr("mode", mode)

	return []float64{-float64((x-3)*(x-3)) - y*y - penalty}, nil
}

func (suite *StudyTestSuite) TestOptimizeFindsGoodRegion() {
	study, err := NewStudy([]Direction{Maximize}, WithSeed(1), WithStartupTrials(10))
	suite.Require().NoError(err)

	suite.Require().NoError(study.Optimize(context.Background(), quadratic, 80))
	suite.Len(study.Trials(), 80)

	best, err := study.BestTrial()
	suite.Require().NoError(err)
	suite.Greater(best.Values[0], -4.0)
	suite.Equal(TrialComplete, best.State)
	suite.Contains(best.UserAttrs, "mode")
	suite.Contains(best.UserAttrs, "duration_sec")
}

func (suite *StudyTestSuite) TestSeedReproducibility() {
	run := func(seed int64) []map[string]any {
		study, err := NewStudy([]Direction{Maximize}, WithSeed(seed), WithStartupTrials(5))
		suite.Require().NoError(err)
		suite.Require().NoError(study.Optimize(context.Background(), quadratic, 20))

		var params []map[string]any
		for _, t := range study.Trials() {
			params = append(params, t.Params)
		}

		return params
	}

	suite.Equal(run(7), run(7))
	suite.NotEqual(run(7), run(8))
}

func (suite *StudyTestSuite) TestSuggestionsStayInDistribution() {
	study, err := NewStudy([]Direction{Minimize}, WithSeed(3), WithStartupTrials(3))
	suite.Require().NoError(err)

	objective := func(_ context.Context, t Trial) ([]float64, error) {
		a, err := t.SuggestInt("a", 5, 50, 5)
		if err != nil {
			return nil, err
		}

		b, err := t.SuggestFloat("b", 0.01, 0.1, 0.01)
		if err != nil {
			return nil, err
		}

		return []float64{float64(a) * b}, nil
	}

	suite.Require().NoError(study.Optimize(context.Background(), objective, 40))

	for _, t := range study.Trials() {
		suite.True(IntDistribution{Low: 5, High: 50, Step: 5}.Contains(t.Params["a"]), "a=%v", t.Params["a"])
		suite.True(FloatDistribution{Low: 0.01, High: 0.1, Step: 0.01}.Contains(t.Params["b"]), "b=%v", t.Params["b"])
	}
}

func (suite *StudyTestSuite) TestFailedTrialsScoreWorst() {
	study, err := NewStudy([]Direction{Maximize, Minimize}, WithSeed(1))
	suite.Require().NoError(err)

	calls := 0
	objective := func(_ context.Context, t Trial) ([]float64, error) {
		calls++

		switch calls {
		case 1:
			return nil, errors.New("no data")
		case 2:
			panic("boom")
		case 3:
			return []float64{1}, nil
		default:
			return []float64{1, 2}, nil
		}
	}

	suite.Require().NoError(study.Optimize(context.Background(), objective, 4))

	trials := study.Trials()
	suite.Equal(TrialFailed, trials[0].State)
	suite.Equal([]float64{math.Inf(-1), math.Inf(1)}, trials[0].Values)
	suite.Equal(TrialFailed, trials[1].State)
	suite.True(werrors.HasCode(trials[1].Err, werrors.ErrCodeTrialFailed))
	suite.Equal(TrialFailed, trials[2].State)
	suite.Equal(TrialComplete, trials[3].State)
	suite.True(study.HasFiniteTrial())
}

func (suite *StudyTestSuite) TestAllFailed() {
	study, err := NewStudy([]Direction{Maximize})
	suite.Require().NoError(err)

	fail := func(context.Context, Trial) ([]float64, error) { return nil, errors.New("x") }
	suite.Require().NoError(study.Optimize(context.Background(), fail, 3))
	suite.False(study.HasFiniteTrial())

	best, err := study.BestTrial()
	suite.Require().NoError(err)
	suite.Equal(0, best.Number)
}

func (suite *StudyTestSuite) TestParetoFront() {
	study, err := NewStudy([]Direction{Maximize, Minimize}, WithSeed(5))
	suite.Require().NoError(err)
	suite.True(study.MultiObjective())

	scripted := [][]float64{{1, 1}, {2, 2}, {0.5, 2}, {2, 1}, {3, 3}}
	objective := func(_ context.Context, t Trial) ([]float64, error) {
		if _, err := t.SuggestInt("x", 0, 10, 1); err != nil {
			return nil, err
		}

		return scripted[t.Number()], nil
	}

	suite.Require().NoError(study.Optimize(context.Background(), objective, len(scripted)))

	var numbers []int
	for _, t := range study.BestTrials() {
		numbers = append(numbers, t.Number)
	}

	// {2,1} dominates {1,1} and {2,2}; {3,3} trades off against it
	suite.Equal([]int{3, 4}, numbers)

	_, err = study.BestTrial()
	suite.Error(err)
}

func (suite *StudyTestSuite) TestSingleObjectiveFront() {
	study, err := NewStudy([]Direction{Minimize}, WithSeed(5), WithStartupTrials(2))
	suite.Require().NoError(err)
	suite.False(study.MultiObjective())

	suite.Require().NoError(study.Optimize(context.Background(), func(_ context.Context, t Trial) ([]float64, error) {
		x, err := t.SuggestInt("x", 0, 20, 2)
		if err != nil {
			return nil, err
		}

		return []float64{float64((x - 10) * (x - 10))}, nil
	}, 15))

	best, err := study.BestTrial()
	suite.Require().NoError(err)
	suite.Equal([]FrozenTrial{best}, study.BestTrials())

	for _, t := range study.Trials() {
		suite.LessOrEqual(best.Values[0], t.Values[0])
	}
}

func (suite *StudyTestSuite) TestOptimizeContinuesAcrossCalls() {
	study, err := NewStudy([]Direction{Maximize}, WithSeed(1))
	suite.Require().NoError(err)

	suite.Require().NoError(study.Optimize(context.Background(), quadratic, 3))
	suite.Require().NoError(study.Optimize(context.Background(), quadratic, 2))

	trials := study.Trials()
	suite.Len(trials, 5)
	suite.Equal(4, trials[4].Number)
}

func (suite *StudyTestSuite) TestDistributionConflict() {
	study, err := NewStudy([]Direction{Maximize})
	suite.Require().NoError(err)

	objective := func(_ context.Context, t Trial) ([]float64, error) {
		if _, err := t.SuggestInt("x", 0, 10, 1); err != nil {
			return nil, err
		}

		if _, err := t.SuggestInt("x", 0, 20, 1); err != nil {
			return nil, err
		}

		return []float64{0}, nil
	}

	suite.Require().NoError(study.Optimize(context.Background(), objective, 1))
	suite.Equal(TrialFailed, study.Trials()[0].State)
}

func (suite *StudyTestSuite) TestRepeatSuggestionReturnsSameValue() {
	study, err := NewStudy([]Direction{Maximize}, WithSeed(9))
	suite.Require().NoError(err)

	objective := func(_ context.Context, t Trial) ([]float64, error) {
		a, _ := t.SuggestFloat("a", 0, 1, 0)
		b, _ := t.SuggestFloat("a", 0, 1, 0)
		suite.Equal(a, b)

		return []float64{a}, nil
	}

	suite.Require().NoError(study.Optimize(context.Background(), objective, 3))
}

func (suite *StudyTestSuite) TestCancellation() {
	study, err := NewStudy([]Direction{Maximize})
	suite.Require().NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = study.Optimize(ctx, quadratic, 5)
	suite.True(werrors.HasCode(err, werrors.ErrCodeCanceled))
	suite.Empty(study.Trials())
}

func (suite *StudyTestSuite) TestInvalidStudy() {
	_, err := NewStudy(nil)
	suite.Error(err)

	_, err = NewStudy([]Direction{"sideways"})
	suite.Error(err)

	_, err = ParseDirection("maximize")
	suite.NoError(err)
}

func (suite *StudyTestSuite) TestFixedTrial() {
	trial := NewFixedTrial(3, map[string]any{"a": 10, "b": 0.5, "c": "x"})
	suite.Equal(3, trial.Number())

	a, err := trial.SuggestInt("a", 5, 50, 5)
	suite.NoError(err)
	suite.Equal(10, a)

	b, err := trial.SuggestFloat("b", 0, 1, 0)
	suite.NoError(err)
	suite.Equal(0.5, b)

	c, err := trial.SuggestCategorical("c", []string{"x", "y"})
	suite.NoError(err)
	suite.Equal("x", c)

	_, err = trial.SuggestInt("a", 20, 50, 5)
	suite.Error(err)

	_, err = trial.SuggestInt("missing", 0, 1, 1)
	suite.Error(err)

	trial.SetUserAttr("k", 1)
	suite.Equal(map[string]any{"k": 1}, trial.UserAttrs())
}

func (suite *StudyTestSuite) TestNonDominatedRanks() {
	ranks := nonDominatedRanks([][]float64{{1, 1}, {2, 2}, {0, 3}, {3, 3}})
	suite.Equal([]int{0, 1, 0, 2}, ranks)
}
