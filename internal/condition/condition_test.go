package condition

import (
	"context"
	"encoding/json"
	"slices"
	"testing"
	"time"

	"github.com/ashourz/AlgoRoyale-sub002/internal/columns"
	"github.com/ashourz/AlgoRoyale-sub002/internal/features"
	"github.com/ashourz/AlgoRoyale-sub002/internal/frame"
	"github.com/ashourz/AlgoRoyale-sub002/internal/optimizer"
	"github.com/ashourz/AlgoRoyale-sub002/mocks"
	"github.com/ashourz/AlgoRoyale-sub002/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type ConditionTestSuite struct {
	suite.Suite
	featured *frame.Frame
}

func TestConditionSuite(t *testing.T) {
	suite.Run(t, new(ConditionTestSuite))
}

func (suite *ConditionTestSuite) SetupSuite() {
	config := mocks.DefaultConfig()
	config.Count = 300
	bars := mocks.NewDataGenerator(5).GenerateFrame(config)

	featured, err := features.DefaultSet().Apply(bars)
	suite.Require().NoError(err)

	suite.featured = featured
}

func closesFrame(closes []float64) *frame.Frame {
	start := time.Date(2024, 1, 2, 14, 0, 0, 0, time.UTC)
	index := make([]time.Time, len(closes))

	for i := range index {
		index[i] = start.Add(time.Duration(i) * time.Hour)
	}

	f := frame.New(index)
	_ = f.SetFloat(columns.Close, closes)

	return f
}

func indices(values []bool) []int {
	var out []int

	for i, v := range values {
		if v {
			out = append(out, i)
		}
	}

	return out
}

func (suite *ConditionTestSuite) TestMovingAverageCrossActsOnBarAfterCross() {
	f := closesFrame([]float64{10, 10, 10, 10, 12, 12, 12, 12, 9, 9, 9, 9})
	params := map[string]any{"short_window": 2, "long_window": 4}

	entry, err := Build("MovingAverageCrossEntry", params)
	suite.Require().NoError(err)
	exit, err := Build("MovingAverageCrossExit", params)
	suite.Require().NoError(err)

	suite.Equal(6, entry.WindowSize())

	buys, err := Evaluate(entry, f)
	suite.Require().NoError(err)
	suite.Equal([]int{5}, indices(buys))

	sells, err := Evaluate(exit, f)
	suite.Require().NoError(err)
	suite.Equal([]int{9}, indices(sells))
}

func (suite *ConditionTestSuite) TestWarmupRowsAreFalse() {
	rsi, err := Build("RSIOversoldEntry", map[string]any{"threshold": 99.0})
	suite.Require().NoError(err)

	values, err := Evaluate(rsi, suite.featured)
	suite.Require().NoError(err)
	suite.Len(values, suite.featured.Len())

	// rsi_14 is NaN for the first 14 rows
	for i := range 14 {
		suite.False(values[i], "row %d", i)
	}
}

func (suite *ConditionTestSuite) TestIdentityIsSortedAndStable() {
	c, err := Build("TradingHoursFilter", map[string]any{"start_hour": 13, "end_hour": 21})
	suite.Require().NoError(err)
	suite.Equal("TradingHoursFilter(end_hour=21,start_hour=13)", c.Identity())

	c2, err := Build("TradingHoursFilter", map[string]any{"end_hour": 21.0, "start_hour": 13.0})
	suite.Require().NoError(err)
	suite.Equal(c.Identity(), c2.Identity())

	m, err := Build("MACDCrossEntry", nil)
	suite.Require().NoError(err)
	suite.Equal("MACDCrossEntry()", m.Identity())
}

func (suite *ConditionTestSuite) TestJSONRoundTrip() {
	for _, t := range Types() {
		for params := range t.Grid().Combinations() {
			c, err := t.Build(params)
			if err != nil {
				// some grid corners are rejected by validation
				suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter), "%s: %v", t.Name, err)

				continue
			}

			data, err := json.Marshal(map[string]any{c.Name(): c.Params().Map()})
			suite.Require().NoError(err)

			var persisted map[string]map[string]any
			suite.Require().NoError(json.Unmarshal(data, &persisted))

			rebuilt, err := Build(c.Name(), persisted[c.Name()])
			suite.Require().NoError(err)
			suite.Equal(c.Identity(), rebuilt.Identity())

			a, err := Evaluate(c, suite.featured)
			suite.Require().NoError(err)
			b, err := Evaluate(rebuilt, suite.featured)
			suite.Require().NoError(err)
			suite.Equal(a, b, c.Identity())
		}
	}
}

func (suite *ConditionTestSuite) TestRingViewMatchesBatch() {
	rows := make([]frame.Row, 0, suite.featured.Len())
	for _, row := range suite.featured.Rows() {
		rows = append(rows, row)
	}

	for _, t := range Types() {
		c, err := t.Default()
		suite.Require().NoError(err)

		batch, err := Evaluate(c, suite.featured)
		suite.Require().NoError(err)

		view := NewRingView(c.RequiredColumns(), c.WindowSize())
		online := make([]bool, 0, len(rows))

		for _, row := range rows {
			suite.Require().NoError(view.Push(row))
			online = append(online, Ready(c, view) && c.EvaluateRow(view))
		}

		suite.Equal(batch, online, c.Identity())
	}
}

func (suite *ConditionTestSuite) TestRequiredColumnsAreFeatureOutputs() {
	produced := columns.StageFeatures.OutputColumns()

	for _, t := range Types() {
		c, err := t.Default()
		suite.Require().NoError(err, t.Name)

		for _, col := range c.RequiredColumns() {
			suite.Contains(produced, col, "%s reads %s", t.Name, col)
		}
	}
}

func (suite *ConditionTestSuite) TestRegistry() {
	suite.Len(Types(), 16)
	suite.Len(TypesFor(RoleEntry), 6)
	suite.Len(TypesFor(RoleExit), 4)
	suite.Len(TypesFor(RoleTrend), 3)
	suite.Len(TypesFor(RoleFilter), 3)

	var names []string
	for _, t := range Types() {
		names = append(names, t.Name)
	}

	slices.Sort(names)
	suite.Len(slices.Compact(names), 16)

	_, err := Lookup("NoSuchCondition")
	suite.True(errors.HasCode(err, errors.ErrCodeUnknownClass))
}

func (suite *ConditionTestSuite) TestBuildErrors() {
	_, err := Build("RSIOversoldEntry", map[string]any{})
	suite.True(errors.HasCode(err, errors.ErrCodeMissingParameter))

	_, err = Build("RSIOversoldEntry", map[string]any{"threshold": 30, "extra": 1})
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))

	_, err = Build("MovingAverageCrossEntry", map[string]any{"short_window": 10, "long_window": 5})
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))

	_, err = Build("MovingAverageCrossEntry", map[string]any{"short_window": 2.5, "long_window": 5})
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))

	_, err = Build("PriceAboveMATrend", map[string]any{"ma_column": "close"})
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))

	_, err = Build("PriceAboveMATrend", map[string]any{"ma_column": 5})
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))
}

func (suite *ConditionTestSuite) TestEvaluateMissingColumn() {
	c, err := Build("ADXTrend", map[string]any{"threshold": 25})
	suite.Require().NoError(err)

	_, err = Evaluate(c, closesFrame([]float64{1, 2, 3}))
	suite.True(errors.HasCode(err, errors.ErrCodeMissingColumns))

	view := NewRingView(c.RequiredColumns(), 1)
	suite.Error(view.Push(frame.Row{Time: time.Now(), Floats: map[string]float64{}, Strings: nil}))
}

func (suite *ConditionTestSuite) TestSuggestUsesPrefixedNames() {
	t, err := Lookup("MovingAverageCrossEntry")
	suite.Require().NoError(err)

	trial := optimizer.NewFixedTrial(0, map[string]any{
		"AAPL_MovingAverageCrossEntry_short_window": 5,
		"AAPL_MovingAverageCrossEntry_long_window":  20,
	})

	c, err := t.Suggest(trial, "AAPL_")
	suite.Require().NoError(err)
	suite.Equal("MovingAverageCrossEntry(long_window=20,short_window=5)", c.Identity())

	_, err = t.Suggest(trial, "MSFT_")
	suite.Error(err)
}

func (suite *ConditionTestSuite) TestSuggestStaysInGridBounds() {
	study, err := optimizer.NewStudy([]optimizer.Direction{optimizer.Maximize}, optimizer.WithSeed(2))
	suite.Require().NoError(err)

	for _, t := range Types() {
		err := study.Optimize(suite.T().Context(), func(_ context.Context, trial optimizer.Trial) ([]float64, error) {
			c, err := t.Suggest(trial, "X_")
			if err != nil {
				return nil, err
			}

			suite.Equal(t.Name, c.Name())

			return []float64{0}, nil
		}, 3)
		suite.Require().NoError(err)
	}

	for _, trial := range study.Trials() {
		suite.Equal(optimizer.TrialComplete, trial.State, "%v", trial.Err)
	}
}

func (suite *ConditionTestSuite) TestGridCombinations() {
	grid := ParamGrid{
		{Name: "b", Values: []any{1, 2}},
		{Name: "a", Values: []any{"x", "y", "z"}},
	}

	suite.Equal(6, grid.Size())

	var ids []string
	for p := range grid.Combinations() {
		ids = append(ids, Identity("G", p))
	}

	suite.Equal([]string{
		"G(a=x,b=1)", "G(a=y,b=1)", "G(a=z,b=1)",
		"G(a=x,b=2)", "G(a=y,b=2)", "G(a=z,b=2)",
	}, ids)

	var empty []Params
	for p := range (ParamGrid{}).Combinations() {
		empty = append(empty, p)
	}

	suite.Len(empty, 1)
}
