package stateful

import (
	"testing"

	"github.com/ashourz/AlgoRoyale-sub002/internal/types"
	"github.com/ashourz/AlgoRoyale-sub002/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type EngineTestSuite struct {
	suite.Suite
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineTestSuite))
}

var (
	buy  = types.Signals{Entry: types.EntryBuy, Exit: types.ExitHold}
	sell = types.Signals{Entry: types.EntryHold, Exit: types.ExitSell}
	hold = types.HoldSignals()
)

type step struct {
	close   float64
	high    float64
	signals types.Signals
}

func (suite *EngineTestSuite) run(e Engine, steps []step) ([]types.Signals, State) {
	state := Initial()
	out := make([]types.Signals, len(steps))

	for i, s := range steps {
		out[i], state = e.Step(Bar{Index: i, Close: s.close, High: s.high}, state, s.signals)
	}

	return out, state
}

func (suite *EngineTestSuite) TestPositionEngineSuppressesRedundantSignals() {
	e, err := Build("PositionEngine", nil)
	suite.Require().NoError(err)

	out, state := suite.run(e, []step{
		{close: 10, high: 10, signals: sell},
		{close: 10, high: 10, signals: buy},
		{close: 11, high: 11, signals: buy},
		{close: 12, high: 12, signals: sell},
		{close: 12, high: 12, signals: sell},
	})

	suite.Equal([]types.Signals{hold, buy, hold, sell, hold}, out)
	suite.False(state.InPosition)
	suite.Equal(3, state.LastExitIndex.Unwrap())
}

func (suite *EngineTestSuite) TestTrailingStopRisesAndTriggers() {
	e, err := Build("TrailingStopEngine", map[string]any{"stop_pct": 0.1})
	suite.Require().NoError(err)

	state := Initial()

	var signals types.Signals

	signals, state = e.Step(Bar{Index: 0, Close: 100, High: 100}, state, buy)
	suite.Equal(buy, signals)
	suite.InDelta(90.0, state.TrailingStop.Unwrap(), 1e-9)

	signals, state = e.Step(Bar{Index: 1, Close: 105, High: 110}, state, hold)
	suite.Equal(hold, signals)
	suite.InDelta(99.0, state.TrailingStop.Unwrap(), 1e-9)

	signals, state = e.Step(Bar{Index: 2, Close: 100, High: 100}, state, hold)
	suite.Equal(hold, signals)
	suite.InDelta(99.0, state.TrailingStop.Unwrap(), 1e-9)

	signals, state = e.Step(Bar{Index: 3, Close: 98, High: 100}, state, hold)
	suite.Equal(sell, signals)
	suite.False(state.InPosition)
	suite.True(state.TrailingStop.IsNone())
	suite.Equal(3, state.LastExitIndex.Unwrap())
}

func (suite *EngineTestSuite) TestCooldownVetoesReentry() {
	e, err := Build("CooldownEngine", map[string]any{"reentry_cooldown": 3})
	suite.Require().NoError(err)

	steps := []step{
		{close: 10, high: 10, signals: buy},
		{close: 10, high: 10, signals: sell}, // exit at i = 1
	}
	for range 6 {
		steps = append(steps, step{close: 10, high: 10, signals: buy})
	}

	out, _ := suite.run(e, steps)

	suite.Equal(buy, out[0])
	suite.Equal(sell, out[1])

	for i := 2; i <= 4; i++ {
		suite.Equal(hold, out[i], "row %d is inside the cooldown", i)
	}

	suite.Equal(buy, out[5], "first eligible row is i + 4")
	suite.Equal(hold, out[6])
}

func (suite *EngineTestSuite) TestCooldownRemainingCountsDown() {
	e, err := Build("CooldownEngine", map[string]any{"reentry_cooldown": 2})
	suite.Require().NoError(err)

	state := Initial()
	_, state = e.Step(Bar{Index: 0, Close: 1, High: 1}, state, buy)
	_, state = e.Step(Bar{Index: 1, Close: 1, High: 1}, state, sell)
	suite.Equal(2, state.CooldownRemaining)

	_, state = e.Step(Bar{Index: 2, Close: 1, High: 1}, state, hold)
	suite.Equal(1, state.CooldownRemaining)

	_, state = e.Step(Bar{Index: 3, Close: 1, High: 1}, state, hold)
	suite.Equal(0, state.CooldownRemaining)
}

func (suite *EngineTestSuite) TestProfitTargetAndStopLoss() {
	e, err := Build("ProfitTargetEngine", map[string]any{"target_pct": 0.1, "stop_loss_pct": 0.05})
	suite.Require().NoError(err)

	out, _ := suite.run(e, []step{
		{close: 100, high: 100, signals: buy},
		{close: 105, high: 106, signals: hold},
		{close: 111, high: 111, signals: hold},
		{close: 100, high: 100, signals: buy},
		{close: 94, high: 100, signals: hold},
	})

	suite.Equal([]types.Signals{buy, hold, sell, buy, sell}, out)
}

func (suite *EngineTestSuite) TestTrailingStopCooldownCombines() {
	e, err := Build("TrailingStopCooldownEngine", map[string]any{"stop_pct": 0.1, "reentry_cooldown": 1})
	suite.Require().NoError(err)

	out, _ := suite.run(e, []step{
		{close: 100, high: 100, signals: buy},
		{close: 89, high: 100, signals: hold},
		{close: 90, high: 90, signals: buy},
		{close: 90, high: 90, signals: buy},
	})

	suite.Equal([]types.Signals{buy, sell, hold, buy}, out)
}

func (suite *EngineTestSuite) TestRegistry() {
	suite.Len(Types(), 5)

	for _, t := range Types() {
		e, err := t.Default()
		suite.Require().NoError(err, t.Name)
		suite.Equal(t.Name, e.Name())

		rebuilt, err := Build(t.Name, e.Params().Map())
		suite.Require().NoError(err)
		suite.Equal(e.Identity(), rebuilt.Identity())
	}

	e, err := Build("TrailingStopCooldownEngine", map[string]any{"stop_pct": 0.05, "reentry_cooldown": 3.0})
	suite.Require().NoError(err)
	suite.Equal("TrailingStopCooldownEngine(reentry_cooldown=3,stop_pct=0.05)", e.Identity())

	_, err = Build("MartingaleEngine", nil)
	suite.True(errors.HasCode(err, errors.ErrCodeUnknownClass))

	_, err = Build("TrailingStopEngine", map[string]any{})
	suite.True(errors.HasCode(err, errors.ErrCodeMissingParameter))

	_, err = Build("TrailingStopEngine", map[string]any{"stop_pct": 1.5})
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))

	_, err = Build("PositionEngine", map[string]any{"stop_pct": 0.1})
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))
}
