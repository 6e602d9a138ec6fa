package strategy

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/ashourz/AlgoRoyale-sub002/internal/columns"
	"github.com/ashourz/AlgoRoyale-sub002/internal/condition"
	"github.com/ashourz/AlgoRoyale-sub002/internal/features"
	"github.com/ashourz/AlgoRoyale-sub002/internal/frame"
	"github.com/ashourz/AlgoRoyale-sub002/internal/logger"
	"github.com/ashourz/AlgoRoyale-sub002/internal/optimizer"
	"github.com/ashourz/AlgoRoyale-sub002/internal/stateful"
	"github.com/ashourz/AlgoRoyale-sub002/internal/store"
	"github.com/ashourz/AlgoRoyale-sub002/internal/types"
	"github.com/ashourz/AlgoRoyale-sub002/mocks"
	"github.com/ashourz/AlgoRoyale-sub002/pkg/errors"
	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"
)

type StrategyTestSuite struct {
	suite.Suite
	featured *frame.Frame
}

func TestStrategySuite(t *testing.T) {
	suite.Run(t, new(StrategyTestSuite))
}

func (suite *StrategyTestSuite) SetupSuite() {
	config := mocks.DefaultConfig()
	config.Count = 300
	config.Volatility = 0.02
	bars := mocks.NewDataGenerator(21).GenerateFrame(config)

	featured, err := features.DefaultSet().Apply(bars)
	suite.Require().NoError(err)

	suite.featured = featured
}

func (suite *StrategyTestSuite) crossover() *SignalStrategy {
	params := map[string]any{"short_window": 2, "long_window": 4}

	entry, err := condition.Build("MovingAverageCrossEntry", params)
	suite.Require().NoError(err)
	exit, err := condition.Build("MovingAverageCrossExit", params)
	suite.Require().NoError(err)

	s, err := New(nil, nil, []condition.Condition{entry}, []condition.Condition{exit}, optional.None[stateful.Engine]())
	suite.Require().NoError(err)

	return s
}

// sampleStrategies returns default-parameter strategies spread over the default templates.
func (suite *StrategyTestSuite) sampleStrategies() []*SignalStrategy {
	var out []*SignalStrategy

	i := 0
	for t := range DefaultCombinator().Templates() {
		if i%37 == 0 {
			s, err := t.New()
			suite.Require().NoError(err, t.Name())
			out = append(out, s)
		}

		i++
	}

	return out
}

func (suite *StrategyTestSuite) TestMovingAverageCrossover() {
	bars := mocks.BarsFromCloses("TEST", time.Date(2024, 1, 2, 14, 0, 0, 0, time.UTC),
		[]float64{10, 10, 10, 10, 12, 12, 12, 12, 9, 9, 9, 9})

	out, err := suite.crossover().GenerateSignals("TEST", frame.FromBars(bars))
	suite.Require().NoError(err)

	signals, err := Signals(out)
	suite.Require().NoError(err)
	suite.Len(signals, 12)

	for i, s := range signals {
		switch i {
		case 5:
			suite.Equal(types.Signals{Entry: types.EntryBuy, Exit: types.ExitHold}, s)
		case 9:
			suite.Equal(types.Signals{Entry: types.EntryHold, Exit: types.ExitSell}, s)
		default:
			suite.Equal(types.HoldSignals(), s, "row %d", i)
		}
	}

	names, ok := out.String(columns.Strategy)
	suite.True(ok)
	suite.Equal("MovingAverageCrossEntry_MovingAverageCrossExit", names[0])
}

func (suite *StrategyTestSuite) TestSignalFrameShape() {
	for _, s := range suite.sampleStrategies() {
		out, err := s.GenerateSignals("SYM", suite.featured)
		suite.Require().NoError(err)
		suite.Equal(suite.featured.Len(), out.Len())

		for _, col := range columns.SignalColumns() {
			values, ok := out.String(col)
			suite.Require().True(ok, col)
			suite.NotContains(values, "", "%s has empty values", col)
		}

		_, err = Signals(out)
		suite.NoError(err)
	}
}

func (suite *StrategyTestSuite) TestBufferedMatchesBatch() {
	for _, s := range suite.sampleStrategies() {
		out, err := s.GenerateSignals("SYM", suite.featured)
		suite.Require().NoError(err)

		batch, err := Signals(out)
		suite.Require().NoError(err)

		buffered := s.NewBuffered("SYM")
		online := make([]types.Signals, 0, len(batch))

		for _, row := range suite.featured.Rows() {
			entry, exit, err := buffered.Push(row)
			suite.Require().NoError(err)

			online = append(online, types.Signals{Entry: entry, Exit: exit})
		}

		suite.Equal(batch, online, s.Identity())
	}
}

func (suite *StrategyTestSuite) TestPagedMatchesSinglePage() {
	for _, s := range suite.sampleStrategies() {
		whole, err := s.GenerateSignals("SYM", suite.featured)
		suite.Require().NoError(err)

		pager := s.NewPager("SYM")

		var pages []*frame.Frame
		for _, page := range mocks.Pages(suite.featured, 37) {
			out, err := pager.Process(page)
			suite.Require().NoError(err)

			pages = append(pages, out)
		}

		joined, err := frame.Concat(pages...)
		suite.Require().NoError(err)
		suite.True(whole.Equal(joined), s.Identity())
	}
}

func (suite *StrategyTestSuite) TestRehydrationRoundTrip() {
	study, err := optimizer.NewStudy([]optimizer.Direction{optimizer.Maximize}, optimizer.WithSeed(4))
	suite.Require().NoError(err)

	template := NewTemplate(
		condition.TypesFor(condition.RoleFilter)[:1],
		condition.TypesFor(condition.RoleTrend)[:1],
		condition.TypesFor(condition.RoleEntry)[:2],
		condition.TypesFor(condition.RoleExit)[:1],
		optional.Some(stateful.Types()[4]),
	)

	var suggested []*SignalStrategy

	err = study.Optimize(suite.T().Context(), func(_ context.Context, trial optimizer.Trial) ([]float64, error) {
		s, err := template.Suggest(trial, "SYM_")
		if err != nil {
			return nil, err
		}

		suggested = append(suggested, s)

		return []float64{0}, nil
	}, 5)
	suite.Require().NoError(err)
	suite.Len(suggested, 5)

	for _, s := range suggested {
		suite.Equal(template.Name(), s.Name())

		data, err := json.Marshal(s.BestParams())
		suite.Require().NoError(err)

		var persisted BestParams
		suite.Require().NoError(json.Unmarshal(data, &persisted))

		rebuilt, err := Rehydrate(persisted)
		suite.Require().NoError(err)
		suite.Equal(s.Identity(), rebuilt.Identity())

		a, err := s.GenerateSignals("SYM", suite.featured)
		suite.Require().NoError(err)
		b, err := rebuilt.GenerateSignals("SYM", suite.featured)
		suite.Require().NoError(err)
		suite.True(a.Equal(b))
	}

	for _, trial := range study.Trials() {
		for name := range trial.Params {
			suite.True(len(name) > 4 && name[:4] == "SYM_", name)
		}
	}
}

func (suite *StrategyTestSuite) TestBestParamsJSONShape() {
	data, err := json.Marshal(suite.crossover().BestParams())
	suite.Require().NoError(err)

	suite.JSONEq(`{
		"entry_conditions": [{"MovingAverageCrossEntry": {"long_window": 4, "short_window": 2}}],
		"exit_conditions": [{"MovingAverageCrossExit": {"long_window": 4, "short_window": 2}}],
		"trend_conditions": [],
		"stateful_logic": null
	}`, string(data))
}

func (suite *StrategyTestSuite) TestRehydrateErrors() {
	_, err := Rehydrate(BestParams{
		EntryConditions: []ClassParams{{"Nope": {}}},
	})
	suite.True(errors.IsConfigError(err))
	suite.True(errors.HasCode(err, errors.ErrCodeUnknownClass))

	_, err = Rehydrate(BestParams{
		EntryConditions: []ClassParams{{"RSIOversoldEntry": {}}},
	})
	suite.True(errors.HasCode(err, errors.ErrCodeMissingParameter))

	_, err = Rehydrate(BestParams{
		EntryConditions: []ClassParams{{"RSIOverboughtExit": {"threshold": 70}}},
	})
	suite.True(errors.HasCode(err, errors.ErrCodeConfig))

	_, err = Rehydrate(BestParams{
		EntryConditions: []ClassParams{{"MACDCrossEntry": {}, "MACDCrossExit": {}}},
	})
	suite.True(errors.HasCode(err, errors.ErrCodeConfig))

	_, err = Rehydrate(BestParams{
		EntryConditions: []ClassParams{{"MACDCrossEntry": {}}},
		StatefulLogic:   ClassParams{"NoEngine": {}},
	})
	suite.True(errors.HasCode(err, errors.ErrCodeUnknownClass))
}

func (suite *StrategyTestSuite) TestMissingColumns() {
	s := suite.sampleStrategies()[1]

	_, err := s.GenerateSignals("SYM", frame.New(nil))
	suite.True(errors.HasCode(err, errors.ErrCodeMissingColumns))

	_, _, err = s.NewBuffered("SYM").Push(frame.Row{Time: time.Now(), Floats: map[string]float64{}, Strings: nil})
	suite.True(errors.HasCode(err, errors.ErrCodeMissingColumns))
}

func (suite *StrategyTestSuite) TestCombinator() {
	entries := condition.TypesFor(condition.RoleEntry)[:3]
	exits := condition.TypesFor(condition.RoleExit)[:2]

	c := Combinator{
		Filters:          nil,
		Trends:           condition.TypesFor(condition.RoleTrend)[:1],
		Entries:          entries,
		Exits:            exits,
		Engines:          stateful.Types()[:2],
		MaxFilter:        1,
		MaxTrend:         1,
		MaxEntry:         2,
		MaxExit:          1,
		AllowEmptyFilter: false,
		AllowEmptyTrend:  true,
		AllowEmptyEntry:  false,
		AllowEmptyExit:   false,
		AllowNoEngine:    true,
	}

	var names []string
	for t := range c.Templates() {
		names = append(names, t.Name())
	}

	// trends {none, T} x entries {A, AB, AC, B, BC, C} x exits 2 x engines {none, E1, E2}
	suite.Len(names, 2*6*2*3)
	suite.Equal(c.Count(), len(names))

	sorted := slices.Clone(names)
	slices.Sort(sorted)
	suite.Len(slices.Compact(sorted), len(names))

	suite.Equal(entries[0].Name+"_"+exits[0].Name, names[0])
	suite.Equal(4*4*6*4*6, DefaultCombinator().Count())
}

func (suite *StrategyTestSuite) TestStrategyMap() {
	st, err := store.New(store.Config{BaseDir: suite.T().TempDir()}, logger.NewNopLogger(), nil)
	suite.Require().NoError(err)

	factory := NewFactory(st, logger.NewNopLogger())

	var templates []Template
	for t := range DefaultCombinator().Templates() {
		templates = append(templates, t)
	}

	var wg sync.WaitGroup

	for i := range 4 {
		wg.Add(1)

		go func(part []Template) {
			defer wg.Done()

			_, err := factory.WriteStrategyMap(suite.T().Context(), part)
			suite.NoError(err)
		}(templates[i*10 : (i+1)*10])
	}

	wg.Wait()

	m, err := ReadStrategyMap(st)
	suite.Require().NoError(err)
	suite.Equal(StrategyMapVersion, m.Version)
	suite.Len(m.Strategies, 40)
	suite.Equal(templates[0].ClassNames(), m.Strategies[templates[0].Name()])

	suite.NoError(CheckMapVersion("1.4.2"))
	suite.True(errors.HasCode(CheckMapVersion("2.0.0"), errors.ErrCodeVersionMismatch))
	suite.True(errors.HasCode(CheckMapVersion("garbage"), errors.ErrCodeVersionMismatch))
}

func (suite *StrategyTestSuite) TestStrategyMapWithNullStrategies() {
	st, err := store.New(store.Config{BaseDir: suite.T().TempDir()}, logger.NewNopLogger(), nil)
	suite.Require().NoError(err)

	ctx := suite.T().Context()
	suite.Require().NoError(st.WriteJSON(ctx, st.Path(StrategyMapFile), map[string]any{
		"version":    StrategyMapVersion,
		"strategies": nil,
	}))

	var first Template
	for t := range DefaultCombinator().Templates() {
		first = t

		break
	}

	m, err := NewFactory(st, nil).WriteStrategyMap(ctx, []Template{first})
	suite.Require().NoError(err)
	suite.Equal([]string{first.Name()}, m.Names())
}

func (suite *StrategyTestSuite) TestNewRejectsRoleMismatch() {
	exit, err := condition.Build("MACDCrossExit", nil)
	suite.Require().NoError(err)

	_, err = New(nil, nil, []condition.Condition{exit}, nil, optional.None[stateful.Engine]())
	suite.True(errors.HasCode(err, errors.ErrCodeConfig))
}
