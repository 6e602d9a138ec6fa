package indicator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/suite"
)

type IndicatorTestSuite struct {
	suite.Suite
	closes []float64
	highs  []float64
	lows   []float64
}

func TestIndicatorSuite(t *testing.T) {
	suite.Run(t, new(IndicatorTestSuite))
}

func (suite *IndicatorTestSuite) SetupTest() {
	suite.closes = make([]float64, 60)
	suite.highs = make([]float64, 60)
	suite.lows = make([]float64, 60)

	for i := range suite.closes {
		suite.closes[i] = 100 + 5*math.Sin(float64(i)/4) + float64(i)*0.1
		suite.highs[i] = suite.closes[i] + 1
		suite.lows[i] = suite.closes[i] - 1
	}
}

func (suite *IndicatorTestSuite) TestSMA() {
	out := SMA([]float64{1, 2, 3, 4, 5}, 3)

	suite.True(math.IsNaN(out[0]))
	suite.True(math.IsNaN(out[1]))
	suite.Equal([]float64{2, 3, 4}, out[2:])
}

func (suite *IndicatorTestSuite) TestSMASkipsNaNWindows() {
	out := SMA([]float64{math.NaN(), 2, 4, 6}, 2)

	suite.True(math.IsNaN(out[1]))
	suite.Equal(3.0, out[2])
	suite.Equal(5.0, out[3])
}

func (suite *IndicatorTestSuite) TestSMAWindowIndependence() {
	full := SMA(suite.closes, 20)
	tail := SMA(suite.closes[30:], 20)

	for i := 19; i < len(tail); i++ {
		suite.Equal(full[30+i], tail[i])
	}
}

func (suite *IndicatorTestSuite) TestRollingStd() {
	out := RollingStd([]float64{2, 4, 4, 4, 5, 5, 7, 9}, 8)

	suite.InDelta(2.138, out[7], 1e-3)
	suite.True(math.IsNaN(out[6]))
}

func (suite *IndicatorTestSuite) TestEMA() {
	out := EMA([]float64{1, 2, 3, 4, 5}, 3)

	suite.True(math.IsNaN(out[1]))
	suite.Equal(2.0, out[2])
	suite.InDelta(3.0, out[3], 1e-12)
	suite.InDelta(4.0, out[4], 1e-12)
}

func (suite *IndicatorTestSuite) TestRSIBounds() {
	out := RSI(suite.closes, 14)

	suite.True(math.IsNaN(out[13]))
	suite.False(math.IsNaN(out[14]))

	for _, v := range out[14:] {
		suite.GreaterOrEqual(v, 0.0)
		suite.LessOrEqual(v, 100.0)
	}
}

func (suite *IndicatorTestSuite) TestRSIMonotonic() {
	rising := []float64{1, 2, 3, 4, 5, 6}
	suite.Equal(100.0, RSI(rising, 3)[5])

	flat := []float64{5, 5, 5, 5, 5}
	suite.Equal(50.0, RSI(flat, 3)[4])
}

func (suite *IndicatorTestSuite) TestMACD() {
	res := MACD(suite.closes, 12, 26, 9)

	suite.Len(res.MACD, len(suite.closes))
	suite.True(math.IsNaN(res.MACD[24]))
	suite.False(math.IsNaN(res.MACD[25]))
	suite.True(math.IsNaN(res.Signal[32]))
	suite.False(math.IsNaN(res.Signal[33]))
	suite.InDelta(res.MACD[40]-res.Signal[40], res.Histogram[40], 1e-12)
}

func (suite *IndicatorTestSuite) TestATRAndADX() {
	atr := ATR(suite.highs, suite.lows, suite.closes, 14)
	suite.False(math.IsNaN(atr[13]))
	suite.Greater(atr[20], 0.0)

	adx := ADX(suite.highs, suite.lows, suite.closes, 14)
	suite.True(math.IsNaN(adx[26]))
	suite.False(math.IsNaN(adx[27]))

	for _, v := range adx[27:] {
		suite.GreaterOrEqual(v, 0.0)
		suite.LessOrEqual(v, 100.0)
	}
}

func (suite *IndicatorTestSuite) TestTrueRange() {
	tr := TrueRange([]float64{10, 12}, []float64{9, 11}, []float64{9.5, 11.5})

	suite.Equal(1.0, tr[0])
	suite.Equal(2.5, tr[1])
}

func (suite *IndicatorTestSuite) TestBollingerBands() {
	upper, lower := BollingerBands([]float64{1, 1, 1, 1}, 2, 2)

	suite.True(math.IsNaN(upper[0]))
	suite.Equal(1.0, upper[3])
	suite.Equal(1.0, lower[3])

	upper, lower = BollingerBands(suite.closes, 20, 2)
	for i := 19; i < len(suite.closes); i++ {
		suite.Greater(upper[i], lower[i])
	}
}
