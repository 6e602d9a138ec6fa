package logger

import (
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

type LoggerTestSuite struct {
	suite.Suite
}

func TestLoggerSuite(t *testing.T) {
	suite.Run(t, new(LoggerTestSuite))
}

func (suite *LoggerTestSuite) TestNewLogger() {
	logger, err := NewLogger()
	suite.NoError(err)
	suite.NotNil(logger)
	suite.NotNil(logger.Logger)
}

func (suite *LoggerTestSuite) TestNewLoggerWithLevel() {
	logger, err := NewLoggerWithLevel("debug")
	suite.NoError(err)
	suite.True(logger.Core().Enabled(zap.DebugLevel))

	fallback, err := NewLoggerWithLevel("nonsense")
	suite.NoError(err)
	suite.False(fallback.Core().Enabled(zap.DebugLevel))
	suite.True(fallback.Core().Enabled(zap.InfoLevel))
}

func (suite *LoggerTestSuite) TestLoggerSyncNilLogger() {
	logger := &Logger{Logger: nil}

	err := logger.Sync()
	suite.NoError(err)
}

func (suite *LoggerTestSuite) TestNopLogger() {
	logger := NewNopLogger()
	suite.NotPanics(func() {
		logger.Info("discarded")
		logger.Unit("features", "", "AAPL", "20240101_20240131").Warn("discarded")
	})
}

func (suite *LoggerTestSuite) TestWithOnNilLogger() {
	var logger *Logger
	child := logger.With(zap.String("k", "v"))
	suite.NotNil(child)
	suite.NotPanics(func() { child.Info("ok") })
}
