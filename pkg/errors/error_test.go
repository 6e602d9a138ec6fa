package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ErrorTestSuite struct {
	suite.Suite
}

func TestErrorSuite(t *testing.T) {
	suite.Run(t, new(ErrorTestSuite))
}

func (suite *ErrorTestSuite) TestNewError() {
	err := New(ErrCodeInvalidParameter, "invalid parameter")
	suite.NotNil(err)
	suite.Equal(ErrCodeInvalidParameter, err.Code)
	suite.Equal("invalid parameter", err.Message)
	suite.Nil(err.Cause)
}

func (suite *ErrorTestSuite) TestNewfError() {
	err := Newf(ErrCodeUnknownClass, "unknown condition %q", "Foo")
	suite.Equal(ErrCodeUnknownClass, err.Code)
	suite.Equal(`unknown condition "Foo"`, err.Message)
}

func (suite *ErrorTestSuite) TestWrapError() {
	cause := errors.New("disk full")
	err := Wrap(ErrCodeIOFailed, "failed to write page", cause)
	suite.Equal(ErrCodeIOFailed, err.Code)
	suite.Equal(cause, err.Unwrap())
	suite.Equal("[400] failed to write page: disk full", err.Error())
}

func (suite *ErrorTestSuite) TestWrapfError() {
	cause := errors.New("timeout")
	err := Wrapf(ErrCodeMarketDataFetchFailed, cause, "fetch %s", "AAPL")
	suite.Equal("fetch AAPL", err.Message)
	suite.True(Is(err, cause))
}

func (suite *ErrorTestSuite) TestErrorString() {
	err := New(ErrCodeMissingColumns, "missing close")
	suite.Equal("[100] missing close", err.Error())
}

func (suite *ErrorTestSuite) TestGetCode() {
	suite.Equal(ErrCodeConfig, GetCode(New(ErrCodeConfig, "bad")))
	suite.Equal(ErrCodeUnknown, GetCode(errors.New("plain")))

	wrapped := Wrap(ErrCodeTrialFailed, "trial", New(ErrCodeInvalidData, "data"))
	suite.Equal(ErrCodeTrialFailed, GetCode(wrapped))
}

func (suite *ErrorTestSuite) TestHasCode() {
	err := New(ErrCodeInvalidParameter, "invalid parameter")
	suite.True(HasCode(err, ErrCodeInvalidParameter))
	suite.False(HasCode(err, ErrCodeIOFailed))
}

func (suite *ErrorTestSuite) TestAsError() {
	err := New(ErrCodeInvalidParameter, "invalid parameter")

	var typed *Error
	suite.True(As(err, &typed))
	suite.Equal(ErrCodeInvalidParameter, typed.Code)
}

func (suite *ErrorTestSuite) TestCategories() {
	cases := map[ErrorCode]Category{
		ErrCodeUnknown:               CategoryUnknown,
		ErrCodeMissingColumns:        CategoryData,
		ErrCodeNullValues:            CategoryData,
		ErrCodeUnknownClass:          CategoryConfig,
		ErrCodeMissingParameter:      CategoryConfig,
		ErrCodeTrialFailed:           CategoryTrial,
		ErrCodeIOFailed:              CategoryIO,
		ErrCodeMarketDataFetchFailed: CategoryMarketData,
	}
	for code, want := range cases {
		suite.Equal(want, code.Category(), "code %d", code)
	}
}

func (suite *ErrorTestSuite) TestCategoryOfWrapped() {
	err := Wrap(ErrCodeUnknownClass, "rehydrate", errors.New("x"))
	suite.True(IsConfigError(err))
	suite.False(IsDataError(err))
	suite.Equal(CategoryUnknown, CategoryOf(nil))
	suite.True(IsDataError(New(ErrCodeNonPositivePrice, "close <= 0")))
}
