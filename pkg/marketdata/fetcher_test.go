package marketdata_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/ashourz/AlgoRoyale-sub002/internal/logger"
	"github.com/ashourz/AlgoRoyale-sub002/mocks"
	"github.com/ashourz/AlgoRoyale-sub002/pkg/errors"
	"github.com/ashourz/AlgoRoyale-sub002/pkg/marketdata"
	"github.com/ashourz/AlgoRoyale-sub002/pkg/marketdata/writer"
	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
)

type FetcherTestSuite struct {
	suite.Suite
	ctrl   *gomock.Controller
	client *mocks.MockHistoricalBarClient
	start  time.Time
	end    time.Time
}

func TestFetcherSuite(t *testing.T) {
	suite.Run(t, new(FetcherTestSuite))
}

func (suite *FetcherTestSuite) SetupTest() {
	suite.ctrl = gomock.NewController(suite.T())
	suite.client = mocks.NewMockHistoricalBarClient(suite.ctrl)
	suite.start = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	suite.end = suite.start.AddDate(0, 0, 1)
}

func (suite *FetcherTestSuite) TearDownTest() {
	suite.ctrl.Finish()
}

func (suite *FetcherTestSuite) fetcher() *marketdata.Fetcher {
	return marketdata.NewFetcher(suite.client, logger.NewNopLogger(), nil, 3, time.Millisecond)
}

func (suite *FetcherTestSuite) page(closes []float64, offset int, next optional.Option[string]) marketdata.BarPage {
	bars := mocks.BarsFromCloses("AAPL", suite.start.Add(time.Duration(offset)*time.Hour), closes)

	return marketdata.BarPage{Bars: bars, NextPageToken: next}
}

func (suite *FetcherTestSuite) TestFollowsPageTokens() {
	gomock.InOrder(
		suite.client.EXPECT().
			FetchHistoricalBars(gomock.Any(), "AAPL", suite.start, suite.end, optional.None[string]()).
			Return(suite.page([]float64{1, 2}, 0, optional.Some("a")), nil),
		suite.client.EXPECT().
			FetchHistoricalBars(gomock.Any(), "AAPL", suite.start, suite.end, optional.Some("a")).
			Return(suite.page([]float64{3}, 2, optional.None[string]()), nil),
	)

	var closes []float64

	for page, err := range suite.fetcher().Pages(context.Background(), "AAPL", suite.start, suite.end) {
		suite.Require().NoError(err)

		for _, b := range page.Bars {
			closes = append(closes, b.Close)
		}
	}

	suite.Equal([]float64{1, 2, 3}, closes)
}

func (suite *FetcherTestSuite) TestRetriesThenSucceeds() {
	gomock.InOrder(
		suite.client.EXPECT().
			FetchHistoricalBars(gomock.Any(), "AAPL", suite.start, suite.end, gomock.Any()).
			Return(marketdata.BarPage{}, fmt.Errorf("timeout")).
			Times(2),
		suite.client.EXPECT().
			FetchHistoricalBars(gomock.Any(), "AAPL", suite.start, suite.end, gomock.Any()).
			Return(suite.page([]float64{5}, 0, optional.None[string]()), nil),
	)

	count := 0

	for page, err := range suite.fetcher().Pages(context.Background(), "AAPL", suite.start, suite.end) {
		suite.Require().NoError(err)

		count += len(page.Bars)
	}

	suite.Equal(1, count)
}

func (suite *FetcherTestSuite) TestFailsAfterThreeAttempts() {
	suite.client.EXPECT().
		FetchHistoricalBars(gomock.Any(), "AAPL", suite.start, suite.end, gomock.Any()).
		Return(marketdata.BarPage{}, fmt.Errorf("unavailable")).
		Times(3)

	var lastErr error

	for _, err := range suite.fetcher().Pages(context.Background(), "AAPL", suite.start, suite.end) {
		lastErr = err
	}

	suite.Require().Error(lastErr)
	suite.True(errors.HasCode(lastErr, errors.ErrCodeMarketDataFetchFailed))
}

func (suite *FetcherTestSuite) TestPagesBeforeFailureStayValid() {
	gomock.InOrder(
		suite.client.EXPECT().
			FetchHistoricalBars(gomock.Any(), "AAPL", suite.start, suite.end, optional.None[string]()).
			Return(suite.page([]float64{1, 2}, 0, optional.Some("a")), nil),
		suite.client.EXPECT().
			FetchHistoricalBars(gomock.Any(), "AAPL", suite.start, suite.end, optional.Some("a")).
			Return(marketdata.BarPage{}, fmt.Errorf("reset")).
			Times(3),
	)

	pages := 0

	var lastErr error

	for _, err := range suite.fetcher().Pages(context.Background(), "AAPL", suite.start, suite.end) {
		if err != nil {
			lastErr = err

			continue
		}

		pages++
	}

	suite.Equal(1, pages)
	suite.True(errors.HasCode(lastErr, errors.ErrCodeMarketDataFetchFailed))
}

func (suite *FetcherTestSuite) TestStuckTokenIsAnError() {
	suite.client.EXPECT().
		FetchHistoricalBars(gomock.Any(), "AAPL", suite.start, suite.end, gomock.Any()).
		Return(suite.page([]float64{1}, 0, optional.Some("same")), nil).
		Times(2)

	var lastErr error

	for _, err := range suite.fetcher().Pages(context.Background(), "AAPL", suite.start, suite.end) {
		lastErr = err
	}

	suite.Require().Error(lastErr)
	suite.Contains(lastErr.Error(), "did not advance")
}

func (suite *FetcherTestSuite) TestCanceledContext() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	suite.client.EXPECT().
		FetchHistoricalBars(gomock.Any(), "AAPL", suite.start, suite.end, gomock.Any()).
		Return(marketdata.BarPage{}, context.Canceled)

	var lastErr error

	for _, err := range suite.fetcher().Pages(ctx, "AAPL", suite.start, suite.end) {
		lastErr = err
	}

	suite.True(errors.HasCode(lastErr, errors.ErrCodeCanceled))
}

func (suite *FetcherTestSuite) TestDownloadWritesParquet() {
	suite.client.EXPECT().
		FetchHistoricalBars(gomock.Any(), "AAPL", suite.start, suite.end, gomock.Any()).
		Return(suite.page([]float64{10, 11, 12}, 0, optional.None[string]()), nil)

	w := writer.NewDuckDBWriter(filepath.Join(suite.T().TempDir(), "aapl.parquet"))

	var progress []int

	path, count, err := suite.fetcher().Download(context.Background(), w, "AAPL", suite.start, suite.end, func(n int) {
		progress = append(progress, n)
	})
	suite.Require().NoError(err)
	suite.Equal(3, count)
	suite.Equal([]int{3}, progress)
	suite.FileExists(path)
}
