package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ashourz/AlgoRoyale-sub002/internal/types"
	pkgerrors "github.com/ashourz/AlgoRoyale-sub002/pkg/errors"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
)

type WebSocketClientTestSuite struct {
	suite.Suite
	server   *httptest.Server
	mu       sync.Mutex
	received []controlMessage
	frames   []string
}

func TestWebSocketClientSuite(t *testing.T) {
	suite.Run(t, new(WebSocketClientTestSuite))
}

func (suite *WebSocketClientTestSuite) SetupTest() {
	suite.received = nil
	suite.frames = nil

	//nolint:exhaustruct // default upgrader
	upgrader := websocket.Upgrader{}

	suite.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			var m controlMessage
			if err := conn.ReadJSON(&m); err != nil {
				return
			}

			suite.mu.Lock()
			suite.received = append(suite.received, m)
			suite.mu.Unlock()

			if m.Action != "subscribe" {
				continue
			}

			for _, f := range suite.frames {
				if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
					return
				}
			}
		}
	}))
}

func (suite *WebSocketClientTestSuite) TearDownTest() {
	suite.server.Close()
}

func (suite *WebSocketClientTestSuite) client(apiKey string) *WebSocketClient {
	client, err := NewWebSocketClient(StreamConfig{
		URL:          "ws" + strings.TrimPrefix(suite.server.URL, "http"),
		APIKey:       apiKey,
		PingInterval: time.Second,
		DialTimeout:  time.Second,
	})
	suite.Require().NoError(err)

	return client
}

func (suite *WebSocketClientTestSuite) TestDispatchesEvents() {
	suite.frames = []string{
		`[{"T":"success","msg":"authenticated"}]`,
		`[{"T":"b","S":"AAPL","t":"2024-01-02T14:30:00Z","o":1,"h":2,"l":0.5,"c":1.5,"v":100,"n":3,"vw":1.2},` +
			`{"T":"q","S":"AAPL","t":"2024-01-02T14:30:01Z","bp":1.4,"bs":10,"ap":1.6,"as":12}]`,
		`{"T":"t","S":"AAPL","t":"2024-01-02T14:30:02Z","p":1.55,"s":5}`,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var (
		bars   []types.Bar
		quotes []types.Quote
	)

	errDone := errors.New("done")

	err := suite.client("secret").Stream(ctx, []string{"AAPL"}, StreamHandlers{
		OnBar: func(b types.Bar) error {
			bars = append(bars, b)

			return nil
		},
		OnQuote: func(q types.Quote) error {
			quotes = append(quotes, q)

			return nil
		},
		OnTrade: func(tr types.Trade) error {
			suite.InDelta(1.55, tr.Price, 1e-9)
			suite.InDelta(5.0, tr.Size, 1e-9)

			return errDone
		},
	})
	suite.ErrorIs(err, errDone)

	suite.Require().Len(bars, 1)
	suite.Equal("AAPL", bars[0].Symbol)
	suite.InDelta(1.5, bars[0].Close, 1e-9)
	suite.Equal(int64(3), bars[0].TradeCount)
	suite.Equal(time.Date(2024, 1, 2, 14, 30, 0, 0, time.UTC), bars[0].Time)

	suite.Require().Len(quotes, 1)
	suite.InDelta(1.6, quotes[0].AskPrice, 1e-9)

	suite.mu.Lock()
	defer suite.mu.Unlock()

	suite.Require().Len(suite.received, 2)
	suite.Equal("auth", suite.received[0].Action)
	suite.Equal("secret", suite.received[0].Key)
	suite.Equal([]string{"AAPL"}, suite.received[1].Bars)
	suite.Equal([]string{"AAPL"}, suite.received[1].Trades)
}

func (suite *WebSocketClientTestSuite) TestSubscribesOnlyHandledKinds() {
	suite.frames = []string{`{"T":"error","msg":"bad symbol"}`}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := suite.client("").Stream(ctx, []string{"MSFT"}, StreamHandlers{
		OnBar:   func(types.Bar) error { return nil },
		OnQuote: nil,
		OnTrade: nil,
	})
	suite.True(pkgerrors.HasCode(err, pkgerrors.ErrCodeStreamFailed))

	suite.mu.Lock()
	defer suite.mu.Unlock()

	suite.Require().Len(suite.received, 1)
	suite.Equal([]string{"MSFT"}, suite.received[0].Bars)
	suite.Empty(suite.received[0].Quotes)
	suite.Empty(suite.received[0].Trades)
}

func (suite *WebSocketClientTestSuite) TestCancellation() {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	err := suite.client("").Stream(ctx, []string{"MSFT"}, StreamHandlers{
		OnBar:   func(types.Bar) error { return nil },
		OnQuote: nil,
		OnTrade: nil,
	})
	suite.ErrorIs(err, context.Canceled)
}

func (suite *WebSocketClientTestSuite) TestConnectFailure() {
	client, err := NewWebSocketClient(StreamConfig{
		URL:          "ws://127.0.0.1:1",
		APIKey:       "",
		PingInterval: time.Second,
		DialTimeout:  time.Second,
	})
	suite.Require().NoError(err)

	err = client.Stream(context.Background(), []string{"MSFT"}, StreamHandlers{OnBar: nil, OnQuote: nil, OnTrade: nil})
	suite.True(pkgerrors.HasCode(err, pkgerrors.ErrCodeStreamFailed))
}

func (suite *WebSocketClientTestSuite) TestDecodeMessages() {
	single, err := DecodeMessages([]byte(`{"T":"b","S":"X"}`))
	suite.Require().NoError(err)
	suite.Len(single, 1)

	batch, err := DecodeMessages([]byte(`[{"T":"b","S":"X"},{"T":"t","S":"Y"}]`))
	suite.Require().NoError(err)
	suite.Len(batch, 2)
	suite.Equal("Y", batch[1].Symbol)

	_, err = DecodeMessages([]byte(`nope`))
	suite.Error(err)
}
