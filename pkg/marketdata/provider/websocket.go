package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ashourz/AlgoRoyale-sub002/internal/types"
	"github.com/ashourz/AlgoRoyale-sub002/pkg/errors"
	"github.com/gorilla/websocket"
)

// Message kinds carried in the T field of stream messages.
const (
	MessageBar   = "b"
	MessageQuote = "q"
	MessageTrade = "t"
	MessageError = "error"
)

// StreamMessage is one event of the stream. A frame holds either a single message or
// an array of them.
type StreamMessage struct {
	Type   string    `json:"T"`
	Symbol string    `json:"S"`
	Time   time.Time `json:"t"`

	Open       float64 `json:"o,omitempty"`
	High       float64 `json:"h,omitempty"`
	Low        float64 `json:"l,omitempty"`
	Close      float64 `json:"c,omitempty"`
	Volume     float64 `json:"v,omitempty"`
	TradeCount int64   `json:"n,omitempty"`
	VWAP       float64 `json:"vw,omitempty"`

	BidPrice float64 `json:"bp,omitempty"`
	BidSize  float64 `json:"bs,omitempty"`
	AskPrice float64 `json:"ap,omitempty"`
	AskSize  float64 `json:"as,omitempty"`

	Price float64 `json:"p,omitempty"`
	Size  float64 `json:"s,omitempty"`

	Message string `json:"msg,omitempty"`
}

type controlMessage struct {
	Action string   `json:"action"`
	Key    string   `json:"key,omitempty"`
	Bars   []string `json:"bars,omitempty"`
	Quotes []string `json:"quotes,omitempty"`
	Trades []string `json:"trades,omitempty"`
}

// WebSocketClient streams bars, quotes and trades over a JSON WebSocket feed.
type WebSocketClient struct {
	config StreamConfig
	dialer *websocket.Dialer
}

// NewWebSocketClient validates config and creates a client.
func NewWebSocketClient(config StreamConfig) (*WebSocketClient, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidProvider, "websocket stream", err)
	}

	//nolint:exhaustruct // zero values are the gorilla defaults
	dialer := &websocket.Dialer{
		Proxy:            websocket.DefaultDialer.Proxy,
		HandshakeTimeout: config.DialTimeout,
	}

	return &WebSocketClient{
		config: config,
		dialer: dialer,
	}, nil
}

// Stream implements StreamClient. It authenticates when an API key is configured,
// subscribes symbols for every non-nil handler and dispatches messages until the
// context ends, a handler fails or the connection drops.
func (c *WebSocketClient) Stream(ctx context.Context, symbols []string, handlers StreamHandlers) error {
	conn, _, err := c.dialer.DialContext(ctx, c.config.URL, nil)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeStreamFailed, err, "connect %s", c.config.URL)
	}

	var once sync.Once
	closeConn := func() { once.Do(func() { conn.Close() }) }

	defer closeConn()

	if err := c.subscribe(conn, symbols, handlers); err != nil {
		return err
	}

	done := make(chan struct{})
	defer close(done)

	go func() {
		ticker := time.NewTicker(c.config.PingInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				closeConn()

				return
			case <-done:
				return
			case <-ticker.C:
				_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.config.DialTimeout))
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			return errors.Wrap(errors.ErrCodeStreamFailed, "read stream", err)
		}

		messages, err := DecodeMessages(data)
		if err != nil {
			return errors.Wrap(errors.ErrCodeMarketDataParseFailed, "decode stream message", err)
		}

		for _, m := range messages {
			if err := dispatch(m, handlers); err != nil {
				return err
			}
		}
	}
}

func (c *WebSocketClient) subscribe(conn *websocket.Conn, symbols []string, handlers StreamHandlers) error {
	if c.config.APIKey != "" {
		//nolint:exhaustruct // auth carries only the key
		if err := conn.WriteJSON(controlMessage{Action: "auth", Key: c.config.APIKey}); err != nil {
			return errors.Wrap(errors.ErrCodeStreamFailed, "send auth", err)
		}
	}

	//nolint:exhaustruct // subscriptions are filled per handler
	sub := controlMessage{Action: "subscribe"}
	if handlers.OnBar != nil {
		sub.Bars = symbols
	}

	if handlers.OnQuote != nil {
		sub.Quotes = symbols
	}

	if handlers.OnTrade != nil {
		sub.Trades = symbols
	}

	if err := conn.WriteJSON(sub); err != nil {
		return errors.Wrap(errors.ErrCodeStreamFailed, "send subscribe", err)
	}

	return nil
}

// DecodeMessages parses a frame holding one message or an array of messages.
func DecodeMessages(data []byte) ([]StreamMessage, error) {
	var batch []StreamMessage
	if err := json.Unmarshal(data, &batch); err == nil {
		return batch, nil
	}

	var single StreamMessage
	if err := json.Unmarshal(data, &single); err != nil {
		return nil, err
	}

	return []StreamMessage{single}, nil
}

func dispatch(m StreamMessage, handlers StreamHandlers) error {
	switch m.Type {
	case MessageBar:
		if handlers.OnBar != nil {
			return handlers.OnBar(types.Bar{
				Symbol:     m.Symbol,
				Time:       m.Time.UTC(),
				Open:       m.Open,
				High:       m.High,
				Low:        m.Low,
				Close:      m.Close,
				Volume:     m.Volume,
				TradeCount: m.TradeCount,
				VWAP:       m.VWAP,
			})
		}
	case MessageQuote:
		if handlers.OnQuote != nil {
			return handlers.OnQuote(types.Quote{
				Symbol:   m.Symbol,
				Time:     m.Time.UTC(),
				BidPrice: m.BidPrice,
				BidSize:  m.BidSize,
				AskPrice: m.AskPrice,
				AskSize:  m.AskSize,
			})
		}
	case MessageTrade:
		if handlers.OnTrade != nil {
			return handlers.OnTrade(types.Trade{
				Symbol: m.Symbol,
				Time:   m.Time.UTC(),
				Price:  m.Price,
				Size:   m.Size,
			})
		}
	case MessageError:
		return errors.New(errors.ErrCodeStreamFailed, fmt.Sprintf("stream error: %s", m.Message))
	}

	return nil
}
