package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ReconnectConfig controls the ticker stream's exponential backoff on
// unexpected disconnects. Grounded on the teacher's
// pkg/market/binance/websocket.go ReconnectConfig, generalized from a
// Binance-only stream to this exchange's ticker channel.
type ReconnectConfig struct {
	Enabled      bool
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultReconnectConfig mirrors the teacher's defaults.
func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		Enabled:      true,
		MaxRetries:   10,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

func (c ReconnectConfig) backoff(attempt int) time.Duration {
	delay := float64(c.InitialDelay)
	for i := 0; i < attempt; i++ {
		delay *= c.Multiplier
	}
	if time.Duration(delay) > c.MaxDelay {
		return c.MaxDelay
	}
	return time.Duration(delay)
}

// TickerUpdate is one parsed push from the ticker stream.
type TickerUpdate struct {
	Symbol string
	Price  float64
	Ts     int64
}

// StreamClient opens and maintains the exchange's public ticker websocket
// (spec.md §4.6 "WS ticker stream"). Dial failures and mid-stream drops are
// retried with exponential backoff; the caller sees a single long-lived
// channel regardless of how many reconnects happen underneath.
type StreamClient struct {
	streamURL string
	dialer    *websocket.Dialer
	reconnect ReconnectConfig
}

// NewStreamClient builds a client against the given websocket base URL
// (e.g. "wss://api.example.com/websocket/v1").
func NewStreamClient(streamURL string) *StreamClient {
	return &StreamClient{
		streamURL: streamURL,
		dialer:    websocket.DefaultDialer,
		reconnect: DefaultReconnectConfig(),
	}
}

// WithReconnectConfig overrides the reconnect policy.
func (c *StreamClient) WithReconnectConfig(cfg ReconnectConfig) *StreamClient {
	c.reconnect = cfg
	return c
}

func buildSubscribePayload(symbols []string) ([]byte, error) {
	frame := []map[string]any{
		{"ticket": fmt.Sprintf("trading-core-%d", len(symbols))},
		{"type": "ticker", "codes": symbols},
	}
	return json.Marshal(frame)
}

// Subscribe opens the ticker stream for the given wire-form symbols
// (QUOTE-BASE) and returns a channel of updates plus a stop function. The
// channel is closed once stop is called or ctx is canceled.
func (c *StreamClient) Subscribe(ctx context.Context, symbols []string) (<-chan TickerUpdate, func(), error) {
	conn, err := c.dial(ctx, symbols)
	if err != nil {
		return nil, nil, fmt.Errorf("marketdata: dial ticker stream: %w", err)
	}

	out := make(chan TickerUpdate, 256)
	stopCh := make(chan struct{})
	var stopOnce sync.Once
	var mu sync.Mutex
	currentConn := conn

	stop := func() {
		stopOnce.Do(func() {
			close(stopCh)
			mu.Lock()
			if currentConn != nil {
				_ = currentConn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				_ = currentConn.Close()
			}
			mu.Unlock()
			close(out)
		})
	}

	go func() {
		defer stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stopCh:
				return
			default:
			}

			mu.Lock()
			active := currentConn
			mu.Unlock()
			if active == nil {
				return
			}

			_, msg, err := active.ReadMessage()
			if err != nil {
				select {
				case <-stopCh:
					return
				case <-ctx.Done():
					return
				default:
				}
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) ||
					strings.Contains(err.Error(), "use of closed network connection") {
					return
				}
				log.Printf("marketdata: ticker stream read error: %v", err)

				if !c.reconnect.Enabled {
					return
				}
				mu.Lock()
				_ = currentConn.Close()
				mu.Unlock()

				newConn, rerr := c.reconnectLoop(ctx, stopCh, symbols)
				if rerr != nil {
					log.Printf("marketdata: ticker stream reconnect failed: %v", rerr)
					return
				}
				mu.Lock()
				currentConn = newConn
				mu.Unlock()
				continue
			}

			update, err := parseTicker(msg)
			if err != nil {
				continue
			}
			select {
			case out <- update:
			default:
				// Drop on a full channel rather than block the reader goroutine.
			}
		}
	}()

	return out, stop, nil
}

func (c *StreamClient) reconnectLoop(ctx context.Context, stopCh <-chan struct{}, symbols []string) (*websocket.Conn, error) {
	maxRetries := c.reconnect.MaxRetries
	if maxRetries == 0 {
		maxRetries = 100
	}
	for attempt := 0; attempt < maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-stopCh:
			return nil, fmt.Errorf("stopped")
		default:
		}

		delay := c.reconnect.backoff(attempt)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-stopCh:
			return nil, fmt.Errorf("stopped")
		}

		conn, err := c.dial(ctx, symbols)
		if err != nil {
			continue
		}
		return conn, nil
	}
	return nil, fmt.Errorf("marketdata: max reconnect attempts (%d) exceeded", maxRetries)
}

func (c *StreamClient) dial(ctx context.Context, symbols []string) (*websocket.Conn, error) {
	u, err := url.Parse(c.streamURL)
	if err != nil {
		return nil, err
	}
	conn, _, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}
	payload, err := buildSubscribePayload(symbols)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

func parseTicker(msg []byte) (TickerUpdate, error) {
	var raw struct {
		Code       string  `json:"code"`
		TradePrice float64 `json:"trade_price"`
		Timestamp  int64   `json:"timestamp"`
	}
	if err := json.Unmarshal(msg, &raw); err != nil {
		return TickerUpdate{}, err
	}
	return TickerUpdate{Symbol: raw.Code, Price: raw.TradePrice, Ts: raw.Timestamp}, nil
}
