// Package oracle implements the streaming price feed.
//
// The feed subscribes to a WebSocket price service, decodes its frames, and
// emits normalized Ticks on a buffered channel. Ticks older than 60 seconds
// at arrival are dropped here, at the edge — downstream consumers trust that
// whatever reaches them is fresh.
//
// The connection auto-reconnects with exponential backoff (1s → 30s max) and
// re-subscribes to all tracked instruments on reconnection.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aaronyhsoh33/market-maker-bot/pkg/types"
)

const (
	staleTickMaxAge  = 60 * time.Second
	pingInterval     = 50 * time.Second
	readTimeout      = 90 * time.Second
	maxReconnectWait = 30 * time.Second
	writeTimeout     = 10 * time.Second
	tickBufferSize   = 256
)

// priceFrame is the wire shape of one price update from the service.
type priceFrame struct {
	Type        string  `json:"type"` // "price_update"
	Symbol      string  `json:"symbol"`
	Price       float64 `json:"price,string"`
	Confidence  float64 `json:"conf,string"`
	PublishTime int64   `json:"publish_time"` // unix milliseconds
}

// Feed manages the oracle WebSocket connection and normalizes incoming
// frames into Ticks.
type Feed struct {
	url    string
	conn   *websocket.Conn
	connMu sync.Mutex

	subscribedMu sync.RWMutex
	subscribed   map[string]bool

	tickCh chan types.Tick

	// now is stubbed in tests to pin the staleness clock.
	now func() time.Time

	logger *slog.Logger
}

// NewFeed creates a price feed for the given WebSocket endpoint.
func NewFeed(wsURL string, logger *slog.Logger) *Feed {
	return &Feed{
		url:        wsURL,
		subscribed: make(map[string]bool),
		tickCh:     make(chan types.Tick, tickBufferSize),
		now:        time.Now,
		logger:     logger.With("component", "oracle"),
	}
}

// Ticks returns a read-only channel of normalized price ticks.
func (f *Feed) Ticks() <-chan types.Tick { return f.tickCh }

// Subscribe registers instruments for price updates. The subscription
// survives reconnects.
func (f *Feed) Subscribe(instruments []string) error {
	f.subscribedMu.Lock()
	for _, ins := range instruments {
		f.subscribed[ins] = true
	}
	f.subscribedMu.Unlock()

	f.connMu.Lock()
	connected := f.conn != nil
	f.connMu.Unlock()
	if !connected {
		return nil
	}

	return f.writeJSON(map[string]interface{}{
		"type":    "subscribe",
		"symbols": instruments,
	})
}

// Run connects and maintains the WebSocket with auto-reconnect. Blocks until
// ctx is cancelled.
func (f *Feed) Run(ctx context.Context) error {
	backoff := time.Second

	for {
		err := f.connectAndRead(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		f.logger.Warn("oracle feed disconnected, reconnecting",
			"error", err,
			"backoff", backoff,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxReconnectWait {
			backoff = maxReconnectWait
		}
	}
}

// Close gracefully closes the connection.
func (f *Feed) Close() error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn != nil {
		return f.conn.Close()
	}
	return nil
}

func (f *Feed) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	f.connMu.Lock()
	f.conn = conn
	f.connMu.Unlock()

	defer func() {
		f.connMu.Lock()
		conn.Close()
		f.conn = nil
		f.connMu.Unlock()
	}()

	if err := f.sendSubscription(); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	f.logger.Info("oracle feed connected")

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go f.pingLoop(pingCtx)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		f.handleMessage(msg)
	}
}

func (f *Feed) sendSubscription() error {
	f.subscribedMu.RLock()
	symbols := make([]string, 0, len(f.subscribed))
	for ins := range f.subscribed {
		symbols = append(symbols, ins)
	}
	f.subscribedMu.RUnlock()

	if len(symbols) == 0 {
		return nil
	}
	return f.writeJSON(map[string]interface{}{
		"type":    "subscribe",
		"symbols": symbols,
	})
}

func (f *Feed) handleMessage(data []byte) {
	tick, ok, err := f.decodeTick(data)
	if err != nil {
		f.logger.Debug("ignoring undecodable frame", "error", err)
		return
	}
	if !ok {
		return
	}

	select {
	case f.tickCh <- tick:
	default:
		f.logger.Warn("tick channel full, dropping tick", "instrument", tick.Instrument)
	}
}

// decodeTick parses a frame and applies the staleness filter. ok is false
// for non-price frames and for ticks past the staleness cutoff.
func (f *Feed) decodeTick(data []byte) (types.Tick, bool, error) {
	var frame priceFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return types.Tick{}, false, err
	}
	if frame.Type != "price_update" || frame.Symbol == "" {
		return types.Tick{}, false, nil
	}

	age := f.now().UnixMilli() - frame.PublishTime
	if age > staleTickMaxAge.Milliseconds() {
		f.logger.Debug("dropping stale tick",
			"instrument", frame.Symbol,
			"age_ms", age,
		)
		return types.Tick{}, false, nil
	}

	return types.Tick{
		Instrument:  frame.Symbol,
		Price:       frame.Price,
		Confidence:  frame.Confidence,
		TimestampMs: frame.PublishTime,
	}, true, nil
}

func (f *Feed) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := f.writeJSON(map[string]string{"type": "ping"}); err != nil {
				f.logger.Warn("ping failed", "error", err)
				return
			}
		}
	}
}

func (f *Feed) writeJSON(v interface{}) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return fmt.Errorf("websocket not connected")
	}
	f.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return f.conn.WriteJSON(v)
}
