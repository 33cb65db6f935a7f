// events.go implements the WebSocket event stream for a subaccount.
//
// The feed delivers two channels of events:
//
//   - Order updates: lifecycle transitions (NEW → PARTIALLY_FILLED → FILLED,
//     CANCELED, EXPIRED). These are authoritative for reconciliation.
//
//   - Fills: execution notifications. Informational only.
//
// The connection auto-reconnects with exponential backoff (1s → 30s max) and
// re-subscribes on reconnection. A read deadline detects silent server
// failures within ~2 missed pings.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/aaronyhsoh33/market-maker-bot/pkg/types"
)

const (
	pingInterval     = 50 * time.Second
	readTimeout      = 90 * time.Second
	maxReconnectWait = 30 * time.Second
	writeTimeout     = 10 * time.Second
	eventBufferSize  = 256
)

// wsSubscribeMsg subscribes a channel for a subaccount.
type wsSubscribeMsg struct {
	Type         string `json:"type"`    // "subscribe"
	Channel      string `json:"channel"` // "order" or "fill"
	SubaccountID string `json:"subaccountId"`
}

// wsEnvelope carries just enough of an incoming frame to route it.
type wsEnvelope struct {
	Channel string `json:"channel"`
}

// EventFeed manages the subaccount event WebSocket: connection lifecycle,
// subscription tracking, message routing, and reconnection.
type EventFeed struct {
	url    string
	conn   *websocket.Conn
	connMu sync.Mutex

	// Track subscriptions for automatic re-subscribe on reconnect.
	subscribedMu sync.RWMutex
	subscribed   map[string]string // channel → subaccountID

	orderCh chan types.OrderStatusEvent
	fillCh  chan types.FillEvent

	logger *slog.Logger
}

// NewEventFeed creates an event feed for the given WebSocket endpoint.
func NewEventFeed(wsURL string, logger *slog.Logger) *EventFeed {
	return &EventFeed{
		url:        wsURL,
		subscribed: make(map[string]string),
		orderCh:    make(chan types.OrderStatusEvent, eventBufferSize),
		fillCh:     make(chan types.FillEvent, eventBufferSize),
		logger:     logger.With("component", "ws_events"),
	}
}

// OrderUpdates returns a read-only channel of order status events.
func (f *EventFeed) OrderUpdates() <-chan types.OrderStatusEvent { return f.orderCh }

// Fills returns a read-only channel of fill events.
func (f *EventFeed) Fills() <-chan types.FillEvent { return f.fillCh }

// SubscribeOrderUpdates registers the order-update channel for a subaccount.
// The subscription survives reconnects.
func (f *EventFeed) SubscribeOrderUpdates(subaccountID string) error {
	return f.subscribe("order", subaccountID)
}

// SubscribeOrderFills registers the fill channel for a subaccount.
func (f *EventFeed) SubscribeOrderFills(subaccountID string) error {
	return f.subscribe("fill", subaccountID)
}

func (f *EventFeed) subscribe(channel, subaccountID string) error {
	f.subscribedMu.Lock()
	f.subscribed[channel] = subaccountID
	f.subscribedMu.Unlock()

	// Not connected yet: the initial subscription is sent on connect.
	f.connMu.Lock()
	connected := f.conn != nil
	f.connMu.Unlock()
	if !connected {
		return nil
	}

	return f.writeJSON(wsSubscribeMsg{Type: "subscribe", Channel: channel, SubaccountID: subaccountID})
}

// Run connects and maintains the WebSocket with auto-reconnect. Blocks until
// ctx is cancelled.
func (f *EventFeed) Run(ctx context.Context) error {
	backoff := time.Second

	for {
		err := f.connectAndRead(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		f.logger.Warn("event stream disconnected, reconnecting",
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
func (f *EventFeed) Close() error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn != nil {
		return f.conn.Close()
	}
	return nil
}

func (f *EventFeed) connectAndRead(ctx context.Context) error {
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

	if err := f.sendSubscriptions(); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	f.logger.Info("event stream connected")

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

		f.dispatchMessage(msg)
	}
}

func (f *EventFeed) sendSubscriptions() error {
	f.subscribedMu.RLock()
	subs := make(map[string]string, len(f.subscribed))
	for ch, id := range f.subscribed {
		subs[ch] = id
	}
	f.subscribedMu.RUnlock()

	for ch, id := range subs {
		if err := f.writeJSON(wsSubscribeMsg{Type: "subscribe", Channel: ch, SubaccountID: id}); err != nil {
			return err
		}
	}
	return nil
}

func (f *EventFeed) dispatchMessage(data []byte) {
	var envelope wsEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		f.logger.Debug("ignoring non-json ws message", "data", string(data))
		return
	}

	switch envelope.Channel {
	case "order":
		evt, err := parseOrderUpdate(data)
		if err != nil {
			f.logger.Error("unmarshal order event", "error", err)
			return
		}
		select {
		case f.orderCh <- evt:
		default:
			f.logger.Warn("order channel full, dropping event", "id", evt.ID)
		}

	case "fill":
		var frame struct {
			Data types.FillEvent `json:"data"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			f.logger.Error("unmarshal fill event", "error", err)
			return
		}
		select {
		case f.fillCh <- frame.Data:
		default:
			f.logger.Warn("fill channel full, dropping event", "order", frame.Data.OrderID)
		}

	case "subscribed", "pong":
		f.logger.Debug("ignoring event", "channel", envelope.Channel)

	default:
		f.logger.Debug("unknown ws channel", "channel", envelope.Channel)
	}
}

// parseOrderUpdate decodes an order-channel frame and normalizes the venue's
// status strings onto OrderStatus.
func parseOrderUpdate(data []byte) (types.OrderStatusEvent, error) {
	var frame struct {
		Data struct {
			ID        string `json:"id"`
			Status    string `json:"status"`
			Ticker    string `json:"ticker"`
			Filled    string `json:"filledQuantity"`
			Timestamp int64  `json:"timestamp"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &frame); err != nil {
		return types.OrderStatusEvent{}, err
	}

	evt := types.OrderStatusEvent{
		ID:          frame.Data.ID,
		Status:      normalizeStatus(frame.Data.Status),
		Instrument:  frame.Data.Ticker,
		TimestampMs: frame.Data.Timestamp,
	}
	if frame.Data.Filled != "" {
		if d, err := decimal.NewFromString(frame.Data.Filled); err == nil {
			evt.FilledQty, _ = d.Float64()
		}
	}
	return evt, nil
}

// normalizeStatus maps venue status spellings to the internal enum.
func normalizeStatus(s string) types.OrderStatus {
	switch s {
	case "NEW", "OPEN", "SUBMITTED":
		return types.StatusNew
	case "PARTIALLY_FILLED", "PARTIAL":
		return types.StatusPartiallyFilled
	case "FILLED":
		return types.StatusFilled
	case "CANCELED", "CANCELLED":
		return types.StatusCanceled
	case "EXPIRED":
		return types.StatusExpired
	default:
		return types.OrderStatus(s)
	}
}

func (f *EventFeed) pingLoop(ctx context.Context) {
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

func (f *EventFeed) writeJSON(v interface{}) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return fmt.Errorf("websocket not connected")
	}
	f.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return f.conn.WriteJSON(v)
}
