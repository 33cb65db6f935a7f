package oracle

import (
	"log/slog"
	"os"
	"testing"
	"time"
)

func testFeed(t *testing.T, now time.Time) *Feed {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	f := NewFeed("wss://example.invalid/ws", logger)
	f.now = func() time.Time { return now }
	return f
}

func TestDecodeTickFresh(t *testing.T) {
	t.Parallel()
	now := time.UnixMilli(1_700_000_060_000)
	f := testFeed(t, now)

	data := []byte(`{
		"type": "price_update",
		"symbol": "BTCUSD",
		"price": "50000.5",
		"conf": "12.5",
		"publish_time": 1700000059000
	}`)

	tick, ok, err := f.decodeTick(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !ok {
		t.Fatal("fresh tick should pass the filter")
	}
	if tick.Instrument != "BTCUSD" || tick.Price != 50_000.5 || tick.Confidence != 12.5 {
		t.Errorf("tick = %+v", tick)
	}
	if tick.TimestampMs != 1_700_000_059_000 {
		t.Errorf("timestamp = %d", tick.TimestampMs)
	}
}

func TestDecodeTickStaleDropped(t *testing.T) {
	t.Parallel()
	now := time.UnixMilli(1_700_000_120_001)
	f := testFeed(t, now)

	// Published 60.001s before "now" — past the cutoff.
	data := []byte(`{"type":"price_update","symbol":"BTCUSD","price":"50000","conf":"1","publish_time":1700000060000}`)

	_, ok, err := f.decodeTick(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ok {
		t.Error("stale tick must be dropped at the feed edge")
	}
}

func TestDecodeTickExactlyAtCutoffKept(t *testing.T) {
	t.Parallel()
	now := time.UnixMilli(1_700_000_120_000)
	f := testFeed(t, now)

	// Exactly 60s old: kept.
	data := []byte(`{"type":"price_update","symbol":"BTCUSD","price":"50000","conf":"1","publish_time":1700000060000}`)

	_, ok, err := f.decodeTick(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !ok {
		t.Error("tick exactly at the cutoff should be kept")
	}
}

func TestDecodeTickIgnoresOtherFrames(t *testing.T) {
	t.Parallel()
	f := testFeed(t, time.UnixMilli(1_700_000_000_000))

	for _, data := range []string{
		`{"type":"subscribed","symbols":["BTCUSD"]}`,
		`{"type":"price_update","price":"1","conf":"1","publish_time":1700000000000}`, // no symbol
	} {
		if _, ok, err := f.decodeTick([]byte(data)); err != nil || ok {
			t.Errorf("frame %s: ok=%v err=%v, want ignored", data, ok, err)
		}
	}
}

func TestHandleMessageDeliversTick(t *testing.T) {
	t.Parallel()
	now := time.UnixMilli(1_700_000_000_000)
	f := testFeed(t, now)

	f.handleMessage([]byte(`{"type":"price_update","symbol":"ETHUSD","price":"3000","conf":"2","publish_time":1700000000000}`))

	select {
	case tick := <-f.Ticks():
		if tick.Instrument != "ETHUSD" || tick.Price != 3000 {
			t.Errorf("tick = %+v", tick)
		}
	default:
		t.Fatal("expected a tick on the channel")
	}
}
