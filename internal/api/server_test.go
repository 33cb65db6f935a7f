package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aaronyhsoh33/market-maker-bot/internal/config"
	"github.com/aaronyhsoh33/market-maker-bot/pkg/types"
)

type fakeProvider struct {
	snap Snapshot
}

func (f *fakeProvider) Snapshot() Snapshot { return f.snap }

func testServer(t *testing.T, provider SnapshotProvider) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	s := NewServer(config.DashboardConfig{Port: 0}, provider, nil, prometheus.NewRegistry(), logger)
	srv := httptest.NewServer(s.server.Handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestHandleHealth(t *testing.T) {
	t.Parallel()
	srv := testServer(t, &fakeProvider{})

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestHandleSnapshot(t *testing.T) {
	t.Parallel()

	bid := &types.Order{ID: "b1", Side: types.Bid, Price: 49_950, Quantity: 0.001, Status: types.StatusNew}
	provider := &fakeProvider{
		snap: Snapshot{
			Timestamp: time.Now(),
			Instruments: []InstrumentStatus{{
				Instrument: "BTCUSD",
				Mid:        50_000,
				Bid:        NewOrderView(bid),
			}},
		},
	}
	srv := testServer(t, provider)

	resp, err := http.Get(srv.URL + "/api/snapshot")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	var snap Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if len(snap.Instruments) != 1 {
		t.Fatalf("instruments = %d, want 1", len(snap.Instruments))
	}
	ins := snap.Instruments[0]
	if ins.Instrument != "BTCUSD" || ins.Mid != 50_000 {
		t.Errorf("instrument = %+v", ins)
	}
	if ins.Bid == nil || ins.Bid.ID != "b1" || ins.Bid.Side != "BID" {
		t.Errorf("bid view = %+v", ins.Bid)
	}
}

func TestHandleMetricsExposed(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "mm_test_gauge", Help: "test"})
	reg.MustRegister(gauge)
	gauge.Set(42)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	s := NewServer(config.DashboardConfig{Port: 0}, &fakeProvider{}, nil, reg, logger)
	srv := httptest.NewServer(s.server.Handler)
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestOrderViewSynthetic(t *testing.T) {
	t.Parallel()

	view := NewOrderView(&types.Order{
		ID:     types.SyntheticIDPrefix + "bid-p1",
		Side:   types.Bid,
		Status: types.StatusFilled,
	})
	if !view.Synthetic {
		t.Error("synthetic flag should be set")
	}
	if NewOrderView(nil) != nil {
		t.Error("nil order maps to nil view")
	}
}
