// Ethereal Market Maker — an automated quoting bot for perpetual futures.
//
// Architecture:
//
//	main.go              — entry point: env config, catalog warmup, engine, signal handling
//	engine/engine.go     — orchestrator: cadence loop, risk cancels, placement, reconciliation
//	pricing/pricing.go   — pure quote math: bp spreads, tick rounding, deviation thresholds
//	market/pricebook.go  — latest oracle tick per instrument; history.go keeps a bounded ring
//	risk/evaluator.go    — decides which quotes to pull when price drifts past the threshold
//	state/state.go       — per-instrument order slots, inventory, single-flight locks
//	exchange/client.go   — signed REST order management (place/cancel/positions/products)
//	exchange/events.go   — WebSocket order-status and fill stream with auto-reconnect
//	oracle/feed.go       — WebSocket price feed, normalized ticks, stale-tick filter
//	api/server.go        — observability: health, snapshot, Prometheus metrics, WS stream
//
// How it trades:
//
//	Every refresh cycle the bot projects a bid below and an ask above the
//	oracle mid using the configured basis-point spread. Quotes that drift
//	more than the deviation threshold from mid are cancelled; empty sides
//	are re-quoted. Orders rest as GTD limits so the venue expires anything
//	the bot fails to cancel. Pre-existing positions are folded in at start
//	as synthetic filled orders, and a clean shutdown bulk-cancels every
//	live order before disconnecting.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"

	"github.com/aaronyhsoh33/market-maker-bot/internal/api"
	"github.com/aaronyhsoh33/market-maker-bot/internal/config"
	"github.com/aaronyhsoh33/market-maker-bot/internal/engine"
	"github.com/aaronyhsoh33/market-maker-bot/internal/exchange"
	"github.com/aaronyhsoh33/market-maker-bot/internal/metrics"
	"github.com/aaronyhsoh33/market-maker-bot/internal/oracle"
	"github.com/aaronyhsoh33/market-maker-bot/pkg/types"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Set up logger
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	signer, err := exchange.NewSigner(cfg.Exchange.PrivateKey)
	if err != nil {
		logger.Error("failed to create signer", "error", err)
		os.Exit(1)
	}

	client := exchange.NewClient(cfg.Exchange, signer, logger)

	// Resolve the instrument table from env config + the venue catalog.
	instruments, err := buildInstruments(cfg, client, logger)
	if err != nil {
		logger.Error("failed to build instrument table", "error", err)
		os.Exit(1)
	}
	if len(instruments) == 0 {
		logger.Error("no configured ticker found in the product catalog")
		os.Exit(1)
	}

	m := metrics.New()
	oracleFeed := oracle.NewFeed(cfg.Oracle.WSURL, logger)
	eventFeed := exchange.NewEventFeed(cfg.Exchange.WSURL, logger)

	eng := engine.New(*cfg, instruments, client, oracleFeed, eventFeed, m, logger)

	// Start observability server if enabled
	var apiServer *api.Server
	if cfg.Dashboard.Enabled {
		apiServer = api.NewServer(cfg.Dashboard, eng, eng.StreamEvents(), m.Registry, logger)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error("observability server failed", "error", err)
			}
		}()
	}

	if err := eng.Start(); err != nil {
		logger.Error("failed to start engine", "error", err)
		os.Exit(1)
	}

	logger.Info("market maker started",
		"instruments", len(instruments),
		"refresh_cycle", cfg.RefreshCycle,
		"spread_bps", cfg.SpreadBps,
		"max_deviation_pct", cfg.MaxDeviationPct,
	)

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	if apiServer != nil {
		if err := apiServer.Stop(); err != nil {
			logger.Error("failed to stop observability server", "error", err)
		}
	}

	eng.Stop()
}

// buildInstruments joins the configured tickers with the venue catalog.
// Tickers the venue does not list are skipped with a warning; they are left
// out of the instrument table, so they are neither subscribed nor quoted.
func buildInstruments(cfg *config.Config, client *exchange.Client, logger *slog.Logger) (map[string]types.InstrumentConfig, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Exchange.Timeout)
	defer cancel()

	products, err := client.Products(ctx)
	if err != nil {
		return nil, err
	}

	byTicker := make(map[string]types.Product, len(products))
	for _, p := range products {
		byTicker[p.Ticker] = p
	}

	instruments := make(map[string]types.InstrumentConfig, len(cfg.Tickers))
	for _, ticker := range cfg.Tickers {
		product, ok := byTicker[ticker]
		if !ok {
			logger.Warn("ticker not listed on venue, skipping", "ticker", ticker)
			continue
		}

		asset := cfg.Asset(ticker)
		instruments[ticker] = types.InstrumentConfig{
			Instrument:      ticker,
			OrderSize:       asset.OrderSize,
			SpreadBps:       asset.SpreadBps,
			MaxDeviationPct: asset.MaxDeviationPct,
			TickSize:        parseDecimal(product.TickSize),
			MinQty:          parseDecimal(product.MinQty),
			MaxQty:          parseDecimal(product.MaxQty),
			ProductID:       product.ID,
		}
	}

	return instruments, nil
}

func parseDecimal(s string) float64 {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	f, _ := d.Float64()
	return f
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
