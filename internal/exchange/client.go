package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/aaronyhsoh33/market-maker-bot/internal/config"
	"github.com/aaronyhsoh33/market-maker-bot/pkg/types"
)

// Client is the venue REST API client. It wraps a resty HTTP client with
// the configured timeout, transport-level 5xx retry, and request signing.
type Client struct {
	http       *resty.Client
	signer     *Signer
	subaccount string
	logger     *slog.Logger
}

// orderPayload is the REST body for POST /v1/order. Prices and quantities
// are decimal strings.
type orderPayload struct {
	ClientOrderID string `json:"clientOrderId"`
	ProductID     string `json:"productId"`
	OrderType     string `json:"orderType"`
	Quantity      string `json:"quantity"`
	Side          int    `json:"side"`
	Price         string `json:"price"`
	TimeInForce   string `json:"timeInForce"`
	ExpiresAt     int64  `json:"expiresAt"`
	Subaccount    string `json:"subaccount"`
	Sender        string `json:"sender"`
	Signature     string `json:"signature"`
}

// cancelPayload is the REST body for POST /v1/order/cancel.
type cancelPayload struct {
	OrderIDs   []string `json:"orderIds"`
	Subaccount string   `json:"subaccount"`
	Sender     string   `json:"sender"`
	Signature  string   `json:"signature"`
}

// dataEnvelope is the venue's standard response wrapper.
type dataEnvelope[T any] struct {
	Data T `json:"data"`
}

// NewClient creates a REST client for the venue.
func NewClient(cfg config.ExchangeConfig, signer *Signer, logger *slog.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:       httpClient,
		signer:     signer,
		subaccount: cfg.Subaccount,
		logger:     logger.With("component", "exchange"),
	}
}

// PlaceOrder signs and submits one limit order. The returned ack carries the
// venue order id; an empty id means the order was not accepted.
func (c *Client) PlaceOrder(ctx context.Context, req types.OrderRequest) (*types.OrderAck, error) {
	sig, err := c.signer.SignOrder(req, c.subaccount)
	if err != nil {
		return nil, err
	}

	payload := orderPayload{
		ClientOrderID: req.ClientOrderID,
		ProductID:     req.ProductID,
		OrderType:     string(req.OrderType),
		Quantity:      decimal.NewFromFloat(req.Quantity).String(),
		Side:          int(req.Side),
		Price:         decimal.NewFromFloat(req.Price).String(),
		TimeInForce:   string(req.TimeInForce),
		ExpiresAt:     req.ExpiresAtSec,
		Subaccount:    c.subaccount,
		Sender:        c.signer.Address().Hex(),
		Signature:     sig,
	}

	var result dataEnvelope[types.OrderAck]
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&result).
		Post("/v1/order")
	if err != nil {
		return nil, fmt.Errorf("place order: %w", err)
	}
	if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusCreated {
		return nil, fmt.Errorf("place order: status %d: %s", resp.StatusCode(), resp.String())
	}

	return &result.Data, nil
}

// CancelOrders cancels the given order ids for the request's subaccount in
// one call.
func (c *Client) CancelOrders(ctx context.Context, req types.CancelRequest) (*types.CancelResponse, error) {
	if len(req.OrderIDs) == 0 {
		return &types.CancelResponse{}, nil
	}

	sig, err := c.signer.SignCancel(req)
	if err != nil {
		return nil, err
	}

	payload := cancelPayload{
		OrderIDs:   req.OrderIDs,
		Subaccount: req.Subaccount,
		Sender:     c.signer.Address().Hex(),
		Signature:  sig,
	}

	var result dataEnvelope[[]types.CancelResult]
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&result).
		Post("/v1/order/cancel")
	if err != nil {
		return nil, fmt.Errorf("cancel orders: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("cancel orders: status %d: %s", resp.StatusCode(), resp.String())
	}

	c.logger.Info("orders cancelled", "count", len(result.Data))
	return &types.CancelResponse{Results: result.Data}, nil
}

// Positions fetches open positions for a subaccount, optionally filtered to
// the given product ids.
func (c *Client) Positions(ctx context.Context, subaccountID string, productIDs []string) ([]types.Position, error) {
	r := c.http.R().
		SetContext(ctx).
		SetQueryParam("subaccountId", subaccountID)
	if len(productIDs) > 0 {
		r.SetQueryParam("productIds", strings.Join(productIDs, ","))
	}

	var result dataEnvelope[[]types.Position]
	resp, err := r.SetResult(&result).Get("/v1/position")
	if err != nil {
		return nil, fmt.Errorf("positions: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("positions: status %d: %s", resp.StatusCode(), resp.String())
	}

	return result.Data, nil
}

// Products fetches the full product catalog.
func (c *Client) Products(ctx context.Context) ([]types.Product, error) {
	var result dataEnvelope[[]types.Product]
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&result).
		Get("/v1/product")
	if err != nil {
		return nil, fmt.Errorf("products: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("products: status %d: %s", resp.StatusCode(), resp.String())
	}

	return result.Data, nil
}

// ServerTime pings the venue clock endpoint and returns its timestamp.
func (c *Client) ServerTime(ctx context.Context) (int64, error) {
	var result dataEnvelope[struct {
		Timestamp int64 `json:"timestamp"`
	}]
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&result).
		Get("/v1/time")
	if err != nil {
		return 0, fmt.Errorf("server time: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return 0, fmt.Errorf("server time: status %d", resp.StatusCode())
	}
	return result.Data.Timestamp, nil
}
