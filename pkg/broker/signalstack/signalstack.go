// Package signalstack adapts the teacher's webhook-based order relay into
// the platform's broker.BrokerClient capability. The underlying transport
// only accepts one-way order webhooks (no account/position query, no order
// status), so those methods return plain descriptive errors rather than silently fabricating data — a narrower broker than the full
// interface describes, which is faithful to what a webhook relay actually
// is.
package signalstack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ridgeline-quant/ntengine/pkg/broker"
	"github.com/ridgeline-quant/ntengine/pkg/logging"
)

type Client struct {
	webhookURL string
	http       *http.Client
	log        zerolog.Logger
}

func New(webhookURL string) *Client {
	return &Client{
		webhookURL: webhookURL,
		http:       &http.Client{Timeout: 10 * time.Second},
		log:        logging.For("broker.signalstack"),
	}
}

type webhookOrder struct {
	Ticker string `json:"ticker"`
	Action string `json:"action"` // buy, sell, short, cover
	Qty    string `json:"qty"`
	Type   string `json:"order_type"`
	Limit  string `json:"limit_price,omitempty"`
}

func (c *Client) SubmitMarketOrder(ctx context.Context, req broker.OrderRequest) (broker.Order, error) {
	body := webhookOrder{Ticker: req.Symbol, Action: actionFor(req.Side), Qty: req.Qty, Type: "market"}
	payload, err := json.Marshal(body)
	if err != nil {
		return broker.Order{}, fmt.Errorf("marshal webhook order: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return broker.Order{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return broker.Order{}, fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return broker.Order{}, fmt.Errorf("webhook returned http %d", resp.StatusCode)
	}

	return broker.Order{
		ID: uuid.NewString(), Symbol: req.Symbol, Side: req.Side, Qty: req.Qty,
		Status: broker.StatusPending, SubmittedAt: time.Now(),
	}, nil
}

func actionFor(side broker.OrderSide) string {
	switch side {
	case broker.Buy:
		return "buy"
	case broker.Sell:
		return "sell"
	case broker.Short:
		return "short"
	case broker.Cover:
		return "cover"
	default:
		return "buy"
	}
}

func (c *Client) GetAccount(ctx context.Context) (broker.Account, error) {
	return broker.Account{}, fmt.Errorf("signalstack webhook relay does not expose account state")
}

func (c *Client) GetPositions(ctx context.Context) ([]broker.Position, error) {
	return nil, fmt.Errorf("signalstack webhook relay does not expose positions")
}

func (c *Client) GetPosition(ctx context.Context, symbol string) (broker.Position, error) {
	return broker.Position{}, fmt.Errorf("signalstack webhook relay does not expose positions")
}

func (c *Client) GetOrder(ctx context.Context, id string) (broker.Order, error) {
	return broker.Order{}, fmt.Errorf("signalstack webhook relay does not support order status lookups")
}

func (c *Client) GetOrders(ctx context.Context) ([]broker.Order, error) {
	return nil, fmt.Errorf("signalstack webhook relay does not support order listing")
}

func (c *Client) CancelOrder(ctx context.Context, id string) error {
	return fmt.Errorf("signalstack webhook relay does not support cancellation")
}

func (c *Client) ClosePosition(ctx context.Context, symbol string) error {
	_, err := c.SubmitMarketOrder(ctx, broker.OrderRequest{Symbol: symbol, Side: broker.Sell, Qty: "0", Type: "market"})
	return err
}

func (c *Client) IsPaper() bool      { return false }
func (c *Client) BrokerName() string { return "signalstack" }
