// Package exchange is the REST client for the perp exchange: market data and
// account state come from the public info endpoint, order actions go through
// the signing agent fronting the exchange endpoint. Key custody and request
// signing live in that agent, not here.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/AlainDevs/autoTrade/internal/precision"
)

var (
	// ErrAssetNotFound means the coin is absent from the metadata universe.
	ErrAssetNotFound = errors.New("asset not found")
	// ErrPriceUnavailable means no mid price is published for the coin.
	ErrPriceUnavailable = errors.New("price unavailable")
	// ErrNoPosition means a close was requested with nothing to close.
	ErrNoPosition = errors.New("no open position")
)

// Trigger order kinds.
const (
	TriggerTakeProfit = "tp"
	TriggerStopLoss   = "sl"
)

const defaultTimeout = 10 * time.Second

// Config holds connectivity settings for the client.
type Config struct {
	BaseURL string
	Address string // account address used for state queries and closes
	Timeout time.Duration
}

// Client talks to the exchange over HTTP. The metadata universe is cached
// after the first fetch; mid prices are always fetched fresh.
type Client struct {
	http *resty.Client
	addr string
	log  zerolog.Logger

	mu   sync.Mutex
	meta map[string]AssetMeta
	idx  map[string]int
}

// New builds a client for the given gateway.
func New(cfg Config, log zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		http: resty.New().
			SetBaseURL(cfg.BaseURL).
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json"),
		addr: cfg.Address,
		log:  log,
		meta: make(map[string]AssetMeta),
		idx:  make(map[string]int),
	}
}

func (c *Client) info(ctx context.Context, body, out any) error {
	resp, err := c.http.R().SetContext(ctx).SetBody(body).SetResult(out).Post("/info")
	if err != nil {
		return fmt.Errorf("info request: %w", err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("info request: status %d: %s", resp.StatusCode(), resp.Body())
	}
	return nil
}

// MidPrice returns the current mid price for a coin.
func (c *Client) MidPrice(ctx context.Context, coin string) (float64, error) {
	var mids map[string]string
	if err := c.info(ctx, map[string]string{"type": "allMids"}, &mids); err != nil {
		return 0, err
	}
	raw, ok := mids[coin]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrPriceUnavailable, coin)
	}
	px, err := strconv.ParseFloat(raw, 64)
	if err != nil || px <= 0 {
		return 0, fmt.Errorf("%w: %s mid %q", ErrPriceUnavailable, coin, raw)
	}
	return px, nil
}

// AssetMeta returns the metadata entry for a coin, loading the universe on
// first use.
func (c *Client) AssetMeta(ctx context.Context, coin string) (AssetMeta, error) {
	c.mu.Lock()
	meta, ok := c.meta[coin]
	c.mu.Unlock()
	if ok {
		return meta, nil
	}
	if err := c.refreshMeta(ctx); err != nil {
		return AssetMeta{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	meta, ok = c.meta[coin]
	if !ok {
		return AssetMeta{}, fmt.Errorf("%w: %s", ErrAssetNotFound, coin)
	}
	return meta, nil
}

func (c *Client) refreshMeta(ctx context.Context) error {
	var out metaResponse
	if err := c.info(ctx, map[string]string{"type": "meta"}, &out); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, m := range out.Universe {
		c.meta[m.Name] = m
		c.idx[m.Name] = i
	}
	return nil
}

func (c *Client) assetIndex(ctx context.Context, coin string) (int, error) {
	if _, err := c.AssetMeta(ctx, coin); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.idx[coin], nil
}

func (c *Client) action(ctx context.Context, action any) (*OrderResponse, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{"action": action}).
		Post("/exchange")
	if err != nil {
		return nil, fmt.Errorf("exchange request: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("exchange request: status %d: %s", resp.StatusCode(), resp.Body())
	}
	return parseOrderResponse(resp.Body())
}

// UpdateLeverage sets the leverage for a coin before opening.
func (c *Client) UpdateLeverage(ctx context.Context, coin string, leverage int, cross bool) error {
	asset, err := c.assetIndex(ctx, coin)
	if err != nil {
		return err
	}
	res, err := c.action(ctx, map[string]any{
		"type":     "updateLeverage",
		"asset":    asset,
		"isCross":  cross,
		"leverage": leverage,
	})
	if err != nil {
		return err
	}
	if !res.OK() {
		return fmt.Errorf("update leverage %s to %dx: %s", coin, leverage, res.Status)
	}
	c.log.Info().Str("coin", coin).Int("leverage", leverage).Bool("cross", cross).Msg("leverage updated")
	return nil
}

// PlaceMarketOrder submits an aggressive IoC order at the mid price slipped
// by the given fraction, rounded to the asset's price precision.
func (c *Client) PlaceMarketOrder(ctx context.Context, coin string, isBuy bool, size, slippage float64) (*OrderResponse, error) {
	asset, err := c.assetIndex(ctx, coin)
	if err != nil {
		return nil, err
	}
	mid, err := c.MidPrice(ctx, coin)
	if err != nil {
		return nil, err
	}
	px := mid * (1 + slippage)
	if !isBuy {
		px = mid * (1 - slippage)
	}
	meta, err := c.AssetMeta(ctx, coin)
	if err != nil {
		return nil, err
	}
	szDecimals := 0
	if meta.SzDecimals != nil {
		szDecimals = *meta.SzDecimals
	}
	px = precision.RoundPrice(px, precision.PriceDecimals(szDecimals))

	res, err := c.action(ctx, map[string]any{
		"type": "order",
		"orders": []map[string]any{{
			"a": asset,
			"b": isBuy,
			"p": formatFloat(px),
			"s": formatFloat(size),
			"r": false,
			"t": map[string]any{"limit": map[string]any{"tif": "Ioc"}},
		}},
		"grouping": "na",
	})
	if err != nil {
		return nil, err
	}
	c.log.Info().Str("coin", coin).Bool("buy", isBuy).Float64("size", size).Float64("px", px).
		Str("status", res.Status).Msg("market order submitted")
	return res, nil
}

// PlaceTriggerOrder submits a reduce-only TP or SL trigger order.
func (c *Client) PlaceTriggerOrder(ctx context.Context, coin string, isBuy bool, size, triggerPx float64, kind string) (*OrderResponse, error) {
	asset, err := c.assetIndex(ctx, coin)
	if err != nil {
		return nil, err
	}
	res, err := c.action(ctx, map[string]any{
		"type": "order",
		"orders": []map[string]any{{
			"a": asset,
			"b": isBuy,
			"p": formatFloat(triggerPx),
			"s": formatFloat(size),
			"r": true,
			"t": map[string]any{"trigger": map[string]any{
				"isMarket":  true,
				"triggerPx": formatFloat(triggerPx),
				"tpsl":      kind,
			}},
		}},
		"grouping": "na",
	})
	if err != nil {
		return nil, err
	}
	c.log.Info().Str("coin", coin).Str("kind", kind).Float64("trigger_px", triggerPx).
		Str("status", res.Status).Msg("trigger order submitted")
	return res, nil
}

// ClosePosition looks up the open position for a coin and flattens it with a
// reduce-only IoC order in the opposite direction.
func (c *Client) ClosePosition(ctx context.Context, coin string) (*OrderResponse, error) {
	asset, err := c.assetIndex(ctx, coin)
	if err != nil {
		return nil, err
	}
	var state clearinghouseState
	if err := c.info(ctx, map[string]string{"type": "clearinghouseState", "user": c.addr}, &state); err != nil {
		return nil, err
	}
	var szi float64
	for _, p := range state.AssetPositions {
		if p.Position.Coin == coin {
			szi, _ = strconv.ParseFloat(p.Position.Szi, 64)
			break
		}
	}
	if szi == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoPosition, coin)
	}

	isBuy := szi < 0 // closing a short buys back
	size := szi
	if size < 0 {
		size = -size
	}
	mid, err := c.MidPrice(ctx, coin)
	if err != nil {
		return nil, err
	}
	meta, err := c.AssetMeta(ctx, coin)
	if err != nil {
		return nil, err
	}
	szDecimals := 0
	if meta.SzDecimals != nil {
		szDecimals = *meta.SzDecimals
	}
	px := mid * (1 - closeSlippage)
	if isBuy {
		px = mid * (1 + closeSlippage)
	}
	px = precision.RoundPrice(px, precision.PriceDecimals(szDecimals))

	res, err := c.action(ctx, map[string]any{
		"type": "order",
		"orders": []map[string]any{{
			"a": asset,
			"b": isBuy,
			"p": formatFloat(px),
			"s": formatFloat(size),
			"r": true,
			"t": map[string]any{"limit": map[string]any{"tif": "Ioc"}},
		}},
		"grouping": "na",
	})
	if err != nil {
		return nil, err
	}
	c.log.Info().Str("coin", coin).Float64("size", size).Str("status", res.Status).Msg("position close submitted")
	return res, nil
}

const closeSlippage = 0.05

// AccountState fetches the perp account value and spot balances for an
// address. An empty address falls back to the configured account.
func (c *Client) AccountState(ctx context.Context, address string) (*AccountState, error) {
	if address == "" {
		address = c.addr
	}
	var perp clearinghouseState
	if err := c.info(ctx, map[string]string{"type": "clearinghouseState", "user": address}, &perp); err != nil {
		return nil, err
	}
	var spot spotClearinghouseState
	if err := c.info(ctx, map[string]string{"type": "spotClearinghouseState", "user": address}, &spot); err != nil {
		return nil, err
	}
	return &AccountState{
		Address:      address,
		AccountValue: perp.MarginSummary.AccountValue,
		SpotBalances: spot.Balances,
	}, nil
}

func formatFloat(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}
