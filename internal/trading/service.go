// Package trading is the order-translation core: it turns validated webhook
// signals into leverage updates, sized market orders, and reduce-only TP/SL
// trigger orders, gated by a per-symbol cooldown.
package trading

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/AlainDevs/autoTrade/internal/exchange"
	"github.com/AlainDevs/autoTrade/internal/metrics"
	"github.com/AlainDevs/autoTrade/internal/precision"
	"github.com/AlainDevs/autoTrade/internal/signal"
)

// Exchange is the delegated client capability set the orchestrator consumes.
// *exchange.Client satisfies it; tests substitute fakes.
type Exchange interface {
	MidPrice(ctx context.Context, coin string) (float64, error)
	AssetMeta(ctx context.Context, coin string) (exchange.AssetMeta, error)
	UpdateLeverage(ctx context.Context, coin string, leverage int, cross bool) error
	PlaceMarketOrder(ctx context.Context, coin string, isBuy bool, size, slippage float64) (*exchange.OrderResponse, error)
	PlaceTriggerOrder(ctx context.Context, coin string, isBuy bool, size, triggerPx float64, kind string) (*exchange.OrderResponse, error)
	ClosePosition(ctx context.Context, coin string) (*exchange.OrderResponse, error)
}

// TradeRecord is the append-only history entry written after each dispatched
// order sequence.
type TradeRecord struct {
	Time     time.Time `json:"time"`
	Action   string    `json:"action"`
	Coin     string    `json:"coin"`
	Side     string    `json:"side,omitempty"`
	SizeUSD  float64   `json:"size_usd,omitempty"`
	Size     float64   `json:"size,omitempty"`
	AvgPrice float64   `json:"avg_price,omitempty"`
	Outcome  string    `json:"outcome"`
}

// Recorder receives trade records. Recording is best-effort and never blocks
// an order outcome.
type Recorder interface {
	Record(TradeRecord)
}

// TriggerOutcome reports one TP or SL placement attempt. Failures here do not
// roll back the market order and do not block the sibling trigger.
type TriggerOutcome struct {
	Kind     string
	Price    float64
	Response *exchange.OrderResponse
	Err      error
}

// Result is the structured outcome of one dispatched signal.
type Result struct {
	Action    string
	Coin      string
	Rejected  bool
	Remaining float64 // seconds until the cooldown window reopens
	Market    *exchange.OrderResponse
	Triggers  []TriggerOutcome
	Close     *exchange.OrderResponse
}

// Config tunes the orchestrator.
type Config struct {
	CrossMargin    bool
	MaxNotionalUSD float64 // 0 disables the guard
}

// Service composes the gate, the precision resolver, and the trigger
// calculator around the delegated exchange client.
type Service struct {
	ex   Exchange
	gate *Gate
	rec  Recorder
	log  zerolog.Logger
	cfg  Config
}

// ServiceOption configures optional collaborators.
type ServiceOption func(*Service)

// WithRecorder attaches a trade history recorder.
func WithRecorder(rec Recorder) ServiceOption {
	return func(s *Service) { s.rec = rec }
}

// NewService wires the orchestrator.
func NewService(ex Exchange, gate *Gate, log zerolog.Logger, cfg Config, opts ...ServiceOption) *Service {
	s := &Service{ex: ex, gate: gate, log: log, cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dispatch routes a validated signal to the open or close flow.
func (s *Service) Dispatch(ctx context.Context, sig signal.Signal) (*Result, error) {
	metrics.SignalsTotal.WithLabelValues(sig.Action).Inc()
	switch sig.Action {
	case signal.ActionOpen:
		return s.Open(ctx, sig)
	case signal.ActionClose:
		return s.Close(ctx, sig)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAction, sig.Action)
	}
}

// Open runs the open-position sequence: cooldown gate, leverage, sizing,
// market order, then TP/SL trigger orders against the fill.
func (s *Service) Open(ctx context.Context, sig signal.Signal) (*Result, error) {
	res := &Result{Action: sig.Action, Coin: sig.Coin}

	if s.cfg.MaxNotionalUSD > 0 && sig.SizeUSD > s.cfg.MaxNotionalUSD {
		return nil, fmt.Errorf("%w: %.2f > %.2f", ErrNotionalLimit, sig.SizeUSD, s.cfg.MaxNotionalUSD)
	}

	ok, remaining := s.gate.CheckAndRecord(sig.Coin)
	if !ok {
		metrics.CooldownRejectionsTotal.WithLabelValues(sig.Coin).Inc()
		res.Rejected = true
		res.Remaining = RemainingSeconds(remaining)
		s.log.Info().Str("coin", sig.Coin).Float64("remaining_s", res.Remaining).Msg("open rejected by cooldown")
		return res, nil
	}

	if err := s.ex.UpdateLeverage(ctx, sig.Coin, sig.Leverage, s.cfg.CrossMargin); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLeverageUpdate, err)
	}

	meta, err := s.ex.AssetMeta(ctx, sig.Coin)
	if err != nil {
		return nil, err
	}
	if meta.SzDecimals == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingPrecision, sig.Coin)
	}
	szDecimals := *meta.SzDecimals

	mid, err := s.ex.MidPrice(ctx, sig.Coin)
	if err != nil {
		return nil, err
	}

	size := precision.RoundSize(sig.SizeUSD/mid, szDecimals)
	if size <= 0 {
		return nil, fmt.Errorf("%w: %.2f USD at mid %.6f", ErrInvalidSize, sig.SizeUSD, mid)
	}

	side := "sell"
	if sig.IsBuy {
		side = "buy"
	}
	s.log.Info().Str("coin", sig.Coin).Str("side", side).Float64("size", size).
		Float64("size_usd", sig.SizeUSD).Int("leverage", sig.Leverage).Msg("placing market order")

	slippage := signal.DefaultSlippage
	if sig.Slippage != nil {
		slippage = *sig.Slippage
	}
	market, err := s.ex.PlaceMarketOrder(ctx, sig.Coin, sig.IsBuy, size, slippage)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExchangeCall, err)
	}
	metrics.OrdersTotal.WithLabelValues(sig.Coin, side).Inc()
	res.Market = market
	if !market.OK() {
		// Raw result travels back with the failure; retries are the
		// delegated client's concern, not ours.
		return res, fmt.Errorf("%w: market order status %q", ErrExchangeCall, market.Status)
	}

	if market.Filled == nil {
		s.log.Info().Str("coin", sig.Coin).Str("order_error", market.OrderError).
			Msg("market order accepted without immediate fill; skipping TP/SL")
		s.record(TradeRecord{
			Time: time.Now().UTC(), Action: sig.Action, Coin: sig.Coin, Side: side,
			SizeUSD: sig.SizeUSD, Size: size, Outcome: "unfilled",
		})
		return res, nil
	}

	fill := market.Filled
	priceDecimals := precision.PriceDecimals(szDecimals)
	for _, t := range []struct {
		kind string
		spec string
	}{
		{exchange.TriggerTakeProfit, string(sig.TPPrice)},
		{exchange.TriggerStopLoss, string(sig.SLPrice)},
	} {
		if t.spec == "" {
			continue
		}
		res.Triggers = append(res.Triggers, s.placeTrigger(ctx, sig, t.kind, t.spec, fill, priceDecimals))
	}

	s.record(TradeRecord{
		Time: time.Now().UTC(), Action: sig.Action, Coin: sig.Coin, Side: side,
		SizeUSD: sig.SizeUSD, Size: fill.TotalSize, AvgPrice: fill.AvgPrice, Outcome: "filled",
	})
	return res, nil
}

// placeTrigger resolves and rounds one TP/SL target and submits the
// reduce-only trigger order on the opposite side of the position.
func (s *Service) placeTrigger(ctx context.Context, sig signal.Signal, kind, spec string, fill *exchange.Fill, priceDecimals int) TriggerOutcome {
	isTP := kind == exchange.TriggerTakeProfit
	raw, err := ResolveTriggerPrice(spec, fill.AvgPrice, sig.IsBuy, isTP)
	if err != nil {
		s.log.Warn().Err(err).Str("coin", sig.Coin).Str("kind", kind).Str("spec", spec).Msg("trigger spec rejected")
		return TriggerOutcome{Kind: kind, Err: err}
	}
	px := precision.RoundPrice(raw, priceDecimals)

	resp, err := s.ex.PlaceTriggerOrder(ctx, sig.Coin, !sig.IsBuy, fill.TotalSize, px, kind)
	if err != nil {
		s.log.Warn().Err(err).Str("coin", sig.Coin).Str("kind", kind).Msg("trigger order failed")
		return TriggerOutcome{Kind: kind, Price: px, Err: fmt.Errorf("%w: %w", ErrExchangeCall, err)}
	}
	metrics.TriggerOrdersTotal.WithLabelValues(sig.Coin, kind).Inc()
	return TriggerOutcome{Kind: kind, Price: px, Response: resp}
}

// Close flattens the position for the signal's coin. No cooldown, no sizing.
func (s *Service) Close(ctx context.Context, sig signal.Signal) (*Result, error) {
	res := &Result{Action: sig.Action, Coin: sig.Coin}
	closed, err := s.ex.ClosePosition(ctx, sig.Coin)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExchangeCall, err)
	}
	res.Close = closed
	s.record(TradeRecord{Time: time.Now().UTC(), Action: sig.Action, Coin: sig.Coin, Outcome: closed.Status})
	return res, nil
}

func (s *Service) record(rec TradeRecord) {
	if s.rec != nil {
		s.rec.Record(rec)
	}
}
