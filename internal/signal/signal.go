// Package signal models the webhook payload shared between the HTTP layer
// and the trading service.
package signal

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Recognized actions. Anything else is rejected before touching the exchange.
const (
	ActionOpen  = "open"
	ActionClose = "close"
)

// Defaults applied by Normalize when the sender omits optional fields.
const (
	DefaultLeverage = 10
	DefaultSlippage = 0.05
)

// ErrValidation marks malformed or incomplete signals. Handlers map it to a
// 400 response; nothing downstream of it runs.
var ErrValidation = errors.New("invalid signal")

// PriceSpec carries a TP/SL target as sent by the webhook. TradingView
// templates emit these as either JSON strings ("5%", "48000") or bare
// numbers, so it accepts both.
type PriceSpec string

func (p *PriceSpec) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = PriceSpec(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*p = PriceSpec(n.String())
	return nil
}

// Signal is one inbound trading intent.
type Signal struct {
	Action   string    `json:"action"`
	Coin     string    `json:"coin"`
	IsBuy    bool      `json:"is_buy"`
	SizeUSD  float64   `json:"size_usd"`
	Leverage int       `json:"leverage"`
	Slippage *float64  `json:"slippage"`
	TPPrice  PriceSpec `json:"tp_price"`
	SLPrice  PriceSpec `json:"sl_price"`
	Secret   string    `json:"secret"`
}

// Normalize lowercases the action and fills defaults for open orders.
func (s *Signal) Normalize() {
	s.Action = strings.ToLower(strings.TrimSpace(s.Action))
	s.Coin = strings.TrimSpace(s.Coin)
	if s.Leverage == 0 {
		s.Leverage = DefaultLeverage
	}
	// Slippage defaults only when the key is absent; an explicit 0 means the
	// sender wants no slack on the aggressive price.
	if s.Slippage == nil {
		v := DefaultSlippage
		s.Slippage = &v
	}
}

// Validate checks the normalized signal. Open signals need a positive USD
// notional; close signals only need a coin.
func (s *Signal) Validate() error {
	switch s.Action {
	case ActionOpen, ActionClose:
	default:
		return fmt.Errorf("%w: unsupported action %q", ErrValidation, s.Action)
	}
	if s.Coin == "" {
		return fmt.Errorf("%w: missing coin", ErrValidation)
	}
	if s.Action == ActionOpen {
		if s.SizeUSD <= 0 {
			return fmt.Errorf("%w: size_usd must be positive", ErrValidation)
		}
		if s.Leverage <= 0 {
			return fmt.Errorf("%w: leverage must be positive", ErrValidation)
		}
		if s.Slippage != nil && *s.Slippage < 0 {
			return fmt.Errorf("%w: slippage must not be negative", ErrValidation)
		}
	}
	return nil
}
