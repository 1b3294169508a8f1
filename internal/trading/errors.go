package trading

import "errors"

// Sentinel failures surfaced by the orchestrator. Upstream data errors
// (asset not found, price unavailable) pass through from the exchange
// package unchanged.
var (
	ErrUnsupportedAction = errors.New("unsupported action")
	ErrMissingPrecision  = errors.New("asset size precision missing")
	ErrInvalidSize       = errors.New("order size not positive after rounding")
	ErrLeverageUpdate    = errors.New("leverage update failed")
	ErrExchangeCall      = errors.New("exchange call failed")
	ErrNotionalLimit     = errors.New("size_usd above configured notional limit")
)
