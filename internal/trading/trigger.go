package trading

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidSpec marks a TP/SL value that is neither a number nor a
// percentage string.
var ErrInvalidSpec = errors.New("invalid trigger spec")

// ResolveTriggerPrice turns a TP/SL spec into a concrete target price given
// the entry price, position direction, and objective.
//
// A trailing '%' makes the value a percentage of entry. A bare value strictly
// between 0 and 1 is read as a fraction of entry — which means a literal
// sub-1.0 absolute price cannot be expressed this way; senders trading
// sub-dollar assets must use the '%' form. Everything else is an absolute
// price returned unchanged.
func ResolveTriggerPrice(spec string, entry float64, isLong, isTakeProfit bool) (float64, error) {
	s := strings.TrimSpace(spec)
	if s == "" {
		return 0, ErrInvalidSpec
	}
	if strings.HasSuffix(s, "%") {
		pct, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(s, "%")), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidSpec, spec)
		}
		return offsetFromEntry(pct/100, entry, isLong, isTakeProfit), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSpec, spec)
	}
	if v > 0 && v < 1 {
		return offsetFromEntry(v, entry, isLong, isTakeProfit), nil
	}
	return v, nil
}

// offsetFromEntry moves entry by fraction p in the direction implied by the
// position side and the objective: take-profits move with the position,
// stop-losses against it.
func offsetFromEntry(p, entry float64, isLong, isTakeProfit bool) float64 {
	if isLong == isTakeProfit {
		return entry * (1 + p)
	}
	return entry * (1 - p)
}
