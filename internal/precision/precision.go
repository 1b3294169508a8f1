// Package precision rounds order sizes and prices to the increments the
// exchange will accept for perpetual contracts.
package precision

import "strconv"

// The exchange caps perp prices at 5 significant figures and derives the
// allowed decimal places from the asset's size precision: price decimals are
// always MaxDecimals minus szDecimals.
const (
	MaxDecimals  = 6
	PriceSigFigs = 5
)

// PriceDecimals derives the price decimal places for an asset from its size
// decimal places, clamped to [0, MaxDecimals].
func PriceDecimals(szDecimals int) int {
	d := MaxDecimals - szDecimals
	if d < 0 {
		return 0
	}
	if d > MaxDecimals {
		return MaxDecimals
	}
	return d
}

// RoundSize rounds a raw quantity to the asset's size precision.
func RoundSize(raw float64, szDecimals int) float64 {
	return RoundDecimals(raw, szDecimals)
}

// RoundPrice reproduces the exchange's price validation: reduce to
// PriceSigFigs significant figures first, then round to the fixed decimal
// count. The two stages are not interchangeable; the intermediate precision
// loss is what the exchange checks against.
func RoundPrice(raw float64, priceDecimals int) float64 {
	return RoundDecimals(RoundSignificant(raw, PriceSigFigs), priceDecimals)
}

// RoundSignificant rounds x to the given number of significant figures by
// formatting and re-parsing, matching the string-based rounding the exchange
// SDKs perform.
func RoundSignificant(x float64, figs int) float64 {
	if figs <= 0 {
		return x
	}
	out, err := strconv.ParseFloat(strconv.FormatFloat(x, 'g', figs, 64), 64)
	if err != nil {
		return x
	}
	return out
}

// RoundDecimals rounds x to a fixed number of decimal places.
func RoundDecimals(x float64, places int) float64 {
	if places < 0 {
		places = 0
	}
	out, err := strconv.ParseFloat(strconv.FormatFloat(x, 'f', places, 64), 64)
	if err != nil {
		return x
	}
	return out
}
