package exchange

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// parseOrderResponse maps the exchange reply envelope onto OrderResponse.
// A per-order error inside an "ok" envelope leaves Filled nil and records the
// message; callers treat that like an accepted-but-unfilled order, the same
// way the exchange SDKs do.
func parseOrderResponse(body []byte) (*OrderResponse, error) {
	var wire exchangeResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("decode exchange response: %w", err)
	}
	out := &OrderResponse{
		Status: wire.Status,
		Raw:    append(json.RawMessage(nil), body...),
	}
	if wire.Status != "ok" {
		return out, nil
	}
	statuses := wire.Response.Data.Statuses
	if len(statuses) == 0 {
		return out, nil
	}
	st := statuses[0]
	if st.Error != "" {
		out.OrderError = st.Error
		return out, nil
	}
	if st.Filled != nil {
		size, err := strconv.ParseFloat(st.Filled.TotalSz, 64)
		if err != nil {
			return nil, fmt.Errorf("decode fill size %q: %w", st.Filled.TotalSz, err)
		}
		px, err := strconv.ParseFloat(st.Filled.AvgPx, 64)
		if err != nil {
			return nil, fmt.Errorf("decode fill price %q: %w", st.Filled.AvgPx, err)
		}
		out.Filled = &Fill{TotalSize: size, AvgPrice: px}
	}
	return out, nil
}
