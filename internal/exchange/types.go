package exchange

import "encoding/json"

// AssetMeta is one entry of the perp metadata universe. SzDecimals is a
// pointer so an asset listed without a size precision can be told apart from
// a legitimate zero.
type AssetMeta struct {
	Name        string `json:"name"`
	SzDecimals  *int   `json:"szDecimals"`
	MaxLeverage int    `json:"maxLeverage"`
}

type metaResponse struct {
	Universe []AssetMeta `json:"universe"`
}

// Fill reports the immediately executed part of a market order.
type Fill struct {
	TotalSize float64
	AvgPrice  float64
}

// OrderResponse is the parsed outcome of an order action. Raw keeps the full
// exchange reply for diagnostics; Filled is nil when the order rested or was
// rejected.
type OrderResponse struct {
	Status     string
	OrderError string // per-order rejection inside an "ok" envelope
	Filled     *Fill
	Raw        json.RawMessage
}

// OK reports whether the exchange accepted the action.
func (r *OrderResponse) OK() bool { return r != nil && r.Status == "ok" }

// SpotBalance is one coin balance from the spot account state.
type SpotBalance struct {
	Coin  string `json:"coin"`
	Total string `json:"total"`
	Hold  string `json:"hold"`
}

// AccountState bundles the perp account value with spot balances, the same
// view the /balance endpoint exposes.
type AccountState struct {
	Address      string        `json:"address"`
	AccountValue string        `json:"perp_account_value"`
	SpotBalances []SpotBalance `json:"spot_balances"`
}

// Wire shapes below mirror the exchange API responses.

type fillStatus struct {
	TotalSz string `json:"totalSz"`
	AvgPx   string `json:"avgPx"`
	Oid     int64  `json:"oid"`
}

type restingStatus struct {
	Oid int64 `json:"oid"`
}

type orderStatus struct {
	Resting *restingStatus `json:"resting,omitempty"`
	Filled  *fillStatus    `json:"filled,omitempty"`
	Error   string         `json:"error,omitempty"`
}

type exchangeResponse struct {
	Status   string `json:"status"`
	Response struct {
		Type string `json:"type"`
		Data struct {
			Statuses []orderStatus `json:"statuses"`
		} `json:"data"`
	} `json:"response"`
}

type clearinghouseState struct {
	MarginSummary struct {
		AccountValue string `json:"accountValue"`
	} `json:"marginSummary"`
	AssetPositions []struct {
		Position struct {
			Coin string `json:"coin"`
			Szi  string `json:"szi"`
		} `json:"position"`
	} `json:"assetPositions"`
}

type spotClearinghouseState struct {
	Balances []SpotBalance `json:"balances"`
}
