package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeGateway struct {
	mids      map[string]string
	universe  []map[string]any
	positions []map[string]any
	orders    []map[string]any // captured order payloads
	orderResp string
}

func (g *fakeGateway) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/info", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		switch req["type"] {
		case "allMids":
			_ = json.NewEncoder(w).Encode(g.mids)
		case "meta":
			_ = json.NewEncoder(w).Encode(map[string]any{"universe": g.universe})
		case "clearinghouseState":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"marginSummary":  map[string]any{"accountValue": "1234.5"},
				"assetPositions": g.positions,
			})
		case "spotClearinghouseState":
			_ = json.NewEncoder(w).Encode(map[string]any{"balances": []map[string]any{
				{"coin": "USDC", "total": "1000.0", "hold": "0.0"},
			}})
		default:
			http.Error(w, "unknown info type", http.StatusBadRequest)
		}
	})
	mux.HandleFunc("/exchange", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		var req struct {
			Action map[string]any `json:"action"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		g.orders = append(g.orders, req.Action)
		resp := g.orderResp
		if resp == "" {
			resp = `{"status":"ok","response":{"type":"default"}}`
		}
		_, _ = w.Write([]byte(resp))
	})
	return mux
}

func newTestClient(t *testing.T, g *fakeGateway) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(g.handler())
	t.Cleanup(srv.Close)
	c := New(Config{BaseURL: srv.URL, Address: "0xabc", Timeout: 2 * time.Second}, zerolog.Nop())
	return c, srv
}

func sz(n int) *int { return &n }

func defaultGateway() *fakeGateway {
	return &fakeGateway{
		mids: map[string]string{"BTC": "50000", "ETH": "3000"},
		universe: []map[string]any{
			{"name": "BTC", "szDecimals": 4, "maxLeverage": 50},
			{"name": "ETH", "szDecimals": 3, "maxLeverage": 50},
		},
	}
}

func TestMidPrice(t *testing.T) {
	c, _ := newTestClient(t, defaultGateway())
	px, err := c.MidPrice(context.Background(), "BTC")
	if err != nil {
		t.Fatalf("MidPrice: %v", err)
	}
	if px != 50000 {
		t.Fatalf("expected mid 50000, got %v", px)
	}
}

func TestMidPriceUnknownCoin(t *testing.T) {
	c, _ := newTestClient(t, defaultGateway())
	_, err := c.MidPrice(context.Background(), "DOGE")
	if !errors.Is(err, ErrPriceUnavailable) {
		t.Fatalf("expected ErrPriceUnavailable, got %v", err)
	}
}

func TestAssetMetaCachesUniverse(t *testing.T) {
	c, _ := newTestClient(t, defaultGateway())
	meta, err := c.AssetMeta(context.Background(), "ETH")
	if err != nil {
		t.Fatalf("AssetMeta: %v", err)
	}
	if meta.SzDecimals == nil || *meta.SzDecimals != 3 {
		t.Fatalf("expected szDecimals 3, got %+v", meta.SzDecimals)
	}
	if _, err := c.AssetMeta(context.Background(), "XRP"); !errors.Is(err, ErrAssetNotFound) {
		t.Fatalf("expected ErrAssetNotFound, got %v", err)
	}
}

func TestPlaceMarketOrderSlipsAndRoundsPrice(t *testing.T) {
	g := defaultGateway()
	c, _ := newTestClient(t, g)
	_, err := c.PlaceMarketOrder(context.Background(), "BTC", true, 0.02, 0.05)
	if err != nil {
		t.Fatalf("PlaceMarketOrder: %v", err)
	}
	if len(g.orders) != 1 {
		t.Fatalf("expected one order action, got %d", len(g.orders))
	}
	orders := g.orders[0]["orders"].([]any)
	order := orders[0].(map[string]any)
	// 50000 * 1.05 = 52500, already within 5 significant figures.
	if order["p"] != "52500" {
		t.Fatalf("expected aggressive px 52500, got %v", order["p"])
	}
	if order["s"] != "0.02" {
		t.Fatalf("expected size 0.02, got %v", order["s"])
	}
	if order["r"] != false {
		t.Fatalf("market open must not be reduce-only")
	}
}

func TestPlaceMarketOrderParsesFill(t *testing.T) {
	g := defaultGateway()
	g.orderResp = `{"status":"ok","response":{"type":"order","data":{"statuses":[{"filled":{"totalSz":"0.02","avgPx":"50010.0","oid":77}}]}}}`
	c, _ := newTestClient(t, g)
	res, err := c.PlaceMarketOrder(context.Background(), "BTC", true, 0.02, 0.05)
	if err != nil {
		t.Fatalf("PlaceMarketOrder: %v", err)
	}
	if !res.OK() || res.Filled == nil {
		t.Fatalf("expected filled response, got %+v", res)
	}
	if res.Filled.TotalSize != 0.02 || res.Filled.AvgPrice != 50010 {
		t.Fatalf("unexpected fill %+v", res.Filled)
	}
}

func TestPlaceTriggerOrderIsReduceOnly(t *testing.T) {
	g := defaultGateway()
	c, _ := newTestClient(t, g)
	_, err := c.PlaceTriggerOrder(context.Background(), "BTC", false, 0.02, 52510, TriggerTakeProfit)
	if err != nil {
		t.Fatalf("PlaceTriggerOrder: %v", err)
	}
	order := g.orders[0]["orders"].([]any)[0].(map[string]any)
	if order["r"] != true {
		t.Fatalf("trigger orders must be reduce-only")
	}
	trig := order["t"].(map[string]any)["trigger"].(map[string]any)
	if trig["tpsl"] != "tp" {
		t.Fatalf("expected tpsl tp, got %v", trig["tpsl"])
	}
	if trig["triggerPx"] != "52510" {
		t.Fatalf("expected triggerPx 52510, got %v", trig["triggerPx"])
	}
}

func TestClosePositionNoPosition(t *testing.T) {
	c, _ := newTestClient(t, defaultGateway())
	_, err := c.ClosePosition(context.Background(), "BTC")
	if !errors.Is(err, ErrNoPosition) {
		t.Fatalf("expected ErrNoPosition, got %v", err)
	}
}

func TestClosePositionFlattensShort(t *testing.T) {
	g := defaultGateway()
	g.positions = []map[string]any{
		{"position": map[string]any{"coin": "BTC", "szi": "-0.5"}},
	}
	c, _ := newTestClient(t, g)
	if _, err := c.ClosePosition(context.Background(), "BTC"); err != nil {
		t.Fatalf("ClosePosition: %v", err)
	}
	order := g.orders[0]["orders"].([]any)[0].(map[string]any)
	if order["b"] != true {
		t.Fatalf("closing a short must buy back")
	}
	if order["s"] != "0.5" {
		t.Fatalf("expected close size 0.5, got %v", order["s"])
	}
	if order["r"] != true {
		t.Fatalf("close order must be reduce-only")
	}
}

func TestAccountState(t *testing.T) {
	c, _ := newTestClient(t, defaultGateway())
	state, err := c.AccountState(context.Background(), "")
	if err != nil {
		t.Fatalf("AccountState: %v", err)
	}
	if state.Address != "0xabc" {
		t.Fatalf("expected configured address fallback, got %s", state.Address)
	}
	if state.AccountValue != "1234.5" {
		t.Fatalf("unexpected account value %s", state.AccountValue)
	}
	if len(state.SpotBalances) != 1 || state.SpotBalances[0].Coin != "USDC" {
		t.Fatalf("unexpected spot balances %+v", state.SpotBalances)
	}
}

func TestParseOrderResponsePerOrderError(t *testing.T) {
	res, err := parseOrderResponse([]byte(`{"status":"ok","response":{"type":"order","data":{"statuses":[{"error":"Insufficient margin"}]}}}`))
	if err != nil {
		t.Fatalf("parseOrderResponse: %v", err)
	}
	if !res.OK() {
		t.Fatalf("envelope is ok, got status %s", res.Status)
	}
	if res.Filled != nil {
		t.Fatalf("rejected order must not carry a fill")
	}
	if res.OrderError != "Insufficient margin" {
		t.Fatalf("expected per-order error, got %q", res.OrderError)
	}
}
