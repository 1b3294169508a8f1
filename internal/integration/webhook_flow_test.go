// Package integration exercises the full webhook path: HTTP handler, signal
// validation, cooldown gate, and the real exchange client against a scripted
// gateway.
package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/AlainDevs/autoTrade/internal/exchange"
	"github.com/AlainDevs/autoTrade/internal/server"
	"github.com/AlainDevs/autoTrade/internal/trading"
)

type gatewayOrder struct {
	Asset      int    `json:"a"`
	IsBuy      bool   `json:"b"`
	Price      string `json:"p"`
	Size       string `json:"s"`
	ReduceOnly bool   `json:"r"`
	Type       struct {
		Limit *struct {
			Tif string `json:"tif"`
		} `json:"limit"`
		Trigger *struct {
			IsMarket  bool   `json:"isMarket"`
			TriggerPx string `json:"triggerPx"`
			Tpsl      string `json:"tpsl"`
		} `json:"trigger"`
	} `json:"t"`
}

type gatewayAction struct {
	Type     string         `json:"type"`
	Asset    int            `json:"asset"`
	IsCross  bool           `json:"isCross"`
	Leverage int            `json:"leverage"`
	Orders   []gatewayOrder `json:"orders"`
	Grouping string         `json:"grouping"`
}

// gateway scripts the exchange side of the flow: mids and metadata on /info,
// captured actions with a filled first order on /exchange.
type gateway struct {
	t       *testing.T
	actions []gatewayAction
}

func (g *gateway) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/info", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			g.t.Errorf("info decode: %v", err)
		}
		switch req["type"] {
		case "allMids":
			fmt.Fprint(w, `{"BTC":"50000","ETH":"3000"}`)
		case "meta":
			fmt.Fprint(w, `{"universe":[{"name":"BTC","szDecimals":4,"maxLeverage":50},{"name":"ETH","szDecimals":3,"maxLeverage":50}]}`)
		default:
			g.t.Errorf("unexpected info type %q", req["type"])
		}
	})
	mux.HandleFunc("/exchange", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		var req struct {
			Action gatewayAction `json:"action"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			g.t.Errorf("exchange decode: %v", err)
		}
		g.actions = append(g.actions, req.Action)

		if req.Action.Type == "order" && len(req.Action.Orders) > 0 && !req.Action.Orders[0].ReduceOnly {
			// The entry order fills immediately at a price just off mid.
			fmt.Fprintf(w, `{"status":"ok","response":{"type":"order","data":{"statuses":[{"filled":{"totalSz":%q,"avgPx":"50010","oid":77}}]}}}`,
				req.Action.Orders[0].Size)
			return
		}
		fmt.Fprint(w, `{"status":"ok","response":{"type":"default"}}`)
	})
	return mux
}

func newStack(t *testing.T) (*gateway, *server.Server) {
	t.Helper()
	gw := &gateway{t: t}
	ts := httptest.NewServer(gw.handler())
	t.Cleanup(ts.Close)

	client := exchange.New(exchange.Config{BaseURL: ts.URL, Address: "0xabc"}, zerolog.Nop())
	gate := trading.NewGate(5 * time.Second)
	svc := trading.NewService(client, gate, zerolog.Nop(), trading.Config{CrossMargin: true})
	return gw, server.New(svc, client, nil, server.Config{Secret: "hunter2", Address: "0xabc"}, zerolog.Nop())
}

func postWebhook(t *testing.T, s *server.Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func TestOpenSignalEndToEnd(t *testing.T) {
	gw, srv := newStack(t)

	w := postWebhook(t, srv, `{
		"action":"open","coin":"BTC","is_buy":true,"size_usd":1000,
		"tp_price":"5%","sl_price":"3%","secret":"hunter2"
	}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body)
	}

	// updateLeverage, entry order, TP trigger, SL trigger.
	if len(gw.actions) != 4 {
		t.Fatalf("expected 4 exchange actions, got %d", len(gw.actions))
	}

	lev := gw.actions[0]
	if lev.Type != "updateLeverage" || lev.Leverage != 10 || !lev.IsCross {
		t.Fatalf("unexpected leverage action %+v", lev)
	}

	entry := gw.actions[1].Orders[0]
	if !entry.IsBuy || entry.ReduceOnly {
		t.Fatalf("entry must be a plain buy, got %+v", entry)
	}
	if entry.Size != "0.02" { // 1000 USD at mid 50000, 4 size decimals
		t.Fatalf("unexpected entry size %q", entry.Size)
	}
	if entry.Type.Limit == nil || entry.Type.Limit.Tif != "Ioc" {
		t.Fatalf("entry must be an IoC limit order, got %+v", entry.Type)
	}

	tp := gw.actions[2].Orders[0]
	if tp.IsBuy || !tp.ReduceOnly || tp.Size != "0.02" {
		t.Fatalf("TP must be a reduce-only sell of the fill, got %+v", tp)
	}
	if tp.Type.Trigger == nil || tp.Type.Trigger.Tpsl != "tp" || tp.Type.Trigger.TriggerPx != "52511" {
		t.Fatalf("unexpected TP trigger %+v", tp.Type.Trigger)
	}

	sl := gw.actions[3].Orders[0]
	if sl.IsBuy || !sl.ReduceOnly {
		t.Fatalf("SL must be a reduce-only sell, got %+v", sl)
	}
	if sl.Type.Trigger == nil || sl.Type.Trigger.Tpsl != "sl" || sl.Type.Trigger.TriggerPx != "48510" {
		t.Fatalf("unexpected SL trigger %+v", sl.Type.Trigger)
	}
}

func TestRepeatedOpenHitsCooldown(t *testing.T) {
	gw, srv := newStack(t)

	body := `{"action":"open","coin":"BTC","is_buy":true,"size_usd":1000,"secret":"hunter2"}`
	if w := postWebhook(t, srv, body); w.Code != http.StatusOK {
		t.Fatalf("first open: expected 200, got %d", w.Code)
	}
	actionsAfterFirst := len(gw.actions)

	w := postWebhook(t, srv, body)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second open: expected 429, got %d", w.Code)
	}
	if len(gw.actions) != actionsAfterFirst {
		t.Fatalf("cooldown rejection must not reach the gateway")
	}
}

func TestUnknownActionNeverReachesGateway(t *testing.T) {
	gw, srv := newStack(t)

	w := postWebhook(t, srv, `{"action":"cancel","coin":"BTC","secret":"hunter2"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if len(gw.actions) != 0 {
		t.Fatalf("invalid action must not reach the gateway")
	}
}

func TestBadSecretRejectedBeforeValidation(t *testing.T) {
	gw, srv := newStack(t)

	w := postWebhook(t, srv, `{"action":"open","coin":"BTC","size_usd":1000,"secret":"nope"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if len(gw.actions) != 0 {
		t.Fatalf("unauthorized request must not reach the gateway")
	}
}
