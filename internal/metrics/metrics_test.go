package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersRegister(t *testing.T) {
	before := testutil.ToFloat64(OrdersTotal.WithLabelValues("BTC", "buy"))
	OrdersTotal.WithLabelValues("BTC", "buy").Inc()
	after := testutil.ToFloat64(OrdersTotal.WithLabelValues("BTC", "buy"))
	if after != before+1 {
		t.Fatalf("expected counter to increment, got %.0f -> %.0f", before, after)
	}
}

func TestCooldownCounterLabels(t *testing.T) {
	CooldownRejectionsTotal.WithLabelValues("ETH").Inc()
	if testutil.ToFloat64(CooldownRejectionsTotal.WithLabelValues("ETH")) < 1 {
		t.Fatalf("expected ETH rejection count >= 1")
	}
}
