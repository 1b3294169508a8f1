package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signals_total", Help: "Webhook signals received, by action"},
		[]string{"action"},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "orders_total", Help: "Market orders submitted"},
		[]string{"coin", "side"},
	)
	TriggerOrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "trigger_orders_total", Help: "TP/SL trigger orders submitted"},
		[]string{"coin", "kind"},
	)
	CooldownRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "cooldown_rejections_total", Help: "Open signals rejected by the cooldown gate"},
		[]string{"coin"},
	)
)

func init() {
	prometheus.MustRegister(SignalsTotal, OrdersTotal, TriggerOrdersTotal, CooldownRejectionsTotal)
}

func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
