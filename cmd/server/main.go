package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/AlainDevs/autoTrade/internal/config"
	"github.com/AlainDevs/autoTrade/internal/exchange"
	"github.com/AlainDevs/autoTrade/internal/history"
	"github.com/AlainDevs/autoTrade/internal/metrics"
	"github.com/AlainDevs/autoTrade/internal/server"
	"github.com/AlainDevs/autoTrade/internal/trading"
	"github.com/AlainDevs/autoTrade/internal/util"
)

func main() {
	_ = godotenv.Load() // best-effort

	configPath := flag.String("config", "internal/config/config.yaml", "path to YAML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog := util.NewLogger("info", "")
		bootLog.Fatal().Err(err).Msg("load config")
	}
	log := util.NewLogger(cfg.App.LogLevel, cfg.App.Env)

	_ = metrics.Serve(cfg.App.MetricsAddr)
	log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client := exchange.New(exchange.Config{
		BaseURL: cfg.Exchange.BaseURL,
		Address: cfg.Exchange.Address,
		Timeout: time.Duration(cfg.Exchange.TimeoutMs) * time.Millisecond,
	}, util.Component(log, "exchange"))

	var store *history.Store
	if cfg.History.Path != "" {
		store, err = history.Open(cfg.History.Path, util.Component(log, "history"))
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.History.Path).Msg("open trade history")
		}
		defer store.Close()
	}

	gate := trading.NewGate(time.Duration(cfg.Trading.CooldownSeconds) * time.Second)
	opts := []trading.ServiceOption{}
	if store != nil {
		opts = append(opts, trading.WithRecorder(store))
	}
	svc := trading.NewService(client, gate, util.Component(log, "trading"), trading.Config{
		CrossMargin:    cfg.Trading.CrossMargin,
		MaxNotionalUSD: cfg.Trading.MaxNotionalUSD,
	}, opts...)

	var hist server.History
	if store != nil {
		hist = store
	}
	srv := server.New(svc, client, hist, server.Config{
		Secret:  cfg.Webhook.Secret,
		Address: cfg.Exchange.Address,
	}, util.Component(log, "server"))

	httpSrv := &http.Server{Addr: cfg.App.ListenAddr, Handler: srv.Router()}
	go func() {
		log.Info().Str("addr", cfg.App.ListenAddr).Msg("webhook server up")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server stopped")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown incomplete")
	}
}
