package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/AlainDevs/autoTrade/internal/config"
	"github.com/AlainDevs/autoTrade/internal/exchange"
	"github.com/AlainDevs/autoTrade/internal/util"
)

// One-shot account check: prints the perp account value and spot balances
// for the configured address, then exits.
func main() {
	_ = godotenv.Load() // best-effort

	configPath := flag.String("config", "internal/config/config.yaml", "path to YAML config")
	address := flag.String("address", "", "override the configured account address")
	flag.Parse()

	log := util.NewLogger("info", "")
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	client := exchange.New(exchange.Config{
		BaseURL: cfg.Exchange.BaseURL,
		Address: cfg.Exchange.Address,
		Timeout: time.Duration(cfg.Exchange.TimeoutMs) * time.Millisecond,
	}, log)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	state, err := client.AccountState(ctx, *address)
	if err != nil {
		log.Fatal().Err(err).Msg("account state lookup failed")
	}

	out, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("encode account state")
	}
	fmt.Fprintln(os.Stdout, string(out))
}
