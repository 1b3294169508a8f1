// Package config exposes strongly typed application configuration structs loaded from YAML.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// App captures process-wide runtime settings such as listen addresses and logging.
type App struct {
	Name        string `yaml:"name"`
	Env         string `yaml:"env"`
	ListenAddr  string `yaml:"listen_addr"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
}

// Exchange describes the exchange gateway connectivity parameters.
type Exchange struct {
	BaseURL   string `yaml:"base_url"`
	Address   string `yaml:"address"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// Webhook holds the inbound signal authentication settings. The secret is
// normally injected through WEBHOOK_SECRET rather than committed in YAML.
type Webhook struct {
	Secret string `yaml:"secret"`
}

// Trading encodes the order-flow guard-rails.
type Trading struct {
	CooldownSeconds int     `yaml:"cooldown_seconds"`
	CrossMargin     bool    `yaml:"cross_margin"`
	MaxNotionalUSD  float64 `yaml:"max_notional_usd"`
}

// History configures the embedded trade log.
type History struct {
	Path string `yaml:"path"`
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App      App      `yaml:"app"`
	Exchange Exchange `yaml:"exchange"`
	Webhook  Webhook  `yaml:"webhook"`
	Trading  Trading  `yaml:"trading"`
	History  History  `yaml:"history"`
}

// Load reads a YAML file from disk and hydrates a Config struct. Secrets set
// in the environment override their YAML counterparts.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	config.applyEnv()
	return &config, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("WEBHOOK_SECRET"); v != "" {
		c.Webhook.Secret = v
	}
	if v := os.Getenv("EXCHANGE_ADDRESS"); v != "" {
		c.Exchange.Address = v
	}
	if v := os.Getenv("EXCHANGE_BASE_URL"); v != "" {
		c.Exchange.BaseURL = v
	}
}
