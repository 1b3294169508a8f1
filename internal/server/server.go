// Package server exposes the webhook and account endpoints over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/AlainDevs/autoTrade/internal/exchange"
	"github.com/AlainDevs/autoTrade/internal/history"
	"github.com/AlainDevs/autoTrade/internal/signal"
	"github.com/AlainDevs/autoTrade/internal/trading"
)

// Dispatcher routes validated signals. *trading.Service satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, sig signal.Signal) (*trading.Result, error)
}

// Accounts reads the exchange account view for the /balance endpoint.
type Accounts interface {
	AccountState(ctx context.Context, address string) (*exchange.AccountState, error)
}

// History reads the trade log for the /trades and /stats endpoints.
type History interface {
	Query(f history.Filter) ([]trading.TradeRecord, error)
	Stats() (*history.Stats, error)
}

// Config holds the HTTP layer settings.
type Config struct {
	Secret  string // shared webhook secret; empty disables the check
	Address string // account address queried by /balance
}

// Server binds the routes to their collaborators.
type Server struct {
	dispatcher Dispatcher
	accounts   Accounts
	history    History
	cfg        Config
	log        zerolog.Logger
}

// New assembles the server. history may be nil when persistence is disabled.
func New(d Dispatcher, a Accounts, h History, cfg Config, log zerolog.Logger) *Server {
	return &Server{dispatcher: d, accounts: a, history: h, cfg: cfg, log: log}
}

// Router builds the gin engine with all routes attached.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/", s.handleRoot)
	r.GET("/healthz", s.handleHealth)
	r.POST("/webhook", s.handleWebhook)
	r.GET("/balance", s.handleBalance)
	r.GET("/trades", s.handleTrades)
	r.GET("/stats", s.handleStats)
	return r
}

func (s *Server) handleRoot(c *gin.Context) {
	c.String(http.StatusOK, "autoTrade webhook service")
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleWebhook(c *gin.Context) {
	var sig signal.Signal
	if err := c.ShouldBindJSON(&sig); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed payload"})
		return
	}
	if s.cfg.Secret != "" && sig.Secret != s.cfg.Secret {
		s.log.Warn().Str("coin", sig.Coin).Msg("webhook secret mismatch")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	sig.Normalize()
	if err := sig.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := s.dispatcher.Dispatch(c.Request.Context(), sig)
	if err != nil {
		s.log.Error().Err(err).Str("action", sig.Action).Str("coin", sig.Coin).Msg("dispatch failed")
		body := gin.H{"error": err.Error()}
		// A rejected market order still carries the exchange's raw reply;
		// pass it back so the caller can see what the venue said.
		if res != nil && res.Market != nil && len(res.Market.Raw) > 0 {
			body["exchange_response"] = json.RawMessage(res.Market.Raw)
		}
		c.JSON(statusFor(err), body)
		return
	}

	if res.Rejected {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"status":            "cooldown",
			"coin":              res.Coin,
			"remaining_seconds": res.Remaining,
		})
		return
	}

	body := gin.H{"status": "ok", "action": res.Action, "coin": res.Coin}
	if res.Market != nil && res.Market.Filled != nil {
		body["filled_size"] = res.Market.Filled.TotalSize
		body["avg_price"] = res.Market.Filled.AvgPrice
	}
	if len(res.Triggers) > 0 {
		triggers := make([]gin.H, 0, len(res.Triggers))
		for _, tr := range res.Triggers {
			entry := gin.H{"kind": tr.Kind, "price": tr.Price}
			if tr.Err != nil {
				entry["error"] = tr.Err.Error()
			}
			triggers = append(triggers, entry)
		}
		body["triggers"] = triggers
	}
	c.JSON(http.StatusOK, body)
}

// statusFor maps dispatch failures onto HTTP statuses: caller mistakes are
// 400s, everything that went wrong talking to the exchange is a 502.
func statusFor(err error) int {
	switch {
	case errors.Is(err, trading.ErrUnsupportedAction),
		errors.Is(err, trading.ErrNotionalLimit),
		errors.Is(err, trading.ErrInvalidSize),
		errors.Is(err, exchange.ErrAssetNotFound),
		errors.Is(err, exchange.ErrNoPosition),
		errors.Is(err, signal.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) handleBalance(c *gin.Context) {
	state, err := s.accounts.AccountState(c.Request.Context(), s.cfg.Address)
	if err != nil {
		s.log.Error().Err(err).Msg("account state lookup failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, state)
}

const (
	defaultTradeLimit = 50
	maxTradeLimit     = 1000
)

func (s *Server) handleTrades(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusOK, []trading.TradeRecord{})
		return
	}

	limit := defaultTradeLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		if n > maxTradeLimit {
			n = maxTradeLimit
		}
		limit = n
	}

	records, err := s.history.Query(history.Filter{Limit: limit, Coin: c.Query("coin")})
	if err != nil {
		s.log.Error().Err(err).Msg("trade history read failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if records == nil {
		records = []trading.TradeRecord{}
	}
	c.JSON(http.StatusOK, records)
}

func (s *Server) handleStats(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusOK, &history.Stats{ByCoin: map[string]int{}})
		return
	}
	stats, err := s.history.Stats()
	if err != nil {
		s.log.Error().Err(err).Msg("trade stats read failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}
