package trading

import (
	"math"
	"sync"
	"time"
)

// DefaultCooldown is the minimum spacing between accepted opens per symbol.
const DefaultCooldown = 5 * time.Second

// Gate tracks the last accepted open per symbol and rejects opens arriving
// inside the cooldown window. Close actions never consult it. State lives in
// process memory only and resets on restart.
type Gate struct {
	mu     sync.Mutex
	window time.Duration
	now    func() time.Time
	last   map[string]time.Time
}

// GateOption configures Gate construction.
type GateOption func(*Gate)

// WithClock injects a time source, used by tests to step through the window.
func WithClock(now func() time.Time) GateOption {
	return func(g *Gate) {
		if now != nil {
			g.now = now
		}
	}
}

// NewGate builds a gate with the given window; non-positive windows fall back
// to DefaultCooldown.
func NewGate(window time.Duration, opts ...GateOption) *Gate {
	if window <= 0 {
		window = DefaultCooldown
	}
	g := &Gate{
		window: window,
		now:    time.Now,
		last:   make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// CheckAndRecord admits the symbol and stamps it, or rejects it with the
// remaining wait. Read, compare, and write happen under one lock so two
// concurrent opens for the same symbol can never both be admitted within a
// window.
func (g *Gate) CheckAndRecord(symbol string) (bool, time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if prev, ok := g.last[symbol]; ok {
		elapsed := now.Sub(prev)
		if elapsed < g.window {
			return false, g.window - elapsed
		}
	}
	g.last[symbol] = now
	return true, 0
}

// RemainingSeconds reports a remaining wait rounded to two decimal places,
// the form surfaced to webhook callers.
func RemainingSeconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*100) / 100
}
