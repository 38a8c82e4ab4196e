// Package gate implements per-user cooldown admission control for campaign
// triggers.
//
// The gate is a per-key fixed-window rate limiter: a user is admitted iff the
// cooldown window has fully elapsed since their last accepted trigger. There
// is no burst allowance and no sliding window.
package gate

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultCooldown is the admission window applied when no override is configured.
const DefaultCooldown = 30 * time.Second

// Opts holds configuration options for the admission gate.
type Opts struct {
	Cooldown time.Duration
}

// Option defines a configuration option for the admission gate.
type Option func(*Opts)

// WithCooldown sets the cooldown window between accepted triggers per user.
func WithCooldown(d time.Duration) Option {
	return func(o *Opts) {
		o.Cooldown = d
	}
}

// Gate records the last accepted trigger time per user id and admits a new
// trigger only after the cooldown window has elapsed. The per-user map grows
// without eviction; that is a known scaling limit of the current design.
type Gate struct {
	mu       sync.Mutex
	last     map[string]time.Time
	cooldown time.Duration
}

// New creates an admission gate, applying any provided options.
func New(opts ...Option) *Gate {
	cfg := Opts{Cooldown: DefaultCooldown}
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("Gate created", "cooldown", cfg.Cooldown)
	return &Gate{
		last:     make(map[string]time.Time),
		cooldown: cfg.Cooldown,
	}
}

// ShouldAdmit reports whether a trigger for userID at time now is admitted.
// The check and the recording of now are one atomic step under the gate mutex,
// so N concurrent calls for the same user within one window admit exactly one.
// A user never seen before is always admitted. On rejection the recorded
// timestamp is unchanged.
func (g *Gate) ShouldAdmit(userID string, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	last, seen := g.last[userID]
	if seen && now.Sub(last) < g.cooldown {
		slog.Debug("Gate rejected trigger within cooldown", "userID", userID, "since_last", now.Sub(last), "cooldown", g.cooldown)
		return false
	}

	g.last[userID] = now
	slog.Debug("Gate admitted trigger", "userID", userID)
	return true
}

// Cooldown returns the configured cooldown window.
func (g *Gate) Cooldown() time.Duration {
	return g.cooldown
}
