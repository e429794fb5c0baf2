package auction

import (
	"sync"
	"time"

	"github.com/rtbexchange/router/config"
	"github.com/rtbexchange/router/metrics"
)

// HealthSignal reports whether the banker (or whatever the engine's health
// check watches) is currently healthy. The Engine itself does not poll it;
// health reaches SlowMode through Observe, which cmd/router's pollHealth
// calls on a timer with the banker's reachability (spec §4.3 "subscribes to
// a health signal").
type HealthSignal interface {
	Healthy() bool
}

// SlowMode tracks the engine's health-driven dispatch throttle (spec §4.3
// "Slow-mode"). When the monitor has reported unhealthy for longer than
// slowModeTolerance, the engine caps committed spend to a per-second money
// limit; recovery is immediate on the first healthy check.
type SlowMode struct {
	mu sync.Mutex

	tolerance   time.Duration
	limit       config.Amount
	unhealthySince time.Time
	active      bool

	windowStart  time.Time
	windowSpent  int64

	metrics *metrics.ShardMetrics
}

func NewSlowMode(tolerance time.Duration, limit config.Amount, m *metrics.ShardMetrics) *SlowMode {
	return &SlowMode{tolerance: tolerance, limit: limit, metrics: m}
}

// Observe records one health check result. Call on every poll tick.
func (s *SlowMode) Observe(healthy bool, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if healthy {
		if s.active {
			s.metrics.Count(metrics.ReasonSlowModeExit)
		}
		s.unhealthySince = time.Time{}
		s.active = false
		return
	}

	if s.unhealthySince.IsZero() {
		s.unhealthySince = now
	}
	if !s.active && now.Sub(s.unhealthySince) > s.tolerance {
		s.active = true
		s.metrics.Count(metrics.ReasonSlowModeEnter)
	}
}

// Admit reports whether dispatching an auction whose cheapest possible
// clearing bid is minBidMicros would keep the current second's committed
// spend within the configured limit. Not in slow mode always admits.
func (s *SlowMode) Admit(minBidMicros int64, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return true
	}

	if now.Sub(s.windowStart) >= time.Second {
		s.windowStart = now
		s.windowSpent = 0
	}

	if s.windowSpent+minBidMicros > s.limit.Micros {
		s.metrics.Count(metrics.ReasonSlowModeSkip)
		return false
	}
	return true
}

// RecordSpend attributes a committed amount to the current one-second
// window, so subsequent Admit calls see it.
func (s *SlowMode) RecordSpend(micros int64, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if now.Sub(s.windowStart) >= time.Second {
		s.windowStart = now
		s.windowSpent = 0
	}
	s.windowSpent += micros
}

// Active reports whether the engine is currently in slow mode.
func (s *SlowMode) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}
