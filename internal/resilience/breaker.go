// Package resilience provides the retry and circuit breaker policies that
// guard calls to external code portals and document hosts.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// CircuitState is a portal breaker's position.
type CircuitState int

const (
	// CircuitClosed lets calls through.
	CircuitClosed CircuitState = iota
	// CircuitOpen rejects calls until the cooldown has passed.
	CircuitOpen
	// CircuitHalfOpen admits one trial call.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned when a portal's breaker refuses a call.
var ErrCircuitOpen = eris.New("circuit breaker is open")

// BreakerConfig tunes a portal breaker.
type BreakerConfig struct {
	// Threshold is the run of consecutive transient failures that opens
	// the breaker.
	Threshold int
	// Cooldown is how long an open breaker refuses calls before admitting
	// a trial call.
	Cooldown time.Duration
}

// DefaultBreakerConfig opens after five failures and admits a trial call after a minute.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{Threshold: 5, Cooldown: time.Minute}
}

// Breaker guards one code portal. It opens after Threshold consecutive
// transient failures. Once Cooldown has passed exactly one trial call is in
// flight at a time; other callers are rejected until it reports.
// 403/404 answers and cancelled calls never count against the portal.
type Breaker struct {
	portal string
	cfg    BreakerConfig
	now    func() time.Time

	mu       sync.Mutex
	state    CircuitState
	failures int
	openedAt time.Time
	trying   bool
}

// State returns the breaker's position. An open breaker past its cooldown
// reports half-open.
func (b *Breaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == CircuitOpen && b.cooled() {
		return CircuitHalfOpen
	}
	return b.state
}

func (b *Breaker) cooled() bool {
	return b.now().Sub(b.openedAt) >= b.cfg.Cooldown
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case CircuitOpen:
		if !b.cooled() {
			return eris.Wrapf(ErrCircuitOpen, "resilience: portal %s", b.portal)
		}
		b.moveTo(CircuitHalfOpen)
	case CircuitHalfOpen:
		if b.trying {
			return eris.Wrapf(ErrCircuitOpen, "resilience: portal %s trial call in flight", b.portal)
		}
	default:
		return nil
	}
	b.trying = true
	return nil
}

func (b *Breaker) report(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.trying = false

	switch {
	case errors.Is(err, context.Canceled):
		// the caller gave up; the portal's health is unknown
	case err == nil || IsPermanent(err):
		b.failures = 0
		if b.state != CircuitClosed {
			b.moveTo(CircuitClosed)
		}
	default:
		b.failures++
		if b.state == CircuitHalfOpen || (b.state == CircuitClosed && b.failures >= b.cfg.Threshold) {
			b.openedAt = b.now()
			b.moveTo(CircuitOpen)
		}
	}
}

func (b *Breaker) moveTo(to CircuitState) {
	from := b.state
	b.state = to
	log := zap.L().Info
	if to == CircuitOpen {
		log = zap.L().Warn
	}
	log("portal circuit changed state",
		zap.String("component", "resilience"),
		zap.String("portal", b.portal),
		zap.Stringer("from", from),
		zap.Stringer("to", to),
		zap.Int("failures", b.failures),
	)
}

// ExecuteVal calls fn through b and returns its value.
func ExecuteVal[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := b.admit(); err != nil {
		return zero, err
	}
	val, err := fn(ctx)
	b.report(err)
	return val, err
}

// PortalBreakers holds one breaker per code portal, so a failing Municode
// does not stop eCode360 lookups and vice versa.
type PortalBreakers struct {
	cfg BreakerConfig
	now func() time.Time

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewPortalBreakers creates an empty per-portal registry. Non-positive
// config values fall back to DefaultBreakerConfig.
func NewPortalBreakers(cfg BreakerConfig) *PortalBreakers {
	def := DefaultBreakerConfig()
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}
	return &PortalBreakers{cfg: cfg, now: time.Now, breakers: make(map[string]*Breaker)}
}

// Get returns the named portal's breaker, creating it on first use.
func (pb *PortalBreakers) Get(portal string) *Breaker {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	b, ok := pb.breakers[portal]
	if !ok {
		b = &Breaker{portal: portal, cfg: pb.cfg, now: pb.now}
		pb.breakers[portal] = b
	}
	return b
}

// States snapshots every portal's breaker position.
func (pb *PortalBreakers) States() map[string]CircuitState {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	out := make(map[string]CircuitState, len(pb.breakers))
	for name, b := range pb.breakers {
		out[name] = b.State()
	}
	return out
}
