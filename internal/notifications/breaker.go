package notifications

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	circuitThreshold = 5
	circuitCooldown  = 30 * time.Second
)

// breaker stops delivery attempts after consecutive failures so a dead ntfy
// server does not add retry latency to every sync cycle. After the cooldown
// one attempt is let through (half-open).
type breaker struct {
	mu          sync.Mutex
	threshold   int
	cooldown    time.Duration
	now         func() time.Time
	failures    int
	lastFailure time.Time
	open        bool

	sent    int64
	failed  int64
	retries int64
}

func newBreaker() *breaker {
	return &breaker{threshold: circuitThreshold, cooldown: circuitCooldown, now: time.Now}
}

func (b *breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		return true
	}
	if b.now().Sub(b.lastFailure) > b.cooldown {
		b.open = false
		b.failures = 0
		log.Info().Msg("Notification circuit half-open, trying again")
		return true
	}
	return false
}

func (b *breaker) success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.sent++
	b.failures = 0
	if b.open {
		b.open = false
		log.Info().Msg("Notification circuit closed")
	}
}

func (b *breaker) failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failed++
	b.failures++
	b.lastFailure = b.now()
	if b.failures >= b.threshold && !b.open {
		b.open = true
		log.Warn().Int("failures", b.failures).Dur("cooldown", b.cooldown).Msg("Notification circuit opened")
	}
}

func (b *breaker) retried() {
	b.mu.Lock()
	b.retries++
	b.mu.Unlock()
}

// Metrics counts delivery outcomes since startup.
type Metrics struct {
	Sent    int64
	Failed  int64
	Retries int64
}

func (b *breaker) metrics() Metrics {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Metrics{Sent: b.sent, Failed: b.failed, Retries: b.retries}
}
