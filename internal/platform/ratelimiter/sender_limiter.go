// Package ratelimiter throttles inbound commands per transport sender.
package ratelimiter

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// SenderLimiter applies a token bucket per sender address and
// periodically evicts idle entries.
type SenderLimiter struct {
	limit    rate.Limit
	burst    int
	mu       sync.Mutex
	bySender map[string]*entry
	hits     uint64
	idleTTL  time.Duration
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New creates a per-sender limiter; returns nil if args are invalid.
// A nil limiter allows everything, so misconfiguration degrades to
// "no throttling" rather than a dead bot.
func New(rps float64, burst int, idleTTL time.Duration) *SenderLimiter {
	if rps <= 0 || burst <= 0 {
		return nil
	}
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &SenderLimiter{
		limit:    rate.Limit(rps),
		burst:    burst,
		bySender: make(map[string]*entry),
		idleTTL:  idleTTL,
	}
}

// Allow reports whether one command can be consumed for the sender at now.
func (l *SenderLimiter) Allow(sender string, now time.Time) bool {
	if l == nil {
		return true
	}
	sender = strings.TrimSpace(sender)
	if sender == "" {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.bySender[sender]
	if !ok {
		e = &entry{
			limiter:  rate.NewLimiter(l.limit, l.burst),
			lastSeen: now,
		}
		l.bySender[sender] = e
	}
	e.lastSeen = now
	allowed := e.limiter.AllowN(now, 1)

	l.hits++
	if l.hits%512 == 0 {
		cutoff := now.Add(-l.idleTTL)
		for k, v := range l.bySender {
			if v.lastSeen.Before(cutoff) {
				delete(l.bySender, k)
			}
		}
	}

	return allowed
}
