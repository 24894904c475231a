// Package ratelimit implements a per-identity sliding-window attempt counter.
//
// Every call to Admit is recorded, rejected or not, so a client cannot probe
// for free by retrying rapidly. An identity is admitted while the number of
// recorded attempts in the trailing window, the current one included, does
// not exceed the limit.
package ratelimit

import (
	"time"

	"msgboard/infrastructure/cache"
)

const (
	DefaultLimit  = 5
	DefaultWindow = 60 * time.Second
)

type Limiter struct {
	limit   int
	window  time.Duration
	windows *cache.MemCache[[]time.Time]
}

// NewLimiter builds a limiter whose idle identities are evicted every
// sweepInterval. A non-positive sweepInterval disables the background sweep;
// Sweep can still be called directly.
func NewLimiter(limit int, window, sweepInterval time.Duration) *Limiter {
	if limit < 1 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{
		limit:   limit,
		window:  window,
		windows: cache.NewMemCache[[]time.Time](sweepInterval),
	}
}

func (l *Limiter) Admit(identity string, now time.Time) bool {
	cutoff := now.Add(-l.window)
	recent := l.windows.Update(identity, now, l.window, func(timestamps []time.Time) []time.Time {
		kept := timestamps[:0]
		for _, ts := range timestamps {
			if ts.After(cutoff) {
				kept = append(kept, ts)
			}
		}
		return append(kept, now)
	})
	return len(recent) <= l.limit
}

// Sweep drops identities with no attempt inside the window ending at now.
func (l *Limiter) Sweep(now time.Time) int {
	return l.windows.Sweep(now)
}

// Identities reports how many identities currently hold a window.
func (l *Limiter) Identities() int {
	return l.windows.Len()
}

func (l *Limiter) Limit() int { return l.limit }

func (l *Limiter) Window() time.Duration { return l.window }

func (l *Limiter) Close() {
	l.windows.Close()
}
