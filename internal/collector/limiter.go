package collector

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultCleanupInterval  = time.Minute
	defaultClientExpiration = 5 * time.Minute
)

type clientState struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter is a token bucket per client key.
type Limiter struct {
	mu      sync.Mutex
	clients map[string]*clientState
	limit   rate.Limit
	burst   int
	now     func() time.Time
}

// NewLimiter allows perSecond requests per client with the given burst.
// A burst below 1 is raised to the rounded-up rate.
func NewLimiter(perSecond float64, burst int) *Limiter {
	if burst < 1 {
		burst = int(perSecond)
		if float64(burst) < perSecond || burst < 1 {
			burst++
		}
	}
	return &Limiter{
		clients: make(map[string]*clientState),
		limit:   rate.Limit(perSecond),
		burst:   burst,
		now:     time.Now,
	}
}

// Allow reports whether the client may make a request now.
func (l *Limiter) Allow(key string) bool {
	now := l.now()

	l.mu.Lock()
	state, ok := l.clients[key]
	if !ok {
		state = &clientState{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = state
	}
	state.lastSeen = now
	l.mu.Unlock()

	return state.limiter.AllowN(now, 1)
}

// Len returns the number of tracked clients.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// RunCleanup drops idle clients until ctx is done.
func (l *Limiter) RunCleanup(ctx context.Context, log *slog.Logger) {
	ticker := time.NewTicker(defaultCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.cleanup(defaultClientExpiration); n > 0 {
				log.Debug("cleaned up idle client limiters", "count", n)
			}
		}
	}
}

func (l *Limiter) cleanup(expiration time.Duration) int {
	now := l.now()
	removed := 0

	l.mu.Lock()
	defer l.mu.Unlock()
	for key, state := range l.clients {
		if now.Sub(state.lastSeen) > expiration {
			delete(l.clients, key)
			removed++
		}
	}
	return removed
}
