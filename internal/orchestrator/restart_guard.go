package orchestrator

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// restartGuard holds a token bucket per task so that restart cannot be issued in a tight loop
type restartGuard struct {
	mu       sync.Mutex
	every    rate.Limit
	burst    int
	disabled bool
	limiters map[uuid.UUID]*rate.Limiter
}

func newRestartGuard(interval time.Duration, burst int) *restartGuard {
	return &restartGuard{
		every:    rate.Every(interval),
		burst:    burst,
		disabled: burst < 0,
		limiters: make(map[uuid.UUID]*rate.Limiter),
	}
}

// allow consumes one restart token for the task
func (g *restartGuard) allow(id uuid.UUID) bool {
	if g.disabled {
		return true
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.limiters[id]
	if !ok {
		l = rate.NewLimiter(g.every, g.burst)
		g.limiters[id] = l
	}
	return l.Allow()
}

// forget drops the bucket of a deleted task
func (g *restartGuard) forget(id uuid.UUID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.limiters, id)
}
