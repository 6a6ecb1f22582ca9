package bot

import (
	"sync"

	"emilia-bot/internal/config"

	"golang.org/x/time/rate"
)

// maxTrackedUsers caps the limiter map; beyond it the map is reset
// rather than evicted per-entry, which at worst refills a few bursts.
const maxTrackedUsers = 10000

// limiterPool keeps one token bucket per user so a single spammy chat
// cannot slow anyone else down.
type limiterPool struct {
	mu       sync.Mutex
	limiters map[int64]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newLimiterPool(cfg config.RateLimitConfig) *limiterPool {
	limit := rate.Limit(cfg.PerSecond)
	if limit <= 0 {
		limit = 1
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &limiterPool{
		limiters: make(map[int64]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}
}

func (p *limiterPool) Allow(userID int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.limiters) >= maxTrackedUsers {
		p.limiters = make(map[int64]*rate.Limiter)
	}

	limiter, ok := p.limiters[userID]
	if !ok {
		limiter = rate.NewLimiter(p.limit, p.burst)
		p.limiters[userID] = limiter
	}
	return limiter.Allow()
}
