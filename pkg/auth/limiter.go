package auth

import (
	"sync"

	"golang.org/x/time/rate"
)

// LimiterPool keeps one token-bucket limiter per key (user id). Used to
// keep a runaway UI from hammering the send path and the generation
// function.
type LimiterPool struct {
	mu    sync.Mutex
	m     map[string]*rate.Limiter
	rps   float64
	burst int
}

// NewLimiterPool builds a pool with the given per-key rate. Non-positive
// values fall back to 5 rps / burst 10.
func NewLimiterPool(rps float64, burst int) *LimiterPool {
	if rps <= 0 {
		rps = 5
	}
	if burst <= 0 {
		burst = 10
	}
	return &LimiterPool{m: make(map[string]*rate.Limiter), rps: rps, burst: burst}
}

func (p *LimiterPool) get(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if l, ok := p.m[key]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Limit(p.rps), p.burst)
	p.m[key] = l
	return l
}

// Allow reports whether key may proceed now.
func (p *LimiterPool) Allow(key string) bool {
	return p.get(key).Allow()
}
