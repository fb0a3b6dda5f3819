package handler

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	// A visitor that stays quiet this long is forgotten.
	visitorTTL = 10 * time.Minute
	sweepEvery = 5 * time.Minute
)

// visitorPool hands out one token bucket per client IP and forgets buckets
// for IPs that have gone quiet.
type visitorPool struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rps      rate.Limit
	burst    int
}

type visitor struct {
	bucket   *rate.Limiter
	lastSeen time.Time
}

func newVisitorPool(rps, burst int) *visitorPool {
	p := &visitorPool{
		visitors: make(map[string]*visitor),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
	go p.sweep()
	return p
}

// allow reports whether the request from ip fits in its bucket.
func (p *visitorPool) allow(ip string) bool {
	p.mu.Lock()
	v, ok := p.visitors[ip]
	if !ok {
		v = &visitor{bucket: rate.NewLimiter(p.rps, p.burst)}
		p.visitors[ip] = v
	}
	v.lastSeen = time.Now()
	p.mu.Unlock()

	return v.bucket.Allow()
}

func (p *visitorPool) sweep() {
	for range time.Tick(sweepEvery) {
		p.mu.Lock()
		for ip, v := range p.visitors {
			if time.Since(v.lastSeen) > visitorTTL {
				delete(p.visitors, ip)
			}
		}
		p.mu.Unlock()
	}
}

// RateLimiter returns a Gin middleware enforcing a per-IP token bucket.
// rps is the steady-state requests per second, burst the bucket size.
//
// The portal mounts one instance globally and a second, stricter one on the
// claim-verify route to bound code guessing within the challenge window.
func RateLimiter(rps, burst int) gin.HandlerFunc {
	pool := newVisitorPool(rps, burst)

	return func(c *gin.Context) {
		if !pool.allow(c.ClientIP()) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
