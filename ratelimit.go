package warden

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/minus-twelve/warden/types"
	"github.com/thejerf/abtime"
)

const staleAfter = 5 * time.Minute

// sweepTickerID names the sweep ticker for manual clocks.
const sweepTickerID = 1

// RateLimiter counts attempts per key in fixed windows.
type RateLimiter struct {
	attempts map[string]int
	times    map[string]time.Time
	mutex    sync.Mutex
	abtime.AbstractTime
}

func NewRateLimiter(clock abtime.AbstractTime) *RateLimiter {
	if clock == nil {
		clock = abtime.NewRealTime()
	}
	return &RateLimiter{
		attempts:     make(map[string]int),
		times:        make(map[string]time.Time),
		AbstractTime: clock,
	}
}

// Check records an attempt for key and reports whether it is within limit
// attempts per period.
func (rl *RateLimiter) Check(key string, limit int, period time.Duration) bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := rl.Now()
	if last, ok := rl.times[key]; ok && now.Sub(last) < period {
		if rl.attempts[key] >= limit {
			return false
		}
		rl.attempts[key]++
	} else {
		rl.attempts[key] = 1
		rl.times[key] = now
	}
	return true
}

// Sweep forgets keys whose window opened more than five minutes ago.
func (rl *RateLimiter) Sweep() {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := rl.Now()
	for key, last := range rl.times {
		if now.Sub(last) > staleAfter {
			delete(rl.attempts, key)
			delete(rl.times, key)
		}
	}
}

// Run sweeps periodically until ctx is done.
func (rl *RateLimiter) Run(ctx context.Context) {
	ticker := rl.NewTicker(staleAfter, sweepTickerID)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Channel():
			rl.Sweep()
		case <-ctx.Done():
			return
		}
	}
}

// ClientIP resolves the caller address, trusting X-Forwarded-For only when
// the direct peer is one of the trusted proxies.
type ClientIP struct {
	trusted []net.IPNet
}

func NewClientIP(proxies []string) *ClientIP {
	trusted := make([]net.IPNet, 0, len(proxies))
	for _, proxy := range proxies {
		_, ipnet, err := net.ParseCIDR(proxy)
		if err != nil {
			ip := net.ParseIP(proxy)
			if ip == nil {
				continue
			}
			mask := net.CIDRMask(32, 32)
			if ip.To4() == nil {
				mask = net.CIDRMask(128, 128)
			}
			ipnet = &net.IPNet{IP: ip, Mask: mask}
		}
		trusted = append(trusted, *ipnet)
	}
	return &ClientIP{trusted: trusted}
}

func (c *ClientIP) Resolve(r *http.Request) string {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}

	forwarded := r.Header.Get("X-Forwarded-For")
	if forwarded == "" {
		return ip
	}

	peer := net.ParseIP(ip)
	if peer == nil {
		return ip
	}
	for _, trusted := range c.trusted {
		if trusted.Contains(peer) {
			if first := strings.TrimSpace(strings.Split(forwarded, ",")[0]); first != "" {
				return first
			}
		}
	}
	return ip
}

// RateLimitMiddleware rejects callers that exceed cfg.Limit requests per
// cfg.Period with 429. A non-positive limit disables it.
func RateLimitMiddleware(limiter *RateLimiter, cfg types.RateConfig) gin.HandlerFunc {
	clientIP := NewClientIP(cfg.TrustedProxies)
	return func(c *gin.Context) {
		if cfg.Limit <= 0 {
			c.Next()
			return
		}
		if !limiter.Check(clientIP.Resolve(c.Request), cfg.Limit, cfg.Period) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
