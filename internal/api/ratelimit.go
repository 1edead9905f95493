package api

import (
	"fmt"
	"math"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter hands each client IP its own token bucket that refills n
// tokens per window. Idle buckets are dropped after two windows.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*visitor
	limit   rate.Limit
	burst   int
	window  time.Duration
	now     func() time.Time
	proxies []netip.Prefix // peers whose X-Forwarded-For is believed
	stop    chan struct{}
	once    sync.Once
}

type visitor struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows bursts of n requests per IP, refilled evenly over
// window. Close stops its sweeper.
func NewRateLimiter(n int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		clients: make(map[string]*visitor),
		burst:   n,
		window:  window,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	if n > 0 {
		rl.limit = rate.Every(window / time.Duration(n))
	}
	go rl.sweep()
	return rl
}

func (rl *RateLimiter) Close() {
	rl.once.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) sweep() {
	t := time.NewTicker(rl.window)
	defer t.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-t.C:
			rl.mu.Lock()
			cutoff := rl.now().Add(-2 * rl.window)
			for ip, v := range rl.clients {
				if v.lastSeen.Before(cutoff) {
					delete(rl.clients, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// visitorLocked returns ip's bucket, creating a full one. Caller holds mu.
func (rl *RateLimiter) visitorLocked(ip string, now time.Time) *visitor {
	v, ok := rl.clients[ip]
	if !ok {
		v = &visitor{lim: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[ip] = v
	}
	v.lastSeen = now
	return v
}

// Allow takes one token from ip's bucket.
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	return rl.visitorLocked(ip, now).lim.AllowN(now, 1)
}

// RetryAfter is the whole number of seconds until ip has a token again.
func (rl *RateLimiter) RetryAfter(ip string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	v, ok := rl.clients[ip]
	if !ok || rl.limit <= 0 {
		return 0
	}
	missing := 1 - v.lim.TokensAt(rl.now())
	if missing <= 0 {
		return 0
	}
	return int(math.Ceil(missing / float64(rl.limit)))
}

// TrustProxies sets the reverse proxies whose X-Forwarded-For header is
// honoured. Entries are addresses or CIDR prefixes. With none set, the
// header is ignored.
func (rl *RateLimiter) TrustProxies(entries ...string) error {
	var out []netip.Prefix
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if p, err := netip.ParsePrefix(e); err == nil {
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(e)
		if err != nil {
			return fmt.Errorf("trusted proxy %q: not an address or prefix", e)
		}
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	rl.mu.Lock()
	rl.proxies = out
	rl.mu.Unlock()
	return nil
}

func (rl *RateLimiter) trusted(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for _, p := range rl.proxies {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// clientIP returns the remote host. When that host is a trusted proxy it
// walks X-Forwarded-For from the right and returns the first hop that is
// not itself a trusted proxy.
func (rl *RateLimiter) clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if !rl.trusted(host) {
		return host
	}
	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if !rl.trusted(hop) {
			return hop
		}
	}
	return host
}

// RateLimitMiddleware answers 429 with a Retry-After header once the
// caller's bucket is empty.
func RateLimitMiddleware(rl *RateLimiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := rl.clientIP(r)
		if !rl.Allow(ip) {
			w.Header().Set("Retry-After", strconv.Itoa(rl.RetryAfter(ip)))
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}
