package shield

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateRule limits requests whose path starts with Prefix.
type RateRule struct {
	Prefix      string        `yaml:"prefix"`
	MaxRequests int           `yaml:"max_requests"`
	Window      time.Duration `yaml:"window"`
}

type bucket struct {
	mu      sync.Mutex
	count   int
	resetAt time.Time
}

// RateLimiter provides per-IP, per-rule fixed-window rate limiting. The
// first rule whose prefix matches applies.
type RateLimiter struct {
	rules   []RateRule
	buckets sync.Map
	now     func() time.Time
}

// NewRateLimiter creates a rate limiter. Rules without a positive limit
// or window are ignored.
func NewRateLimiter(rules []RateRule) *RateLimiter {
	rl := &RateLimiter{now: time.Now}
	for _, r := range rules {
		if r.MaxRequests > 0 && r.Window > 0 {
			rl.rules = append(rl.rules, r)
		}
	}
	return rl
}

// StartGC drops expired buckets every interval until done is closed.
func (rl *RateLimiter) StartGC(done <-chan struct{}, interval time.Duration) {
	tick := time.NewTicker(interval)
	go func() {
		defer tick.Stop()
		for {
			select {
			case <-done:
				return
			case <-tick.C:
				rl.gc()
			}
		}
	}()
}

func (rl *RateLimiter) gc() {
	now := rl.now()
	rl.buckets.Range(func(key, value any) bool {
		b := value.(*bucket)
		b.mu.Lock()
		expired := now.After(b.resetAt)
		b.mu.Unlock()
		if expired {
			rl.buckets.Delete(key)
		}
		return true
	})
}

func (rl *RateLimiter) rule(path string) (RateRule, bool) {
	for _, r := range rl.rules {
		if strings.HasPrefix(path, r.Prefix) {
			return r, true
		}
	}
	return RateRule{}, false
}

func (rl *RateLimiter) allow(ip string, r RateRule) bool {
	now := rl.now()
	val, _ := rl.buckets.LoadOrStore(ip+":"+r.Prefix, &bucket{resetAt: now.Add(r.Window)})
	b := val.(*bucket)

	b.mu.Lock()
	defer b.mu.Unlock()
	if now.After(b.resetAt) {
		b.count = 0
		b.resetAt = now.Add(r.Window)
	}
	b.count++
	return b.count <= r.MaxRequests
}

// Middleware enforces the rules with a 429 JSON response.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rule, ok := rl.rule(r.URL.Path)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		ip := ExtractIP(r)
		if rl.allow(ip, rule) {
			next.ServeHTTP(w, r)
			return
		}

		slog.Warn("ratelimit: request blocked", "ip", ip, "prefix", rule.Prefix)
		w.Header().Set("Retry-After", strconv.Itoa(int(rule.Window.Seconds())))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]string{"error": "rate limit exceeded"})
	})
}

// ExtractIP returns the client IP from X-Forwarded-For or RemoteAddr.
func ExtractIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
