// Package ratelimit applies per-client request quotas to route groups.
package ratelimit

import (
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/nekidev/nekos-api/internal/jsonapi"
	"github.com/nekidev/nekos-api/internal/metrics"
)

// KeyFunc derives the bucket key for a request, typically the client address.
type KeyFunc func(r *http.Request) string

// Policy is a quota of Rate requests per Window for each key of a group.
type Policy struct {
	Group  string
	Rate   int
	Window time.Duration
	Key    KeyFunc
}

// ParseRate parses "N/unit" rate notation where unit is s, m, h or d,
// e.g. "3/s" or "100/h".
func ParseRate(s string) (n int, window time.Duration, err error) {
	count, unit, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return 0, 0, fmt.Errorf("rate %q: want N/unit", s)
	}
	n, err = strconv.Atoi(count)
	if err != nil || n <= 0 {
		return 0, 0, fmt.Errorf("rate %q: count must be a positive integer", s)
	}
	switch unit {
	case "s":
		window = time.Second
	case "m":
		window = time.Minute
	case "h":
		window = time.Hour
	case "d":
		window = 24 * time.Hour
	default:
		return 0, 0, fmt.Errorf("rate %q: unit must be s, m, h or d", s)
	}
	return n, window, nil
}

// NewPolicy builds a Policy for group from rate notation, keyed by ClientIP.
func NewPolicy(group, notation string) (Policy, error) {
	n, window, err := ParseRate(notation)
	if err != nil {
		return Policy{}, err
	}
	return Policy{Group: group, Rate: n, Window: window, Key: ClientIP}, nil
}

type bucket struct {
	mu         sync.Mutex
	limiter    *rate.Limiter
	lastAccess time.Time
}

// Limiter holds one token bucket per policy group and key.
type Limiter struct {
	policy  Policy
	buckets sync.Map // group + "|" + key -> *bucket
	now     func() time.Time
}

// New creates a Limiter enforcing p.
func New(p Policy) *Limiter {
	if p.Key == nil {
		p.Key = ClientIP
	}
	return &Limiter{policy: p, now: time.Now}
}

// Policy returns the enforced policy.
func (l *Limiter) Policy() Policy { return l.policy }

func (l *Limiter) bucketFor(key string) *bucket {
	k := l.policy.Group + "|" + key
	if b, ok := l.buckets.Load(k); ok {
		return b.(*bucket)
	}
	every := rate.Limit(float64(l.policy.Rate) / l.policy.Window.Seconds())
	b, _ := l.buckets.LoadOrStore(k, &bucket{limiter: rate.NewLimiter(every, l.policy.Rate)})
	return b.(*bucket)
}

// reserve takes a token for r. It returns zero when the request may proceed
// and otherwise how long the client should wait.
func (l *Limiter) reserve(r *http.Request) time.Duration {
	b := l.bucketFor(l.policy.Key(r))
	b.mu.Lock()
	defer b.mu.Unlock()

	now := l.now()
	b.lastAccess = now
	res := b.limiter.ReserveN(now, 1)
	if !res.OK() {
		return l.policy.Window
	}
	delay := res.DelayFrom(now)
	if delay > 0 {
		res.CancelAt(now)
	}
	return delay
}

// Allow reports whether r fits within its quota, consuming a token if so.
func (l *Limiter) Allow(r *http.Request) bool {
	return l.reserve(r) == 0
}

// Cleanup drops buckets not used within maxIdle and returns how many were
// removed.
func (l *Limiter) Cleanup(maxIdle time.Duration) int {
	cutoff := l.now().Add(-maxIdle)
	removed := 0
	l.buckets.Range(func(key, value any) bool {
		b := value.(*bucket)
		b.mu.Lock()
		idle := b.lastAccess.Before(cutoff)
		b.mu.Unlock()
		if idle {
			l.buckets.Delete(key)
			removed++
		}
		return true
	})
	return removed
}

// Middleware rejects requests over quota with 429 and a Retry-After header.
// Allowed requests pass through untouched.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wait := l.reserve(r)
		if wait == 0 {
			next.ServeHTTP(w, r)
			return
		}

		metrics.RateLimited.WithLabelValues(l.policy.Group).Inc()
		log.Warn().
			Str("group", l.policy.Group).
			Str("ip", l.policy.Key(r)).
			Dur("retry_after", wait).
			Msg("Rate limit exceeded")

		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
		jsonapi.WriteError(w, http.StatusTooManyRequests, "rate_limited",
			fmt.Sprintf("Request was throttled. Expected available in %d seconds.", int(math.Ceil(wait.Seconds()))))
	})
}

// ClientIP extracts the client's IP address from an HTTP request.
//
// Proxy headers (X-Real-IP, X-Forwarded-For) are only trusted when the
// connection comes from a private or loopback address.
func ClientIP(r *http.Request) string {
	remoteIP := r.RemoteAddr
	if ip, _, err := net.SplitHostPort(remoteIP); err == nil {
		remoteIP = ip
	}

	trusted := false
	if ip := net.ParseIP(remoteIP); ip != nil {
		trusted = ip.IsPrivate() || ip.IsLoopback()
	}

	if trusted {
		if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
			return realIP
		}
		// Last hop in the chain is the one our proxy saw.
		if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" {
			parts := strings.Split(xff, ",")
			return strings.TrimSpace(parts[len(parts)-1])
		}
	}
	return remoteIP
}
