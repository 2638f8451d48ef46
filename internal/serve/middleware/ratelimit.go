package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/stellar/go-stellar-sdk/support/log"
	"golang.org/x/time/rate"

	"github.com/starkescrow/starkescrow/internal/metrics"
	"github.com/starkescrow/starkescrow/internal/serve/httperror"
)

const visitorTTL = 5 * time.Minute

type RateLimit struct {
	RequestsPerMinute float64
	Burst             int
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client address. Idle clients are forgotten after a few minutes.
type RateLimiter struct {
	limit          RateLimit
	metricsService metrics.MetricsService
	mu             sync.Mutex
	visitors       map[string]*visitor
	lastSweep      time.Time
	clockNow       func() time.Time
}

func NewRateLimiter(limit RateLimit, metricsService metrics.MetricsService) *RateLimiter {
	if limit.RequestsPerMinute <= 0 {
		limit.RequestsPerMinute = 60
	}
	if limit.Burst <= 0 {
		limit.Burst = 1
	}
	return &RateLimiter{
		limit:          limit,
		metricsService: metricsService,
		visitors:       make(map[string]*visitor),
		clockNow:       time.Now,
	}
}

func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		identifier := clientID(req)
		if !l.allow(identifier) {
			endpoint := routePattern(req)
			log.Ctx(req.Context()).Warnf("rate limited %s on %s", identifier, endpoint)
			if l.metricsService != nil {
				l.metricsService.IncRateLimitedRequests(endpoint)
			}
			httperror.TooManyRequests.Render(w)
			return
		}
		next.ServeHTTP(w, req)
	})
}

func (l *RateLimiter) allow(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clockNow()
	if now.Sub(l.lastSweep) > visitorTTL {
		for key, v := range l.visitors {
			if now.Sub(v.lastSeen) > visitorTTL {
				delete(l.visitors, key)
			}
		}
		l.lastSweep = now
	}

	v, ok := l.visitors[id]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rate.Limit(l.limit.RequestsPerMinute/60.0), l.limit.Burst)}
		l.visitors[id] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

func clientID(r *http.Request) string {
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if parsed := net.ParseIP(strings.TrimSpace(first)); parsed != nil {
			return parsed.String()
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
