package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/vendorhub/marketplace-backend/api/responses"
	pkgerrors "github.com/vendorhub/marketplace-backend/pkg/errors"
	"github.com/vendorhub/marketplace-backend/pkg/logger"
	pkgredis "github.com/vendorhub/marketplace-backend/pkg/redis"
)

const limiterIdleTTL = 10 * time.Minute

// RateLimitPolicy bounds request bursts per caller.
type RateLimitPolicy struct {
	Name  string
	Rate  rate.Limit
	Burst int
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterSet keeps one token bucket per caller key.
type limiterSet struct {
	mu       sync.Mutex
	policy   RateLimitPolicy
	visitors map[string]*visitor
	now      func() time.Time
}

func newLimiterSet(policy RateLimitPolicy) *limiterSet {
	return &limiterSet{policy: policy, visitors: map[string]*visitor{}, now: time.Now}
}

func (s *limiterSet) allow(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, v := range s.visitors {
		if now.Sub(v.lastSeen) > limiterIdleTTL {
			delete(s.visitors, k)
		}
	}
	v, ok := s.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(s.policy.Rate, s.policy.Burst)}
		s.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// RateLimit applies an in-process token bucket keyed by the authenticated
// user, or by client IP for anonymous callers.
func RateLimit(policy RateLimitPolicy, logg *logger.Logger) func(http.Handler) http.Handler {
	set := newLimiterSet(policy)
	return func(next http.Handler) http.Handler {
		if policy.Rate <= 0 || policy.Burst <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := callerKey(r)
			if !set.allow(key) {
				respondRateLimited(r.Context(), logg, w, policy.Name, key, time.Duration(float64(time.Second)/float64(policy.Rate)))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SharedRateLimit enforces a fixed window shared by every API replica
// through Redis. Redis failures let the request through.
func SharedRateLimit(name string, limit int64, window time.Duration, store pkgredis.RateLimiter, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil || limit <= 0 || window <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := callerKey(r)
			allowed, _, err := store.FixedWindowAllow(r.Context(), name+":"+key, limit, window)
			if err != nil {
				logError(r.Context(), logg, "rate limit check failed", err)
			} else if !allowed {
				respondRateLimited(r.Context(), logg, w, name, key, window)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func callerKey(r *http.Request) string {
	if id := UserIDFromContext(r.Context()); id != uuid.Nil {
		return "user:" + id.String()
	}
	return "ip:" + clientIP(r)
}

func respondRateLimited(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, policy, key string, retryAfter time.Duration) {
	seconds := int(math.Ceil(retryAfter.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	if logg != nil {
		logg.Warn(logg.WithFields(ctx, map[string]any{"policy": policy, "caller": key}), "rate_limit.blocked")
	}
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
}

func clientIP(r *http.Request) string {
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		for _, part := range strings.Split(header, ",") {
			if ip := strings.TrimSpace(part); ip != "" {
				return ip
			}
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
