package api

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// TargetLimiter — token bucket на каждую вызываемую задачу.
//
// Неактивные задачи периодически вытесняются, чтобы произвольные имена
// в URL не раздували map.
type TargetLimiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration

	mu       sync.Mutex
	byTarget map[string]*targetBucket
	hits     uint64
}

type targetBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewTargetLimiter создаёт лимитер. При rps <= 0 возвращает nil: без ограничений.
func NewTargetLimiter(rps float64, burst int) *TargetLimiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &TargetLimiter{
		limit:    rate.Limit(rps),
		burst:    burst,
		idleTTL:  10 * time.Minute,
		byTarget: make(map[string]*targetBucket),
	}
}

// Allow сообщает, можно ли сейчас вызвать target.
func (l *TargetLimiter) Allow(target string, now time.Time) bool {
	if l == nil {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.byTarget[target]
	if !ok {
		b = &targetBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.byTarget[target] = b
	}
	b.lastSeen = now
	allowed := b.limiter.AllowN(now, 1)

	l.hits++
	if l.hits%512 == 0 {
		cutoff := now.Add(-l.idleTTL)
		for k, v := range l.byTarget {
			if v.lastSeen.Before(cutoff) {
				delete(l.byTarget, k)
			}
		}
	}

	return allowed
}

// RateLimit отвечает 429, если задача из пути {name} вызывается чаще лимита.
func RateLimit(l *TargetLimiter) Middleware {
	return func(next http.Handler) http.Handler {
		if l == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			target := r.PathValue("name")
			if !l.Allow(target, time.Now()) {
				w.Header().Set("Retry-After", "1")
				Error(w, http.StatusTooManyRequests, ErrCodeRateLimited, "too many calls to "+target)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
