package api

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/time/rate"
)

const idleLimiterTTL = 10 * time.Minute

var errTooManyRequests = errors.New("too many requests")

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// callerLimiter throttles each authenticated caller separately.
type callerLimiter struct {
	mu        sync.Mutex
	perSecond rate.Limit
	burst     int
	callers   map[common.Address]*limiterEntry
	lastPrune time.Time
	clock     func() time.Time
}

func newCallerLimiter(requestsPerMinute float64, burst int, clock func() time.Time) *callerLimiter {
	perSecond := requestsPerMinute / 60.0
	if perSecond <= 0 {
		perSecond = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &callerLimiter{
		perSecond: rate.Limit(perSecond),
		burst:     burst,
		callers:   make(map[common.Address]*limiterEntry),
		clock:     clock,
	}
}

func (l *callerLimiter) allow(caller common.Address) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if now.Sub(l.lastPrune) > idleLimiterTTL {
		for address, entry := range l.callers {
			if now.Sub(entry.lastSeen) > idleLimiterTTL {
				delete(l.callers, address)
			}
		}
		l.lastPrune = now
	}

	entry, ok := l.callers[caller]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.perSecond, l.burst)}
		l.callers[caller] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

func (l *callerLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, _ := CallerFrom(r.Context())
		if !l.allow(caller) {
			writeError(w, http.StatusTooManyRequests, errTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
