package settlement

import (
	"fmt"
	"math/big"
	"time"
)

type LimitKind string

const (
	LimitMint   LimitKind = "mint"
	LimitRedeem LimitKind = "redeem"
)

// LimitConfig bounds the amount accepted per period. A zero period disables
// the limit.
type LimitConfig struct {
	Period    time.Duration
	MaxAmount *big.Int
}

// RateLimitWindow is the fixed window state of one limiter.
type RateLimitWindow struct {
	Kind        LimitKind
	Period      time.Duration
	MaxAmount   *big.Int
	StartTime   time.Time
	Accumulated *big.Int
}

func newWindow(kind LimitKind, cfg LimitConfig) RateLimitWindow {
	return RateLimitWindow{
		Kind:        kind,
		Period:      cfg.Period,
		MaxAmount:   cfg.MaxAmount,
		Accumulated: new(big.Int),
	}
}

func (w RateLimitWindow) Disabled() bool {
	return w.Period <= 0
}

// Current returns the window as seen at now, resetting it if its period has
// elapsed.
func (w RateLimitWindow) Current(now time.Time) RateLimitWindow {
	if w.Disabled() {
		return w
	}
	if w.StartTime.IsZero() || !now.Before(w.StartTime.Add(w.Period)) {
		w.StartTime = now
		w.Accumulated = new(big.Int)
	}
	return w
}

// Remaining is how much can still be accepted in the current period.
func (w RateLimitWindow) Remaining(now time.Time) *big.Int {
	if w.Disabled() || w.MaxAmount == nil {
		return nil
	}
	current := w.Current(now)
	remaining := new(big.Int).Sub(w.MaxAmount, current.Accumulated)
	if remaining.Sign() < 0 {
		remaining.SetInt64(0)
	}
	return remaining
}

// Apply returns the window after accepting amount at now. The receiver is
// never modified, so a rejected or rolled back order leaves no trace.
func (w RateLimitWindow) Apply(now time.Time, amount *big.Int) (RateLimitWindow, error) {
	if w.Disabled() {
		return w, nil
	}
	next := w.Current(now)
	total := new(big.Int).Add(next.Accumulated, amount)
	if w.MaxAmount != nil && total.Cmp(w.MaxAmount) > 0 {
		return w, fmt.Errorf("%w: %s limit %s, requested %s of %s remaining", ErrLimitReached, w.Kind, w.MaxAmount, amount, w.Remaining(now))
	}
	next.Accumulated = total
	return next, nil
}
