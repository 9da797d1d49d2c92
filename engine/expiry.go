package engine

import (
	"math/rand/v2"
	"time"
)

// Clock is an interface for getting the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc is a function type that implements the Clock interface.
type ClockFunc func() time.Time

// Now calls the function.
func (f ClockFunc) Now() time.Time {
	return f()
}

// SystemClock is the default clock that uses time.Now.
var SystemClock Clock = ClockFunc(time.Now)

// ExpirationPolicy decides whether a cached entry is expired.
// It is consulted only for entries cached with a TTL.
type ExpirationPolicy interface {
	IsExpired(now, expiresAt time.Time) bool
}

// DeadlinePolicy expires an entry once its deadline is reached.
type DeadlinePolicy struct{}

var _ ExpirationPolicy = DeadlinePolicy{}

// IsExpired returns true if now is not before expiresAt.
func (DeadlinePolicy) IsExpired(now, expiresAt time.Time) bool {
	return !expiresAt.After(now)
}

// EarlyExpirationPolicy expires an entry up to Duration before its deadline with the probability of Percentage.
// Engines sharing a backing store then refresh the same entry at different times.
type EarlyExpirationPolicy struct {
	// Duration is how much earlier the entry can expire.
	Duration time.Duration

	// Percentage is the chance in [0, 1] that the entry expires early.
	Percentage float64

	// Random decides early expiration. If nil, the default random generator is used.
	Random *rand.Rand
}

var _ ExpirationPolicy = (*EarlyExpirationPolicy)(nil)

// IsExpired checks the deadline, shifted by Duration with the probability of Percentage.
func (p *EarlyExpirationPolicy) IsExpired(now, expiresAt time.Time) bool {
	if p.randFloat64() > p.Percentage {
		return !expiresAt.After(now)
	}
	return !expiresAt.After(now.Add(p.Duration))
}

func (p *EarlyExpirationPolicy) randFloat64() float64 {
	if p.Random == nil {
		return rand.Float64()
	}
	return p.Random.Float64()
}
