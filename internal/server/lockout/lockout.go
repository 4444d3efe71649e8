// Package lockout implements the per-account login lockout state machine.
//
// The machine has two states, Unlocked and Locked, fully described by a
// failure counter and an optional lock deadline stored on the account.
// Expiry is lazy: an elapsed lock is only noticed on the next attempt.
package lockout

import "time"

const (
	DefaultThreshold = 5
	DefaultDuration  = 30 * time.Minute
)

// Policy holds the lockout parameters.
type Policy struct {
	Threshold int
	Duration  time.Duration
}

// DefaultPolicy locks for 30 minutes after 5 consecutive failures.
func DefaultPolicy() Policy {
	return Policy{Threshold: DefaultThreshold, Duration: DefaultDuration}
}

// State is the slice of an account the machine reads and writes.
type State struct {
	FailureCount int
	LockedUntil  *time.Time
}

// IsLocked reports whether the lock deadline is set and still ahead of now.
func IsLocked(s State, now time.Time) bool {
	return s.LockedUntil != nil && s.LockedUntil.After(now)
}

// Expired reports whether a lock deadline exists but has passed.
func Expired(s State, now time.Time) bool {
	return s.LockedUntil != nil && !s.LockedUntil.After(now)
}

// Failure applies a failed verification. An elapsed lock is cleared first
// and the attempt counts as the first failure of a new series. Reaching the
// threshold sets the lock deadline.
func (p Policy) Failure(s State, now time.Time) State {
	if Expired(s, now) {
		return State{FailureCount: 1}
	}

	next := State{FailureCount: s.FailureCount + 1, LockedUntil: s.LockedUntil}
	if next.FailureCount >= p.Threshold && next.LockedUntil == nil {
		until := now.Add(p.Duration)
		next.LockedUntil = &until
	}
	return next
}

// Success returns the Unlocked state with a cleared counter.
func Success() State {
	return State{}
}
