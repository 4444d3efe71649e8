// Package admission decides whether a request from an origin may reach the
// account services. It runs before any service call; a rejected request
// never touches the account store.
package admission

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidPolicy is returned for a budget that admits nothing.
var ErrInvalidPolicy = errors.New("invalid admission policy")

// Policy is a request budget of Limit hits per Window and origin.
type Policy struct {
	Name   string
	Limit  int
	Window time.Duration
}

// Login budgets failed logins only (5 per hour per origin).
func Login() Policy { return Policy{Name: "login", Limit: 5, Window: time.Hour} }

// General budgets every request (100 per 15 minutes per origin).
func General() Policy { return Policy{Name: "general", Limit: 100, Window: 15 * time.Minute} }

// Validate rejects budgets without at least one hit per positive window.
func (p Policy) Validate() error {
	if p.Limit < 1 {
		return fmt.Errorf("%w: %s limit %d must be at least 1", ErrInvalidPolicy, p.Name, p.Limit)
	}
	if p.Window <= 0 {
		return fmt.Errorf("%w: %s window %v must be positive", ErrInvalidPolicy, p.Name, p.Window)
	}
	return nil
}

type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Gate tracks per-key usage of one Policy.
//
// Allow counts a hit and decides on it. Peek decides without counting and
// Record counts without deciding; together they implement budgets that only
// count some outcomes, such as failed logins.
type Gate interface {
	Allow(ctx context.Context, key string) (Decision, error)
	Peek(ctx context.Context, key string) (Decision, error)
	Record(ctx context.Context, key string) error
	Policy() Policy
}
