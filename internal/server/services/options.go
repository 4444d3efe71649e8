// Package services contains the account security business logic:
// authentication with lockout, the password reset protocol and account
// administration. Services depend on the narrow store interfaces from the
// accounts repository and never on a concrete database.
package services

import (
	"time"

	"github.com/dmitrijs2005/taskmanager/internal/logging"
	"github.com/dmitrijs2005/taskmanager/internal/server/lockout"
	"github.com/dmitrijs2005/taskmanager/internal/server/policy"
	"github.com/dmitrijs2005/taskmanager/internal/timex"
)

// DefaultResetTokenTTL bounds how long a reset link stays usable.
const DefaultResetTokenTTL = 30 * time.Minute

// Options carries the tunables shared by the services. Zero values fall
// back to the defaults.
type Options struct {
	Lockout      lockout.Policy
	Password     policy.Password
	ResetTTL     time.Duration
	ResetURLBase string
	Logger       logging.Logger
	Now          timex.Clock
}

func (o Options) withDefaults() Options {
	if o.Lockout.Threshold <= 0 || o.Lockout.Duration <= 0 {
		o.Lockout = lockout.DefaultPolicy()
	}
	if o.Password.MinLength <= 0 {
		o.Password = policy.Default()
	}
	if o.ResetTTL <= 0 {
		o.ResetTTL = DefaultResetTokenTTL
	}
	if o.Logger == nil {
		o.Logger = logging.Nop{}
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}
