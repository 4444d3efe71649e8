// Package accounts persists account records. The store is split into two
// narrow interfaces: CredentialSecurity for the authentication and reset
// flows, and ProfileAdmin for administration, so neither side can write the
// other's fields.
package accounts

import (
	"context"
	"time"

	"github.com/dmitrijs2005/taskmanager/internal/server/models"
)

// CredentialSecurity covers identity lookup, lockout counters, reset tokens
// and verifier replacement. Every method is a single atomic write.
type CredentialSecurity interface {
	GetByIdentity(ctx context.Context, identity string) (*models.Account, error)
	GetByID(ctx context.Context, id string) (*models.Account, error)

	RecordLoginFailure(ctx context.Context, id string, failureCount int, lockedUntil *time.Time) error
	RecordLoginSuccess(ctx context.Context, id string) error

	SetResetToken(ctx context.Context, id string, token string, expiry time.Time) error
	// ConsumeResetToken replaces the verifier of the account holding token,
	// provided the token has not expired at now, and clears the token and the
	// lockout counters. It returns common.ErrorNotFound when nothing matched.
	ConsumeResetToken(ctx context.Context, token string, now time.Time, newHash string) (*models.Account, error)
	ReplaceCredential(ctx context.Context, id string, newHash string, changedAt time.Time) error
}

// ProfileAdmin covers administration. Apart from Create, which stores the
// initial verifier, none of these touches credential fields.
type ProfileAdmin interface {
	Create(ctx context.Context, account *models.Account) (*models.Account, error)
	List(ctx context.Context) ([]*models.Account, error)
	UpdateProfile(ctx context.Context, id string, update models.ProfileUpdate) (*models.Account, error)
	SetActive(ctx context.Context, id string, active bool) error
	Unlock(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

type Repository interface {
	CredentialSecurity
	ProfileAdmin
}
