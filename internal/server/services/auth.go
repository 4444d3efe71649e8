package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/taskmanager/internal/common"
	"github.com/dmitrijs2005/taskmanager/internal/logging"
	"github.com/dmitrijs2005/taskmanager/internal/server/hasher"
	"github.com/dmitrijs2005/taskmanager/internal/server/lockout"
	"github.com/dmitrijs2005/taskmanager/internal/server/metrics"
	"github.com/dmitrijs2005/taskmanager/internal/server/models"
	"github.com/dmitrijs2005/taskmanager/internal/server/policy"
	"github.com/dmitrijs2005/taskmanager/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/taskmanager/internal/server/session"
	"github.com/dmitrijs2005/taskmanager/internal/timex"
)

// LoginResult is a successful login: the session to deliver and the
// account it was issued for.
type LoginResult struct {
	Session *session.Session
	Account *models.Account
}

// AuthService authenticates accounts, drives the lockout state machine and
// issues sessions.
type AuthService struct {
	accounts accounts.CredentialSecurity
	hasher   *hasher.Hasher
	issuer   *session.Issuer
	lockout  lockout.Policy
	password policy.Password
	logger   logging.Logger
	now      timex.Clock

	// dummyVerifier is checked against when the identity is unknown or
	// inactive, so those paths cost one bcrypt comparison like a real one.
	dummyVerifier string
}

func NewAuthService(repo accounts.CredentialSecurity, h *hasher.Hasher, issuer *session.Issuer, opts Options) (*AuthService, error) {
	opts = opts.withDefaults()

	filler, err := common.MakeRandHexString(16)
	if err != nil {
		return nil, err
	}
	dummy, err := h.Hash(filler)
	if err != nil {
		return nil, err
	}

	return &AuthService{
		accounts:      repo,
		hasher:        h,
		issuer:        issuer,
		lockout:       opts.Lockout,
		password:      opts.Password,
		logger:        opts.Logger.With("module", "auth"),
		now:           opts.Now,
		dummyVerifier: dummy,
	}, nil
}

func (s *AuthService) dependencyFailure(ctx context.Context, op string, err error) error {
	s.logger.Error(ctx, op+" failed", "error", err)
	return common.ErrDependencyFailure
}

// Login authenticates identity with secret. Unknown identity, inactive
// account and wrong secret all yield common.ErrInvalidCredentials; an
// active lock yields common.ErrAccountLocked without the remaining time.
func (s *AuthService) Login(ctx context.Context, identity, secret string) (*LoginResult, error) {
	a, err := s.accounts.GetByIdentity(ctx, models.NormalizeIdentity(identity))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.hasher.Verify(secret, s.dummyVerifier)
			metrics.LoginTotal.WithLabelValues(metrics.OutcomeInvalidCredentials).Inc()
			return nil, common.ErrInvalidCredentials
		}
		metrics.LoginTotal.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, s.dependencyFailure(ctx, "account lookup", err)
	}

	if !a.Active {
		s.hasher.Verify(secret, s.dummyVerifier)
		metrics.LoginTotal.WithLabelValues(metrics.OutcomeInvalidCredentials).Inc()
		return nil, common.ErrInvalidCredentials
	}

	now := s.now()
	state := lockout.State{FailureCount: a.FailureCount, LockedUntil: a.LockedUntil}

	if lockout.IsLocked(state, now) {
		metrics.LoginTotal.WithLabelValues(metrics.OutcomeLocked).Inc()
		s.logger.Info(ctx, "login rejected, account locked", "account_id", a.ID)
		return nil, common.ErrAccountLocked
	}

	if !s.hasher.Verify(secret, a.CredentialHash) {
		next := s.lockout.Failure(state, now)
		if err := s.accounts.RecordLoginFailure(ctx, a.ID, next.FailureCount, next.LockedUntil); err != nil {
			metrics.LoginTotal.WithLabelValues(metrics.OutcomeError).Inc()
			return nil, s.dependencyFailure(ctx, "record login failure", err)
		}
		if lockout.IsLocked(next, now) {
			metrics.LockoutsTotal.Inc()
			s.logger.Warn(ctx, "account locked after repeated failures", "account_id", a.ID, "failures", next.FailureCount)
		}
		metrics.LoginTotal.WithLabelValues(metrics.OutcomeInvalidCredentials).Inc()
		return nil, common.ErrInvalidCredentials
	}

	if err := s.accounts.RecordLoginSuccess(ctx, a.ID); err != nil {
		metrics.LoginTotal.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, s.dependencyFailure(ctx, "record login success", err)
	}
	cleared := lockout.Success()
	a.FailureCount, a.LockedUntil = cleared.FailureCount, cleared.LockedUntil

	s.upgradeVerifier(ctx, a, secret)

	sess, err := s.issuer.Issue(a.ID, a.Identity, a.Privileged, a.LastCredentialChange)
	if err != nil {
		metrics.LoginTotal.WithLabelValues(metrics.OutcomeError).Inc()
		s.logger.Error(ctx, "session issue failed", "error", err)
		return nil, common.ErrorInternal
	}

	metrics.LoginTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
	s.logger.Info(ctx, "login succeeded", "account_id", a.ID)
	return &LoginResult{Session: sess, Account: a}, nil
}

// upgradeVerifier rehashes a verifier stored below the configured cost. The
// credential version is kept so existing sessions stay valid. Failures are
// logged only; the login itself already succeeded.
func (s *AuthService) upgradeVerifier(ctx context.Context, a *models.Account, secret string) {
	if !s.hasher.NeedsRehash(a.CredentialHash) {
		return
	}
	h, err := s.hasher.Hash(secret)
	if err != nil {
		s.logger.Warn(ctx, "verifier upgrade failed", "account_id", a.ID, "error", err)
		return
	}
	if err := s.accounts.ReplaceCredential(ctx, a.ID, h, a.LastCredentialChange); err != nil {
		s.logger.Warn(ctx, "verifier upgrade failed", "account_id", a.ID, "error", err)
		return
	}
	a.CredentialHash = h
}

// Authenticate resolves a session token to its account. Tokens for deleted
// or inactive accounts, and tokens minted before the last credential
// change, are rejected with common.ErrInvalidToken.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.Account, *session.Claims, error) {
	claims, err := s.issuer.Verify(token)
	if err != nil {
		return nil, nil, err
	}

	a, err := s.accounts.GetByID(ctx, claims.AccountID())
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil, common.ErrInvalidToken
		}
		return nil, nil, s.dependencyFailure(ctx, "session account lookup", err)
	}

	if !a.Active {
		return nil, nil, common.ErrInvalidToken
	}
	if err := session.CheckCredentialVersion(claims, a.LastCredentialChange); err != nil {
		return nil, nil, err
	}

	return a, claims, nil
}

// ChangePassword replaces the verifier of an authenticated account after
// re-checking the current password. Earlier sessions stop validating, so a
// fresh session is returned for the caller.
func (s *AuthService) ChangePassword(ctx context.Context, accountID, current, next string) (*session.Session, error) {
	a, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, s.dependencyFailure(ctx, "account lookup", err)
	}

	if !s.hasher.Verify(current, a.CredentialHash) {
		return nil, common.ErrInvalidCredentials
	}
	if next == current {
		return nil, common.ErrPasswordReuse
	}
	if err := s.password.Check(next, a.Identity, a.Name); err != nil {
		return nil, err
	}

	h, err := s.hasher.Hash(next)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	changed := s.now()
	if err := s.accounts.ReplaceCredential(ctx, a.ID, h, changed); err != nil {
		return nil, s.dependencyFailure(ctx, "replace credential", err)
	}
	s.logger.Info(ctx, "password changed", "account_id", a.ID)

	sess, err := s.issuer.Issue(a.ID, a.Identity, a.Privileged, changed)
	if err != nil {
		s.logger.Error(ctx, "session issue failed", "error", err)
		return nil, common.ErrorInternal
	}
	return sess, nil
}
