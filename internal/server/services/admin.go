package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/taskmanager/internal/common"
	"github.com/dmitrijs2005/taskmanager/internal/logging"
	"github.com/dmitrijs2005/taskmanager/internal/server/hasher"
	"github.com/dmitrijs2005/taskmanager/internal/server/mail"
	"github.com/dmitrijs2005/taskmanager/internal/server/models"
	"github.com/dmitrijs2005/taskmanager/internal/server/policy"
	"github.com/dmitrijs2005/taskmanager/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/taskmanager/internal/timex"
)

// NewAccount is an administrator's request to create an account. An empty
// Password makes the service generate an initial one.
type NewAccount struct {
	Name       string
	Title      string
	Role       string
	Email      string
	Password   string
	Privileged bool
}

// AdminService administers accounts through the profile side of the store.
// It never writes lockout counters or reset tokens except through Unlock.
type AdminService struct {
	accounts accounts.ProfileAdmin
	hasher   *hasher.Hasher
	mail     mail.Dispatcher
	password policy.Password
	logger   logging.Logger
	now      timex.Clock
}

func NewAdminService(repo accounts.ProfileAdmin, h *hasher.Hasher, d mail.Dispatcher, opts Options) *AdminService {
	opts = opts.withDefaults()
	return &AdminService{
		accounts: repo,
		hasher:   h,
		mail:     d,
		password: opts.Password,
		logger:   opts.Logger.With("module", "admin"),
		now:      opts.Now,
	}
}

// generatePassword returns an initial password that satisfies the default
// policy: random hex plus one character of each required class.
func generatePassword() (string, error) {
	s, err := common.MakeRandHexString(8)
	if err != nil {
		return "", err
	}
	return "Tm" + s + "a7!", nil
}

// ErrWelcomeNotSent reports an account that was created but whose welcome
// message could not be dispatched.
var ErrWelcomeNotSent = errors.New("account created, welcome message not sent")

// Register creates an account and mails its initial credentials. When the
// dispatch fails the account stays created and ErrWelcomeNotSent is
// returned together with it.
func (s *AdminService) Register(ctx context.Context, in NewAccount) (*models.Account, error) {
	email := models.NormalizeIdentity(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: a valid email is required", common.ErrorValidation)
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", common.ErrorValidation)
	}

	password := in.Password
	if password == "" {
		generated, err := generatePassword()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
		}
		password = generated
	}
	if err := s.password.Check(password, email, in.Name); err != nil {
		return nil, err
	}

	h, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	a, err := s.accounts.Create(ctx, &models.Account{
		Identity:             email,
		CredentialHash:       h,
		LastCredentialChange: s.now(),
		Privileged:           in.Privileged,
		Active:               true,
		Name:                 strings.TrimSpace(in.Name),
		Title:                in.Title,
		Role:                 in.Role,
	})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, common.ErrorAlreadyExists
		}
		s.logger.Error(ctx, "account create failed", "error", err)
		return nil, common.ErrDependencyFailure
	}
	s.logger.Info(ctx, "account created", "account_id", a.ID, "privileged", a.Privileged)

	msg := mail.WelcomeMessage(a.Identity, mail.Welcome{
		Name: a.Name, Title: a.Title, Role: a.Role, InitialPassword: password,
	})
	if err := s.mail.Send(ctx, msg); err != nil {
		s.logger.Error(ctx, "welcome message dispatch failed", "account_id", a.ID, "error", err)
		return a, ErrWelcomeNotSent
	}

	return a, nil
}

func (s *AdminService) wrap(ctx context.Context, op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, common.ErrorNotFound), errors.Is(err, common.ErrorAlreadyExists):
		return err
	default:
		s.logger.Error(ctx, op+" failed", "error", err)
		return common.ErrDependencyFailure
	}
}

// Team lists every account as a team member.
func (s *AdminService) Team(ctx context.Context) ([]models.TeamMember, error) {
	list, err := s.accounts.List(ctx)
	if err != nil {
		return nil, s.wrap(ctx, "list accounts", err)
	}
	team := make([]models.TeamMember, 0, len(list))
	for _, a := range list {
		team = append(team, a.Member())
	}
	return team, nil
}

// UpdateProfile edits profile fields. Non-privileged actors may only edit
// their own profile and cannot change the active flag; privileged actors
// may edit any account.
func (s *AdminService) UpdateProfile(ctx context.Context, actor *models.Account, targetID string, update models.ProfileUpdate) (*models.Account, error) {
	id := actor.ID
	if actor.Privileged && targetID != "" {
		id = targetID
	}
	if !actor.Privileged {
		update.Active = nil
	}
	if update.Identity != nil && !strings.Contains(*update.Identity, "@") {
		return nil, fmt.Errorf("%w: a valid email is required", common.ErrorValidation)
	}
	if update.Empty() {
		return nil, fmt.Errorf("%w: nothing to update", common.ErrorValidation)
	}

	a, err := s.accounts.UpdateProfile(ctx, id, update)
	if err != nil {
		return nil, s.wrap(ctx, "update profile", err)
	}
	return a, nil
}

// SetActive activates or deactivates an account. Deactivated accounts fail
// authentication like unknown ones.
func (s *AdminService) SetActive(ctx context.Context, id string, active bool) error {
	if err := s.accounts.SetActive(ctx, id, active); err != nil {
		return s.wrap(ctx, "set active", err)
	}
	s.logger.Info(ctx, "account activation changed", "account_id", id, "active", active)
	return nil
}

// Unlock clears the lockout counters ahead of the lock window.
func (s *AdminService) Unlock(ctx context.Context, id string) error {
	if err := s.accounts.Unlock(ctx, id); err != nil {
		return s.wrap(ctx, "unlock", err)
	}
	s.logger.Info(ctx, "account unlocked", "account_id", id)
	return nil
}

func (s *AdminService) Delete(ctx context.Context, id string) error {
	if err := s.accounts.Delete(ctx, id); err != nil {
		return s.wrap(ctx, "delete", err)
	}
	s.logger.Info(ctx, "account deleted", "account_id", id)
	return nil
}
