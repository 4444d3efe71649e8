package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/dmitrijs2005/taskmanager/internal/common"
	"github.com/dmitrijs2005/taskmanager/internal/logging"
	"github.com/dmitrijs2005/taskmanager/internal/server/hasher"
	"github.com/dmitrijs2005/taskmanager/internal/server/mail"
	"github.com/dmitrijs2005/taskmanager/internal/server/metrics"
	"github.com/dmitrijs2005/taskmanager/internal/server/models"
	"github.com/dmitrijs2005/taskmanager/internal/server/policy"
	"github.com/dmitrijs2005/taskmanager/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/taskmanager/internal/timex"
)

// ResetService implements the password reset protocol: issue a single-use,
// time-bounded token and mail it, then consume it to install a new
// password.
type ResetService struct {
	accounts accounts.CredentialSecurity
	hasher   *hasher.Hasher
	mail     mail.Dispatcher
	password policy.Password
	ttl      time.Duration
	urlBase  string
	logger   logging.Logger
	now      timex.Clock
}

func NewResetService(repo accounts.CredentialSecurity, h *hasher.Hasher, d mail.Dispatcher, opts Options) *ResetService {
	opts = opts.withDefaults()
	return &ResetService{
		accounts: repo,
		hasher:   h,
		mail:     d,
		password: opts.Password,
		ttl:      opts.ResetTTL,
		urlBase:  opts.ResetURLBase,
		logger:   opts.Logger.With("module", "reset"),
		now:      opts.Now,
	}
}

// resetLink embeds token as the "token" query parameter of the base URL.
func resetLink(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// RequestReset issues a reset token for identity and mails the link. It
// returns nil whether or not the identity exists; only a store or dispatch
// failure surfaces, as common.ErrDependencyFailure. A token stored before a
// dispatch failure stays valid.
func (s *ResetService) RequestReset(ctx context.Context, identity string) error {
	a, err := s.accounts.GetByIdentity(ctx, models.NormalizeIdentity(identity))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			metrics.ResetTotal.WithLabelValues(metrics.StageRequest, metrics.OutcomeIgnored).Inc()
			return nil
		}
		metrics.ResetTotal.WithLabelValues(metrics.StageRequest, metrics.OutcomeError).Inc()
		s.logger.Error(ctx, "account lookup failed", "error", err)
		return common.ErrDependencyFailure
	}

	if !a.Active {
		metrics.ResetTotal.WithLabelValues(metrics.StageRequest, metrics.OutcomeIgnored).Inc()
		return nil
	}

	token, err := common.MakeRandHexString(common.ResetTokenBytes)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	link, err := resetLink(s.urlBase, token)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrConfigurationFatal, err)
	}

	if err := s.accounts.SetResetToken(ctx, a.ID, token, s.now().Add(s.ttl)); err != nil {
		metrics.ResetTotal.WithLabelValues(metrics.StageRequest, metrics.OutcomeError).Inc()
		s.logger.Error(ctx, "storing reset token failed", "account_id", a.ID, "error", err)
		return common.ErrDependencyFailure
	}

	if err := s.mail.Send(ctx, mail.ResetMessage(a.Identity, link, s.ttl)); err != nil {
		metrics.ResetTotal.WithLabelValues(metrics.StageRequest, metrics.OutcomeError).Inc()
		s.logger.Error(ctx, "reset message dispatch failed", "account_id", a.ID, "error", err)
		return common.ErrDependencyFailure
	}

	metrics.ResetTotal.WithLabelValues(metrics.StageRequest, metrics.OutcomeIssued).Inc()
	s.logger.Info(ctx, "reset token issued", "account_id", a.ID)
	return nil
}

// ConfirmReset installs newSecret on the account holding token. Wrong,
// expired and already used tokens all yield common.ErrInvalidOrExpiredToken.
// The token is cleared in the same write that replaces the verifier, and
// the lockout counters are cleared with it.
func (s *ResetService) ConfirmReset(ctx context.Context, token, newSecret string) error {
	if token == "" {
		metrics.ResetTotal.WithLabelValues(metrics.StageConfirm, metrics.OutcomeInvalidToken).Inc()
		return common.ErrInvalidOrExpiredToken
	}

	if err := s.password.Check(newSecret, "", ""); err != nil {
		metrics.ResetTotal.WithLabelValues(metrics.StageConfirm, metrics.OutcomePolicy).Inc()
		return err
	}

	h, err := s.hasher.Hash(newSecret)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	a, err := s.accounts.ConsumeResetToken(ctx, token, s.now(), h)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			metrics.ResetTotal.WithLabelValues(metrics.StageConfirm, metrics.OutcomeInvalidToken).Inc()
			return common.ErrInvalidOrExpiredToken
		}
		metrics.ResetTotal.WithLabelValues(metrics.StageConfirm, metrics.OutcomeError).Inc()
		s.logger.Error(ctx, "consuming reset token failed", "error", err)
		return common.ErrDependencyFailure
	}

	metrics.ResetTotal.WithLabelValues(metrics.StageConfirm, metrics.OutcomeSuccess).Inc()
	s.logger.Info(ctx, "password reset completed", "account_id", a.ID)
	return nil
}
