package services

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/taskmanager/internal/server/hasher"
	"github.com/dmitrijs2005/taskmanager/internal/server/mail"
	"github.com/dmitrijs2005/taskmanager/internal/server/models"
	"github.com/dmitrijs2005/taskmanager/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/taskmanager/internal/server/session"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type captureDispatcher struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (d *captureDispatcher) Send(_ context.Context, msg mail.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, msg)
	return nil
}

func (d *captureDispatcher) last(t *testing.T) mail.Message {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	require.NotEmpty(t, d.sent, "no message dispatched")
	return d.sent[len(d.sent)-1]
}

func (d *captureDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sent)
}

var tokenRe = regexp.MustCompile(`token=([0-9a-f]{64})`)

func tokenFrom(t *testing.T, msg mail.Message) string {
	t.Helper()
	m := tokenRe.FindStringSubmatch(msg.Body)
	require.Len(t, m, 2, "message carries no reset token")
	return m[1]
}

// failingRepo wraps a repository and fails the selected operations.
type failingRepo struct {
	accounts.Repository
	failLookup  bool
	failWrites  bool
	failConsume bool
}

var errDBDown = errors.New("db down: connection refused on 10.0.0.5")

func (r *failingRepo) GetByIdentity(ctx context.Context, identity string) (*models.Account, error) {
	if r.failLookup {
		return nil, errDBDown
	}
	return r.Repository.GetByIdentity(ctx, identity)
}

func (r *failingRepo) RecordLoginFailure(ctx context.Context, id string, n int, until *time.Time) error {
	if r.failWrites {
		return errDBDown
	}
	return r.Repository.RecordLoginFailure(ctx, id, n, until)
}

func (r *failingRepo) RecordLoginSuccess(ctx context.Context, id string) error {
	if r.failWrites {
		return errDBDown
	}
	return r.Repository.RecordLoginSuccess(ctx, id)
}

func (r *failingRepo) SetResetToken(ctx context.Context, id, token string, expiry time.Time) error {
	if r.failWrites {
		return errDBDown
	}
	return r.Repository.SetResetToken(ctx, id, token, expiry)
}

func (r *failingRepo) ConsumeResetToken(ctx context.Context, token string, now time.Time, h string) (*models.Account, error) {
	if r.failConsume {
		return nil, errDBDown
	}
	return r.Repository.ConsumeResetToken(ctx, token, now, h)
}

type env struct {
	clock  *fakeClock
	repo   *accounts.MemoryRepository
	hasher *hasher.Hasher
	issuer *session.Issuer
	mail   *captureDispatcher
	opts   Options

	auth  *AuthService
	reset *ResetService
	admin *AdminService
}

func newHasher(t *testing.T, cost int) *hasher.Hasher {
	t.Helper()
	h, err := hasher.New(hasher.Config{Pepper: []byte("test-pepper"), Cost: cost})
	require.NoError(t, err)
	return h
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{clock: newFakeClock(), mail: &captureDispatcher{}}
	e.repo = accounts.NewMemoryRepository(e.clock.Now)
	e.hasher = newHasher(t, bcrypt.MinCost)

	var err error
	e.issuer, err = session.NewIssuer(session.Config{Secret: []byte("session-secret"), Now: e.clock.Now})
	require.NoError(t, err)

	e.opts = Options{ResetURLBase: "https://tasks.example.com/reset-password", Now: e.clock.Now}
	e.auth, err = NewAuthService(e.repo, e.hasher, e.issuer, e.opts)
	require.NoError(t, err)
	e.reset = NewResetService(e.repo, e.hasher, e.mail, e.opts)
	e.admin = NewAdminService(e.repo, e.hasher, e.mail, e.opts)
	return e
}

const (
	aliceEmail    = "alice@example.com"
	alicePassword = "OldPassw0rd!"
)

func (e *env) registerAlice(t *testing.T) *models.Account {
	t.Helper()
	a, err := e.admin.Register(context.Background(), NewAccount{
		Name: "Alice", Title: "Engineer", Role: "developer", Email: aliceEmail, Password: alicePassword,
	})
	require.NoError(t, err)
	return a
}
