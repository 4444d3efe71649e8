package accountctl

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/taskmanager/internal/common"
	"github.com/dmitrijs2005/taskmanager/internal/server/models"
	"github.com/dmitrijs2005/taskmanager/internal/server/repositories/accounts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeStore struct {
	repo     *accounts.MemoryRepository
	migrated bool
	closed   bool
	txs      int
}

func stubStore(t *testing.T) *fakeStore {
	t.Helper()
	fs := &fakeStore{repo: accounts.NewMemoryRepository(time.Now)}
	orig := openStore
	openStore = func(ctx context.Context, dsn string, migrate bool) (*store, error) {
		fs.migrated = fs.migrated || migrate
		return &store{
			repo: fs.repo,
			inTx: func(ctx context.Context, fn func(ctx context.Context, repo accounts.Repository) error) error {
				fs.txs++
				return fn(ctx, fs.repo)
			},
			close: func() error { fs.closed = true; return nil },
		}, nil
	}
	t.Cleanup(func() { openStore = orig })
	return fs
}

func stubPasswords(t *testing.T, answers ...string) {
	t.Helper()
	orig := readPassword
	i := 0
	readPassword = func(int) ([]byte, error) {
		if i >= len(answers) {
			return nil, errors.New("no more input")
		}
		i++
		return []byte(answers[i-1]), nil
	}
	t.Cleanup(func() { readPassword = orig })
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCommand(strings.NewReader(stdin), &out, &errOut)
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestMigrate(t *testing.T) {
	fs := stubStore(t)

	out, err := run(t, "", "migrate", "--dsn", "postgres://localhost/tm")
	require.NoError(t, err)
	assert.Contains(t, out, "migrations applied")
	assert.True(t, fs.migrated)
	assert.True(t, fs.closed)
}

func TestMigrate_RequiresDSN(t *testing.T) {
	stubStore(t)
	t.Setenv("TM_DATABASE_DSN", "")

	_, err := run(t, "", "migrate", "--dsn", "")
	require.ErrorIs(t, err, errNoDSN)
}

func TestMigrate_OpenFailure(t *testing.T) {
	orig := openStore
	openStore = func(context.Context, string, bool) (*store, error) {
		return nil, errors.New("connection refused")
	}
	t.Cleanup(func() { openStore = orig })

	_, err := run(t, "", "migrate", "--dsn", "postgres://localhost/tm")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open account store")
}

func TestCreateAdmin(t *testing.T) {
	fs := stubStore(t)
	stubPasswords(t, "R00t!Secret", "R00t!Secret")

	out, err := run(t, "",
		"create-admin", "--dsn", "postgres://localhost/tm", "--pepper", "pepper",
		"--bcrypt-cost", "4", "--email", " Root@Example.com ", "--name", "Root")
	require.NoError(t, err)
	assert.Contains(t, out, "created administrator root@example.com")
	assert.NotContains(t, out, "R00t!Secret")

	acc, err := fs.repo.GetByIdentity(context.Background(), "root@example.com")
	require.NoError(t, err)
	assert.True(t, acc.Privileged)
	assert.True(t, acc.Active)
	assert.NotEqual(t, "R00t!Secret", acc.CredentialHash)
	cost, err := bcrypt.Cost([]byte(acc.CredentialHash))
	require.NoError(t, err)
	assert.Equal(t, 4, cost)
}

func TestCreateAdmin_PromptsForMissingFields(t *testing.T) {
	fs := stubStore(t)
	stubPasswords(t, "R00t!Secret", "R00t!Secret")

	out, err := run(t, "ops@example.com\nOps Team\n",
		"create-admin", "--dsn", "postgres://localhost/tm", "--pepper", "pepper", "--bcrypt-cost", "4")
	require.NoError(t, err)
	assert.Contains(t, out, "Email")
	assert.Contains(t, out, "Full name")

	acc, err := fs.repo.GetByIdentity(context.Background(), "ops@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Ops Team", acc.Name)
}

func TestCreateAdmin_PasswordMismatch(t *testing.T) {
	fs := stubStore(t)
	stubPasswords(t, "R00t!Secret", "R00t!Secreu")

	_, err := run(t, "",
		"create-admin", "--dsn", "x", "--pepper", "pepper", "--email", "root@example.com", "--name", "Root")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "do not match")

	_, err = fs.repo.GetByIdentity(context.Background(), "root@example.com")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestCreateAdmin_MissingPepper(t *testing.T) {
	stubStore(t)
	stubPasswords(t, "R00t!Secret", "R00t!Secret")
	t.Setenv("TM_PASSWORD_PEPPER", "")

	_, err := run(t, "",
		"create-admin", "--dsn", "x", "--pepper", "", "--email", "root@example.com", "--name", "Root")
	require.ErrorIs(t, err, common.ErrConfigurationFatal)
}

func TestCreateAdmin_WeakPassword(t *testing.T) {
	stubStore(t)
	stubPasswords(t, "short", "short")

	_, err := run(t, "",
		"create-admin", "--dsn", "x", "--pepper", "pepper", "--bcrypt-cost", "4",
		"--email", "root@example.com", "--name", "Root")
	require.ErrorIs(t, err, common.ErrPasswordPolicy)
}

func TestUnlock(t *testing.T) {
	fs := stubStore(t)
	ctx := context.Background()

	acc, err := fs.repo.Create(ctx, &models.Account{Identity: "alice@example.com", Name: "Alice", CredentialHash: "x", Active: true})
	require.NoError(t, err)
	until := time.Now().Add(30 * time.Minute)
	require.NoError(t, fs.repo.RecordLoginFailure(ctx, acc.ID, 5, &until))

	out, err := run(t, "", "unlock", "--dsn", "x", "ALICE@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "unlocked alice@example.com")
	assert.False(t, fs.migrated)
	assert.Equal(t, 1, fs.txs)

	got, err := fs.repo.GetByID(ctx, acc.ID)
	require.NoError(t, err)
	assert.Nil(t, got.LockedUntil)
	assert.Zero(t, got.FailureCount)
}

func TestUnlock_UnknownAccount(t *testing.T) {
	stubStore(t)

	_, err := run(t, "", "unlock", "--dsn", "x", "nobody@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no account with email")
}

func TestUnlock_RequiresArgument(t *testing.T) {
	stubStore(t)

	_, err := run(t, "", "unlock", "--dsn", "x")
	require.Error(t, err)
}
