// Package accountctl implements the operator CLI: schema migration, first
// administrator creation and manual unlock.
package accountctl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/taskmanager/internal/dbx"
	"github.com/dmitrijs2005/taskmanager/internal/logging"
	"github.com/dmitrijs2005/taskmanager/internal/server/config"
	"github.com/dmitrijs2005/taskmanager/internal/server/hasher"
	"github.com/dmitrijs2005/taskmanager/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/taskmanager/internal/server/repositories/repomanager"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var errNoDSN = errors.New("database DSN is required (--dsn or " + config.EnvPrefix + "DATABASE_DSN)")

// store is an opened account repository and the handle that closes it.
// inTx runs fn against a repository bound to one transaction.
type store struct {
	repo  accounts.Repository
	inTx  func(ctx context.Context, fn func(ctx context.Context, repo accounts.Repository) error) error
	close func() error
}

// openStore is a test seam for connecting to Postgres.
var openStore = func(ctx context.Context, dsn string, migrate bool) (*store, error) {
	db, err := repomanager.Open(ctx, dsn)
	if err != nil {
		return nil, err
	}
	rm := repomanager.NewPostgresRepositoryManager()
	if migrate {
		if err := rm.RunMigrations(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
	}
	return &store{
		repo: rm.Accounts(db),
		inTx: func(ctx context.Context, fn func(ctx context.Context, repo accounts.Repository) error) error {
			return dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
				return fn(ctx, rm.Accounts(tx))
			})
		},
		close: db.Close,
	}, nil
}

type app struct {
	dsn        string
	pepper     string
	bcryptCost int

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	logger logging.Logger
}

func NewRootCommand() *cobra.Command {
	return newRootCommand(os.Stdin, os.Stdout, os.Stderr)
}

func newRootCommand(in io.Reader, out, errOut io.Writer) *cobra.Command {
	_ = godotenv.Load()

	a := &app{
		stdin:  in,
		stdout: out,
		stderr: errOut,
		logger: logging.New(logging.Options{Level: "warn", Format: "text"}),
	}

	cmd := &cobra.Command{
		Use:           "accountctl",
		Short:         "Operator tool for the Task Manager account store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&a.dsn, "dsn", os.Getenv(config.EnvPrefix+"DATABASE_DSN"), "Postgres connection string")
	cmd.PersistentFlags().StringVar(&a.pepper, "pepper", os.Getenv(config.EnvPrefix+"PASSWORD_PEPPER"), "server-wide password pepper")
	cmd.PersistentFlags().IntVar(&a.bcryptCost, "bcrypt-cost", hasher.DefaultCost, "bcrypt work factor")

	cmd.AddCommand(
		newMigrateCmd(a),
		newCreateAdminCmd(a),
		newUnlockCmd(a),
	)

	return cmd
}

func (a *app) open(ctx context.Context, migrate bool) (*store, error) {
	if a.dsn == "" {
		return nil, errNoDSN
	}
	s, err := openStore(ctx, a.dsn, migrate)
	if err != nil {
		return nil, fmt.Errorf("open account store: %w", err)
	}
	return s, nil
}
