package accountctl

import (
	"bufio"
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/taskmanager/internal/common"
	"github.com/dmitrijs2005/taskmanager/internal/server/hasher"
	"github.com/dmitrijs2005/taskmanager/internal/server/mail"
	"github.com/dmitrijs2005/taskmanager/internal/server/models"
	"github.com/dmitrijs2005/taskmanager/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/taskmanager/internal/server/services"
	"github.com/spf13/cobra"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.open(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer s.close()
			fmt.Fprintln(a.stdout, "migrations applied")
			return nil
		},
	}
}

func newCreateAdminCmd(a *app) *cobra.Command {
	var email, name, title, role string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create a privileged account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reader := bufio.NewReader(a.stdin)
			var err error
			if email == "" {
				if email, err = GetSimpleText(reader, "Email", a.stdout); err != nil {
					return err
				}
			}
			if name == "" {
				if name, err = GetSimpleText(reader, "Full name", a.stdout); err != nil {
					return err
				}
			}

			password, err := GetPassword(a.stdout, "Password")
			if err != nil {
				return err
			}
			confirm, err := GetPassword(a.stdout, "Repeat password")
			if err != nil {
				return err
			}
			if password != confirm {
				return errors.New("passwords do not match")
			}

			h, err := hasher.New(hasher.Config{Pepper: []byte(a.pepper), Cost: a.bcryptCost})
			if err != nil {
				return err
			}

			s, err := a.open(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer s.close()

			admin := services.NewAdminService(s.repo, h, mail.NewLogDispatcher(a.logger), services.Options{Logger: a.logger})
			acc, err := admin.Register(cmd.Context(), services.NewAccount{
				Name:       name,
				Title:      title,
				Role:       role,
				Email:      email,
				Password:   password,
				Privileged: true,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(a.stdout, "created administrator %s (%s)\n", acc.Identity, acc.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "login email")
	cmd.Flags().StringVar(&name, "name", "", "full name")
	cmd.Flags().StringVar(&title, "title", "Administrator", "job title")
	cmd.Flags().StringVar(&role, "role", "admin", "team role")

	return cmd
}

func newUnlockCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "unlock <email>",
		Short: "Clear the lockout of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer s.close()

			var identity string
			err = s.inTx(cmd.Context(), func(ctx context.Context, repo accounts.Repository) error {
				acc, err := repo.GetByIdentity(ctx, models.NormalizeIdentity(args[0]))
				if err != nil {
					if errors.Is(err, common.ErrorNotFound) {
						return fmt.Errorf("no account with email %s", args[0])
					}
					return err
				}
				identity = acc.Identity
				return repo.Unlock(ctx, acc.ID)
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(a.stdout, "unlocked %s\n", identity)
			return nil
		},
	}
}
