package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/taskmanager/internal/common"
	"github.com/dmitrijs2005/taskmanager/internal/dbx"
	"github.com/dmitrijs2005/taskmanager/internal/server/models"
	"github.com/google/uuid"
)

const accountColumns = `id, identity, credential_hash, last_credential_change, privileged, active,
		failure_count, locked_until, reset_token, reset_token_expiry,
		name, title, role, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var (
		a           models.Account
		lockedUntil sql.NullTime
		resetToken  sql.NullString
		resetExpiry sql.NullTime
	)

	err := row.Scan(&a.ID, &a.Identity, &a.CredentialHash, &a.LastCredentialChange, &a.Privileged, &a.Active,
		&a.FailureCount, &lockedUntil, &resetToken, &resetExpiry,
		&a.Name, &a.Title, &a.Role, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if lockedUntil.Valid {
		a.LockedUntil = &lockedUntil.Time
	}
	if resetToken.Valid {
		a.ResetToken = &resetToken.String
	}
	if resetExpiry.Valid {
		a.ResetTokenExpiry = &resetExpiry.Time
	}

	return &a, nil
}

func (r *PostgresRepository) queryOne(ctx context.Context, query string, args ...any) (*models.Account, error) {
	a, err := scanAccount(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

// execOne runs a single-row update and reports ErrorNotFound when no row
// was touched.
func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	if account.ID == "" {
		account.ID = uuid.NewString()
	}

	query :=
		`INSERT INTO accounts (id, identity, credential_hash, last_credential_change, privileged, active, name, title, role)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING ` + accountColumns

	return r.queryOne(ctx, query,
		account.ID, models.NormalizeIdentity(account.Identity), account.CredentialHash, account.LastCredentialChange,
		account.Privileged, account.Active, account.Name, account.Title, account.Role)
}

func (r *PostgresRepository) GetByIdentity(ctx context.Context, identity string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE identity = $1`
	return r.queryOne(ctx, query, models.NormalizeIdentity(identity))
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrorNotFound
	}
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return r.queryOne(ctx, query, id)
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY created_at, identity`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

func (r *PostgresRepository) RecordLoginFailure(ctx context.Context, id string, failureCount int, lockedUntil *time.Time) error {
	query :=
		`UPDATE accounts SET failure_count = $2, locked_until = $3, updated_at = now()
		 WHERE id = $1`
	return r.execOne(ctx, query, id, failureCount, lockedUntil)
}

func (r *PostgresRepository) RecordLoginSuccess(ctx context.Context, id string) error {
	query :=
		`UPDATE accounts SET failure_count = 0, locked_until = NULL, updated_at = now()
		 WHERE id = $1`
	return r.execOne(ctx, query, id)
}

func (r *PostgresRepository) SetResetToken(ctx context.Context, id string, token string, expiry time.Time) error {
	query :=
		`UPDATE accounts SET reset_token = $2, reset_token_expiry = $3, updated_at = now()
		 WHERE id = $1`
	return r.execOne(ctx, query, id, token, expiry)
}

func (r *PostgresRepository) ConsumeResetToken(ctx context.Context, token string, now time.Time, newHash string) (*models.Account, error) {
	query :=
		`UPDATE accounts
		 SET credential_hash = $3, last_credential_change = $2,
		     reset_token = NULL, reset_token_expiry = NULL,
		     failure_count = 0, locked_until = NULL, updated_at = $2
		 WHERE reset_token = $1 AND reset_token_expiry > $2
		 RETURNING ` + accountColumns
	return r.queryOne(ctx, query, token, now, newHash)
}

func (r *PostgresRepository) ReplaceCredential(ctx context.Context, id string, newHash string, changedAt time.Time) error {
	query :=
		`UPDATE accounts SET credential_hash = $2, last_credential_change = $3, updated_at = $3
		 WHERE id = $1`
	return r.execOne(ctx, query, id, newHash, changedAt)
}

func (r *PostgresRepository) UpdateProfile(ctx context.Context, id string, update models.ProfileUpdate) (*models.Account, error) {
	var identity *string
	if update.Identity != nil {
		n := models.NormalizeIdentity(*update.Identity)
		identity = &n
	}

	query :=
		`UPDATE accounts
		 SET name = COALESCE($2, name), title = COALESCE($3, title), role = COALESCE($4, role),
		     identity = COALESCE($5, identity), active = COALESCE($6, active), updated_at = now()
		 WHERE id = $1
		 RETURNING ` + accountColumns
	return r.queryOne(ctx, query, id, update.Name, update.Title, update.Role, identity, update.Active)
}

func (r *PostgresRepository) SetActive(ctx context.Context, id string, active bool) error {
	query := `UPDATE accounts SET active = $2, updated_at = now() WHERE id = $1`
	return r.execOne(ctx, query, id, active)
}

func (r *PostgresRepository) Unlock(ctx context.Context, id string) error {
	query := `UPDATE accounts SET failure_count = 0, locked_until = NULL, updated_at = now() WHERE id = $1`
	return r.execOne(ctx, query, id)
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	return r.execOne(ctx, `DELETE FROM accounts WHERE id = $1`, id)
}
