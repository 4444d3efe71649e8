package accounts

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/taskmanager/internal/common"
	"github.com/dmitrijs2005/taskmanager/internal/server/models"
	"github.com/dmitrijs2005/taskmanager/internal/timex"
	"github.com/google/uuid"
)

// MemoryRepository keeps accounts in process memory. Each method runs in a
// single critical section, which gives it the same atomicity as the
// one-statement Postgres transitions.
type MemoryRepository struct {
	mu         sync.Mutex
	byID       map[string]*models.Account
	byIdentity map[string]string
	now        timex.Clock
}

func NewMemoryRepository(now timex.Clock) *MemoryRepository {
	if now == nil {
		now = time.Now
	}
	return &MemoryRepository{
		byID:       make(map[string]*models.Account),
		byIdentity: make(map[string]string),
		now:        now,
	}
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneAccount(a *models.Account) *models.Account {
	c := *a
	c.LockedUntil = cloneTime(a.LockedUntil)
	c.ResetTokenExpiry = cloneTime(a.ResetTokenExpiry)
	if a.ResetToken != nil {
		t := *a.ResetToken
		c.ResetToken = &t
	}
	return &c
}

func (r *MemoryRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	identity := models.NormalizeIdentity(account.Identity)
	if _, ok := r.byIdentity[identity]; ok {
		return nil, common.ErrorAlreadyExists
	}

	a := cloneAccount(account)
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if _, ok := r.byID[a.ID]; ok {
		return nil, common.ErrorAlreadyExists
	}
	now := r.now()
	a.Identity = identity
	a.CreatedAt, a.UpdatedAt = now, now
	if a.LastCredentialChange.IsZero() {
		a.LastCredentialChange = now
	}

	r.byID[a.ID] = a
	r.byIdentity[identity] = a.ID

	return cloneAccount(a), nil
}

func (r *MemoryRepository) GetByIdentity(ctx context.Context, identity string) (*models.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byIdentity[models.NormalizeIdentity(identity)]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return cloneAccount(r.byID[id]), nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return cloneAccount(a), nil
}

func (r *MemoryRepository) List(ctx context.Context) ([]*models.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]*models.Account, 0, len(r.byID))
	for _, a := range r.byID {
		result = append(result, cloneAccount(a))
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].Identity < result[j].Identity
	})
	return result, nil
}

// update applies fn to the account under the lock.
func (r *MemoryRepository) update(ctx context.Context, id string, fn func(a *models.Account)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	fn(a)
	a.UpdatedAt = r.now()
	return nil
}

func (r *MemoryRepository) RecordLoginFailure(ctx context.Context, id string, failureCount int, lockedUntil *time.Time) error {
	return r.update(ctx, id, func(a *models.Account) {
		a.FailureCount = failureCount
		a.LockedUntil = cloneTime(lockedUntil)
	})
}

func (r *MemoryRepository) RecordLoginSuccess(ctx context.Context, id string) error {
	return r.update(ctx, id, func(a *models.Account) {
		a.FailureCount = 0
		a.LockedUntil = nil
	})
}

func (r *MemoryRepository) SetResetToken(ctx context.Context, id string, token string, expiry time.Time) error {
	return r.update(ctx, id, func(a *models.Account) {
		a.ResetToken = &token
		a.ResetTokenExpiry = &expiry
	})
}

func (r *MemoryRepository) ConsumeResetToken(ctx context.Context, token string, now time.Time, newHash string) (*models.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.byID {
		if a.ResetToken == nil || *a.ResetToken != token {
			continue
		}
		if a.ResetTokenExpiry == nil || !a.ResetTokenExpiry.After(now) {
			return nil, common.ErrorNotFound
		}

		a.CredentialHash = newHash
		a.LastCredentialChange = now
		a.ResetToken = nil
		a.ResetTokenExpiry = nil
		a.FailureCount = 0
		a.LockedUntil = nil
		a.UpdatedAt = now

		return cloneAccount(a), nil
	}

	return nil, common.ErrorNotFound
}

func (r *MemoryRepository) ReplaceCredential(ctx context.Context, id string, newHash string, changedAt time.Time) error {
	return r.update(ctx, id, func(a *models.Account) {
		a.CredentialHash = newHash
		a.LastCredentialChange = changedAt
	})
}

func (r *MemoryRepository) UpdateProfile(ctx context.Context, id string, update models.ProfileUpdate) (*models.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}

	if update.Identity != nil {
		identity := models.NormalizeIdentity(*update.Identity)
		if owner, taken := r.byIdentity[identity]; taken && owner != id {
			return nil, common.ErrorAlreadyExists
		}
		delete(r.byIdentity, a.Identity)
		a.Identity = identity
		r.byIdentity[identity] = id
	}
	if update.Name != nil {
		a.Name = *update.Name
	}
	if update.Title != nil {
		a.Title = *update.Title
	}
	if update.Role != nil {
		a.Role = *update.Role
	}
	if update.Active != nil {
		a.Active = *update.Active
	}
	a.UpdatedAt = r.now()

	return cloneAccount(a), nil
}

func (r *MemoryRepository) SetActive(ctx context.Context, id string, active bool) error {
	return r.update(ctx, id, func(a *models.Account) { a.Active = active })
}

func (r *MemoryRepository) Unlock(ctx context.Context, id string) error {
	return r.update(ctx, id, func(a *models.Account) {
		a.FailureCount = 0
		a.LockedUntil = nil
	})
}

func (r *MemoryRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	delete(r.byIdentity, a.Identity)
	delete(r.byID, id)
	return nil
}
