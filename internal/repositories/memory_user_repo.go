package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/BradenHooton/authcore/internal/models"
)

// MemoryUserRepository is a process-local credential store used for local
// development and tests. It applies the same save pipeline, active filter and
// email uniqueness as the Postgres store.
type MemoryUserRepository struct {
	mu       sync.RWMutex
	users    map[string]*models.User
	preparer *SavePreparer
}

func NewMemoryUserRepository(preparer *SavePreparer) *MemoryUserRepository {
	return &MemoryUserRepository{
		users:    make(map[string]*models.User),
		preparer: preparer,
	}
}

// clone returns a copy that shares no pointers with the stored record
func clone(u *models.User) *models.User {
	c := *u
	c.ClearPendingPassword()
	c.PasswordChangedAt = copyTime(u.PasswordChangedAt)
	c.OTPExpiresAt = copyTime(u.OTPExpiresAt)
	c.ResetTokenExpiresAt = copyTime(u.ResetTokenExpiresAt)
	return &c
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func (r *MemoryUserRepository) findActive(match func(*models.User) bool) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.IsActive && match(u) {
			return clone(u), nil
		}
	}
	return nil, models.ErrNotFound
}

func (r *MemoryUserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok || !u.IsActive {
		return nil, models.ErrNotFound
	}
	return clone(u), nil
}

func (r *MemoryUserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	email = models.NormalizeEmail(email)
	return r.findActive(func(u *models.User) bool { return u.Email == email })
}

func (r *MemoryUserRepository) FindByResetTokenHash(ctx context.Context, hash string) (*models.User, error) {
	if hash == "" {
		return nil, models.ErrNotFound
	}
	return r.findActive(func(u *models.User) bool { return u.ResetTokenHash == hash })
}

func (r *MemoryUserRepository) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	active := make([]*models.User, 0, len(r.users))
	for _, u := range r.users {
		if u.IsActive {
			active = append(active, u)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		if active[i].CreatedAt.Equal(active[j].CreatedAt) {
			return active[i].ID < active[j].ID
		}
		return active[i].CreatedAt.After(active[j].CreatedAt)
	})

	users := make([]*models.User, 0)
	if offset >= len(active) {
		return users, nil
	}
	end := offset + limit
	if end > len(active) {
		end = len(active)
	}
	for _, u := range active[offset:end] {
		users = append(users, clone(u))
	}
	return users, nil
}

// Save runs the save pipeline on a copy of user and stores it by ID.
// The caller's value is left untouched; the persisted record is returned.
func (r *MemoryUserRepository) Save(ctx context.Context, user *models.User) (*models.User, error) {
	u := *user
	// Hashing happens outside the lock
	if err := r.preparer.Prepare(ctx, &u); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if u.IsActive {
		for id, other := range r.users {
			if id != u.ID && other.IsActive && other.Email == u.Email {
				return nil, models.NewDuplicateKeyError(MsgEmailTaken)
			}
		}
	}

	if existing, ok := r.users[u.ID]; ok {
		u.CreatedAt = existing.CreatedAt
	}

	r.users[u.ID] = clone(&u)
	return clone(&u), nil
}

// ClearExpiredSecrets drops OTP and reset secrets whose expiry is at or before now.
func (r *MemoryUserRepository) ClearExpiredSecrets(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var cleared int64
	for _, u := range r.users {
		touched := false
		if u.OTPExpiresAt != nil && !u.OTPExpiresAt.After(now) {
			u.ClearOTP()
			touched = true
		}
		if u.ResetTokenExpiresAt != nil && !u.ResetTokenExpiresAt.After(now) {
			u.ClearResetToken()
			touched = true
		}
		if touched {
			cleared++
		}
	}
	return cleared, nil
}
