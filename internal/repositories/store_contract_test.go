package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/BradenHooton/authcore/internal/models"
	"github.com/BradenHooton/authcore/pkg/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// userStore is the surface shared by every store driver
type userStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByResetTokenHash(ctx context.Context, hash string) (*models.User, error)
	List(ctx context.Context, limit, offset int) ([]*models.User, error)
	Save(ctx context.Context, user *models.User) (*models.User, error)
	ClearExpiredSecrets(ctx context.Context, now time.Time) (int64, error)
}

var storeNow = time.Date(2026, 4, 10, 9, 30, 0, 0, time.UTC)

func newTestPreparer() *SavePreparer {
	p := NewSavePreparer(auth.NewHasher(bcrypt.MinCost, 2))
	p.SetClock(func() time.Time { return storeNow })
	return p
}

func verifyPassword(t *testing.T, plain, hash string) bool {
	t.Helper()
	ok, err := auth.NewHasher(bcrypt.MinCost, 1).Verify(context.Background(), plain, hash)
	require.NoError(t, err)
	return ok
}

// runUserStoreContract exercises the behaviour every driver must share.
// newStore must return an empty store.
func runUserStoreContract(t *testing.T, newStore func(t *testing.T) userStore) {
	ctx := context.Background()

	t.Run("signup hashes password and normalizes email", func(t *testing.T) {
		store := newStore(t)

		saved, err := store.Save(ctx, models.NewUser("  Jane  ", "  Jane@Example.COM ", "secret123"))
		require.NoError(t, err)

		assert.NotEmpty(t, saved.ID)
		assert.Equal(t, "Jane", saved.Name)
		assert.Equal(t, "jane@example.com", saved.Email)
		assert.Equal(t, models.RoleUser, saved.Role)
		assert.False(t, saved.IsVerified)
		assert.True(t, saved.IsActive)
		assert.NotEqual(t, "secret123", saved.PasswordHash)
		assert.True(t, verifyPassword(t, "secret123", saved.PasswordHash))
		assert.Nil(t, saved.PasswordChangedAt, "creation must not stamp a password change")

		found, err := store.FindByEmail(ctx, "JANE@example.com")
		require.NoError(t, err)
		assert.Equal(t, saved.ID, found.ID)
		assert.False(t, found.IsVerified)
	})

	t.Run("password change on existing user stamps PasswordChangedAt", func(t *testing.T) {
		store := newStore(t)
		saved, err := store.Save(ctx, models.NewUser("Jane", "jane@example.com", "secret123"))
		require.NoError(t, err)

		saved.SetPassword("newsecret456")
		updated, err := store.Save(ctx, saved)
		require.NoError(t, err)

		require.NotNil(t, updated.PasswordChangedAt)
		assert.True(t, updated.PasswordChangedAt.Equal(storeNow.Add(-time.Second)))
		assert.True(t, verifyPassword(t, "newsecret456", updated.PasswordHash))
		assert.False(t, verifyPassword(t, "secret123", updated.PasswordHash))
	})

	t.Run("re-save without a staged password keeps the hash", func(t *testing.T) {
		store := newStore(t)
		saved, err := store.Save(ctx, models.NewUser("Jane", "jane@example.com", "secret123"))
		require.NoError(t, err)

		saved.Name = "Janet"
		updated, err := store.Save(ctx, saved)
		require.NoError(t, err)

		assert.Equal(t, saved.PasswordHash, updated.PasswordHash)
		assert.Equal(t, "Janet", updated.Name)
		assert.Nil(t, updated.PasswordChangedAt)
	})

	t.Run("duplicate active email rejected", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Save(ctx, models.NewUser("Jane", "jane@example.com", "secret123"))
		require.NoError(t, err)

		_, err = store.Save(ctx, models.NewUser("Other", "JANE@example.com", "secret123"))
		assert.ErrorIs(t, err, models.ErrDuplicateKey)
	})

	t.Run("validation failures", func(t *testing.T) {
		store := newStore(t)

		_, err := store.Save(ctx, models.NewUser("Jane", "not-an-email", "secret123"))
		assert.ErrorIs(t, err, models.ErrValidation)

		_, err = store.Save(ctx, models.NewUser("Jane", "jane@example.com", "12345"))
		assert.ErrorIs(t, err, models.ErrValidation)

		_, err = store.Save(ctx, &models.User{Email: "jane@example.com", IsActive: true})
		assert.ErrorIs(t, err, models.ErrValidation)
	})

	t.Run("deactivated users are invisible", func(t *testing.T) {
		store := newStore(t)
		saved, err := store.Save(ctx, models.NewUser("Jane", "jane@example.com", "secret123"))
		require.NoError(t, err)

		saved.IsActive = false
		_, err = store.Save(ctx, saved)
		require.NoError(t, err)

		_, err = store.FindByID(ctx, saved.ID)
		assert.ErrorIs(t, err, models.ErrNotFound)
		_, err = store.FindByEmail(ctx, "jane@example.com")
		assert.ErrorIs(t, err, models.ErrNotFound)

		users, err := store.List(ctx, 10, 0)
		require.NoError(t, err)
		assert.Empty(t, users)

		// The email is free again once the old account is inactive
		_, err = store.Save(ctx, models.NewUser("Jane", "jane@example.com", "secret123"))
		assert.NoError(t, err)
	})

	t.Run("lookup by reset token hash", func(t *testing.T) {
		store := newStore(t)
		u := models.NewUser("Jane", "jane@example.com", "secret123")
		expires := storeNow.Add(10 * time.Minute)
		u.ResetTokenHash = "abc123"
		u.ResetTokenExpiresAt = &expires
		saved, err := store.Save(ctx, u)
		require.NoError(t, err)

		found, err := store.FindByResetTokenHash(ctx, "abc123")
		require.NoError(t, err)
		assert.Equal(t, saved.ID, found.ID)

		_, err = store.FindByResetTokenHash(ctx, "")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("missing user", func(t *testing.T) {
		store := newStore(t)
		_, err := store.FindByID(ctx, "3b241101-e2bb-4255-8caf-4136c566a962")
		assert.ErrorIs(t, err, models.ErrNotFound)
		_, err = store.FindByID(ctx, "not-a-uuid")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("list pages active users", func(t *testing.T) {
		store := newStore(t)
		for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
			_, err := store.Save(ctx, models.NewUser("", email, "secret123"))
			require.NoError(t, err)
		}

		page, err := store.List(ctx, 2, 0)
		require.NoError(t, err)
		assert.Len(t, page, 2)

		rest, err := store.List(ctx, 2, 2)
		require.NoError(t, err)
		assert.Len(t, rest, 1)
	})

	t.Run("clear expired secrets", func(t *testing.T) {
		store := newStore(t)
		past := storeNow.Add(-time.Minute)
		future := storeNow.Add(time.Hour)

		expired := models.NewUser("", "expired@example.com", "secret123")
		expired.OTPHash = "otp"
		expired.OTPExpiresAt = &past
		expired, err := store.Save(ctx, expired)
		require.NoError(t, err)

		live := models.NewUser("", "live@example.com", "secret123")
		live.ResetTokenHash = "reset"
		live.ResetTokenExpiresAt = &future
		live, err = store.Save(ctx, live)
		require.NoError(t, err)

		n, err := store.ClearExpiredSecrets(ctx, storeNow)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		got, err := store.FindByID(ctx, expired.ID)
		require.NoError(t, err)
		assert.Empty(t, got.OTPHash)
		assert.Nil(t, got.OTPExpiresAt)

		got, err = store.FindByID(ctx, live.ID)
		require.NoError(t, err)
		assert.Equal(t, "reset", got.ResetTokenHash)
	})
}
