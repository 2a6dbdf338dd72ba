package repositories

import (
	"context"
	"testing"

	"github.com/BradenHooton/authcore/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryUserRepository_Contract(t *testing.T) {
	runUserStoreContract(t, func(t *testing.T) userStore {
		return NewMemoryUserRepository(newTestPreparer())
	})
}

func TestMemoryUserRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository(newTestPreparer())

	input := models.NewUser("Jane", "jane@example.com", "secret123")
	saved, err := repo.Save(ctx, input)
	require.NoError(t, err)

	assert.Empty(t, input.ID, "caller's value must not be mutated")
	_, pending := input.PendingPassword()
	assert.True(t, pending)

	saved.Name = "Mutated"
	found, err := repo.FindByID(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jane", found.Name)
}

func TestMemoryUserRepository_FailedSaveStoresNothing(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository(newTestPreparer())

	_, err := repo.Save(ctx, models.NewUser("Jane", "bad-email", "secret123"))
	require.Error(t, err)

	users, err := repo.List(ctx, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, users)
}
