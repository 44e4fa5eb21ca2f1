package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradejournal/src/model"
)

func TestUserRepositoryCreateAndFind(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository().WithDB(newSQLiteDB(t))

	user := &model.User{Email: "  Trader@Example.COM ", PasswordHash: "hash"}
	require.NoError(t, repo.Create(ctx, user))
	assert.NotZero(t, user.ID)
	assert.Equal(t, "trader@example.com", user.Email)

	found, err := repo.FindByEmail(ctx, "TRADER@example.com")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, user.ID, found.ID)

	byID, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "hash", byID.PasswordHash)

	err = repo.Create(ctx, &model.User{Email: "trader@example.com", PasswordHash: "other"})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestUserRepositoryNotFound(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository().WithDB(newSQLiteDB(t))

	u, err := repo.FindByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, u)

	u, err = repo.FindByID(ctx, 99)
	require.NoError(t, err)
	assert.Nil(t, u)
}
