package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	auth "github.com/bankops/backoffice-auth"
)

func TestUsersRepository_Create(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	t.Run("creates an account", func(t *testing.T) {
		record, err := repo.Users().Create(ctx, &auth.User{
			Email:      "analyst@bank.test",
			FirstName:  "Ada",
			LastName:   "Analyst",
			Department: auth.DepartmentFinance,
			Role:       auth.RoleAnalyst,
		})

		assert.NoError(t, err)
		assert.NotZero(t, record.ID)
	})

	t.Run("rejects duplicate email", func(t *testing.T) {
		_, err := repo.Users().Create(ctx, &auth.User{
			Email:      "analyst@bank.test",
			FirstName:  "Another",
			LastName:   "Analyst",
			Department: auth.DepartmentIT,
			Role:       auth.RoleAnalyst,
		})

		assert.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrDuplicateEmail)
	})
}

func TestUsersRepository_Lookups(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	seeded := seedUser(t, repo, "lookup@bank.test", "password-1", auth.RoleAnalyst)

	t.Run("finds by id", func(t *testing.T) {
		record, err := repo.Users().GetByID(ctx, seeded.ID)

		assert.NoError(t, err)
		assert.Equal(t, seeded.Email, record.Email)
	})

	t.Run("finds by email", func(t *testing.T) {
		record, err := repo.Users().GetByEmail(ctx, "lookup@bank.test")

		assert.NoError(t, err)
		assert.Equal(t, seeded.ID, record.ID)
	})

	t.Run("missing id reports not found", func(t *testing.T) {
		_, err := repo.Users().GetByID(ctx, 99999)

		assert.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrAccountNotFound)
	})

	t.Run("missing email reports not found", func(t *testing.T) {
		_, err := repo.Users().GetByEmail(ctx, "nobody@bank.test")

		assert.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrAccountNotFound)
	})
}

func TestUsersRepository_Update(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	first := seedUser(t, repo, "first@bank.test", "password-1", auth.RoleAnalyst)
	seedUser(t, repo, "second@bank.test", "password-2", auth.RoleAnalyst)

	t.Run("applies partial update", func(t *testing.T) {
		dep := auth.DepartmentHR
		updated, err := repo.Users().Update(ctx, first.ID, auth.UserUpdate{
			FirstName:  strPtr("Renamed"),
			Department: &dep,
		})

		assert.NoError(t, err)
		assert.Equal(t, "Renamed", updated.FirstName)
		assert.Equal(t, auth.DepartmentHR, updated.Department)
		assert.Equal(t, "first@bank.test", updated.Email)
	})

	t.Run("rejects update to an email held by another account", func(t *testing.T) {
		_, err := repo.Users().Update(ctx, first.ID, auth.UserUpdate{
			Email: strPtr("second@bank.test"),
		})

		assert.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrDuplicateEmail)
	})

	t.Run("allows keeping the current email", func(t *testing.T) {
		updated, err := repo.Users().Update(ctx, first.ID, auth.UserUpdate{
			Email: strPtr("first@bank.test"),
		})

		assert.NoError(t, err)
		assert.Equal(t, "first@bank.test", updated.Email)
	})

	t.Run("missing account reports not found", func(t *testing.T) {
		_, err := repo.Users().Update(ctx, 99999, auth.UserUpdate{
			FirstName: strPtr("Ghost"),
		})

		assert.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrAccountNotFound)
	})
}

func TestUsersRepository_Delete(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	record := seedUser(t, repo, "deleted@bank.test", "password-1", auth.RoleAnalyst)

	t.Run("deletes an account", func(t *testing.T) {
		assert.NoError(t, repo.Users().Delete(ctx, record.ID))

		_, err := repo.Users().GetByID(ctx, record.ID)
		assert.ErrorIs(t, err, auth.ErrAccountNotFound)
	})

	t.Run("missing account reports not found", func(t *testing.T) {
		err := repo.Users().Delete(ctx, record.ID)

		assert.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrAccountNotFound)
	})
}

func TestUsersRepository_SetPassword(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	record := seedUser(t, repo, "rotate@bank.test", "old-password", auth.RoleAnalyst)

	t.Run("stores the new hash", func(t *testing.T) {
		hash, err := testHasher().Hash("new-password")
		assert.NoError(t, err)

		assert.NoError(t, repo.Users().SetPassword(ctx, record.ID, hash))

		reloaded, err := repo.Users().GetByID(ctx, record.ID)
		assert.NoError(t, err)
		assert.True(t, reloaded.HasPassword())
		assert.NoError(t, testHasher().Compare("new-password", *reloaded.PasswordHash))
	})

	t.Run("missing account reports not found", func(t *testing.T) {
		hash, err := testHasher().Hash("whatever")
		assert.NoError(t, err)

		err = repo.Users().SetPassword(ctx, 99999, hash)
		assert.ErrorIs(t, err, auth.ErrAccountNotFound)
	})
}
