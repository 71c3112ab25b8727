package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	auth "github.com/bankops/backoffice-auth"
)

func TestHasher_Hash(t *testing.T) {
	hasher := testHasher()

	t.Run("generates a hash", func(t *testing.T) {
		hash, err := hasher.Hash("super-secret")

		assert.NoError(t, err)
		assert.NotEmpty(t, hash)
		assert.NotEqual(t, "super-secret", hash)
	})

	t.Run("rejects empty password", func(t *testing.T) {
		hash, err := hasher.Hash("")

		assert.Error(t, err)
		assert.Empty(t, hash)
		assert.ErrorIs(t, err, auth.ErrNoEmptyString)
	})

	t.Run("same password hashes differently", func(t *testing.T) {
		h1, err := hasher.Hash("super-secret")
		assert.NoError(t, err)

		h2, err := hasher.Hash("super-secret")
		assert.NoError(t, err)

		assert.NotEqual(t, h1, h2)
	})
}

func TestHasher_Compare(t *testing.T) {
	hasher := testHasher()

	t.Run("accepts matching password", func(t *testing.T) {
		hash, err := hasher.Hash("super-secret")
		assert.NoError(t, err)

		assert.NoError(t, hasher.Compare("super-secret", hash))
	})

	t.Run("rejects wrong password", func(t *testing.T) {
		hash, err := hasher.Hash("super-secret")
		assert.NoError(t, err)

		err = hasher.Compare("not-the-password", hash)
		assert.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrMismatchedHashAndPassword)
	})

	t.Run("malformed stored hash reports mismatch", func(t *testing.T) {
		err := hasher.Compare("super-secret", "not-a-bcrypt-hash")

		assert.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrMismatchedHashAndPassword)
	})
}

func TestNewHasher(t *testing.T) {
	t.Run("clamps out of range cost", func(t *testing.T) {
		hasher := auth.NewHasher(99)

		hash, err := hasher.Hash("x")
		assert.NoError(t, err)
		assert.NoError(t, hasher.Compare("x", hash))
	})
}
