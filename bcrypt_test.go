package credentials_test

import (
	"testing"

	credentials "github.com/goliatone/go-credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  error
	}{
		{
			name:     "valid password",
			password: "securePassword123!",
		},
		{
			name:     "empty password",
			password: "",
			wantErr:  credentials.ErrNoEmptyString,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := credentials.HashPassword(tt.password)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.NotEmpty(t, hash)
			assert.NotEqual(t, tt.password, hash)
			assert.NoError(t, credentials.ComparePasswordAndHash(tt.password, hash))
		})
	}
}

func TestComparePasswordAndHash(t *testing.T) {
	password := "testPassword123!"
	hash, err := credentials.HashPassword(password)
	require.NoError(t, err)

	t.Run("matching password", func(t *testing.T) {
		assert.NoError(t, credentials.ComparePasswordAndHash(password, hash))
	})

	t.Run("wrong password", func(t *testing.T) {
		err := credentials.ComparePasswordAndHash("wrongPassword", hash)
		assert.ErrorIs(t, err, credentials.ErrMismatchedHashAndPassword)
	})

	t.Run("invalid hash", func(t *testing.T) {
		err := credentials.ComparePasswordAndHash(password, "not-a-hash")
		assert.Error(t, err)
		assert.NotErrorIs(t, err, credentials.ErrMismatchedHashAndPassword)
	})
}
