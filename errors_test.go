package credentials_test

import (
	"errors"
	"testing"

	credentials "github.com/goliatone/go-credentials"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
)

func TestTokenErrorPredicates(t *testing.T) {
	assert.True(t, credentials.IsTokenExpiredError(credentials.ErrTokenExpired))
	assert.False(t, credentials.IsTokenExpiredError(credentials.ErrTokenRevoked))

	assert.True(t, credentials.IsMalformedError(credentials.ErrTokenMalformed))
	assert.False(t, credentials.IsMalformedError(nil))

	assert.True(t, credentials.IsRevokedError(credentials.ErrTokenRevoked))
	assert.False(t, credentials.IsRevokedError(errors.New("plain")))
}

func TestTextCodeOf(t *testing.T) {
	assert.Equal(t, credentials.TextCodeDuplicatePending, credentials.TextCodeOf(credentials.ErrDuplicatePending))
	assert.Equal(t, credentials.TextCodeUserNotFound, credentials.TextCodeOf(credentials.ErrUserNotFound))
	assert.Empty(t, credentials.TextCodeOf(errors.New("plain")))
	assert.Empty(t, credentials.TextCodeOf(nil))
}

func TestPurposeTextRejectsUnknownValue(t *testing.T) {
	_, err := credentials.Purpose("admin").MarshalText()
	assert.True(t, goerrors.IsCategory(err, goerrors.CategoryBadInput))
	assert.Equal(t, credentials.TextCodeUnknownPurpose, credentials.TextCodeOf(err))

	var purpose credentials.Purpose
	err = purpose.UnmarshalText([]byte("admin"))
	assert.True(t, goerrors.IsCategory(err, goerrors.CategoryBadInput))
	assert.Empty(t, purpose)

	assert.NoError(t, purpose.UnmarshalText([]byte("access")))
	assert.Equal(t, credentials.PurposeAccess, purpose)
}
