package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-for-session-tokens"

func TestSessionTokenRoundtrip(t *testing.T) {
	token, err := GenerateSessionToken("session-123", "111222333444555666", testSecret, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ValidateSessionToken(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "session-123", claims.SessionID)
	assert.Equal(t, "111222333444555666", claims.UserID)
}

func TestSessionTokenWrongSecret(t *testing.T) {
	token, err := GenerateSessionToken("session-123", "111222333444555666", testSecret, time.Hour)
	require.NoError(t, err)

	_, err = ValidateSessionToken(token, "a-different-secret")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSessionTokenExpired(t *testing.T) {
	token, err := GenerateSessionToken("session-123", "111222333444555666", testSecret, -time.Minute)
	require.NoError(t, err)

	_, err = ValidateSessionToken(token, testSecret)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestSessionTokenGarbage(t *testing.T) {
	_, err := ValidateSessionToken("not.a.jwt", testSecret)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestGenerateSecureToken(t *testing.T) {
	a, err := GenerateSecureToken(32)
	require.NoError(t, err)
	b, err := GenerateSecureToken(32)
	require.NoError(t, err)

	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestHashToken(t *testing.T) {
	a := HashToken("token-a")
	b := HashToken("token-b")

	assert.Equal(t, a, HashToken("token-a"))
	assert.NotEqual(t, a, b)
	assert.NotContains(t, a, "token-a")
}
