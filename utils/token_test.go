package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	t.Setenv("JWT_TEST_KEY", "secret")

	token, err := GenerateToken("u1", false, "admin", time.Minute, "JWT_TEST_KEY")
	require.NoError(t, err)

	meta, err := CheckAndExtractTokenMetadata(token, "JWT_TEST_KEY")
	require.NoError(t, err)
	assert.Equal(t, "u1", meta.Id)
	assert.False(t, meta.Otp)
	assert.Equal(t, "admin", meta.Role)
	assert.Greater(t, meta.Exp, time.Now().Unix())
}

func TestTokenWithWrongKeyIsRejected(t *testing.T) {
	t.Setenv("JWT_TEST_KEY", "secret")
	token, err := GenerateToken("u1", false, "", time.Minute, "JWT_TEST_KEY")
	require.NoError(t, err)

	t.Setenv("JWT_TEST_KEY", "other")
	_, err = CheckAndExtractTokenMetadata(token, "JWT_TEST_KEY")
	assert.Error(t, err)
}

func TestExpiredTokenIsRejected(t *testing.T) {
	t.Setenv("JWT_TEST_KEY", "secret")
	token, err := GenerateToken("u1", false, "", -time.Minute, "JWT_TEST_KEY")
	require.NoError(t, err)

	_, err = CheckAndExtractTokenMetadata(token, "JWT_TEST_KEY")
	assert.Error(t, err)
}

func TestExtractClaimsRequiresId(t *testing.T) {
	_, err := ExtractClaims(jwt.MapClaims{"otp": true})
	assert.ErrorIs(t, err, ErrInvalidToken)

	meta, err := ExtractClaims(jwt.MapClaims{"id": "u1"})
	require.NoError(t, err)
	assert.False(t, meta.Otp)
	assert.Empty(t, meta.Role)
}
