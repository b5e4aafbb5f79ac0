package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessToken_RoundTrip(t *testing.T) {
	token, err := GenerateAccessToken("ops", []string{"admin", "auditor"}, "s3cret", 0)
	require.NoError(t, err)

	claims, err := ParseAccessToken(token, "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)
	assert.Equal(t, []string{"admin", "auditor"}, claims.Roles)
	assert.WithinDuration(t, time.Now().Add(AccessTokenTTL), claims.ExpiresAt.Time, 5*time.Second)
}

func TestAccessToken_Rejects(t *testing.T) {
	token, err := GenerateAccessToken("ops", []string{"admin"}, "s3cret", 0)
	require.NoError(t, err)

	_, err = ParseAccessToken(token, "wrong")
	assert.Error(t, err)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "ops",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)
	_, err = ParseAccessToken(expired, "s3cret")
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = ParseAccessToken(none, "s3cret")
	assert.Error(t, err)
}

func TestUserContext(t *testing.T) {
	u := &UserContext{ID: "1", Roles: []string{"editor"}}
	assert.True(t, u.HasRole("editor"))
	assert.False(t, u.IsAdmin())

	u.Roles = append(u.Roles, "admin")
	assert.True(t, u.IsAdmin())
}
