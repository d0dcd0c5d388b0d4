package utils

import (
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJwtRoundTrip(t *testing.T) {
	t.Setenv("API_SECRET", "test-secret")
	t.Setenv("TOKEN_HOUR_LIFESPAN", "2")

	token, err := JwtGenerate(7, "org-1", "ADMIN")
	require.NoError(t, err)

	claims, err := ParseClaims(token)
	require.NoError(t, err)
	assert.Equal(t, 7, claims.ID)
	assert.Equal(t, "org-1", claims.OrganizationId)
	assert.Equal(t, "ADMIN", claims.Role)

	left, err := TokenExpiry(claims)
	require.NoError(t, err)
	assert.InDelta(t, (2 * time.Hour).Seconds(), left.Seconds(), 5)
}

func TestParseClaimsRejectsOtherSecret(t *testing.T) {
	t.Setenv("API_SECRET", "first")
	token, err := JwtGenerate(1, "org-1", "STAFF")
	require.NoError(t, err)

	t.Setenv("API_SECRET", "second")
	_, err = ParseClaims(token)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestParseClaimsRejectsExpired(t *testing.T) {
	t.Setenv("API_SECRET", "test-secret")
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, &JwtCustomClaim{
		ID:             1,
		OrganizationId: "org-1",
		StandardClaims: jwt.StandardClaims{ExpiresAt: time.Now().Add(-time.Minute).Unix()},
	})
	signed, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = ParseClaims(signed)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestParseClaimsRequiresOrganization(t *testing.T) {
	t.Setenv("API_SECRET", "test-secret")
	token, err := JwtGenerate(1, "", "STAFF")
	require.NoError(t, err)

	_, err = ParseClaims(token)
	assert.ErrorIs(t, err, ErrUnauthorized)
}
