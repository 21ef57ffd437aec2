package services

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cleaning-booking-server/models"
	"cleaning-booking-server/types"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	js := NewJWTService(nil, "test-secret", 2)

	token, err := js.GenerateAccessToken(17, models.RoleCleaner)
	require.NoError(t, err)

	claims, err := js.ParseAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(17), claims.UserID)
	assert.Equal(t, "cleaner", claims.Role)
	assert.Equal(t, "17", claims.Subject)
}

func TestParseAccessToken_Rejects(t *testing.T) {
	js := NewJWTService(nil, "test-secret", 1)
	other := NewJWTService(nil, "other-secret", 1)

	foreign, err := other.GenerateAccessToken(1, models.RoleCustomer)
	require.NoError(t, err)
	_, err = js.ParseAccessToken(foreign)
	assert.True(t, errors.Is(err, ErrInvalidToken))

	issued := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	js.now = func() time.Time { return issued }
	expired, err := js.GenerateAccessToken(1, models.RoleCustomer)
	require.NoError(t, err)
	js.now = func() time.Time { return issued.Add(2 * time.Hour) }
	_, err = js.ParseAccessToken(expired)
	assert.True(t, errors.Is(err, ErrInvalidToken))

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &types.Claims{UserID: 1})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = js.ParseAccessToken(unsigned)
	assert.Error(t, err)
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("s3cret!")
	require.NoError(t, err)
	assert.True(t, CheckPasswordHash("s3cret!", hash))
	assert.False(t, CheckPasswordHash("wrong", hash))
}

func TestRefreshTokenUsable(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	rt := models.RefreshToken{ExpiresAt: now.Add(time.Hour)}
	assert.True(t, rt.Usable(now))
	assert.False(t, rt.Usable(now.Add(2*time.Hour)))
	rt.IsRevoked = true
	assert.False(t, rt.Usable(now))
}
