package auth

import (
	"testing"
	"time"

	"go_trial/foodhub/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestTokens_RoundTrip(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)
	u := &models.User{ID: primitive.NewObjectID(), Role: models.RoleShopOwner}

	signed, err := tokens.GenerateToken(u)
	require.NoError(t, err)

	id, claims, err := tokens.ValidateToken(signed)
	require.NoError(t, err)
	assert.Equal(t, u.ID, id)
	assert.Equal(t, models.RoleShopOwner, claims.Role)
}

func TestTokens_Rejects(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)
	u := &models.User{ID: primitive.NewObjectID(), Role: models.RoleCustomer}

	other, err := NewTokens("other", time.Hour).GenerateToken(u)
	require.NoError(t, err)
	expired, err := NewTokens("secret", -time.Minute).GenerateToken(u)
	require.NoError(t, err)
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": u.ID.Hex(), "iss": "foodhub"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"wrong secret": other,
		"expired":      expired,
		"alg none":     none,
		"garbage":      "not-a-token",
	} {
		t.Run(name, func(t *testing.T) {
			_, _, err := tokens.ValidateToken(tok)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestResetToken(t *testing.T) {
	raw, hash, err := NewResetToken()
	require.NoError(t, err)
	assert.Len(t, raw, 40)
	assert.Equal(t, hash, HashResetToken(raw))
	assert.NotEqual(t, raw, hash)
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("hunter22")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "hunter22"))
	assert.False(t, CheckPassword(hash, "hunter23"))
}
