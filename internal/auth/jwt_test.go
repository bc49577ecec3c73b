package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	InitializeJWT("test-secret", time.Hour)

	token, err := GenerateToken("01HXYZ", "a@b.com")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "01HXYZ", claims.UserID)
	assert.Equal(t, "a@b.com", claims.Email)
	assert.Equal(t, "crmdash", claims.Issuer)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, 5*time.Second)
}

func TestValidate_WrongSecret(t *testing.T) {
	InitializeJWT("secret-one", time.Hour)
	token, err := GenerateToken("u1", "a@b.com")
	require.NoError(t, err)

	InitializeJWT("secret-two", time.Hour)
	_, err = ValidateToken(token)
	assert.Error(t, err)
}

func TestValidate_Expired(t *testing.T) {
	InitializeJWT("test-secret", time.Hour)

	claims := JWTClaims{
		UserID: "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = ValidateToken(token)
	require.Error(t, err)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestValidate_MissingExpiry(t *testing.T) {
	InitializeJWT("test-secret", time.Hour)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, JWTClaims{
		UserID:           "u1",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: issuer},
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = ValidateToken(token)
	assert.Error(t, err)
}

func TestValidate_Garbage(t *testing.T) {
	InitializeJWT("test-secret", time.Hour)
	_, err := ValidateToken("not-a-jwt")
	assert.Error(t, err)
}

func TestNotInitialized(t *testing.T) {
	InitializeJWT("", 0)
	t.Cleanup(func() { InitializeJWT("test-secret", time.Hour) })

	_, err := GenerateToken("u1", "a@b.com")
	assert.ErrorIs(t, err, ErrNotInitialized)

	_, err = ValidateToken("whatever")
	assert.ErrorIs(t, err, ErrNotInitialized)
}
