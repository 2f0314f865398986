package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	svc := NewTokenService("s3cret", time.Hour)

	token, err := svc.GenerateToken("ops", RoleAdmin)
	require.NoError(t, err)

	claims, err := svc.RequireRole(token, RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)
	assert.Equal(t, RoleAdmin, claims.Role)
}

func TestRequireRoleRejects(t *testing.T) {
	svc := NewTokenService("s3cret", time.Hour)

	t.Run("wrong role", func(t *testing.T) {
		token, err := svc.GenerateToken("viewer", "reader")
		require.NoError(t, err)

		_, err = svc.RequireRole(token, RoleAdmin)
		require.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("other secret", func(t *testing.T) {
		token, err := NewTokenService("different", time.Hour).GenerateToken("ops", RoleAdmin)
		require.NoError(t, err)

		_, err = svc.RequireRole(token, RoleAdmin)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		issuer := NewTokenService("s3cret", time.Minute)
		issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		token, err := issuer.GenerateToken("ops", RoleAdmin)
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		require.ErrorIs(t, err, ErrInvalidToken)
		assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	})

	t.Run("unsigned", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Role: RoleAdmin}).
			SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.ValidateToken("not-a-jwt")
		require.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestGenerateTokenRequiresSubjectAndSecret(t *testing.T) {
	_, err := NewTokenService("s3cret", 0).GenerateToken(" ", RoleAdmin)
	assert.Error(t, err)

	_, err = NewTokenService("", 0).GenerateToken("ops", RoleAdmin)
	assert.Error(t, err)
}
