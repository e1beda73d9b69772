package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTIssuerRoundTrip(t *testing.T) {
	issuer := NewJWTIssuer("secret", time.Hour)

	token, err := issuer.Issue("user-1")
	require.NoError(t, err)

	userID, err := issuer.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func TestJWTIssuerRejectsExpiredTokens(t *testing.T) {
	issuer := NewJWTIssuer("secret", time.Minute)
	issued := time.Now()
	issuer.now = func() time.Time { return issued }

	token, err := issuer.Issue("user-1")
	require.NoError(t, err)

	issuer.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = issuer.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidAccessToken)
}

func TestJWTIssuerRejectsForeignTokens(t *testing.T) {
	issuer := NewJWTIssuer("secret", time.Hour)

	other, err := NewJWTIssuer("other-secret", time.Hour).Issue("user-1")
	require.NoError(t, err)
	_, err = issuer.Validate(other)
	assert.ErrorIs(t, err, ErrInvalidAccessToken)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    jwtIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = issuer.Validate(unsigned)
	assert.ErrorIs(t, err, ErrInvalidAccessToken)

	_, err = issuer.Validate("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidAccessToken)
}
