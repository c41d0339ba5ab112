package jwttoken

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coopmarket/pkg/domain"
)

func newTestService(sessionTTL, resetTTL time.Duration) *Service {
	return NewService("test-signing-key", "coopmarket", sessionTTL, resetTTL)
}

func TestSessionTokenRoundTrip(t *testing.T) {
	svc := newTestService(time.Hour, 15*time.Minute)
	userID := domain.NewUserID()

	token, err := svc.GenerateSessionToken(userID, "alice@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateSessionToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.UserID)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, UseSession, claims.Use)
	assert.Equal(t, "coopmarket", claims.Issuer)

	extracted, err := svc.ExtractUserID(token)
	require.NoError(t, err)
	assert.Equal(t, userID, extracted)
}

func TestResetTokenIsNotASessionToken(t *testing.T) {
	svc := newTestService(time.Hour, 15*time.Minute)
	userID := domain.NewUserID()

	reset, err := svc.GeneratePasswordResetToken(userID, "alice@example.com")
	require.NoError(t, err)

	_, err = svc.ValidateSessionToken(reset)
	assert.Error(t, err)

	claims, err := svc.ValidatePasswordResetToken(reset)
	require.NoError(t, err)
	assert.Equal(t, UsePasswordReset, claims.Use)

	// And the other way round: a session token cannot reset a password.
	session, err := svc.GenerateSessionToken(userID, "alice@example.com")
	require.NoError(t, err)
	_, err = svc.ValidatePasswordResetToken(session)
	assert.Error(t, err)
}

func TestExpiredTokenRejected(t *testing.T) {
	svc := newTestService(-time.Minute, -time.Minute)

	token, err := svc.GenerateSessionToken(domain.NewUserID(), "alice@example.com")
	require.NoError(t, err)

	_, err = svc.ValidateSessionToken(token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}

func TestWrongKeyRejected(t *testing.T) {
	svc := newTestService(time.Hour, time.Hour)
	other := NewService("different-key", "coopmarket", time.Hour, time.Hour)

	token, err := other.GenerateSessionToken(domain.NewUserID(), "alice@example.com")
	require.NoError(t, err)

	_, err = svc.ValidateSessionToken(token)
	assert.Error(t, err)
}

func TestNonHMACAlgorithmRejected(t *testing.T) {
	svc := newTestService(time.Hour, time.Hour)

	// alg=none, signed with the "none" key. Must never validate.
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		UserID: domain.NewUserID().String(),
		Use:    UseSession,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = svc.ValidateSessionToken(token)
	assert.Error(t, err)
}

func TestGarbageTokenRejected(t *testing.T) {
	svc := newTestService(time.Hour, time.Hour)
	_, err := svc.ValidateSessionToken("not-a-jwt")
	assert.Error(t, err)
	_, err = svc.ExtractUserID("")
	assert.Error(t, err)
}
