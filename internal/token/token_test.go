package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(Config{
		AccessSecret:  "access-secret-for-tests",
		RefreshSecret: "refresh-secret-for-tests",
	})
	require.NoError(t, err)
	return svc
}

func TestNewServiceRejectsBadSecrets(t *testing.T) {
	_, err := NewService(Config{AccessSecret: "same", RefreshSecret: "same"})
	assert.Error(t, err)

	_, err = NewService(Config{AccessSecret: "only-access"})
	assert.Error(t, err)
}

func TestNewServiceAppliesDefaultLifetimes(t *testing.T) {
	svc := newTestService(t)
	assert.Equal(t, DefaultAccessTTL, svc.accessTTL)
	assert.Equal(t, DefaultRefreshTTL, svc.RefreshTTL())
}

func TestAccessTokenRoundTrip(t *testing.T) {
	svc := newTestService(t)
	userID := uuid.New()

	signed, err := svc.IssueAccess(userID, "admin@example.com")
	require.NoError(t, err)

	claims, err := svc.VerifyAccess(signed)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "admin@example.com", claims.Email)
	assert.Equal(t, userID.String(), claims.Subject)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), claims.ExpiresAt.Time, 5*time.Second)
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	svc := newTestService(t)
	userID := uuid.New()

	signed, err := svc.IssueRefresh(userID)
	require.NoError(t, err)

	claims, err := svc.VerifyRefresh(signed)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), claims.ExpiresAt.Time, 5*time.Second)
}

func TestTokensAreNotInterchangeable(t *testing.T) {
	svc := newTestService(t)
	userID := uuid.New()

	access, err := svc.IssueAccess(userID, "a@example.com")
	require.NoError(t, err)
	refresh, err := svc.IssueRefresh(userID)
	require.NoError(t, err)

	_, err = svc.VerifyRefresh(access)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.VerifyAccess(refresh)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshSignedWithAccessSecretFails(t *testing.T) {
	svc := newTestService(t)
	userID := uuid.New()

	forged := RefreshClaims{
		UserID:           userID,
		Type:             typeRefresh,
		RegisteredClaims: svc.registered(userID, time.Hour),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, forged).SignedString(svc.accessSecret)
	require.NoError(t, err)

	_, err = svc.VerifyRefresh(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExpiredToken(t *testing.T) {
	svc := newTestService(t)
	issuedAt := time.Now().Add(-time.Hour)
	svc.now = func() time.Time { return issuedAt }

	signed, err := svc.IssueAccess(uuid.New(), "a@example.com")
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.VerifyAccess(signed)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestRefreshRotationProducesDistinctTokens(t *testing.T) {
	svc := newTestService(t)
	userID := uuid.New()

	first, err := svc.IssueRefresh(userID)
	require.NoError(t, err)
	second, err := svc.IssueRefresh(userID)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	svc := newTestService(t)

	for _, raw := range []string{"", "   ", "not-a-jwt", "a.b.c"} {
		_, err := svc.VerifyAccess(raw)
		assert.ErrorIs(t, err, ErrInvalidToken, raw)
	}
}

func TestVerifyRejectsNoneAlgorithm(t *testing.T) {
	svc := newTestService(t)
	userID := uuid.New()

	claims := AccessClaims{
		UserID:           userID,
		Type:             typeAccess,
		RegisteredClaims: svc.registered(userID, time.Hour),
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = svc.VerifyAccess(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
