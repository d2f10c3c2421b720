package services

import (
	"context"
	"testing"

	"github.com/programhub/apiserver/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestAuthenticateUnknownEmailRunsBcrypt(t *testing.T) {
	svc := NewUserService(testutil.NewUserStore(), nil).WithHashCost(bcrypt.MinCost)
	require.Nil(t, svc.dummyHash)

	_, err := svc.Authenticate(context.Background(), "nobody@example.com", "secret-pass")
	require.Error(t, err)
	assert.Equal(t, KindUnauthenticated, KindOf(err))

	require.NotNil(t, svc.dummyHash, "unknown emails are compared against a dummy hash")
	cost, err := bcrypt.Cost(svc.dummyHash)
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost)
}
