package session

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims jwt.RegisteredClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func TestSetCredentialsResolvesUserID(t *testing.T) {
	s := New()
	token := signedToken(t, jwt.RegisteredClaims{Subject: "u1"})

	require.NoError(t, s.SetCredentials(token))
	assert.Equal(t, token, s.Token())
	assert.Equal(t, "u1", s.UserID())
}

func TestSetCredentialsRejectsGarbage(t *testing.T) {
	s := New()
	err := s.SetCredentials("not-a-jwt")
	require.Error(t, err)
	assert.Empty(t, s.Token())
	assert.Empty(t, s.UserID())
}

func TestSetCredentialsRequiresSubject(t *testing.T) {
	s := New()
	token := signedToken(t, jwt.RegisteredClaims{Issuer: "clinic"})

	err := s.SetCredentials(token)
	assert.ErrorIs(t, err, ErrNoSubject)
}

func TestClear(t *testing.T) {
	s := New()
	require.NoError(t, s.SetCredentials(signedToken(t, jwt.RegisteredClaims{Subject: "u1"})))

	s.Clear()
	assert.Empty(t, s.Token())
	assert.Empty(t, s.UserID())
}
