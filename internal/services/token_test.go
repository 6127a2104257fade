package services

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	s := NewTokenService("s3cret", time.Hour)
	token, err := s.Generate("user-1")
	require.NoError(t, err)

	id, err := s.Validate(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", id)
}

func TestTokenRejectsWrongSecretAndExpired(t *testing.T) {
	token, err := NewTokenService("a", time.Hour).Generate("user-1")
	require.NoError(t, err)
	_, err = NewTokenService("b", time.Hour).Validate(token)
	require.Error(t, err)

	expired, err := NewTokenService("a", -time.Minute).Generate("user-1")
	require.NoError(t, err)
	_, err = NewTokenService("a", time.Hour).Validate(expired)
	require.Error(t, err)
}

func TestTokenAcceptsUserIDClaim(t *testing.T) {
	raw := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "legacy",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	token, err := raw.SignedString([]byte("k"))
	require.NoError(t, err)

	id, err := NewTokenService("k", time.Hour).Validate(token)
	require.NoError(t, err)
	require.Equal(t, "legacy", id)

	missing := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})
	token, err = missing.SignedString([]byte("k"))
	require.NoError(t, err)
	_, err = NewTokenService("k", time.Hour).Validate(token)
	require.Error(t, err)
}
