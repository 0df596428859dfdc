package auth

import (
	"testing"
	"time"

	errs "chat-relay/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestTokenVerifier_RoundTrip(t *testing.T) {
	req := require.New(t)
	verifier := NewTokenVerifier("test_secret_key_for_unit_tests")
	userID := uuid.New()

	token, err := verifier.GenerateToken(userID, 1*time.Hour)
	req.NoError(err)
	req.NotEmpty(token)

	got, err := verifier.Verify(token)
	req.NoError(err)
	req.Equal(userID, got)
}

func TestTokenVerifier_InvalidToken(t *testing.T) {
	req := require.New(t)
	verifier := NewTokenVerifier("test_secret_key_for_unit_tests")

	_, err := verifier.Verify("not-a-jwt")
	req.ErrorIs(err, errs.ErrInvalidToken)
}

func TestTokenVerifier_WrongSecret(t *testing.T) {
	req := require.New(t)
	signer := NewTokenVerifier("first_secret")
	verifier := NewTokenVerifier("second_secret")

	token, err := signer.GenerateToken(uuid.New(), 1*time.Hour)
	req.NoError(err)

	_, err = verifier.Verify(token)
	req.ErrorIs(err, errs.ErrInvalidToken)
}

func TestTokenVerifier_ExpiredToken(t *testing.T) {
	req := require.New(t)
	verifier := NewTokenVerifier("test_secret_key_for_unit_tests")

	token, err := verifier.GenerateToken(uuid.New(), -1*time.Minute)
	req.NoError(err)

	_, err = verifier.Verify(token)
	req.ErrorIs(err, errs.ErrInvalidToken)
}
