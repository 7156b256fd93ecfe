package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifierRoundTrip(t *testing.T) {
	v := NewVerifier("secret", "dentallab")

	token, err := v.Issue("subject-1", "lab@example.com", RoleAdmin, time.Hour)
	require.NoError(t, err)

	claims, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "subject-1", claims.Subject)
	assert.Equal(t, "lab@example.com", claims.Email)
	assert.True(t, claims.IsAdmin())
}

func TestVerifierRejects(t *testing.T) {
	v := NewVerifier("secret", "dentallab")

	expired, err := v.Issue("subject-1", "", "", -time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	foreign, err := NewVerifier("other", "dentallab").Issue("subject-1", "", "", time.Hour)
	require.NoError(t, err)
	_, err = v.Verify(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)

	wrongIssuer, err := NewVerifier("secret", "elsewhere").Issue("subject-1", "", "", time.Hour)
	require.NoError(t, err)
	_, err = v.Verify(wrongIssuer)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
