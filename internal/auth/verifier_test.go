package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDevTokens(t *testing.T) {
	v, err := NewVerifier("", "")
	require.NoError(t, err)

	p, err := v.Verify("acme:Admin")
	require.NoError(t, err)
	assert.Equal(t, Principal{OwnerID: "acme", Role: RoleAdmin}, p)
	assert.True(t, p.IsAdmin())

	p, err = v.Verify("acme:")
	require.NoError(t, err)
	assert.Equal(t, RoleUser, p.Role)

	_, err = v.Verify("acme")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestHMACTokens(t *testing.T) {
	v, err := NewVerifier("hmac", "secret")
	require.NoError(t, err)

	tok, err := v.Issue(Principal{OwnerID: "acme"}, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	require.NoError(t, err)
	p, err := v.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, Principal{OwnerID: "acme", Role: RoleUser}, p)

	expired, err := v.Issue(Principal{OwnerID: "acme"}, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	})
	require.NoError(t, err)
	_, err = v.Verify(expired)
	assert.ErrorIs(t, err, ErrUnauthorized)

	other := &Verifier{Mode: ModeHMAC, Secret: []byte("other")}
	forged, err := other.Issue(Principal{OwnerID: "acme", Role: RoleAdmin}, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	require.NoError(t, err)
	_, err = v.Verify(forged)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = v.Verify("acme:admin")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestNewVerifierRejectsBadModes(t *testing.T) {
	_, err := NewVerifier("hmac", "")
	assert.Error(t, err)
	_, err = NewVerifier("jwks", "")
	assert.Error(t, err)
}
