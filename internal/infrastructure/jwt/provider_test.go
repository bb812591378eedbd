package jwtinfra

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T, expiry time.Duration) *Provider {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return NewProviderFromKeys(key, &key.PublicKey, expiry)
}

func TestSignVerify_RoundTripsSession(t *testing.T) {
	p := newTestProvider(t, time.Hour)

	tok, err := p.Sign("u1", "s1")
	require.NoError(t, err)

	claims, err := p.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "s1", claims.SessionID)
}

func TestVerify_Expired(t *testing.T) {
	p := newTestProvider(t, -time.Minute)

	tok, err := p.Sign("u1", "s1")
	require.NoError(t, err)

	_, err = p.Verify(tok)
	assert.Error(t, err)
}

func TestVerify_OtherKey(t *testing.T) {
	a := newTestProvider(t, time.Hour)
	b := newTestProvider(t, time.Hour)

	tok, err := a.Sign("u1", "s1")
	require.NoError(t, err)

	_, err = b.Verify(tok)
	assert.Error(t, err)
}

func TestVerify_RequiresSession(t *testing.T) {
	p := newTestProvider(t, time.Hour)

	tok, err := p.Sign("u1", "")
	require.NoError(t, err)

	_, err = p.Verify(tok)
	assert.ErrorContains(t, err, "no session")
}
