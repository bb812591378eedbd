package middleware

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/husnainisworking/personal-blog/internal/domain"
	jwtinfra "github.com/husnainisworking/personal-blog/internal/infrastructure/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T) *jwtinfra.Provider {
	t.Helper()
	privKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return jwtinfra.NewProviderFromKeys(privKey, &privKey.PublicKey, 24*time.Hour)
}

type stubSessions map[string]*domain.Session

func (s stubSessions) Get(_ context.Context, id string) (*domain.Session, error) {
	if sess, ok := s[id]; ok {
		return sess, nil
	}
	return nil, domain.ErrNotFound
}

type failingSessions struct{}

func (failingSessions) Get(context.Context, string) (*domain.Session, error) {
	return nil, errors.New("dynamo unavailable")
}

func okHandler(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }

func serve(h http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestAuth_MissingHeader(t *testing.T) {
	p := newTestProvider(t)
	rr := serve(Auth(p, nil)(http.HandlerFunc(okHandler)), "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
}

func TestAuth_BadToken(t *testing.T) {
	p := newTestProvider(t)
	rr := serve(Auth(p, nil)(http.HandlerFunc(okHandler)), "not-a-real-token")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAuth_ExpiredToken(t *testing.T) {
	privKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	claims := &jwtinfra.Claims{
		UserID:    "u1",
		SessionID: "s1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(privKey)
	require.NoError(t, err)

	p := jwtinfra.NewProviderFromKeys(privKey, &privKey.PublicKey, time.Hour)
	rr := serve(Auth(p, nil)(http.HandlerFunc(okHandler)), signed)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAuth_ValidToken_InjectsClaims(t *testing.T) {
	p := newTestProvider(t)
	signed, err := p.Sign("u1", "s1")
	require.NoError(t, err)

	var sub domain.Subject
	capture := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub, _ = SubjectFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	sessions := stubSessions{"s1": {SessionID: "s1", UserID: "u1", Enable: true}}

	rr := serve(Auth(p, sessions)(capture), signed)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, domain.Subject{UserID: "u1", SessionID: "s1"}, sub)
}

func TestAuth_VerifiedSessionReachesSubject(t *testing.T) {
	p := newTestProvider(t)
	signed, err := p.Sign("u1", "s1")
	require.NoError(t, err)

	var sub domain.Subject
	capture := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub, _ = SubjectFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	sessions := stubSessions{"s1": {SessionID: "s1", UserID: "u1", Enable: true, TwoFactorVerified: true}}

	rr := serve(Auth(p, sessions)(capture), signed)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, domain.Subject{UserID: "u1", SessionID: "s1", Verified: true}, sub)
}

func TestAuth_TerminatedSessionRejected(t *testing.T) {
	p := newTestProvider(t)
	signed, err := p.Sign("u1", "s1")
	require.NoError(t, err)
	sessions := stubSessions{"s1": {SessionID: "s1", UserID: "u1", Enable: false}}

	rr := serve(Auth(p, sessions)(http.HandlerFunc(okHandler)), signed)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "session expired")
}

func TestAuth_UnknownSessionRejected(t *testing.T) {
	p := newTestProvider(t)
	signed, err := p.Sign("u1", "s9")
	require.NoError(t, err)

	rr := serve(Auth(p, stubSessions{})(http.HandlerFunc(okHandler)), signed)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAuth_SessionStoreFailure(t *testing.T) {
	p := newTestProvider(t)
	signed, err := p.Sign("u1", "s1")
	require.NoError(t, err)

	rr := serve(Auth(p, failingSessions{})(http.HandlerFunc(okHandler)), signed)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
