package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/husnainisworking/personal-blog/internal/application/session"
	"github.com/husnainisworking/personal-blog/internal/application/slug"
	"github.com/husnainisworking/personal-blog/internal/application/twofactor"
	"github.com/husnainisworking/personal-blog/internal/domain"
	jwtinfra "github.com/husnainisworking/personal-blog/internal/infrastructure/jwt"
	"github.com/husnainisworking/personal-blog/internal/transport/http/middleware"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockSessionSvc struct{ mock.Mock }

func (m *mockSessionSvc) Login(ctx context.Context, req session.LoginRequest) (*session.LoginResult, error) {
	args := m.Called(ctx, req)
	if r, _ := args.Get(0).(*session.LoginResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockSessionSvc) Logout(ctx context.Context, sessionID string) error {
	return m.Called(ctx, sessionID).Error(0)
}
func (m *mockSessionSvc) GetCurrent(ctx context.Context, sessionID string) (*domain.Session, error) {
	args := m.Called(ctx, sessionID)
	if s, _ := args.Get(0).(*domain.Session); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockTwoFactorSvc struct{ mock.Mock }

func (m *mockTwoFactorSvc) Issue(ctx context.Context, u *domain.User) (string, error) {
	args := m.Called(ctx, u)
	return args.String(0), args.Error(1)
}
func (m *mockTwoFactorSvc) Verify(ctx context.Context, sub domain.Subject, code, clientKey string) (twofactor.VerifyResult, error) {
	args := m.Called(ctx, sub, code, clientKey)
	return args.Get(0).(twofactor.VerifyResult), args.Error(1)
}
func (m *mockTwoFactorSvc) Resend(ctx context.Context, sub domain.Subject, clientKey string) (twofactor.ResendResult, error) {
	args := m.Called(ctx, sub, clientKey)
	return args.Get(0).(twofactor.ResendResult), args.Error(1)
}
func (m *mockTwoFactorSvc) Guard(ctx context.Context, sub domain.Subject) (twofactor.GuardDecision, error) {
	args := m.Called(ctx, sub)
	return args.Get(0).(twofactor.GuardDecision), args.Error(1)
}

type mockSlugSvc struct{ mock.Mock }

func (m *mockSlugSvc) Allocate(ctx context.Context, tx slug.Tx, title string, t domain.RecordType, excludeID string) (string, error) {
	args := m.Called(ctx, tx, title, t, excludeID)
	return args.String(0), args.Error(1)
}
func (m *mockSlugSvc) Create(ctx context.Context, t domain.RecordType, title string) (*domain.Record, error) {
	args := m.Called(ctx, t, title)
	if r, _ := args.Get(0).(*domain.Record); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockSlugSvc) Rename(ctx context.Context, t domain.RecordType, recordID, title string) (*domain.Record, error) {
	args := m.Called(ctx, t, recordID, title)
	if r, _ := args.Get(0).(*domain.Record); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockSlugSvc) Taken(ctx context.Context, t domain.RecordType, slugs []string) ([]string, error) {
	args := m.Called(ctx, t, slugs)
	taken, _ := args.Get(0).([]string)
	return taken, args.Error(1)
}

type mockRecordSvc struct{ mock.Mock }

func (m *mockRecordSvc) Get(ctx context.Context, t domain.RecordType, slugValue string) (*domain.Record, error) {
	args := m.Called(ctx, t, slugValue)
	if r, _ := args.Get(0).(*domain.Record); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockRecordSvc) Delete(ctx context.Context, t domain.RecordType, id string) error {
	return m.Called(ctx, t, id).Error(0)
}

// --- helpers ---

var testSubject = domain.Subject{UserID: "u1", SessionID: "s1"}

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func jsonReq(t *testing.T, method, target string, body interface{}) *http.Request {
	t.Helper()
	if body == nil {
		return httptest.NewRequest(method, target, nil)
	}
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	return httptest.NewRequest(method, target, bytes.NewReader(raw))
}

// authed attaches the claims Auth would have injected.
func authed(r *http.Request) *http.Request {
	claims := &jwtinfra.Claims{UserID: testSubject.UserID, SessionID: testSubject.SessionID}
	return r.WithContext(context.WithValue(r.Context(), middleware.ClaimsKey, claims))
}

// withParams injects chi URL params as key/value pairs.
func withParams(r *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rr.Body).Decode(v))
}
