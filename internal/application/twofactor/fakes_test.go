package twofactor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/husnainisworking/personal-blog/internal/domain"
	"github.com/stretchr/testify/mock"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type memCodes struct {
	mu    sync.Mutex
	items map[string]domain.UserVerification
	// putErr fails every Put when set.
	putErr error
	// getDelay stretches every Get to widen race windows.
	getDelay time.Duration
}

func newMemCodes() *memCodes {
	return &memCodes{items: make(map[string]domain.UserVerification)}
}

func codeKey(userID, verType string) string { return userID + "#" + verType }

func (m *memCodes) Get(_ context.Context, userID, verType string) (*domain.UserVerification, error) {
	if m.getDelay > 0 {
		time.Sleep(m.getDelay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items[codeKey(userID, verType)]
	if !ok {
		return nil, fmt.Errorf("verification: %w", domain.ErrNotFound)
	}
	return &v, nil
}

func (m *memCodes) Put(_ context.Context, v *domain.UserVerification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.items[codeKey(v.UserID, v.Type)] = *v
	return nil
}

func (m *memCodes) DeleteIfCode(_ context.Context, userID, verType, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := codeKey(userID, verType)
	v, ok := m.items[k]
	if !ok || v.Code != code {
		return fmt.Errorf("verification: %w", domain.ErrConflict)
	}
	delete(m.items, k)
	return nil
}

func (m *memCodes) drop(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, codeKey(userID, domain.VerificationTypeTwoFactor))
}

func (m *memCodes) stored(userID string) (domain.UserVerification, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items[codeKey(userID, domain.VerificationTypeTwoFactor)]
	return v, ok
}

// memLimiter mirrors the Redis fixed window: the first hit sets the deadline.
type memLimiter struct {
	mu      sync.Mutex
	now     func() time.Time
	counts  map[string]int64
	resetAt map[string]time.Time
}

func newMemLimiter(now func() time.Time) *memLimiter {
	return &memLimiter{now: now, counts: map[string]int64{}, resetAt: map[string]time.Time{}}
}

func (l *memLimiter) expire(key string) {
	if at, ok := l.resetAt[key]; ok && !l.now().Before(at) {
		delete(l.counts, key)
		delete(l.resetAt, key)
	}
}

func (l *memLimiter) Reserve(_ context.Context, key string, max int, decay time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.expire(key)
	if l.counts[key] >= int64(max) {
		return false, nil
	}
	if _, ok := l.resetAt[key]; !ok {
		l.resetAt[key] = l.now().Add(decay)
	}
	l.counts[key]++
	return true, nil
}

func (l *memLimiter) AvailableIn(_ context.Context, key string) (time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.expire(key)
	at, ok := l.resetAt[key]
	if !ok {
		return 0, nil
	}
	return at.Sub(l.now()), nil
}

func (l *memLimiter) Clear(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.counts, key)
	delete(l.resetAt, key)
	return nil
}

func (l *memLimiter) hits(key string) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.expire(key)
	return l.counts[key]
}

type fakeSessions struct {
	mu         sync.Mutex
	terminated []string
	verified   map[string]bool
}

func (f *fakeSessions) Terminate(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.terminated = append(f.terminated, sessionID)
	return nil
}

func (f *fakeSessions) MarkVerified(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.verified == nil {
		f.verified = map[string]bool{}
	}
	f.verified[sessionID] = true
	return nil
}

func (f *fakeSessions) isVerified(sessionID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.verified[sessionID]
}

func (f *fakeSessions) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.terminated)
}

type fakeUsers map[string]*domain.User

func (f fakeUsers) Get(_ context.Context, userID string) (*domain.User, error) {
	if u, ok := f[userID]; ok {
		return u, nil
	}
	return nil, fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
}

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) Send(ctx context.Context, u *domain.User, code string) error {
	return m.Called(ctx, u, code).Error(0)
}

// codeSeq returns the given codes in order.
func codeSeq(codes ...string) func() (string, error) {
	var mu sync.Mutex
	i := 0
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		c := codes[i%len(codes)]
		i++
		return c, nil
	}
}
