package record

import (
	"context"
	"errors"
	"testing"

	"github.com/husnainisworking/personal-blog/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockStore struct{ mock.Mock }

func (m *mockStore) GetBySlug(ctx context.Context, t domain.RecordType, slug string) (*domain.Record, error) {
	args := m.Called(ctx, t, slug)
	if r, _ := args.Get(0).(*domain.Record); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockStore) SoftDelete(ctx context.Context, t domain.RecordType, id string) (*domain.Record, error) {
	args := m.Called(ctx, t, id)
	if r, _ := args.Get(0).(*domain.Record); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockCache struct{ mock.Mock }

func (m *mockCache) Get(ctx context.Context, t domain.RecordType, slug string) (*domain.Record, bool, error) {
	args := m.Called(ctx, t, slug)
	r, _ := args.Get(0).(*domain.Record)
	return r, args.Bool(1), args.Error(2)
}
func (m *mockCache) Set(ctx context.Context, rec *domain.Record) error {
	return m.Called(ctx, rec).Error(0)
}
func (m *mockCache) Invalidate(ctx context.Context, t domain.RecordType, slugs ...string) error {
	return m.Called(ctx, t, slugs).Error(0)
}

func post() *domain.Record {
	return &domain.Record{ID: "01HZ", Type: domain.RecordPost, Title: "Hello World", Slug: "hello-world"}
}

// --- Get ---

func TestGet_CacheHit(t *testing.T) {
	st, c := &mockStore{}, &mockCache{}
	c.On("Get", mock.Anything, domain.RecordPost, "hello-world").Return(post(), true, nil)

	rec, err := NewService(ServiceDeps{Store: st, Cache: c}).Get(context.Background(), domain.RecordPost, "hello-world")

	require.NoError(t, err)
	assert.Equal(t, "01HZ", rec.ID)
	st.AssertNotCalled(t, "GetBySlug", mock.Anything, mock.Anything, mock.Anything)
}

func TestGet_CacheMissFillsCache(t *testing.T) {
	st, c := &mockStore{}, &mockCache{}
	c.On("Get", mock.Anything, domain.RecordPost, "hello-world").Return(nil, false, nil)
	st.On("GetBySlug", mock.Anything, domain.RecordPost, "hello-world").Return(post(), nil)
	c.On("Set", mock.Anything, mock.AnythingOfType("*domain.Record")).Return(nil)

	rec, err := NewService(ServiceDeps{Store: st, Cache: c}).Get(context.Background(), domain.RecordPost, "hello-world")

	require.NoError(t, err)
	assert.Equal(t, "hello-world", rec.Slug)
	c.AssertCalled(t, "Set", mock.Anything, mock.AnythingOfType("*domain.Record"))
}

func TestGet_CacheErrorFallsBackToStore(t *testing.T) {
	st, c := &mockStore{}, &mockCache{}
	c.On("Get", mock.Anything, domain.RecordPost, "hello-world").Return(nil, false, errors.New("redis down"))
	st.On("GetBySlug", mock.Anything, domain.RecordPost, "hello-world").Return(post(), nil)
	c.On("Set", mock.Anything, mock.Anything).Return(errors.New("redis down"))

	rec, err := NewService(ServiceDeps{Store: st, Cache: c}).Get(context.Background(), domain.RecordPost, "hello-world")

	require.NoError(t, err)
	assert.Equal(t, "01HZ", rec.ID)
}

func TestGet_NotFound(t *testing.T) {
	st := &mockStore{}
	st.On("GetBySlug", mock.Anything, domain.RecordTag, "nope").Return(nil, domain.ErrNotFound)

	_, err := NewService(ServiceDeps{Store: st}).Get(context.Background(), domain.RecordTag, "nope")

	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

// --- Delete ---

func TestDelete_InvalidatesSlug(t *testing.T) {
	st, c := &mockStore{}, &mockCache{}
	st.On("SoftDelete", mock.Anything, domain.RecordPost, "01HZ").Return(post(), nil)
	c.On("Invalidate", mock.Anything, domain.RecordPost, []string{"hello-world"}).Return(nil)

	err := NewService(ServiceDeps{Store: st, Cache: c}).Delete(context.Background(), domain.RecordPost, "01HZ")

	require.NoError(t, err)
	c.AssertExpectations(t)
}

func TestDelete_CacheErrorDoesNotFail(t *testing.T) {
	st, c := &mockStore{}, &mockCache{}
	st.On("SoftDelete", mock.Anything, domain.RecordPost, "01HZ").Return(post(), nil)
	c.On("Invalidate", mock.Anything, domain.RecordPost, mock.Anything).Return(errors.New("redis down"))

	assert.NoError(t, NewService(ServiceDeps{Store: st, Cache: c}).Delete(context.Background(), domain.RecordPost, "01HZ"))
}

func TestDelete_Missing(t *testing.T) {
	st, c := &mockStore{}, &mockCache{}
	st.On("SoftDelete", mock.Anything, domain.RecordPost, "gone").Return(nil, domain.ErrNotFound)

	err := NewService(ServiceDeps{Store: st, Cache: c}).Delete(context.Background(), domain.RecordPost, "gone")

	assert.True(t, errors.Is(err, domain.ErrNotFound))
	c.AssertNotCalled(t, "Invalidate", mock.Anything, mock.Anything, mock.Anything)
}
