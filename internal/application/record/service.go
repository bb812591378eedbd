package record

import (
	"context"
	"fmt"

	"github.com/husnainisworking/personal-blog/internal/domain"
	"github.com/rs/zerolog"
)

type Store interface {
	// GetBySlug returns domain.ErrNotFound unless a live record of t holds slug.
	GetBySlug(ctx context.Context, t domain.RecordType, slug string) (*domain.Record, error)
	// SoftDelete marks the record deleted and returns it as it was.
	SoftDelete(ctx context.Context, t domain.RecordType, id string) (*domain.Record, error)
}

type Cache interface {
	Get(ctx context.Context, t domain.RecordType, slug string) (*domain.Record, bool, error)
	Set(ctx context.Context, rec *domain.Record) error
	Invalidate(ctx context.Context, t domain.RecordType, slugs ...string) error
}

// Service serves record lookups by slug. Writes that change a slug go
// through the slug allocator.
type Service interface {
	Get(ctx context.Context, t domain.RecordType, slug string) (*domain.Record, error)
	Delete(ctx context.Context, t domain.RecordType, id string) error
}

type ServiceDeps struct {
	Store  Store
	Cache  Cache
	Logger *zerolog.Logger
}

type service struct {
	store  Store
	cache  Cache
	logger *zerolog.Logger
}

func NewService(deps ServiceDeps) Service {
	s := &service{store: deps.Store, cache: deps.Cache, logger: deps.Logger}
	if s.logger == nil {
		nop := zerolog.Nop()
		s.logger = &nop
	}
	return s
}

func (s *service) Get(ctx context.Context, t domain.RecordType, slug string) (*domain.Record, error) {
	if s.cache != nil {
		rec, ok, err := s.cache.Get(ctx, t, slug)
		if err != nil {
			s.logger.Warn().Err(err).Str("type", string(t)).Str("slug", slug).Msg("record cache read failed")
		} else if ok {
			return rec, nil
		}
	}

	rec, err := s.store.GetBySlug(ctx, t, slug)
	if err != nil {
		return nil, fmt.Errorf("get %s %q: %w", t, slug, err)
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, rec); err != nil {
			s.logger.Warn().Err(err).Str("type", string(t)).Str("slug", slug).Msg("record cache write failed")
		}
	}
	return rec, nil
}

func (s *service) Delete(ctx context.Context, t domain.RecordType, id string) error {
	rec, err := s.store.SoftDelete(ctx, t, id)
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", t, id, err)
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, t, rec.Slug); err != nil {
			s.logger.Warn().Err(err).Str("type", string(t)).Str("slug", rec.Slug).Msg("record cache invalidation failed")
		}
	}
	s.logger.Info().Str("type", string(t)).Str("id", id).Str("slug", rec.Slug).Msg("record deleted")
	return nil
}
