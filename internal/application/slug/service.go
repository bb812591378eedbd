package slug

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/husnainisworking/personal-blog/internal/domain"
	"github.com/husnainisworking/personal-blog/internal/infrastructure/metrics"
	"github.com/husnainisworking/personal-blog/internal/pkg/id"
	"github.com/husnainisworking/personal-blog/internal/pkg/otp"
	"github.com/husnainisworking/personal-blog/internal/pkg/slugify"
	"github.com/rs/zerolog"
)

const (
	fallbackSuffixLen = 8
	retryTokenLen     = 4
)

// Tx is the slice of a store transaction the allocator works through.
// Every lock taken through a Tx is held until the transaction commits or rolls back.
type Tx interface {
	// LockSlug serializes allocators on (t, slug), then locks live rows of t
	// carrying slug other than excludeID. taken reports whether any exist.
	LockSlug(ctx context.Context, t domain.RecordType, slug, excludeID string) (taken bool, err error)
	// LockRecord locks a live record row. Missing rows return domain.ErrNotFound.
	LockRecord(ctx context.Context, t domain.RecordType, id string) (*domain.Record, error)
	Insert(ctx context.Context, rec *domain.Record) error
	Update(ctx context.Context, rec *domain.Record) error
}

// Store owns transactions over the record tables.
type Store interface {
	// InTx runs fn in one transaction and commits when fn returns nil.
	// A violation of the (type, slug) unique index surfaces as domain.ErrSlugConflict.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// Taken returns the subset of slugs used by live records of t.
	Taken(ctx context.Context, t domain.RecordType, slugs []string) ([]string, error)
}

// Cache drops cached lookups for the given slugs of t.
type Cache interface {
	Invalidate(ctx context.Context, t domain.RecordType, slugs ...string) error
}

type Config struct {
	MaxAttempts   int
	CommitRetries int
}

type Service interface {
	// Allocate returns a slug for title that no live record of t other than
	// excludeID holds. It runs inside the caller's transaction; the caller must
	// write the record with the slug before that transaction ends.
	Allocate(ctx context.Context, tx Tx, title string, t domain.RecordType, excludeID string) (string, error)
	Create(ctx context.Context, t domain.RecordType, title string) (*domain.Record, error)
	Rename(ctx context.Context, t domain.RecordType, recordID, title string) (*domain.Record, error)
	Taken(ctx context.Context, t domain.RecordType, slugs []string) ([]string, error)
}

type ServiceDeps struct {
	Store   Store
	Cache   Cache
	Metrics *metrics.Metrics
	Logger  *zerolog.Logger
	Config  Config
	// Random defaults to otp.RandomString.
	Random func(n int) (string, error)
	// Now defaults to time.Now.
	Now func() time.Time
}

type service struct {
	store   Store
	cache   Cache
	metrics *metrics.Metrics
	logger  *zerolog.Logger
	cfg     Config
	random  func(n int) (string, error)
	now     func() time.Time
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		store:   deps.Store,
		cache:   deps.Cache,
		metrics: deps.Metrics,
		logger:  deps.Logger,
		cfg:     deps.Config,
		random:  deps.Random,
		now:     deps.Now,
	}
	if s.cfg.MaxAttempts < 1 {
		s.cfg.MaxAttempts = 10
	}
	if s.cfg.CommitRetries < 1 {
		s.cfg.CommitRetries = 5
	}
	if s.random == nil {
		s.random = otp.RandomString
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		nop := zerolog.Nop()
		s.logger = &nop
	}
	return s
}

// baseFor falls back to the type name for titles with no usable characters.
func baseFor(title string, t domain.RecordType) string {
	if base := slugify.Make(title); base != "" {
		return base
	}
	return string(t)
}

func allocationFailed(err error) error {
	if errors.Is(err, domain.ErrAllocationFailed) || errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrAllocationFailed, err)
}

func (s *service) Allocate(ctx context.Context, tx Tx, title string, t domain.RecordType, excludeID string) (string, error) {
	base := baseFor(title, t)

	for attempt := 0; attempt < s.cfg.MaxAttempts; attempt++ {
		candidate := base
		if attempt > 0 {
			candidate = slugify.WithSuffix(base, attempt)
		}
		taken, err := tx.LockSlug(ctx, t, candidate, excludeID)
		if err != nil {
			s.metrics.SlugAllocated(t, metrics.OutcomeFailed)
			return "", allocationFailed(fmt.Errorf("lock slug %q: %w", candidate, err))
		}
		if !taken {
			if attempt == 0 {
				s.metrics.SlugAllocated(t, metrics.OutcomeBase)
			} else {
				s.metrics.SlugAllocated(t, metrics.OutcomeSuffixed)
			}
			return candidate, nil
		}
	}

	// Every numbered candidate is in use. The random candidate is checked once
	// more under the same lock rather than returned blind.
	suffix, err := s.random(fallbackSuffixLen)
	if err != nil {
		return "", allocationFailed(err)
	}
	candidate := base + "-" + suffix
	taken, err := tx.LockSlug(ctx, t, candidate, excludeID)
	if err != nil {
		s.metrics.SlugAllocated(t, metrics.OutcomeFailed)
		return "", allocationFailed(fmt.Errorf("lock slug %q: %w", candidate, err))
	}
	if taken {
		s.metrics.SlugAllocated(t, metrics.OutcomeFailed)
		return "", fmt.Errorf("%w: fallback %q in use: %w", domain.ErrAllocationFailed, candidate, domain.ErrSlugConflict)
	}
	s.metrics.SlugAllocated(t, metrics.OutcomeFallback)
	s.logger.Warn().
		Str("type", string(t)).
		Str("base", base).
		Int("max_attempts", s.cfg.MaxAttempts).
		Msg("slug numbered candidates exhausted, using random suffix")
	return candidate, nil
}

// withCommitRetries reruns the whole transaction when the unique index rejects
// the slug at commit, mutating the title used for the slug each time.
func (s *service) withCommitRetries(ctx context.Context, t domain.RecordType, title string, fn func(ctx context.Context, tx Tx, slugTitle string) error) error {
	slugTitle := title
	for attempt := 1; ; attempt++ {
		err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
			return fn(ctx, tx, slugTitle)
		})
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrSlugConflict) {
			return allocationFailed(err)
		}
		if attempt >= s.cfg.CommitRetries {
			s.logger.Error().Err(err).
				Str("type", string(t)).
				Int("attempts", attempt).
				Msg("slug commit retries exhausted")
			return fmt.Errorf("%w: %d commit attempts for %s", domain.ErrAllocationFailed, attempt, t)
		}
		s.metrics.SlugCommitRetry(t)
		s.logger.Info().
			Str("type", string(t)).
			Int("attempt", attempt).
			Msg("slug conflict at commit, retrying")

		token, rerr := s.random(retryTokenLen)
		if rerr != nil {
			return allocationFailed(rerr)
		}
		slugTitle = slugTitle + "-" + token
	}
}

func (s *service) Create(ctx context.Context, t domain.RecordType, title string) (*domain.Record, error) {
	var rec *domain.Record
	err := s.withCommitRetries(ctx, t, title, func(ctx context.Context, tx Tx, slugTitle string) error {
		slug, err := s.Allocate(ctx, tx, slugTitle, t, "")
		if err != nil {
			return err
		}
		now := s.now().UTC()
		r := &domain.Record{
			ID:        id.New(),
			Type:      t,
			Title:     title,
			Slug:      slug,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.Insert(ctx, r); err != nil {
			return err
		}
		rec = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, t, rec.Slug)
	return rec, nil
}

// Rename locks the record row before recomputing its slug so concurrent renames
// of the same record serialize.
func (s *service) Rename(ctx context.Context, t domain.RecordType, recordID, title string) (*domain.Record, error) {
	var rec *domain.Record
	var oldSlug string
	err := s.withCommitRetries(ctx, t, title, func(ctx context.Context, tx Tx, slugTitle string) error {
		cur, err := tx.LockRecord(ctx, t, recordID)
		if err != nil {
			return err
		}
		oldSlug = cur.Slug

		// Excluding the record itself keeps its current slug when that is still
		// the first free candidate for the new title.
		slug, err := s.Allocate(ctx, tx, slugTitle, t, recordID)
		if err != nil {
			return err
		}
		cur.Title = title
		cur.Slug = slug
		cur.UpdatedAt = s.now().UTC()
		if err := tx.Update(ctx, cur); err != nil {
			return err
		}
		rec = cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	if oldSlug != rec.Slug {
		s.invalidate(ctx, t, oldSlug, rec.Slug)
	} else {
		s.invalidate(ctx, t, rec.Slug)
	}
	return rec, nil
}

func (s *service) Taken(ctx context.Context, t domain.RecordType, slugs []string) ([]string, error) {
	return s.store.Taken(ctx, t, slugs)
}

// invalidate is best-effort: the write is already committed.
func (s *service) invalidate(ctx context.Context, t domain.RecordType, slugs ...string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, t, slugs...); err != nil {
		s.logger.Warn().Err(err).
			Str("type", string(t)).
			Strs("slugs", slugs).
			Msg("record cache invalidation failed")
	}
}
