package slug

import (
	"context"
	"fmt"
	"sync"

	"github.com/husnainisworking/personal-blog/internal/domain"
)

// memStore emulates the Postgres store: LockSlug/LockRecord take per-key locks
// held until the transaction ends, writes become visible at commit, and commit
// enforces the (type, slug) unique index among live rows.
type memStore struct {
	mu    sync.Mutex
	rows  map[domain.RecordType]map[string]*domain.Record
	locks map[string]*sync.Mutex

	// conflictCommits makes that many commits fail with ErrSlugConflict.
	conflictCommits int
	// lockErr is returned by every LockSlug call when set.
	lockErr error

	txCount int
}

func newMemStore() *memStore {
	return &memStore{
		rows:  make(map[domain.RecordType]map[string]*domain.Record),
		locks: make(map[string]*sync.Mutex),
	}
}

func (s *memStore) seed(t domain.RecordType, id, slug string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rows[t] == nil {
		s.rows[t] = make(map[string]*domain.Record)
	}
	s.rows[t][id] = &domain.Record{ID: id, Type: t, Title: slug, Slug: slug}
}

func (s *memStore) all(t domain.RecordType) []domain.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Record, 0, len(s.rows[t]))
	for _, r := range s.rows[t] {
		out = append(out, *r)
	}
	return out
}

func (s *memStore) keyLock(k string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.locks[k]
	if !ok {
		m = &sync.Mutex{}
		s.locks[k] = m
	}
	return m
}

type memTx struct {
	s      *memStore
	held   map[string]*sync.Mutex
	order  []string
	writes []*domain.Record
}

func (tx *memTx) lock(k string) {
	if _, ok := tx.held[k]; ok {
		return
	}
	m := tx.s.keyLock(k)
	m.Lock()
	tx.held[k] = m
	tx.order = append(tx.order, k)
}

func (tx *memTx) release() {
	for i := len(tx.order) - 1; i >= 0; i-- {
		tx.held[tx.order[i]].Unlock()
	}
}

func (tx *memTx) LockSlug(ctx context.Context, t domain.RecordType, slug, excludeID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if tx.s.lockErr != nil {
		return false, tx.s.lockErr
	}
	tx.lock(fmt.Sprintf("slug:%s:%s", t, slug))

	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	for id, r := range tx.s.rows[t] {
		if r.Slug == slug && r.DeletedAt == nil && id != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (tx *memTx) LockRecord(ctx context.Context, t domain.RecordType, id string) (*domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tx.lock(fmt.Sprintf("row:%s:%s", t, id))

	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	r, ok := tx.s.rows[t][id]
	if !ok || r.DeletedAt != nil {
		return nil, fmt.Errorf("record %s: %w", id, domain.ErrNotFound)
	}
	cp := *r
	return &cp, nil
}

func (tx *memTx) Insert(_ context.Context, rec *domain.Record) error {
	cp := *rec
	tx.writes = append(tx.writes, &cp)
	return nil
}

func (tx *memTx) Update(_ context.Context, rec *domain.Record) error {
	cp := *rec
	tx.writes = append(tx.writes, &cp)
	return nil
}

func (s *memStore) commit(tx *memTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conflictCommits > 0 {
		s.conflictCommits--
		return fmt.Errorf("commit: %w", domain.ErrSlugConflict)
	}
	for _, w := range tx.writes {
		for id, r := range s.rows[w.Type] {
			if id != w.ID && r.Slug == w.Slug && r.DeletedAt == nil {
				return fmt.Errorf("slug %q: %w", w.Slug, domain.ErrSlugConflict)
			}
		}
	}
	for _, w := range tx.writes {
		if s.rows[w.Type] == nil {
			s.rows[w.Type] = make(map[string]*domain.Record)
		}
		s.rows[w.Type][w.ID] = w
	}
	return nil
}

func (s *memStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	s.txCount++
	s.mu.Unlock()

	tx := &memTx{s: s, held: make(map[string]*sync.Mutex)}
	defer tx.release()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.commit(tx)
}

func (s *memStore) Taken(_ context.Context, t domain.RecordType, slugs []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, want := range slugs {
		for _, r := range s.rows[t] {
			if r.Slug == want && r.DeletedAt == nil {
				out = append(out, want)
				break
			}
		}
	}
	return out, nil
}

type fakeCache struct {
	mu          sync.Mutex
	invalidated []string
	err         error
}

func (c *fakeCache) Invalidate(_ context.Context, t domain.RecordType, slugs ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range slugs {
		c.invalidated = append(c.invalidated, string(t)+":"+s)
	}
	return c.err
}
