package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/husnainisworking/personal-blog/internal/application/slug"
	"github.com/husnainisworking/personal-blog/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgUniqueViolation  = "23505"
	pgLockNotAvailable = "55P03"
	pgDeadlockDetected = "40P01"

	defaultLockTimeout = 3 * time.Second
	recordColumns      = "id, title, slug, created_at, updated_at, deleted_at"
)

var tables = map[domain.RecordType]string{
	domain.RecordPost:     "posts",
	domain.RecordCategory: "categories",
	domain.RecordTag:      "tags",
}

func tableFor(t domain.RecordType) (string, error) {
	name, ok := tables[t]
	if !ok {
		return "", fmt.Errorf("record type %q: %w", t, domain.ErrBadRequest)
	}
	return pgx.Identifier{name}.Sanitize(), nil
}

// RecordStore keeps posts, categories and tags. Slug allocation runs inside
// InTx, where each candidate is serialized by a transaction-scoped advisory
// lock before the matching live rows are locked.
type RecordStore struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

func NewRecordStore(pool *pgxpool.Pool, lockTimeout time.Duration) *RecordStore {
	if lockTimeout <= 0 {
		lockTimeout = defaultLockTimeout
	}
	return &RecordStore{pool: pool, lockTimeout: lockTimeout}
}

var _ slug.Store = (*RecordStore)(nil)

func (s *RecordStore) InTx(ctx context.Context, fn func(ctx context.Context, tx slug.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return classify(fmt.Errorf("begin: %w", err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Bounds every lock wait in this transaction, advisory locks included.
	if _, err := tx.Exec(ctx, `SELECT set_config('lock_timeout', $1, true)`,
		fmt.Sprintf("%dms", s.lockTimeout.Milliseconds())); err != nil {
		return classify(fmt.Errorf("set lock_timeout: %w", err))
	}

	if err := fn(ctx, &recordTx{tx: tx}); err != nil {
		return classify(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return classify(fmt.Errorf("commit: %w", err))
	}
	return nil
}

// Taken returns the subset of slugs held by live records of t.
func (s *RecordStore) Taken(ctx context.Context, t domain.RecordType, slugs []string) ([]string, error) {
	table, err := tableFor(t)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx,
		`SELECT slug FROM `+table+` WHERE deleted_at IS NULL AND slug = ANY($1) ORDER BY slug`, slugs)
	if err != nil {
		return nil, err
	}
	taken, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	return taken, nil
}

func (s *RecordStore) GetBySlug(ctx context.Context, t domain.RecordType, slugValue string) (*domain.Record, error) {
	table, err := tableFor(t)
	if err != nil {
		return nil, err
	}
	row := s.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM `+table+` WHERE slug = $1 AND deleted_at IS NULL`, slugValue)
	return scanRecord(row, t)
}

// SoftDelete releases the record's slug for reuse.
func (s *RecordStore) SoftDelete(ctx context.Context, t domain.RecordType, id string) (*domain.Record, error) {
	table, err := tableFor(t)
	if err != nil {
		return nil, err
	}
	row := s.pool.QueryRow(ctx,
		`UPDATE `+table+` SET deleted_at = now(), updated_at = now()
		  WHERE id = $1 AND deleted_at IS NULL
		  RETURNING `+recordColumns, id)
	return scanRecord(row, t)
}

type recordTx struct {
	tx pgx.Tx
}

func (r *recordTx) LockSlug(ctx context.Context, t domain.RecordType, candidate, excludeID string) (bool, error) {
	table, err := tableFor(t)
	if err != nil {
		return false, err
	}
	// Row locks alone cannot cover a slug no row holds yet.
	if _, err := r.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`,
		string(t)+":"+candidate); err != nil {
		return false, err
	}
	rows, err := r.tx.Query(ctx,
		`SELECT id FROM `+table+`
		  WHERE slug = $1 AND deleted_at IS NULL AND id <> $2
		  FOR UPDATE`, candidate, excludeID)
	if err != nil {
		return false, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return false, err
	}
	return len(ids) > 0, nil
}

func (r *recordTx) LockRecord(ctx context.Context, t domain.RecordType, id string) (*domain.Record, error) {
	table, err := tableFor(t)
	if err != nil {
		return nil, err
	}
	row := r.tx.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM `+table+` WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`, id)
	return scanRecord(row, t)
}

func (r *recordTx) Insert(ctx context.Context, rec *domain.Record) error {
	table, err := tableFor(rec.Type)
	if err != nil {
		return err
	}
	_, err = r.tx.Exec(ctx,
		`INSERT INTO `+table+` (id, title, slug, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		rec.ID, rec.Title, rec.Slug, rec.CreatedAt, rec.UpdatedAt)
	return err
}

func (r *recordTx) Update(ctx context.Context, rec *domain.Record) error {
	table, err := tableFor(rec.Type)
	if err != nil {
		return err
	}
	tag, err := r.tx.Exec(ctx,
		`UPDATE `+table+` SET title = $2, slug = $3, updated_at = $4 WHERE id = $1 AND deleted_at IS NULL`,
		rec.ID, rec.Title, rec.Slug, rec.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("record %s: %w", rec.ID, domain.ErrNotFound)
	}
	return nil
}

func scanRecord(row pgx.Row, t domain.RecordType) (*domain.Record, error) {
	rec := domain.Record{Type: t}
	err := row.Scan(&rec.ID, &rec.Title, &rec.Slug, &rec.CreatedAt, &rec.UpdatedAt, &rec.DeletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", t, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// classify tags driver errors with the domain errors the allocator retries on.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		return fmt.Errorf("%w: %w", domain.ErrSlugConflict, err)
	case pgLockNotAvailable, pgDeadlockDetected:
		return fmt.Errorf("%w: %w", domain.ErrLockTimeout, err)
	}
	return err
}
