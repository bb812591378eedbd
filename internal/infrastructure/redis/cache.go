package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/husnainisworking/personal-blog/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

const (
	recordPrefix    = "record:"
	defaultCacheTTL = time.Hour
	scanBatch       = 200
)

// RecordCache stores live records by (type, slug) as JSON.
type RecordCache struct {
	client goredis.Cmdable
	ttl    time.Duration
}

func NewRecordCache(client goredis.Cmdable, ttl time.Duration) *RecordCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &RecordCache{client: client, ttl: ttl}
}

func recordKey(t domain.RecordType, slug string) string {
	return recordPrefix + string(t) + ":" + slug
}

// Get reports ok=false on a miss.
func (c *RecordCache) Get(ctx context.Context, t domain.RecordType, slug string) (*domain.Record, bool, error) {
	raw, err := c.client.Get(ctx, recordKey(t, slug)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var rec domain.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, false, fmt.Errorf("decode cached record: %w", err)
	}
	return &rec, true, nil
}

func (c *RecordCache) Set(ctx context.Context, rec *domain.Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	return c.client.Set(ctx, recordKey(rec.Type, rec.Slug), raw, c.ttl).Err()
}

func (c *RecordCache) Invalidate(ctx context.Context, t domain.RecordType, slugs ...string) error {
	if len(slugs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(slugs))
	for _, s := range slugs {
		keys = append(keys, recordKey(t, s))
	}
	return c.client.Del(ctx, keys...).Err()
}

// InvalidateType drops every cached record of t and returns how many keys were removed.
func (c *RecordCache) InvalidateType(ctx context.Context, t domain.RecordType) (int64, error) {
	var removed int64
	iter := c.client.Scan(ctx, 0, recordPrefix+string(t)+":*", scanBatch).Iterator()
	batch := make([]string, 0, scanBatch)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := c.client.Del(ctx, batch...).Result()
		removed += n
		batch = batch[:0]
		return err
	}
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatch {
			if err := flush(); err != nil {
				return removed, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, err
	}
	return removed, flush()
}
