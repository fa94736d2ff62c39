package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/runger/spoiler/internal/picker"
)

// ErrCacheNotFound is returned when a cache entry is not found.
var ErrCacheNotFound = errors.New("cache entry not found")

// CachedRecord is a resolved record with its cache bookkeeping.
type CachedRecord struct {
	Kind            string
	Record          picker.Record
	CreatedAtUnixMs int64
	ExpiresAtUnixMs int64
	HitCount        int64
}

// Expired reports whether the entry is past its TTL at now.
func (c *CachedRecord) Expired(now time.Time) bool {
	return c.ExpiresAtUnixMs <= now.UnixMilli()
}

// GetCachedRecord retrieves a cached record. Expired entries are returned
// only when allowExpired is set; otherwise they count as not found.
// A fresh hit increments the hit count.
func (s *SQLiteStore) GetCachedRecord(ctx context.Context, kind string, id int64, allowExpired bool) (*CachedRecord, error) {
	if kind == "" {
		return nil, errors.New("record kind is required")
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT kind, record_id, title, content, created_at_unix_ms,
		       expires_at_unix_ms, hit_count
		FROM record_cache
		WHERE kind = ? AND record_id = ?
	`, kind, id)

	var entry CachedRecord
	err := row.Scan(
		&entry.Kind,
		&entry.Record.ID,
		&entry.Record.Title,
		&entry.Record.Content,
		&entry.CreatedAtUnixMs,
		&entry.ExpiresAtUnixMs,
		&entry.HitCount,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCacheNotFound
		}
		return nil, fmt.Errorf("failed to get cached record: %w", err)
	}

	if entry.Expired(s.now()) {
		if !allowExpired {
			return nil, ErrCacheNotFound
		}
		return &entry, nil
	}

	// Best-effort hit count
	_, _ = s.db.ExecContext(ctx, `
		UPDATE record_cache SET hit_count = hit_count + 1
		WHERE kind = ? AND record_id = ?
	`, kind, id)

	return &entry, nil
}

// SetCachedRecord stores or replaces a record for ttl.
func (s *SQLiteStore) SetCachedRecord(ctx context.Context, kind string, rec picker.Record, ttl time.Duration) error {
	if kind == "" {
		return errors.New("record kind is required")
	}
	if ttl <= 0 {
		return errors.New("ttl must be positive")
	}

	now := s.now()
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO record_cache (
			kind, record_id, title, content,
			created_at_unix_ms, expires_at_unix_ms, hit_count
		) VALUES (?, ?, ?, ?, ?, ?, 0)
	`,
		kind,
		rec.ID,
		rec.Title,
		rec.Content,
		now.UnixMilli(),
		now.Add(ttl).UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to set cached record: %w", err)
	}
	return nil
}

// PruneExpiredRecords removes all expired cache entries.
// Returns the number of entries removed.
func (s *SQLiteStore) PruneExpiredRecords(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM record_cache WHERE expires_at_unix_ms <= ?
	`, s.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to prune cache: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows, nil
}

// CachedResolver serves records from the cache and falls through to next
// on a miss. When next fails, an expired entry is served instead.
type CachedResolver struct {
	next  picker.Resolver
	store *SQLiteStore
	kind  string
	ttl   time.Duration
	log   *logrus.Entry
}

var _ picker.Resolver = (*CachedResolver)(nil)

// NewCachedResolver wraps next. A non-positive ttl disables caching.
func NewCachedResolver(next picker.Resolver, store *SQLiteStore, kind string, ttl time.Duration) *CachedResolver {
	return &CachedResolver{
		next:  next,
		store: store,
		kind:  kind,
		ttl:   ttl,
		log:   store.log.WithField("kind", kind),
	}
}

// Resolve implements picker.Resolver.
func (r *CachedResolver) Resolve(ctx context.Context, id int64) (picker.Record, error) {
	if r.ttl <= 0 {
		return r.next.Resolve(ctx, id)
	}

	cached, err := r.store.GetCachedRecord(ctx, r.kind, id, true)
	if err != nil && !errors.Is(err, ErrCacheNotFound) {
		r.log.WithError(err).Warn("record cache read failed")
	}
	if cached != nil && !cached.Expired(r.store.now()) {
		return cached.Record, nil
	}

	rec, err := r.next.Resolve(ctx, id)
	if err != nil {
		if cached != nil && ctx.Err() == nil {
			r.log.WithError(err).WithField("record_id", id).Info("serving stale record")
			return cached.Record, nil
		}
		return picker.Record{}, err
	}

	if err := r.store.SetCachedRecord(ctx, r.kind, rec, r.ttl); err != nil {
		r.log.WithError(err).Warn("record cache write failed")
	}
	return rec, nil
}
