// Package cache provides the TTL-aware resolution cache backed by SQLite.
//
// Positive records persist until invalidated (or an optional long TTL);
// negative results get a short explicit TTL so permanently-missing
// entities stay cheap while remaining self-correcting. Partial records
// (identifier without summary) may be stored to bound repeated failed
// lookups; callers decide usability, the store only reports what it has.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/loreweave/loreweave/errors"
	"github.com/loreweave/loreweave/kb"
)

const (
	// DefaultNegativeTTL bounds how long a "not found" verdict is trusted
	DefaultNegativeTTL = 24 * time.Hour
)

// Store is the durable key/value cache over the kb_cache table.
type Store struct {
	db          *sql.DB
	logger      *zap.SugaredLogger
	positiveTTL time.Duration // 0 = no expiry
	negativeTTL time.Duration
	timeNow     func() time.Time
}

// Option customizes store construction.
type Option func(*Store)

// WithPositiveTTL sets an expiry for positive entries. Zero (the default)
// means positive entries persist until invalidated.
func WithPositiveTTL(ttl time.Duration) Option {
	return func(s *Store) { s.positiveTTL = ttl }
}

// WithNegativeTTL overrides the negative-result TTL.
func WithNegativeTTL(ttl time.Duration) Option {
	return func(s *Store) { s.negativeTTL = ttl }
}

// WithClock injects a clock for testing.
func WithClock(timeNow func() time.Time) Option {
	return func(s *Store) { s.timeNow = timeNow }
}

// NewStore creates a cache store. logger may be nil.
func NewStore(db *sql.DB, logger *zap.SugaredLogger, opts ...Option) *Store {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	s := &Store{
		db:          db,
		logger:      logger,
		negativeTTL: DefaultNegativeTTL,
		timeNow:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get looks up one key. Returns (record, true, nil) on a live hit; the
// record for a negative entry carries StatusNotFound. Expired rows are
// treated as misses and deleted lazily.
func (s *Store) Get(ctx context.Context, key string) (*kb.SourceRecord, bool, error) {
	var payload string
	var negative bool
	var expiresAt sql.NullTime

	err := s.db.QueryRowContext(ctx,
		`SELECT payload, negative, expires_at FROM kb_cache WHERE cache_key = ?`,
		key,
	).Scan(&payload, &negative, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "cache get")
	}

	if expiresAt.Valid && s.timeNow().After(expiresAt.Time) {
		// Lazy expiry; a failed delete is harmless, the row stays a miss
		if _, err := s.db.ExecContext(ctx, `DELETE FROM kb_cache WHERE cache_key = ?`, key); err != nil {
			s.logger.Debugw("Failed to delete expired cache row", "key", key, "error", err)
		}
		return nil, false, nil
	}

	if negative {
		return &kb.SourceRecord{Status: kb.StatusNotFound, Provenance: kb.StageCache}, true, nil
	}

	var rec kb.SourceRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		// A corrupt row is a miss, not a failure
		s.logger.Warnw("Corrupt cache payload, treating as miss", "key", key, "error", err)
		return nil, false, nil
	}
	return &rec, true, nil
}

// Put stores a positive (full or partial) record under key.
func (s *Store) Put(ctx context.Context, key, source string, rec *kb.SourceRecord) error {
	if rec == nil {
		return errors.New("nil record")
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "marshal cache payload")
	}

	var expiresAt interface{}
	if s.positiveTTL > 0 {
		expiresAt = s.timeNow().Add(s.positiveTTL)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO kb_cache (cache_key, source, payload, negative, expires_at)
		 VALUES (?, ?, ?, 0, ?)
		 ON CONFLICT(cache_key) DO UPDATE SET
		   payload = excluded.payload,
		   negative = 0,
		   expires_at = excluded.expires_at,
		   created_at = CURRENT_TIMESTAMP`,
		key, source, string(payload), expiresAt,
	)
	if err != nil {
		return errors.Wrap(err, "cache put")
	}
	return nil
}

// PutNegative stores a "not found" marker under key with the short
// negative TTL, so the entity is retried once the verdict goes stale.
func (s *Store) PutNegative(ctx context.Context, key, source string) error {
	expiresAt := s.timeNow().Add(s.negativeTTL)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kb_cache (cache_key, source, payload, negative, expires_at)
		 VALUES (?, ?, '{}', 1, ?)
		 ON CONFLICT(cache_key) DO UPDATE SET
		   payload = '{}',
		   negative = 1,
		   expires_at = excluded.expires_at,
		   created_at = CURRENT_TIMESTAMP`,
		key, source, expiresAt,
	)
	if err != nil {
		return errors.Wrap(err, "cache put negative")
	}
	return nil
}

// Invalidate removes one key.
func (s *Store) Invalidate(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kb_cache WHERE cache_key = ?`, key)
	if err != nil {
		return errors.Wrap(err, "cache invalidate")
	}
	return nil
}

// Purge deletes all expired rows and returns how many were removed.
func (s *Store) Purge(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM kb_cache WHERE expires_at IS NOT NULL AND expires_at < ?`,
		s.timeNow(),
	)
	if err != nil {
		return 0, errors.Wrap(err, "cache purge")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "cache purge rows affected")
	}
	if n > 0 {
		s.logger.Infow("Purged expired cache entries", "removed", n)
	}
	return n, nil
}

// Stats summarizes cache contents per source.
type Stats struct {
	Total    int            `json:"total"`
	Negative int            `json:"negative"`
	BySource map[string]int `json:"by_source"`
}

// ReadStats returns entry counts, total and per source.
func (s *Store) ReadStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{BySource: make(map[string]int)}

	rows, err := s.db.QueryContext(ctx,
		`SELECT source, negative, COUNT(*) FROM kb_cache GROUP BY source, negative`)
	if err != nil {
		return nil, errors.Wrap(err, "cache stats")
	}
	defer rows.Close()

	for rows.Next() {
		var source string
		var negative bool
		var count int
		if err := rows.Scan(&source, &negative, &count); err != nil {
			return nil, errors.Wrap(err, "cache stats scan")
		}
		stats.Total += count
		stats.BySource[source] += count
		if negative {
			stats.Negative += count
		}
	}
	return stats, rows.Err()
}
