// Package postgres provides a PostgreSQL-backed cache entry store.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/fruitsalade/rested/internal/metrics"
	"github.com/fruitsalade/rested/pkg/store"
)

// DefaultTable is the table used when Config.Table is empty.
const DefaultTable = "rested_cache"

// Config holds PostgreSQL settings.
type Config struct {
	DatabaseURL string
	Table       string
}

// Store is a PostgreSQL cache entry store.
type Store struct {
	db    *sql.DB
	table string
}

// New connects to the database and creates the cache table if needed.
func New(ctx context.Context, cfg Config) (*Store, error) {
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	table := cfg.Table
	if table == "" {
		table = DefaultTable
	}

	s := &Store{db: db, table: pq.QuoteIdentifier(table)}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+s.table+` (
		key        TEXT PRIMARY KEY,
		value      BYTEA NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`)
	if err != nil {
		return fmt.Errorf("create cache table: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get reads the entry for key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	defer func() { metrics.RecordStoreOperation("postgres", "get", time.Since(start)) }()

	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM `+s.table+` WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

// Set writes the entry for key.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	start := time.Now()
	defer func() { metrics.RecordStoreOperation("postgres", "set", time.Since(start)) }()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO `+s.table+` (key, value, updated_at) VALUES ($1, $2, NOW())
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		key, value)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Remove deletes the entry for key.
func (s *Store) Remove(ctx context.Context, key string) error {
	start := time.Now()
	defer func() { metrics.RecordStoreOperation("postgres", "remove", time.Since(start)) }()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM `+s.table+` WHERE key = $1`, key); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

// Keys returns the keys starting with prefix.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM `+s.table+` WHERE key LIKE $1 ESCAPE '\' ORDER BY key`,
		escapeLike(prefix)+"%")
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
