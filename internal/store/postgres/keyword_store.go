// Package postgres provides Postgres-backed keyword and post stores.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sentipulse/twitter-crawler/internal/crawl"
)

const defaultKeywordBatchSize = 100

// pool is the subset of pgxpool.Pool the stores need. pgxmock satisfies
// it in tests.
type pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

// Config holds connection settings for the stores.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	BatchSize       int
}

// Connect opens a connection pool with the configured limits.
func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return p, nil
}

// KeywordStore reads tracked keywords from Postgres.
type KeywordStore struct {
	pool      pool
	batchSize int
}

// NewKeywordStore wraps a pool. batchSize caps the rows fetched per page
// while iterating the keyword set.
func NewKeywordStore(p pool, batchSize int) *KeywordStore {
	if batchSize <= 0 {
		batchSize = defaultKeywordBatchSize
	}
	return &KeywordStore{pool: p, batchSize: batchSize}
}

// ListKeywords returns a cursor that pages through every tracked keyword
// ordered by id.
func (s *KeywordStore) ListKeywords(ctx context.Context) (crawl.KeywordCursor, error) {
	return &keywordCursor{store: s}, nil
}

// FindKeyword looks up a tracked keyword by query string and language.
func (s *KeywordStore) FindKeyword(ctx context.Context, query, language string) (crawl.Keyword, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, query, language, user_id FROM keywords WHERE query = $1 AND language = $2`,
		query, language,
	)
	var k crawl.Keyword
	err := row.Scan(&k.ID, &k.Query, &k.Language, &k.UserID)
	if errors.Is(err, pgx.ErrNoRows) {
		return crawl.Keyword{}, crawl.ErrKeywordNotFound
	}
	if err != nil {
		return crawl.Keyword{}, fmt.Errorf("find keyword: %w", err)
	}
	return k, nil
}

// keywordCursor pages with a keyset on id so new inserts during the walk
// cannot shift earlier pages.
type keywordCursor struct {
	store  *KeywordStore
	lastID string
	done   bool
}

func (c *keywordCursor) Next(ctx context.Context) ([]crawl.Keyword, error) {
	if c.done {
		return nil, nil
	}
	rows, err := c.store.pool.Query(ctx,
		`SELECT id, query, language, user_id FROM keywords WHERE id > $1 ORDER BY id LIMIT $2`,
		c.lastID, c.store.batchSize,
	)
	if err != nil {
		return nil, fmt.Errorf("query keywords: %w", err)
	}
	defer rows.Close()

	var batch []crawl.Keyword
	for rows.Next() {
		var k crawl.Keyword
		if err := rows.Scan(&k.ID, &k.Query, &k.Language, &k.UserID); err != nil {
			return nil, fmt.Errorf("scan keyword: %w", err)
		}
		batch = append(batch, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate keywords: %w", err)
	}
	if len(batch) == 0 {
		c.done = true
		return nil, nil
	}
	c.lastID = batch[len(batch)-1].ID
	if len(batch) < c.store.batchSize {
		c.done = true
	}
	return batch, nil
}

func (c *keywordCursor) Close() {
	c.done = true
}
