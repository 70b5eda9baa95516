package crawl

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// Engine runs one crawl for one keyword: search, normalize, return the
// materialized posts. It owns the "how many results" policy via the
// default limit.
type Engine struct {
	client       *Client
	archiver     Archiver
	clock        Clock
	defaultLimit int
	logger       *zap.Logger
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithArchiver enables raw payload archiving for every successful search.
func WithArchiver(a Archiver) EngineOption {
	return func(e *Engine) { e.archiver = a }
}

// WithDefaultLimit sets the result cap used when callers pass limit <= 0.
func WithDefaultLimit(n int) EngineOption {
	return func(e *Engine) { e.defaultLimit = n }
}

// NewEngine constructs an Engine.
func NewEngine(client *Client, clock Clock, logger *zap.Logger, opts ...EngineOption) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		client: client,
		clock:  clock,
		logger: logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run crawls a single keyword and returns the normalized posts, bounded
// by limit (or the engine default when limit <= 0). Zero matches is
// success. Precondition failures and fatal transport errors propagate.
func (e *Engine) Run(ctx context.Context, keyword Keyword, limit int) ([]Post, error) {
	if limit <= 0 {
		limit = e.defaultLimit
	}

	items, err := e.client.Search(ctx, keyword.Query, keyword.Language, limit)
	if err != nil {
		return nil, err
	}

	posts := make([]Post, 0, len(items))
	for _, item := range items {
		posts = append(posts, Normalize(keyword, item))
		TotalPostsNormalized.Inc()
	}

	e.archivePayload(ctx, keyword, items)

	e.logger.Info("crawl finished",
		zap.String("keyword_id", keyword.ID),
		zap.String("query", keyword.Query),
		zap.Int("results", len(posts)),
	)
	return posts, nil
}

// archivePayload writes the raw search payload for replay. Archiving is
// best effort and never fails the crawl.
func (e *Engine) archivePayload(ctx context.Context, keyword Keyword, items []RawItem) {
	if e.archiver == nil || len(items) == 0 {
		return
	}
	data, err := json.Marshal(items)
	if err != nil {
		e.logger.Warn("marshal raw payload failed", zap.String("keyword_id", keyword.ID), zap.Error(err))
		return
	}
	path := fmt.Sprintf("raw/%s/%d.json", keyword.ID, e.clock.Now().UnixNano())
	if _, err := e.archiver.Archive(ctx, path, data); err != nil {
		e.logger.Warn("archive raw payload failed", zap.String("keyword_id", keyword.ID), zap.Error(err))
	}
}
