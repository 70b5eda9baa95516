// Package dispatcher fans the tracked keyword set out into crawl and
// stream work and routes produced posts to the configured sink.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/sentipulse/twitter-crawler/internal/crawl"
)

// Dispatcher orchestrates crawl engines and stream sessions across the
// keyword set. Per-keyword failures are isolated: one bad keyword never
// aborts a batch.
type Dispatcher struct {
	engine     *crawl.Engine
	client     *crawl.Client
	clock      crawl.Clock
	keywords   crawl.KeywordSource
	sink       crawl.Sink
	batchLimit int
	logger     *zap.Logger

	mu       sync.Mutex
	sessions []*crawl.Session
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithBatchLimit caps the results fetched per keyword during batch crawls.
func WithBatchLimit(n int) Option {
	return func(d *Dispatcher) { d.batchLimit = n }
}

// New creates a Dispatcher.
func New(
	engine *crawl.Engine,
	client *crawl.Client,
	clock crawl.Clock,
	keywords crawl.KeywordSource,
	sink crawl.Sink,
	logger *zap.Logger,
	opts ...Option,
) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		engine:   engine,
		client:   client,
		clock:    clock,
		keywords: keywords,
		sink:     sink,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// RunCrawlBatch crawls every tracked keyword sequentially and persists
// the produced posts. Keywords are consumed lazily from the paged source;
// the external rate limit is shared per credential set, so one request is
// in flight at a time.
func (d *Dispatcher) RunCrawlBatch(ctx context.Context) error {
	cursor, err := d.keywords.ListKeywords(ctx)
	if err != nil {
		return fmt.Errorf("list keywords: %w", err)
	}
	defer cursor.Close()

	var crawled, failed int
	for {
		batch, err := cursor.Next(ctx)
		if err != nil {
			return fmt.Errorf("next keyword batch: %w", err)
		}
		if len(batch) == 0 {
			break
		}
		for _, keyword := range batch {
			if ctx.Err() != nil {
				return fmt.Errorf("crawl batch canceled: %w", ctx.Err())
			}
			if err := d.crawlOne(ctx, keyword); err != nil {
				failed++
				d.logger.Error("keyword crawl failed",
					zap.String("keyword_id", keyword.ID),
					zap.String("query", keyword.Query),
					zap.Error(err),
				)
				continue
			}
			crawled++
		}
	}

	d.logger.Info("crawl batch finished", zap.Int("crawled", crawled), zap.Int("failed", failed))
	return nil
}

func (d *Dispatcher) crawlOne(ctx context.Context, keyword crawl.Keyword) error {
	posts, err := d.engine.Run(ctx, keyword, d.batchLimit)
	if err != nil {
		return err
	}
	for _, post := range posts {
		if _, err := d.sink.Persist(ctx, post); err != nil {
			return fmt.Errorf("persist post %s: %w", post.SourceID, err)
		}
	}
	return nil
}

// RunStreamBatch opens one stream session per tracked keyword, each
// forwarding normalized posts to the sink, and returns once every session
// has started. Sessions outlive the call; use StopAll to shut them down.
func (d *Dispatcher) RunStreamBatch(ctx context.Context) error {
	cursor, err := d.keywords.ListKeywords(ctx)
	if err != nil {
		return fmt.Errorf("list keywords: %w", err)
	}
	defer cursor.Close()

	var started, failed int
	for {
		batch, err := cursor.Next(ctx)
		if err != nil {
			return fmt.Errorf("next keyword batch: %w", err)
		}
		if len(batch) == 0 {
			break
		}
		for _, keyword := range batch {
			session := crawl.NewSession(d.client, d.clock, keyword, d.forwardToSink(ctx, keyword), d.logger)
			if err := session.Start(ctx); err != nil {
				failed++
				d.logger.Error("stream session start failed",
					zap.String("keyword_id", keyword.ID),
					zap.String("query", keyword.Query),
					zap.Error(err),
				)
				continue
			}
			d.track(session)
			started++
		}
	}

	d.logger.Info("stream batch started", zap.Int("sessions", started), zap.Int("failed", failed))
	return nil
}

// forwardToSink builds the per-session callback. Persistence failures are
// reported but do not end the session; the stream keeps flowing.
func (d *Dispatcher) forwardToSink(ctx context.Context, keyword crawl.Keyword) func(crawl.Post) {
	return func(post crawl.Post) {
		if _, err := d.sink.Persist(ctx, post); err != nil {
			d.logger.Error("persist streamed post failed",
				zap.String("keyword_id", keyword.ID),
				zap.String("source_id", post.SourceID),
				zap.Error(err),
			)
		}
	}
}

// RunSingle validates and crawls one keyword, forwards its posts to the
// sink, and returns them so task callers can see whether the unit of work
// produced anything. An unknown keyword is crawled ephemerally.
func (d *Dispatcher) RunSingle(ctx context.Context, keywordString, language string, limit int) ([]crawl.Post, error) {
	if strings.TrimSpace(keywordString) == "" {
		return nil, fmt.Errorf("keyword string is empty: %w", crawl.ErrInvalidParameter)
	}
	if !crawl.IsSupportedLanguage(language) {
		return nil, &crawl.UnsupportedLanguageError{Language: language}
	}

	keyword, err := d.keywords.FindKeyword(ctx, keywordString, language)
	if errors.Is(err, crawl.ErrKeywordNotFound) {
		keyword = crawl.Keyword{Query: keywordString, Language: language}
	} else if err != nil {
		return nil, fmt.Errorf("find keyword: %w", err)
	}

	posts, err := d.engine.Run(ctx, keyword, limit)
	if err != nil {
		return nil, err
	}

	out := make([]crawl.Post, 0, len(posts))
	for _, post := range posts {
		persisted, err := d.sink.Persist(ctx, post)
		if err != nil {
			return out, fmt.Errorf("persist post %s: %w", post.SourceID, err)
		}
		out = append(out, persisted)
	}
	return out, nil
}

// Sessions returns the currently tracked stream sessions.
func (d *Dispatcher) Sessions() []*crawl.Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*crawl.Session, len(d.sessions))
	copy(out, d.sessions)
	return out
}

// StopAll stops every tracked stream session and waits for the consumer
// loops to exit.
func (d *Dispatcher) StopAll() {
	for _, session := range d.Sessions() {
		session.Stop()
	}
	for _, session := range d.Sessions() {
		<-session.Done()
	}
	d.mu.Lock()
	d.sessions = nil
	d.mu.Unlock()
}

// track registers the session and prunes it again once its consumer loop
// exits, so Sessions reflects live sessions only.
func (d *Dispatcher) track(session *crawl.Session) {
	d.mu.Lock()
	d.sessions = append(d.sessions, session)
	d.mu.Unlock()

	go func() {
		<-session.Done()
		d.forget(session)
	}()
}

func (d *Dispatcher) forget(session *crawl.Session) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, s := range d.sessions {
		if s == session {
			d.sessions = append(d.sessions[:i], d.sessions[i+1:]...)
			return
		}
	}
}
