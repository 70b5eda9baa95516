package crawl

import (
	"context"
	"time"
)

// Transport is the external search/stream capability. Implementations own
// authentication and wire formats; they surface rate limiting as
// *RateLimitError and leave retries to the caller.
type Transport interface {
	// Search returns matching raw items for a query. A limit of zero means
	// "as many as the API naturally returns".
	Search(ctx context.Context, query, language string, limit int) ([]RawItem, error)

	// OpenStream opens a live subscription for a query. The returned
	// handle yields an unbounded, non-restartable sequence of events.
	OpenStream(ctx context.Context, query, language string) (StreamHandle, error)
}

// StreamHandle delivers pushed events for one open subscription.
type StreamHandle interface {
	// Events yields pushed events until the subscription ends. The channel
	// is closed on transport error or Close.
	Events() <-chan StreamEvent

	// Err reports why Events closed; nil after a clean Close.
	Err() error

	// Close tears down the subscription.
	Close() error
}

// KeywordCursor pages through tracked keywords. It is finite and not
// restartable.
type KeywordCursor interface {
	// Next returns the next batch, or an empty batch once exhausted.
	Next(ctx context.Context) ([]Keyword, error)
	Close()
}

// KeywordSource exposes the tracked keyword set.
type KeywordSource interface {
	ListKeywords(ctx context.Context) (KeywordCursor, error)

	// FindKeyword looks up one keyword by query string and language,
	// returning ErrKeywordNotFound on miss.
	FindKeyword(ctx context.Context, query, language string) (Keyword, error)
}

// Sink is the destination for produced posts: direct persistence or a
// downstream processing queue. Persist returns the post with its assigned id.
type Sink interface {
	Persist(ctx context.Context, post Post) (Post, error)
}

// Archiver stores raw API payloads for replay/debugging and returns a URI.
type Archiver interface {
	Archive(ctx context.Context, path string, data []byte) (string, error)
}

// Clock abstracts time for deterministic backoff tests. Sleep returns
// early with the context error when ctx ends.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}
