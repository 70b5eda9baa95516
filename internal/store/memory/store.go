// Package memory provides in-memory keyword and post stores for
// development and tests.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/sentipulse/twitter-crawler/internal/crawl"
)

// KeywordStore holds tracked keywords in memory.
type KeywordStore struct {
	mu        sync.RWMutex
	keywords  []crawl.Keyword
	batchSize int
}

// NewKeywordStore creates an empty store paging batchSize keywords at a
// time.
func NewKeywordStore(batchSize int) *KeywordStore {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &KeywordStore{batchSize: batchSize}
}

// Add registers a keyword, assigning an id when missing.
func (s *KeywordStore) Add(keyword crawl.Keyword) crawl.Keyword {
	if keyword.ID == "" {
		keyword.ID = uuid.NewString()
	}
	s.mu.Lock()
	s.keywords = append(s.keywords, keyword)
	s.mu.Unlock()
	return keyword
}

// ListKeywords returns a cursor over a snapshot of the keyword set.
func (s *KeywordStore) ListKeywords(ctx context.Context) (crawl.KeywordCursor, error) {
	s.mu.RLock()
	snapshot := make([]crawl.Keyword, len(s.keywords))
	copy(snapshot, s.keywords)
	s.mu.RUnlock()
	return &keywordCursor{keywords: snapshot, batchSize: s.batchSize}, nil
}

// FindKeyword returns the tracked keyword matching query and language.
func (s *KeywordStore) FindKeyword(ctx context.Context, query, language string) (crawl.Keyword, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, k := range s.keywords {
		if k.Query == query && k.Language == language {
			return k, nil
		}
	}
	return crawl.Keyword{}, crawl.ErrKeywordNotFound
}

type keywordCursor struct {
	keywords  []crawl.Keyword
	batchSize int
	offset    int
}

func (c *keywordCursor) Next(ctx context.Context) ([]crawl.Keyword, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if c.offset >= len(c.keywords) {
		return nil, nil
	}
	end := c.offset + c.batchSize
	if end > len(c.keywords) {
		end = len(c.keywords)
	}
	batch := c.keywords[c.offset:end]
	c.offset = end
	return batch, nil
}

func (c *keywordCursor) Close() {
	c.offset = len(c.keywords)
}

// PostStore holds persisted posts in memory, deduplicated by keyword and
// source id like the Postgres store.
type PostStore struct {
	mu    sync.RWMutex
	posts map[string]crawl.Post
	order []string
}

// NewPostStore creates an empty PostStore.
func NewPostStore() *PostStore {
	return &PostStore{posts: make(map[string]crawl.Post)}
}

// Persist stores the post, assigning an id on first sight and updating
// the existing entry on replays.
func (s *PostStore) Persist(ctx context.Context, post crawl.Post) (crawl.Post, error) {
	key := post.KeywordID + "/" + post.SourceID
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.posts[key]; ok {
		post.ID = existing.ID
	} else {
		post.ID = uuid.NewString()
		s.order = append(s.order, key)
	}
	s.posts[key] = post
	return post, nil
}

// Posts returns every stored post in insertion order.
func (s *PostStore) Posts() []crawl.Post {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]crawl.Post, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.posts[key])
	}
	return out
}
