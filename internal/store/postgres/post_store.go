package postgres

import (
	"context"
	"fmt"

	"github.com/sentipulse/twitter-crawler/internal/crawl"
)

// PostStore persists crawled posts. Replays of the same source item under
// the same keyword update the row in place instead of duplicating it.
type PostStore struct {
	pool pool
}

// NewPostStore wraps a pool.
func NewPostStore(p pool) *PostStore {
	return &PostStore{pool: p}
}

const upsertPost = `
INSERT INTO posts (keyword_id, source_id, text, like_count, share_count, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (keyword_id, source_id) DO UPDATE
SET text = EXCLUDED.text,
    like_count = EXCLUDED.like_count,
    share_count = EXCLUDED.share_count,
    created_at = EXCLUDED.created_at
RETURNING id`

// Persist upserts the post and returns it with the store-assigned id.
func (s *PostStore) Persist(ctx context.Context, post crawl.Post) (crawl.Post, error) {
	row := s.pool.QueryRow(ctx, upsertPost,
		post.KeywordID,
		post.SourceID,
		post.Text,
		post.LikeCount,
		post.ShareCount,
		post.CreatedAt,
	)
	if err := row.Scan(&post.ID); err != nil {
		return crawl.Post{}, fmt.Errorf("upsert post %s: %w", post.SourceID, err)
	}
	return post, nil
}
