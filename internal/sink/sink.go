// Package sink adapts persistence and messaging destinations to the
// crawl pipeline's post sink.
package sink

import (
	"context"
	"fmt"

	"github.com/sentipulse/twitter-crawler/internal/crawl"
	"github.com/sentipulse/twitter-crawler/internal/publisher"
)

// QueueSink forwards posts to a processing topic instead of storing them
// directly, letting downstream consumers own persistence.
type QueueSink struct {
	publisher publisher.Publisher
	topic     string
}

// NewQueueSink creates a QueueSink targeting the given topic.
func NewQueueSink(pub publisher.Publisher, topic string) *QueueSink {
	return &QueueSink{publisher: pub, topic: topic}
}

// Persist publishes the post and returns it unchanged.
func (s *QueueSink) Persist(ctx context.Context, post crawl.Post) (crawl.Post, error) {
	if _, err := s.publisher.Publish(ctx, s.topic, post); err != nil {
		return crawl.Post{}, fmt.Errorf("publish post %s: %w", post.SourceID, err)
	}
	return post, nil
}

// Multi fans a post out to several sinks in order. The first sink's
// result is returned so stores that assign ids should come first.
type Multi struct {
	sinks []crawl.Sink
}

// NewMulti creates a Multi over the given sinks.
func NewMulti(sinks ...crawl.Sink) *Multi {
	return &Multi{sinks: sinks}
}

// Persist writes the post to every sink, stopping at the first failure.
func (m *Multi) Persist(ctx context.Context, post crawl.Post) (crawl.Post, error) {
	out := post
	for i, s := range m.sinks {
		persisted, err := s.Persist(ctx, post)
		if err != nil {
			return crawl.Post{}, err
		}
		if i == 0 {
			out = persisted
		}
	}
	return out, nil
}
