// Package pubsub implements the task queue on Google Cloud Pub/Sub.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/sentipulse/twitter-crawler/internal/queue"
)

// Queue publishes crawl tasks to a topic and feeds received subscription
// messages into a channel for Dequeue.
type Queue struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	items  chan queue.TaskItem
	cancel context.CancelFunc
	logger *zap.Logger
}

// Config identifies the broker resources.
type Config struct {
	ProjectID    string
	Topic        string
	Subscription string
	Buffer       int
}

// New connects to Pub/Sub and starts receiving from the subscription. It
// authenticates via Application Default Credentials.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Queue, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ProjectID == "" || cfg.Topic == "" || cfg.Subscription == "" {
		return nil, fmt.Errorf("pubsub project, topic and subscription are required")
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 64
	}

	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}

	receiveCtx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		client: client,
		topic:  client.Topic(cfg.Topic),
		items:  make(chan queue.TaskItem, cfg.Buffer),
		cancel: cancel,
		logger: logger,
	}
	go q.receive(receiveCtx, client.Subscription(cfg.Subscription))
	return q, nil
}

// Enqueue publishes the task and waits for broker acknowledgement.
func (q *Queue) Enqueue(ctx context.Context, item queue.TaskItem) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	result := q.topic.Publish(ctx, &pubsub.Message{Data: data})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish task: %w", err)
	}
	return nil
}

// Dequeue returns the next received task, respecting context cancellation.
func (q *Queue) Dequeue(ctx context.Context) (queue.TaskItem, error) {
	select {
	case <-ctx.Done():
		return queue.TaskItem{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case item := <-q.items:
		return item, nil
	}
}

// Close stops the receive loop and releases the client.
func (q *Queue) Close() error {
	q.cancel()
	q.topic.Stop()
	if err := q.client.Close(); err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}

func (q *Queue) receive(ctx context.Context, sub *pubsub.Subscription) {
	err := sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		var item queue.TaskItem
		if err := json.Unmarshal(msg.Data, &item); err != nil {
			// Poison messages are acked and dropped; redelivery cannot fix them.
			q.logger.Error("unmarshal task message", zap.Error(err))
			msg.Ack()
			return
		}
		select {
		case <-ctx.Done():
			msg.Nack()
		case q.items <- item:
			msg.Ack()
		}
	})
	if err != nil && ctx.Err() == nil {
		q.logger.Error("pubsub receive stopped", zap.Error(err))
	}
}
