// Package queue defines the task queue used to hand single-keyword crawl
// requests to worker processes. The abstraction keeps the application
// independent of the broker (GCP Pub/Sub in production, an in-memory
// channel for development and tests).
package queue

import "context"

// TaskItem is one single-keyword crawl request.
type TaskItem struct {
	Keyword   string `json:"keyword"`
	Language  string `json:"language"`
	Limit     int    `json:"limit,omitempty"`
	Attempt   int    `json:"attempt,omitempty"`
	Submitted int64  `json:"submitted,omitempty"`
}

// Queue provides enqueue/dequeue semantics for crawl tasks.
type Queue interface {
	Enqueue(ctx context.Context, item TaskItem) error
	Dequeue(ctx context.Context) (TaskItem, error)
}
