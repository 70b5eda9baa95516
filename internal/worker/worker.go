// Package worker implements the queue-fed crawl task executors.
package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/sentipulse/twitter-crawler/internal/dispatcher"
	"github.com/sentipulse/twitter-crawler/internal/queue"
)

// Worker pulls crawl tasks off the queue and executes them one at a time.
// Task failures are logged and absorbed; the loop only stops when the
// context ends.
type Worker struct {
	id         int
	queue      queue.Queue
	dispatcher *dispatcher.Dispatcher
	logger     *zap.Logger
}

// New creates a Worker.
func New(id int, q queue.Queue, d *dispatcher.Dispatcher, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		id:         id,
		queue:      q,
		dispatcher: d,
		logger:     logger.With(zap.Int("worker_id", id)),
	}
}

// Run processes tasks until the context is canceled.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("worker started")
	for {
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				w.logger.Info("worker stopped")
				return
			}
			w.logger.Error("dequeue task failed", zap.Error(err))
			continue
		}
		w.process(ctx, item)
	}
}

func (w *Worker) process(ctx context.Context, item queue.TaskItem) {
	w.logger.Info("crawl task received",
		zap.String("keyword", item.Keyword),
		zap.String("language", item.Language),
		zap.Int("limit", item.Limit),
	)
	posts, err := w.dispatcher.RunSingle(ctx, item.Keyword, item.Language, item.Limit)
	if err != nil {
		w.logger.Error("crawl task failed",
			zap.String("keyword", item.Keyword),
			zap.String("language", item.Language),
			zap.Error(err),
		)
		return
	}
	w.logger.Info("crawl task finished",
		zap.String("keyword", item.Keyword),
		zap.Int("results", len(posts)),
		zap.Bool("produced", len(posts) > 0),
	)
}

// Pool runs a fixed number of workers over the same queue.
type Pool struct {
	workers []*Worker
}

// NewPool creates size workers sharing the queue and dispatcher.
func NewPool(size int, q queue.Queue, d *dispatcher.Dispatcher, logger *zap.Logger) *Pool {
	if size <= 0 {
		size = 1
	}
	p := &Pool{}
	for i := 0; i < size; i++ {
		p.workers = append(p.workers, New(i+1, q, d, logger))
	}
	return p
}

// Run starts every worker and blocks until all of them return.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range p.workers {
		wg.Add(1)
		go func(w *Worker) {
			defer wg.Done()
			w.Run(ctx)
		}(w)
	}
	wg.Wait()
}
