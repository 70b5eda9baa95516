// Package app initializes and holds long-lived application services,
// acting as the dependency injection container. Every component receives
// its collaborators explicitly; nothing reads global state.
package app

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	archivegcs "github.com/sentipulse/twitter-crawler/internal/archive/gcs"
	"github.com/sentipulse/twitter-crawler/internal/clock/system"
	"github.com/sentipulse/twitter-crawler/internal/config"
	"github.com/sentipulse/twitter-crawler/internal/crawl"
	"github.com/sentipulse/twitter-crawler/internal/dispatcher"
	publisherpubsub "github.com/sentipulse/twitter-crawler/internal/publisher/pubsub"
	"github.com/sentipulse/twitter-crawler/internal/queue"
	queuememory "github.com/sentipulse/twitter-crawler/internal/queue/memory"
	queuepubsub "github.com/sentipulse/twitter-crawler/internal/queue/pubsub"
	"github.com/sentipulse/twitter-crawler/internal/sink"
	storememory "github.com/sentipulse/twitter-crawler/internal/store/memory"
	storepostgres "github.com/sentipulse/twitter-crawler/internal/store/postgres"
	"github.com/sentipulse/twitter-crawler/internal/twitter"
)

// App holds the shared, long-lived services for the application.
type App struct {
	Config     config.Config
	Logger     *zap.Logger
	Clock      *system.Clock
	Client     *crawl.Client
	Engine     *crawl.Engine
	Keywords   crawl.KeywordSource
	Sink       crawl.Sink
	Dispatcher *dispatcher.Dispatcher
	Tasks      queue.Queue

	closers []func() error
}

// New builds the full component graph from configuration. It fails fast
// if any required service cannot be initialized.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger, Clock: system.New()}

	transport, err := twitter.NewTransport(twitter.Config{
		BaseURL:   cfg.Twitter.BaseURL,
		StreamURL: cfg.Twitter.StreamURL,
		Timeout:   cfg.Twitter.Timeout(),
		Credentials: twitter.Credentials{
			APIKey:            cfg.Twitter.APIKey,
			APIKeySecret:      cfg.Twitter.APIKeySecret,
			AccessToken:       cfg.Twitter.AccessToken,
			AccessTokenSecret: cfg.Twitter.AccessTokenSecret,
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize transport: %w", err)
	}

	a.Client = crawl.NewClient(transport, a.Clock, logger,
		crawl.WithBackoff(cfg.Crawler.BackoffInitial(), cfg.Crawler.BackoffCeiling()),
	)

	engineOpts := []crawl.EngineOption{crawl.WithDefaultLimit(cfg.Crawler.DefaultLimit)}
	if cfg.Storage.Bucket != "" {
		gcsClient, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("initialize storage client: %w", err)
		}
		a.closers = append(a.closers, gcsClient.Close)
		archiver, err := archivegcs.New(gcsClient, archivegcs.Config{
			Bucket: cfg.Storage.Bucket,
			Prefix: cfg.Storage.Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("initialize archiver: %w", err)
		}
		logger.Info("raw payload archiving enabled", zap.String("bucket", cfg.Storage.Bucket))
		engineOpts = append(engineOpts, crawl.WithArchiver(archiver))
	}
	a.Engine = crawl.NewEngine(a.Client, a.Clock, logger, engineOpts...)

	if err := a.initStores(ctx, cfg); err != nil {
		return nil, err
	}
	if err := a.initSink(ctx, cfg); err != nil {
		return nil, err
	}
	if err := a.initTasks(ctx, cfg); err != nil {
		return nil, err
	}

	a.Dispatcher = dispatcher.New(a.Engine, a.Client, a.Clock, a.Keywords, a.Sink, logger,
		dispatcher.WithBatchLimit(cfg.Crawler.BatchLimit),
	)
	return a, nil
}

// initStores selects Postgres stores when a DSN is configured, falling
// back to in-memory stores for local runs.
func (a *App) initStores(ctx context.Context, cfg config.Config) error {
	if cfg.DB.DSN == "" {
		a.Logger.Info("using in-memory stores, posts will not survive restarts")
		a.Keywords = storememory.NewKeywordStore(cfg.DB.KeywordBatchSize)
		a.Sink = storememory.NewPostStore()
		return nil
	}
	pool, err := storepostgres.Connect(ctx, storepostgres.Config{
		DSN:      cfg.DB.DSN,
		MaxConns: int32(cfg.DB.MaxConns),
		MinConns: int32(cfg.DB.MinConns),
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	a.closers = append(a.closers, func() error {
		pool.Close()
		return nil
	})
	a.Keywords = storepostgres.NewKeywordStore(pool, cfg.DB.KeywordBatchSize)
	a.Sink = storepostgres.NewPostStore(pool)
	return nil
}

// initSink layers the processing topic on top of the store sink when a
// post topic is configured, so downstream consumers see every post the
// store accepts.
func (a *App) initSink(ctx context.Context, cfg config.Config) error {
	if cfg.PubSub.ProjectID == "" || cfg.PubSub.PostTopic == "" {
		return nil
	}
	pub, err := publisherpubsub.New(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return fmt.Errorf("initialize publisher: %w", err)
	}
	a.closers = append(a.closers, pub.Close)
	a.Logger.Info("post publishing enabled", zap.String("topic", cfg.PubSub.PostTopic))
	a.Sink = sink.NewMulti(a.Sink, sink.NewQueueSink(pub, cfg.PubSub.PostTopic))
	return nil
}

// initTasks selects the Pub/Sub task queue when configured, otherwise a
// bounded in-memory queue shared by the API and workers.
func (a *App) initTasks(ctx context.Context, cfg config.Config) error {
	if cfg.PubSub.ProjectID != "" && cfg.PubSub.TaskTopic != "" && cfg.PubSub.TaskSubscription != "" {
		q, err := queuepubsub.New(ctx, queuepubsub.Config{
			ProjectID:    cfg.PubSub.ProjectID,
			Topic:        cfg.PubSub.TaskTopic,
			Subscription: cfg.PubSub.TaskSubscription,
			Buffer:       cfg.Crawler.QueueDepth,
		}, a.Logger)
		if err != nil {
			return fmt.Errorf("initialize task queue: %w", err)
		}
		a.closers = append(a.closers, q.Close)
		a.Tasks = q
		return nil
	}
	mq := queuememory.NewQueue(cfg.Crawler.QueueDepth)
	a.closers = append(a.closers, func() error {
		mq.Close()
		return nil
	})
	a.Tasks = mq
	return nil
}

// Close releases every service in reverse initialization order.
func (a *App) Close() error {
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
