package crawl

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Session consumes live matches for exactly one keyword. Events are read
// from the subscription's channel and the callback is invoked
// synchronously, in arrival order. Tracking several keywords means
// opening several sessions.
type Session struct {
	keyword Keyword
	client  *Client
	clock   Clock
	onPost  func(Post)
	logger  *zap.Logger

	mu      sync.Mutex
	handle  StreamHandle
	stopped bool
	lastErr error

	done chan struct{}
}

// NewSession builds a Session that forwards each normalized post to onPost.
func NewSession(client *Client, clock Clock, keyword Keyword, onPost func(Post), logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		keyword: keyword,
		client:  client,
		clock:   clock,
		onPost:  onPost,
		logger:  logger.With(zap.String("keyword_id", keyword.ID), zap.String("query", keyword.Query)),
		done:    make(chan struct{}),
	}
}

// Keyword returns the subscribed keyword.
func (s *Session) Keyword() Keyword { return s.keyword }

// Start opens the subscription and launches the consumer loop. It returns
// once the subscription is open; the session then runs until Stop or an
// unrecoverable error.
func (s *Session) Start(ctx context.Context) error {
	handle, err := s.client.OpenStream(ctx, s.keyword.Query, s.keyword.Language)
	if err != nil {
		close(s.done)
		return err
	}
	if !s.adopt(handle) {
		close(s.done)
		return fmt.Errorf("session for %q already stopped", s.keyword.Query)
	}
	s.logger.Info("stream session started")
	go s.consume(ctx, handle)
	return nil
}

// Stop closes the subscription immediately. Events still in flight are
// discarded; calling Stop twice is safe.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	if s.handle != nil {
		if err := s.handle.Close(); err != nil {
			s.logger.Warn("close stream handle", zap.Error(err))
		}
	}
}

// Done is closed once the consumer loop has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err reports the error that terminated the session, nil after a clean stop.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Session) consume(ctx context.Context, handle StreamHandle) {
	defer close(s.done)

	backoff := s.client.BackoffState()
	for {
		if s.drain(handle) {
			// The subscription was healthy enough to deliver; start the
			// reconnect budget over.
			backoff = s.client.BackoffState()
		}
		if s.isStopped() || ctx.Err() != nil {
			return
		}

		err := handle.Err()
		if err == nil {
			s.logger.Info("stream ended")
			return
		}
		if !IsRateLimit(err) {
			s.terminate(fmt.Errorf("stream %q: %w", s.keyword.Query, err))
			return
		}

		// Rate limit is the one recoverable stream error: keep the session
		// alive and reconnect with backoff.
		next, ok := s.reconnect(ctx, &backoff, err)
		if !ok {
			return
		}
		handle = next
	}
}

// drain consumes events until the handle's channel closes, reporting
// whether any event was delivered.
func (s *Session) drain(handle StreamHandle) bool {
	delivered := false
	for event := range handle.Events() {
		delivered = true
		if s.isStopped() {
			continue
		}
		switch event.Kind {
		case EventNotice:
			// Control/limit notices are observed, never normalized or forwarded.
			TotalStreamNotices.Inc()
			s.logger.Info("limit notice received", zap.ByteString("notice", event.Notice))
		case EventPost:
			TotalStreamEvents.Inc()
			post := Normalize(s.keyword, event.Item)
			s.logger.Debug("stream post received", zap.String("source_id", post.SourceID))
			s.onPost(post)
		}
	}
	return delivered
}

func (s *Session) reconnect(ctx context.Context, backoff *BackoffState, cause error) (StreamHandle, bool) {
	for {
		wait, ok := backoff.Wait()
		if !ok {
			s.terminate(fmt.Errorf("stream %q: %w", s.keyword.Query, ErrBackoffExceeded))
			return nil, false
		}
		s.logger.Info("stream rate limited, backing off",
			zap.Duration("wait", wait),
			zap.Int("attempt", backoff.Attempts),
			zap.Error(cause),
		)
		if err := s.clock.Sleep(ctx, wait); err != nil {
			s.terminate(err)
			return nil, false
		}
		if s.isStopped() {
			return nil, false
		}

		TotalStreamReconnects.Inc()
		handle, err := s.client.OpenStream(ctx, s.keyword.Query, s.keyword.Language)
		if err == nil {
			if !s.adopt(handle) {
				return nil, false
			}
			s.logger.Info("stream reconnected")
			return handle, true
		}
		if !IsRateLimit(err) {
			s.terminate(err)
			return nil, false
		}
		cause = err
	}
}

// adopt installs the handle as the session's current subscription,
// closing it instead when the session was stopped concurrently.
func (s *Session) adopt(handle StreamHandle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		_ = handle.Close()
		return false
	}
	s.handle = handle
	return true
}

func (s *Session) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

func (s *Session) terminate(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stopped {
		s.lastErr = err
	}
	s.logger.Error("stream session terminated", zap.Error(err))
}
