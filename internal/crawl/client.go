package crawl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Backoff defaults. Waits start at one second and double on every
// rate-limit signal; once the cumulative wait would pass the ceiling the
// request fails fatally instead of waiting further.
const (
	DefaultBackoffInitial = 1 * time.Second
	DefaultBackoffCeiling = 3600 * time.Second
)

// BackoffState carries the retry state for a single logical request. A
// fresh state is created per request and discarded on success or once the
// ceiling is exceeded.
type BackoffState struct {
	Next     time.Duration
	Total    time.Duration
	Ceiling  time.Duration
	Attempts int
}

// NewBackoffState returns a state starting at initial with the given
// cumulative ceiling. Zero values select the defaults.
func NewBackoffState(initial, ceiling time.Duration) BackoffState {
	if initial <= 0 {
		initial = DefaultBackoffInitial
	}
	if ceiling <= 0 {
		ceiling = DefaultBackoffCeiling
	}
	return BackoffState{Next: initial, Ceiling: ceiling}
}

// Wait returns the duration to sleep before the next attempt and advances
// the state. It returns false when the cumulative wait would exceed the
// ceiling; the caller must then fail with ErrBackoffExceeded.
func (b *BackoffState) Wait() (time.Duration, bool) {
	if b.Total+b.Next > b.Ceiling {
		return 0, false
	}
	wait := b.Next
	b.Total += wait
	b.Next *= 2
	b.Attempts++
	return wait, true
}

// Client executes search requests against a rate-limited transport,
// owning the backoff state machine for each logical request.
type Client struct {
	transport      Transport
	clock          Clock
	logger         *zap.Logger
	backoffInitial time.Duration
	backoffCeiling time.Duration
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithBackoff overrides the initial wait and cumulative ceiling.
func WithBackoff(initial, ceiling time.Duration) ClientOption {
	return func(c *Client) {
		c.backoffInitial = initial
		c.backoffCeiling = ceiling
	}
}

// NewClient constructs a Client around the given transport.
func NewClient(transport Transport, clock Clock, logger *zap.Logger, opts ...ClientOption) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		transport:      transport,
		clock:          clock,
		logger:         logger,
		backoffInitial: DefaultBackoffInitial,
		backoffCeiling: DefaultBackoffCeiling,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search executes one logical search request, retrying transient
// transport failures with exponential backoff in a bounded loop. The
// language precondition is checked before any network call; limit zero
// means unbounded.
func (c *Client) Search(ctx context.Context, query, language string, limit int) ([]RawItem, error) {
	if !IsSupportedLanguage(language) {
		return nil, &UnsupportedLanguageError{Language: language}
	}

	state := NewBackoffState(c.backoffInitial, c.backoffCeiling)
	for {
		TotalSearchRequests.Inc()
		items, err := c.transport.Search(ctx, query, language, limit)
		if err == nil {
			return items, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("search %q: %w", query, err)
		}

		wait, ok := state.Wait()
		if !ok {
			TotalBackoffExhausted.Inc()
			c.logger.Error("backoff ceiling reached, abandoning request",
				zap.String("query", query),
				zap.Int("attempts", state.Attempts),
				zap.Duration("waited", state.Total),
				zap.Error(err),
			)
			return nil, fmt.Errorf("search %q: %w", query, ErrBackoffExceeded)
		}

		TotalRateLimitHits.Inc()
		c.logger.Info("transport failure, backing off",
			zap.String("query", query),
			zap.Duration("wait", wait),
			zap.Int("attempt", state.Attempts),
			zap.Bool("rate_limited", IsRateLimit(err)),
			zap.Error(err),
		)
		if serr := c.clock.Sleep(ctx, wait); serr != nil {
			return nil, fmt.Errorf("search %q: %w", query, serr)
		}
	}
}

// OpenStream opens a live subscription for the query after checking the
// language precondition. Reconnect policy belongs to the Session, not here.
func (c *Client) OpenStream(ctx context.Context, query, language string) (StreamHandle, error) {
	if !IsSupportedLanguage(language) {
		return nil, &UnsupportedLanguageError{Language: language}
	}
	handle, err := c.transport.OpenStream(ctx, query, language)
	if err != nil {
		return nil, fmt.Errorf("open stream %q: %w", query, err)
	}
	return handle, nil
}

// BackoffState returns a fresh state using the client's settings. Stream
// sessions use it for their reconnect policy.
func (c *Client) BackoffState() BackoffState {
	return NewBackoffState(c.backoffInitial, c.backoffCeiling)
}
