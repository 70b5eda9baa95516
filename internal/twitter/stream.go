package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sentipulse/twitter-crawler/internal/crawl"
)

// OpenStream dials the streaming endpoint for one keyword and returns a
// handle whose channel carries decoded events. The caller owns reconnect
// policy; a handle represents a single connection.
func (t *Transport) OpenStream(ctx context.Context, query, language string) (crawl.StreamHandle, error) {
	if t.streamURL == "" {
		return nil, fmt.Errorf("stream url is not configured")
	}
	endpoint, err := url.Parse(t.streamURL)
	if err != nil {
		return nil, fmt.Errorf("parse stream url: %w", err)
	}
	params := url.Values{}
	params.Set("track", query)
	params.Set("language", language)
	endpoint.RawQuery = params.Encode()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+t.creds.AccessToken)
	header.Set("X-Api-Key", t.creds.APIKey)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, endpoint.String(), header)
	if err != nil {
		if resp != nil {
			if resp.StatusCode == statusEnhanceYourCalm || resp.StatusCode == http.StatusTooManyRequests {
				return nil, &crawl.RateLimitError{StatusCode: resp.StatusCode}
			}
			return nil, fmt.Errorf("dial stream: status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial stream: %w", err)
	}

	h := &streamHandle{
		conn:   conn,
		events: make(chan crawl.StreamEvent),
		logger: t.logger.With(zap.String("query", query)),
	}
	go h.readLoop()
	return h, nil
}

// streamHandle adapts one websocket connection to the stream handle
// contract: decoded events on a channel, a terminal error afterwards.
type streamHandle struct {
	conn   *websocket.Conn
	events chan crawl.StreamEvent
	logger *zap.Logger

	mu     sync.Mutex
	err    error
	closed bool
}

func (h *streamHandle) Events() <-chan crawl.StreamEvent {
	return h.events
}

func (h *streamHandle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

func (h *streamHandle) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()
	return h.conn.Close()
}

func (h *streamHandle) readLoop() {
	defer close(h.events)
	for {
		_, message, err := h.conn.ReadMessage()
		if err != nil {
			h.setErr(h.classifyReadError(err))
			return
		}
		event, ok := h.decode(message)
		if !ok {
			continue
		}
		h.events <- event
	}
}

// decode classifies a wire message: payloads carrying a "limit" member
// are control notices; everything else should be a post item.
func (h *streamHandle) decode(message []byte) (crawl.StreamEvent, bool) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(message, &probe); err != nil {
		crawl.TotalItemsDropped.Inc()
		h.logger.Warn("dropping unparseable stream message", zap.Error(err))
		return crawl.StreamEvent{}, false
	}
	if _, ok := probe["limit"]; ok {
		return crawl.StreamEvent{Kind: crawl.EventNotice, Notice: json.RawMessage(message)}, true
	}
	var item crawl.RawItem
	if err := json.Unmarshal(message, &item); err != nil {
		crawl.TotalItemsDropped.Inc()
		h.logger.Warn("dropping malformed stream item", zap.Error(err))
		return crawl.StreamEvent{}, false
	}
	return crawl.StreamEvent{Kind: crawl.EventPost, Item: item}, true
}

func (h *streamHandle) classifyReadError(err error) error {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		// Deliberate shutdown ends the stream cleanly.
		return nil
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return nil
	}
	if websocket.IsCloseError(err, websocket.CloseTryAgainLater) {
		return &crawl.RateLimitError{StatusCode: statusEnhanceYourCalm}
	}
	return fmt.Errorf("read stream: %w", err)
}

func (h *streamHandle) setErr(err error) {
	h.mu.Lock()
	h.err = err
	h.mu.Unlock()
}
