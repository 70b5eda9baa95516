package dispatcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentipulse/twitter-crawler/internal/crawl"
	storememory "github.com/sentipulse/twitter-crawler/internal/store/memory"
)

func newTestDispatcher(t *testing.T, transport *stubTransport, keywords crawl.KeywordSource, sink crawl.Sink) *Dispatcher {
	t.Helper()
	clock := &stubClock{}
	client := crawl.NewClient(transport, clock, nil)
	engine := crawl.NewEngine(client, clock, nil, crawl.WithDefaultLimit(10))
	return New(engine, client, clock, keywords, sink, nil)
}

func TestRunCrawlBatchIsolatesKeywordFailures(t *testing.T) {
	t.Parallel()

	keywords := storememory.NewKeywordStore(2)
	keywords.Add(crawl.Keyword{ID: "kw-1", Query: "coffee", Language: "en"})
	keywords.Add(crawl.Keyword{ID: "kw-2", Query: "kaffee", Language: "xx"})
	keywords.Add(crawl.Keyword{ID: "kw-3", Query: "cafe", Language: "es"})

	transport := &stubTransport{itemsByQuery: map[string][]crawl.RawItem{
		"coffee": {{IDStr: "100", Text: "coffee post"}},
		"cafe":   {{IDStr: "200", Text: "cafe post"}},
	}}
	posts := storememory.NewPostStore()

	d := newTestDispatcher(t, transport, keywords, posts)
	require.NoError(t, d.RunCrawlBatch(context.Background()))

	// The unsupported-language keyword fails alone; its neighbors survive.
	stored := posts.Posts()
	require.Len(t, stored, 2)
	assert.Equal(t, "kw-1", stored[0].KeywordID)
	assert.Equal(t, "kw-3", stored[1].KeywordID)
}

func TestRunSingleValidatesInput(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher(t, &stubTransport{}, storememory.NewKeywordStore(10), storememory.NewPostStore())

	_, err := d.RunSingle(context.Background(), "   ", "en", 5)
	require.ErrorIs(t, err, crawl.ErrInvalidParameter)

	_, err = d.RunSingle(context.Background(), "coffee", "xx", 5)
	var langErr *crawl.UnsupportedLanguageError
	require.ErrorAs(t, err, &langErr)
}

func TestRunSingleCrawlsUnknownKeywordEphemerally(t *testing.T) {
	t.Parallel()

	transport := &stubTransport{itemsByQuery: map[string][]crawl.RawItem{
		"solar": {{IDStr: "1", Text: "solar post"}},
	}}
	posts := storememory.NewPostStore()
	d := newTestDispatcher(t, transport, storememory.NewKeywordStore(10), posts)

	got, err := d.RunSingle(context.Background(), "solar", "en", 5)
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Empty(t, got[0].KeywordID, "unknown keywords crawl without a tracked id")
	assert.NotEmpty(t, got[0].ID, "persisted posts carry the assigned id")
}

func TestRunSingleUsesTrackedKeyword(t *testing.T) {
	t.Parallel()

	keywords := storememory.NewKeywordStore(10)
	keywords.Add(crawl.Keyword{ID: "kw-9", Query: "solar", Language: "en"})
	transport := &stubTransport{itemsByQuery: map[string][]crawl.RawItem{
		"solar": {{IDStr: "1", Text: "solar post"}},
	}}
	posts := storememory.NewPostStore()
	d := newTestDispatcher(t, transport, keywords, posts)

	got, err := d.RunSingle(context.Background(), "solar", "en", 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "kw-9", got[0].KeywordID)
}

func TestRunSingleReturnsProducedPostsOnPersistFailure(t *testing.T) {
	t.Parallel()

	transport := &stubTransport{itemsByQuery: map[string][]crawl.RawItem{
		"solar": {{IDStr: "1"}, {IDStr: "2"}},
	}}
	sink := &failingSink{failAfter: 1}
	d := newTestDispatcher(t, transport, storememory.NewKeywordStore(10), sink)

	got, err := d.RunSingle(context.Background(), "solar", "en", 5)
	require.Error(t, err)
	assert.Len(t, got, 1, "posts persisted before the failure are still reported")
}

func TestRunStreamBatchStartsSessionPerKeyword(t *testing.T) {
	t.Parallel()

	keywords := storememory.NewKeywordStore(10)
	keywords.Add(crawl.Keyword{ID: "kw-1", Query: "coffee", Language: "en"})
	keywords.Add(crawl.Keyword{ID: "kw-2", Query: "tea", Language: "en"})

	transport := &stubTransport{streamEvents: map[string][]crawl.StreamEvent{
		"coffee": {{Kind: crawl.EventPost, Item: crawl.RawItem{IDStr: "1", Text: "coffee"}}},
		"tea":    {{Kind: crawl.EventPost, Item: crawl.RawItem{IDStr: "2", Text: "tea"}}},
	}}
	posts := storememory.NewPostStore()
	d := newTestDispatcher(t, transport, keywords, posts)

	require.NoError(t, d.RunStreamBatch(context.Background()))
	require.Len(t, d.Sessions(), 2)

	require.Eventually(t, func() bool {
		return len(posts.Posts()) == 2
	}, 2*time.Second, 10*time.Millisecond)

	d.StopAll()
	assert.Empty(t, d.Sessions())
}

func TestSessionsDropTerminatedSessions(t *testing.T) {
	t.Parallel()

	keywords := storememory.NewKeywordStore(10)
	keywords.Add(crawl.Keyword{ID: "kw-1", Query: "coffee", Language: "en"})
	keywords.Add(crawl.Keyword{ID: "kw-2", Query: "tea", Language: "en"})

	transport := &stubTransport{streamErrors: map[string]error{
		"coffee": errors.New("connection reset"),
	}}
	d := newTestDispatcher(t, transport, keywords, storememory.NewPostStore())

	require.NoError(t, d.RunStreamBatch(context.Background()))

	// The fatally-failed session prunes itself; the healthy one stays.
	require.Eventually(t, func() bool {
		return len(d.Sessions()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "tea", d.Sessions()[0].Keyword().Query)

	d.StopAll()
	assert.Empty(t, d.Sessions())
}

// --- fakes ---

type stubClock struct{}

func (stubClock) Now() time.Time { return time.Unix(1700000000, 0).UTC() }

func (stubClock) Sleep(context.Context, time.Duration) error { return nil }

// stubTransport serves canned results per query. Stream handles deliver
// their scripted events and then stay open until closed, unless a stream
// error is scripted, in which case the handle ends with that error.
type stubTransport struct {
	mu           sync.Mutex
	itemsByQuery map[string][]crawl.RawItem
	streamEvents map[string][]crawl.StreamEvent
	streamErrors map[string]error
}

func (s *stubTransport) Search(_ context.Context, query, _ string, _ int) ([]crawl.RawItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.itemsByQuery[query], nil
}

func (s *stubTransport) OpenStream(_ context.Context, query, _ string) (crawl.StreamHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := s.streamEvents[query]
	h := &stubHandle{
		events: make(chan crawl.StreamEvent, len(events)+1),
		err:    s.streamErrors[query],
	}
	for _, e := range events {
		h.events <- e
	}
	if h.err != nil {
		h.closed = true
		close(h.events)
	}
	return h, nil
}

type stubHandle struct {
	events chan crawl.StreamEvent
	err    error
	mu     sync.Mutex
	closed bool
}

func (h *stubHandle) Events() <-chan crawl.StreamEvent { return h.events }

func (h *stubHandle) Err() error { return h.err }

func (h *stubHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.closed {
		h.closed = true
		close(h.events)
	}
	return nil
}

type failingSink struct {
	mu        sync.Mutex
	persisted int
	failAfter int
}

func (s *failingSink) Persist(_ context.Context, post crawl.Post) (crawl.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.persisted >= s.failAfter {
		return crawl.Post{}, errors.New("sink unavailable")
	}
	s.persisted++
	post.ID = "p-1"
	return post, nil
}
