package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sentipulse/twitter-crawler/internal/crawl"
	"github.com/sentipulse/twitter-crawler/internal/dispatcher"
	memqueue "github.com/sentipulse/twitter-crawler/internal/queue/memory"
	storememory "github.com/sentipulse/twitter-crawler/internal/store/memory"
)

func newTestServer(t *testing.T, logger *zap.Logger) (*Server, *storememory.PostStore, *memqueue.Queue) {
	t.Helper()

	transport := &stubTransport{itemsByQuery: map[string][]crawl.RawItem{
		"coffee": {{IDStr: "100", Text: "coffee post"}},
	}}
	clock := stubClock{}
	client := crawl.NewClient(transport, clock, nil)
	engine := crawl.NewEngine(client, clock, nil, crawl.WithDefaultLimit(10))
	posts := storememory.NewPostStore()
	d := dispatcher.New(engine, client, clock, storememory.NewKeywordStore(10), posts, nil)
	tasks := memqueue.NewQueue(4)
	return NewServer(d, tasks, logger), posts, tasks
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	server, _, _ := newTestServer(t, nil)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	}
}

func TestListLanguages(t *testing.T) {
	t.Parallel()

	server, _, _ := newTestServer(t, nil)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/languages")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Languages []string `json:"languages"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body.Languages, "en")
	assert.Contains(t, body.Languages, "ja")
}

func TestSubmitCrawlSynchronous(t *testing.T) {
	t.Parallel()

	server, posts, _ := newTestServer(t, nil)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/v1/crawls", "application/json",
		strings.NewReader(`{"keyword":"coffee","language":"en","limit":5}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Posts    []crawl.Post `json:"posts"`
		Produced bool         `json:"produced"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.Produced)
	require.Len(t, body.Posts, 1)
	assert.Equal(t, "100", body.Posts[0].SourceID)
	assert.Len(t, posts.Posts(), 1)
}

func TestSubmitCrawlValidation(t *testing.T) {
	t.Parallel()

	server, _, _ := newTestServer(t, nil)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	cases := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"missing keyword", `{"language":"en"}`},
		{"unsupported language", `{"keyword":"coffee","language":"xx"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+"/v1/crawls", "application/json", strings.NewReader(tc.body))
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestSubmitCrawlAsyncEnqueues(t *testing.T) {
	t.Parallel()

	server, posts, tasks := newTestServer(t, nil)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/v1/crawls", "application/json",
		strings.NewReader(`{"keyword":"coffee","language":"en","limit":5,"async":true}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	assert.Empty(t, posts.Posts(), "async submissions do not crawl inline")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	item, err := tasks.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "coffee", item.Keyword)
	assert.Equal(t, "en", item.Language)
	assert.Equal(t, 5, item.Limit)
}

func TestRequestIDHeaderIsSet(t *testing.T) {
	t.Parallel()

	server, _, _ := newTestServer(t, nil)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestAccessLogCarriesRequestID(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	server, _, _ := newTestServer(t, zap.New(core))
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	reqID := resp.Header.Get("X-Request-ID")
	require.NotEmpty(t, reqID)

	require.Eventually(t, func() bool {
		return logs.FilterMessage("request completed").Len() == 1
	}, 2*time.Second, 10*time.Millisecond)

	entry := logs.FilterMessage("request completed").All()[0]
	assert.Equal(t, reqID, entry.ContextMap()["request_id"])
}

// --- fakes ---

type stubClock struct{}

func (stubClock) Now() time.Time { return time.Unix(1700000000, 0).UTC() }

func (stubClock) Sleep(context.Context, time.Duration) error { return nil }

type stubTransport struct {
	mu           sync.Mutex
	itemsByQuery map[string][]crawl.RawItem
}

func (s *stubTransport) Search(_ context.Context, query, _ string, _ int) ([]crawl.RawItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.itemsByQuery[query], nil
}

func (s *stubTransport) OpenStream(context.Context, string, string) (crawl.StreamHandle, error) {
	return nil, context.Canceled
}
