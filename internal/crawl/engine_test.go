package crawl

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineRunNormalizesResults(t *testing.T) {
	t.Parallel()

	transport := &scriptedTransport{replies: []searchReply{{items: []RawItem{
		{IDStr: "1", Text: "first", LikeCount: int64Ptr(2)},
		{IDStr: "2", FullText: "second"},
	}}}}
	client := NewClient(transport, &fakeClock{}, nil)
	engine := NewEngine(client, &fakeClock{}, nil)

	keyword := Keyword{ID: "kw-1", Query: "coffee", Language: "en"}
	posts, err := engine.Run(context.Background(), keyword, 5)
	require.NoError(t, err)
	require.Len(t, posts, 2)

	assert.Equal(t, "kw-1", posts[0].KeywordID)
	assert.Equal(t, "first", posts[0].Text)
	assert.Equal(t, int64(2), posts[0].LikeCount)
	assert.Equal(t, "second", posts[1].Text)
}

func TestEngineRunUsesDefaultLimit(t *testing.T) {
	t.Parallel()

	transport := &scriptedTransport{}
	client := NewClient(transport, &fakeClock{}, nil)
	engine := NewEngine(client, &fakeClock{}, nil, WithDefaultLimit(10))

	_, err := engine.Run(context.Background(), Keyword{Query: "coffee", Language: "en"}, 0)
	require.NoError(t, err)

	calls := transport.searchCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, 10, calls[0].limit)
}

func TestEngineRunZeroResultsIsSuccess(t *testing.T) {
	t.Parallel()

	transport := &scriptedTransport{}
	client := NewClient(transport, &fakeClock{}, nil)
	archiver := &recordingArchiver{}
	engine := NewEngine(client, &fakeClock{}, nil, WithArchiver(archiver))

	posts, err := engine.Run(context.Background(), Keyword{ID: "kw-1", Query: "coffee", Language: "en"}, 5)
	require.NoError(t, err)
	assert.Empty(t, posts)
	assert.Empty(t, archiver.paths(), "empty payloads are not archived")
}

func TestEngineRunArchivesRawPayload(t *testing.T) {
	t.Parallel()

	items := []RawItem{{IDStr: "1", Text: "raw"}}
	transport := &scriptedTransport{replies: []searchReply{{items: items}}}
	client := NewClient(transport, &fakeClock{}, nil)
	archiver := &recordingArchiver{}
	engine := NewEngine(client, &fakeClock{}, nil, WithArchiver(archiver))

	_, err := engine.Run(context.Background(), Keyword{ID: "kw-1", Query: "coffee", Language: "en"}, 5)
	require.NoError(t, err)

	paths := archiver.paths()
	require.Len(t, paths, 1)
	assert.True(t, strings.HasPrefix(paths[0], "raw/kw-1/"), "path = %s", paths[0])

	var archived []RawItem
	require.NoError(t, json.Unmarshal(archiver.data(paths[0]), &archived))
	assert.Equal(t, items, archived)
}

func TestEngineRunArchiveFailureDoesNotFailCrawl(t *testing.T) {
	t.Parallel()

	transport := &scriptedTransport{replies: []searchReply{{items: []RawItem{{IDStr: "1"}}}}}
	client := NewClient(transport, &fakeClock{}, nil)
	archiver := &recordingArchiver{err: errors.New("bucket gone")}
	engine := NewEngine(client, &fakeClock{}, nil, WithArchiver(archiver))

	posts, err := engine.Run(context.Background(), Keyword{ID: "kw-1", Query: "coffee", Language: "en"}, 5)
	require.NoError(t, err)
	assert.Len(t, posts, 1)
}

func TestEngineRunPropagatesSearchErrors(t *testing.T) {
	t.Parallel()

	transport := &scriptedTransport{replies: []searchReply{{err: errors.New("boom")}}}
	client := NewClient(transport, &fakeClock{}, nil, WithBackoff(1, 1))
	engine := NewEngine(client, &fakeClock{}, nil)

	_, err := engine.Run(context.Background(), Keyword{Query: "coffee", Language: "en"}, 5)
	require.Error(t, err)
}

type recordingArchiver struct {
	mu    sync.Mutex
	blobs map[string][]byte
	err   error
}

func (a *recordingArchiver) Archive(_ context.Context, path string, data []byte) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return "", a.err
	}
	if a.blobs == nil {
		a.blobs = make(map[string][]byte)
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	a.blobs[path] = buf
	return "mem://" + path, nil
}

func (a *recordingArchiver) paths() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.blobs))
	for p := range a.blobs {
		out = append(out, p)
	}
	return out
}

func (a *recordingArchiver) data(path string) []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.blobs[path]
}
