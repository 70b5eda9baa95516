package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentipulse/twitter-crawler/internal/crawl"
)

func TestFindKeywordReturnsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewKeywordStore(mock, 10)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, query, language, user_id FROM keywords WHERE query = $1 AND language = $2`)).
		WithArgs("coffee", "en").
		WillReturnRows(pgxmock.NewRows([]string{"id", "query", "language", "user_id"}).
			AddRow("kw-1", "coffee", "en", "user-1"))

	keyword, err := store.FindKeyword(context.Background(), "coffee", "en")
	require.NoError(t, err)
	assert.Equal(t, crawl.Keyword{ID: "kw-1", Query: "coffee", Language: "en", UserID: "user-1"}, keyword)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindKeywordMissMapsToNotFound(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewKeywordStore(mock, 10)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, query, language, user_id FROM keywords WHERE query = $1 AND language = $2`)).
		WithArgs("coffee", "en").
		WillReturnRows(pgxmock.NewRows([]string{"id", "query", "language", "user_id"}))

	_, err = store.FindKeyword(context.Background(), "coffee", "en")
	require.ErrorIs(t, err, crawl.ErrKeywordNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestKeywordCursorPagesByID(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewKeywordStore(mock, 2)
	listQuery := regexp.QuoteMeta(`SELECT id, query, language, user_id FROM keywords WHERE id > $1 ORDER BY id LIMIT $2`)

	mock.ExpectQuery(listQuery).
		WithArgs("", 2).
		WillReturnRows(pgxmock.NewRows([]string{"id", "query", "language", "user_id"}).
			AddRow("kw-1", "coffee", "en", "user-1").
			AddRow("kw-2", "tea", "en", "user-1"))
	mock.ExpectQuery(listQuery).
		WithArgs("kw-2", 2).
		WillReturnRows(pgxmock.NewRows([]string{"id", "query", "language", "user_id"}).
			AddRow("kw-3", "mate", "es", "user-2"))

	cursor, err := store.ListKeywords(context.Background())
	require.NoError(t, err)
	defer cursor.Close()

	batch, err := cursor.Next(context.Background())
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, "kw-1", batch[0].ID)

	batch, err = cursor.Next(context.Background())
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, "kw-3", batch[0].ID)

	// A short page ends the iteration without another query.
	batch, err = cursor.Next(context.Background())
	require.NoError(t, err)
	assert.Empty(t, batch)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPersistUpsertsAndReturnsID(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostStore(mock)
	createdAt := time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO posts (keyword_id, source_id, text, like_count, share_count, created_at)`)).
		WithArgs("kw-1", "100", "hello", int64(5), int64(0), createdAt).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("post-1"))

	post, err := store.Persist(context.Background(), crawl.Post{
		KeywordID: "kw-1",
		SourceID:  "100",
		Text:      "hello",
		LikeCount: 5,
		CreatedAt: createdAt,
	})
	require.NoError(t, err)
	assert.Equal(t, "post-1", post.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPersistPropagatesScanErrors(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostStore(mock)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO posts`)).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(assert.AnError)

	_, err = store.Persist(context.Background(), crawl.Post{KeywordID: "kw-1", SourceID: "100"})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
