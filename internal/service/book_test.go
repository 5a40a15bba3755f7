package service

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookshelf-labs/bookshelf/internal/domain"
	"github.com/bookshelf-labs/bookshelf/internal/repository/memory"
)

func newCachedService(t *testing.T) (*BookService, *memory.BookStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := memory.NewBookStore()
	svc := NewBookService(store, client, time.Minute, slog.New(slog.DiscardHandler))
	return svc, store, mr
}

func TestGetByIDCachesRepositoryHit(t *testing.T) {
	svc, store, mr := newCachedService(t)
	store.Put(&domain.Book{ID: 1, Title: "Piranesi", Author: "Susanna Clarke", AverageRating: 4.5, ReviewCount: 2})

	book, err := svc.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Piranesi", book.Title)

	require.True(t, mr.Exists("book:1"))

	// Serve the second read from cache even if the repository breaks.
	store.GetErr = assert.AnError
	cached, err := svc.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Piranesi", cached.Title)
	assert.InDelta(t, 4.5, cached.AverageRating, 1e-9)
}

func TestGetByIDMissesAfterInvalidate(t *testing.T) {
	svc, store, mr := newCachedService(t)
	store.Put(&domain.Book{ID: 1, Title: "Piranesi", AverageRating: 4.0, ReviewCount: 1})

	_, err := svc.GetByID(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, mr.Exists("book:1"))

	svc.Invalidate(context.Background(), 1)
	assert.False(t, mr.Exists("book:1"))

	// After invalidation the fresh aggregate is read and re-cached.
	store.Put(&domain.Book{ID: 1, Title: "Piranesi", AverageRating: 4.5, ReviewCount: 2})
	book, err := svc.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, book.ReviewCount)
}

func TestGetByIDEntryExpires(t *testing.T) {
	svc, store, mr := newCachedService(t)
	store.Put(&domain.Book{ID: 1, Title: "Piranesi"})

	_, err := svc.GetByID(context.Background(), 1)
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)
	assert.False(t, mr.Exists("book:1"))
}

func TestGetByIDCorruptEntryFallsThrough(t *testing.T) {
	svc, store, mr := newCachedService(t)
	store.Put(&domain.Book{ID: 1, Title: "Piranesi"})

	require.NoError(t, mr.Set("book:1", "{not json"))

	book, err := svc.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Piranesi", book.Title)
}

func TestNilCacheDisablesCaching(t *testing.T) {
	store := memory.NewBookStore()
	store.Put(&domain.Book{ID: 1, Title: "Piranesi"})
	svc := NewBookService(store, nil, time.Minute, slog.New(slog.DiscardHandler))

	book, err := svc.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Piranesi", book.Title)

	svc.Invalidate(context.Background(), 1)
}
