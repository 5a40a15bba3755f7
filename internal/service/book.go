// Package service holds the read-side application services.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bookshelf-labs/bookshelf/internal/domain"
	"github.com/bookshelf-labs/bookshelf/internal/repository"
	"github.com/bookshelf-labs/bookshelf/pkg/logger"
)

// DefaultBookCacheTTL bounds how stale a cached book can get. The review
// workflow invalidates on write, so the TTL only matters when invalidation
// is missed.
const DefaultBookCacheTTL = 5 * time.Minute

// BookService serves book reads through a Redis read-through cache. A nil
// cache client disables caching entirely.
type BookService struct {
	repo   repository.BookRepository
	cache  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewBookService creates a book read service. cache may be nil.
func NewBookService(repo repository.BookRepository, cache *redis.Client, ttl time.Duration, log *slog.Logger) *BookService {
	if ttl <= 0 {
		ttl = DefaultBookCacheTTL
	}
	return &BookService{repo: repo, cache: cache, ttl: ttl, logger: log}
}

func bookCacheKey(id int64) string {
	return fmt.Sprintf("book:%d", id)
}

// GetByID returns a book, serving from cache when possible. Cache failures
// degrade to a repository read; they never fail the request.
func (s *BookService) GetByID(ctx context.Context, id int64) (*domain.Book, error) {
	if s.cache != nil {
		data, err := s.cache.Get(ctx, bookCacheKey(id)).Bytes()
		if err == nil {
			var book domain.Book
			if err := json.Unmarshal(data, &book); err == nil {
				return &book, nil
			}
			// Corrupt entry; drop it and fall through to the repository.
			s.cache.Del(ctx, bookCacheKey(id))
		} else if err != redis.Nil {
			logger.WithContext(ctx, s.logger).WarnContext(ctx, "book cache read failed",
				slog.Int64("book_id", id),
				slog.String("error", err.Error()),
			)
		}
	}

	book, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.store(ctx, book)
	return book, nil
}

// List returns a page of books with the total count. Listing is uncached;
// the window function count makes page results cheap and always fresh.
func (s *BookService) List(ctx context.Context, page, perPage int) ([]domain.Book, int, error) {
	return s.repo.List(ctx, page, perPage)
}

// Invalidate drops the cached entry for a book. Called after every
// successful aggregate update so reads see the new rating immediately.
func (s *BookService) Invalidate(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, bookCacheKey(id)).Err(); err != nil {
		logger.WithContext(ctx, s.logger).WarnContext(ctx, "book cache invalidation failed",
			slog.Int64("book_id", id),
			slog.String("error", err.Error()),
		)
	}
}

func (s *BookService) store(ctx context.Context, book *domain.Book) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(book)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, bookCacheKey(book.ID), data, s.ttl).Err(); err != nil {
		logger.WithContext(ctx, s.logger).WarnContext(ctx, "book cache write failed",
			slog.Int64("book_id", book.ID),
			slog.String("error", err.Error()),
		)
	}
}
