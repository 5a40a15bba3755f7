package repository

import (
	"context"

	"github.com/bookshelf-labs/bookshelf/internal/domain"
)

// BookRepository defines book persistence operations.
type BookRepository interface {
	// GetByID retrieves a book by its identifier.
	GetByID(ctx context.Context, id int64) (*domain.Book, error)

	// List returns a page of books along with the total count.
	List(ctx context.Context, page, perPage int) ([]domain.Book, int, error)

	// RecomputeAndStore atomically folds one new rating into the book's
	// aggregate (average, count) and persists the result. The read-modify-
	// write is serialized per book id against concurrent callers.
	RecomputeAndStore(ctx context.Context, bookID int64, rating int) (*domain.Book, error)
}

// ReviewRepository defines review persistence operations.
type ReviewRepository interface {
	// Create inserts a review and returns it with the generated id and
	// creation timestamp filled in.
	Create(ctx context.Context, review *domain.Review) (*domain.Review, error)

	// ListByBookID returns a page of reviews for a book with the total count.
	ListByBookID(ctx context.Context, bookID int64, page, perPage int) ([]domain.Review, int, error)

	// GetSummary returns the average rating and review count computed from
	// the review rows themselves (used by reconciliation tooling, not by the
	// workflow hot path).
	GetSummary(ctx context.Context, bookID int64) (*domain.ReviewSummary, error)
}
