// Package memory provides in-memory implementations of the book and review
// stores. They back the workflow tests: the mutex serializes the aggregate
// read-modify-write per store, matching the row-lock guarantee of the
// postgres implementation, and the fault-injection fields let tests force a
// failure at either workflow step.
package memory

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/bookshelf-labs/bookshelf/internal/domain"
	apperrors "github.com/bookshelf-labs/bookshelf/pkg/errors"
)

// BookStore is an in-memory book repository.
type BookStore struct {
	mu    sync.Mutex
	books map[int64]*domain.Book

	// RecomputeErr, when set, makes RecomputeAndStore fail without mutating
	// anything. GetErr does the same for GetByID.
	RecomputeErr error
	GetErr       error
}

// NewBookStore creates an empty in-memory book store.
func NewBookStore() *BookStore {
	return &BookStore{books: make(map[int64]*domain.Book)}
}

// Put inserts or replaces a book.
func (s *BookStore) Put(book *domain.Book) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *book
	s.books[book.ID] = &copied
}

// GetByID retrieves a book by id.
func (s *BookStore) GetByID(ctx context.Context, id int64) (*domain.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.GetErr != nil {
		return nil, s.GetErr
	}

	book, ok := s.books[id]
	if !ok {
		return nil, apperrors.NotFound("book", strconv.FormatInt(id, 10))
	}
	copied := *book
	return &copied, nil
}

// List returns a page of books ordered by id with the total count.
func (s *BookStore) List(ctx context.Context, page, perPage int) ([]domain.Book, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	books := make([]domain.Book, 0, len(s.books))
	for _, b := range s.books {
		books = append(books, *b)
	}
	sort.Slice(books, func(i, j int) bool { return books[i].ID < books[j].ID })

	total := len(books)
	if perPage <= 0 {
		perPage = total
	}
	offset := 0
	if page > 1 {
		offset = (page - 1) * perPage
	}
	if offset >= total {
		return []domain.Book{}, total, nil
	}
	end := min(offset+perPage, total)
	return books[offset:end], total, nil
}

// RecomputeAndStore folds one rating into the aggregate under the store
// mutex, giving the same per-book serial order the postgres row lock does.
func (s *BookStore) RecomputeAndStore(ctx context.Context, bookID int64, rating int) (*domain.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.RecomputeErr != nil {
		return nil, s.RecomputeErr
	}

	book, ok := s.books[bookID]
	if !ok {
		return nil, apperrors.NotFound("book", strconv.FormatInt(bookID, 10))
	}

	book.ApplyRating(rating)
	book.UpdatedAt = time.Now().UTC()
	copied := *book
	return &copied, nil
}

// ReviewStore is an in-memory review repository.
type ReviewStore struct {
	mu      sync.Mutex
	nextID  int64
	reviews map[int64]*domain.Review

	// CreateErr, when set, makes Create fail without persisting anything.
	CreateErr error
}

// NewReviewStore creates an empty in-memory review store.
func NewReviewStore() *ReviewStore {
	return &ReviewStore{reviews: make(map[int64]*domain.Review)}
}

// Create stores the review under a generated id.
func (s *ReviewStore) Create(ctx context.Context, review *domain.Review) (*domain.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.CreateErr != nil {
		return nil, s.CreateErr
	}

	if err := review.Validate(); err != nil {
		return nil, apperrors.Constraint(err.Error())
	}

	s.nextID++
	created := *review
	created.ID = s.nextID
	created.CreatedAt = time.Now().UTC()
	s.reviews[created.ID] = &created

	copied := created
	return &copied, nil
}

// ListByBookID returns all reviews for the book with the total count.
func (s *ReviewStore) ListByBookID(ctx context.Context, bookID int64, page, perPage int) ([]domain.Review, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var reviews []domain.Review
	for _, rv := range s.reviews {
		if rv.BookID == bookID {
			reviews = append(reviews, *rv)
		}
	}
	return reviews, len(reviews), nil
}

// GetSummary recomputes the aggregate from the stored reviews.
func (s *ReviewStore) GetSummary(ctx context.Context, bookID int64) (*domain.ReviewSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sum, count int
	for _, rv := range s.reviews {
		if rv.BookID == bookID {
			sum += rv.Rating
			count++
		}
	}

	summary := &domain.ReviewSummary{TotalCount: count}
	if count > 0 {
		summary.AverageRating = float64(sum) / float64(count)
	}
	return summary, nil
}

// Count returns the number of stored reviews across all books.
func (s *ReviewStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reviews)
}
