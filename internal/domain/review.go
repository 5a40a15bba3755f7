package domain

import (
	"fmt"
	"time"
)

// Rating bounds for a review.
const (
	MinRating = 1
	MaxRating = 5
)

// Review represents a book review submitted by a user. Created exactly once
// per successful submission and immutable thereafter.
type Review struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	BookID    int64     `json:"book_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the review invariants the database also enforces.
func (r *Review) Validate() error {
	if r.Rating < MinRating || r.Rating > MaxRating {
		return fmt.Errorf("rating must be between %d and %d, got %d", MinRating, MaxRating, r.Rating)
	}
	if r.BookID <= 0 {
		return fmt.Errorf("book id must be positive, got %d", r.BookID)
	}
	if r.UserID <= 0 {
		return fmt.Errorf("user id must be positive, got %d", r.UserID)
	}
	return nil
}

// ReviewSummary contains aggregate review statistics for a book.
type ReviewSummary struct {
	AverageRating float64 `json:"average_rating"`
	TotalCount    int     `json:"total_count"`
}
