package domain

import "time"

// Book represents a catalogue entry. AverageRating and ReviewCount are a
// derived aggregate over all reviews for the book: averageRating must equal
// sum(ratings)/reviewCount (0 when reviewCount is 0) after every successful
// review workflow run. The aggregate is mutated only through the
// recompute-and-store path, never by the review path directly.
type Book struct {
	ID            int64      `json:"id"`
	Title         string     `json:"title"`
	Author        string     `json:"author"`
	AverageRating float64    `json:"average_rating"`
	ReviewCount   int        `json:"review_count"`
	PublishedAt   *time.Time `json:"published_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// ApplyRating folds one new rating into the aggregate:
// newAverage = (average*count + rating) / (count+1).
func (b *Book) ApplyRating(rating int) {
	newCount := b.ReviewCount + 1
	b.AverageRating = (b.AverageRating*float64(b.ReviewCount) + float64(rating)) / float64(newCount)
	b.ReviewCount = newCount
}
