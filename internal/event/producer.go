// Package event publishes domain events to Kafka.
package event

import (
	"context"
	"fmt"
	"strconv"

	"github.com/bookshelf-labs/bookshelf/internal/domain"
	"github.com/bookshelf-labs/bookshelf/pkg/kafka"
	"github.com/bookshelf-labs/bookshelf/pkg/logger"
)

// Topic and event type constants for the review stream.
const (
	TopicReviews           = "bookshelf.reviews"
	EventTypeReviewCreated = "review.created"
	sourceName             = "bookshelf-api"
)

// ReviewCreatedData is the payload of a review.created event.
type ReviewCreatedData struct {
	ReviewID      int64   `json:"review_id"`
	BookID        int64   `json:"book_id"`
	UserID        int64   `json:"user_id"`
	Rating        int     `json:"rating"`
	AverageRating float64 `json:"average_rating"`
	ReviewCount   int     `json:"review_count"`
}

// Publisher emits review lifecycle events.
type Publisher struct {
	producer *kafka.Producer
}

// NewPublisher creates a Kafka-backed event publisher.
func NewPublisher(producer *kafka.Producer) *Publisher {
	return &Publisher{producer: producer}
}

// ReviewCreated publishes a review.created event keyed by book id, carrying
// the post-update aggregate so consumers need no extra lookup.
func (p *Publisher) ReviewCreated(ctx context.Context, review *domain.Review, book *domain.Book) error {
	evt, err := kafka.NewEvent(
		EventTypeReviewCreated,
		strconv.FormatInt(book.ID, 10),
		"book",
		sourceName,
		ReviewCreatedData{
			ReviewID:      review.ID,
			BookID:        review.BookID,
			UserID:        review.UserID,
			Rating:        review.Rating,
			AverageRating: book.AverageRating,
			ReviewCount:   book.ReviewCount,
		},
	)
	if err != nil {
		return fmt.Errorf("build review.created event: %w", err)
	}

	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		evt.WithCorrelationID(id)
	}

	return p.producer.Publish(ctx, TopicReviews, evt)
}
