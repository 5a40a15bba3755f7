// Package workflow implements the multi-step review submission flow: persist
// a review, then fold its rating into the book's stored aggregate. The two
// writes are not atomic with each other; a failure after the first write
// leaves the review in place and the aggregate stale, which the workflow
// reports as a partial success rather than rolling back.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/bookshelf-labs/bookshelf/internal/domain"
	apperrors "github.com/bookshelf-labs/bookshelf/pkg/errors"
	"github.com/bookshelf-labs/bookshelf/pkg/logger"
	"github.com/bookshelf-labs/bookshelf/pkg/tracing"
)

// OperationName is the root span name for one workflow invocation.
const OperationName = "MultiStepReviewBookUpdate"

// Child span names for the two workflow steps.
const (
	spanCreateReview   = "CreateReview"
	spanRecomputeBook  = "RecomputeBookAggregate"
	partialSuccessName = "partial_success"
)

// ReviewStore is the slice of review persistence the workflow needs.
type ReviewStore interface {
	Create(ctx context.Context, review *domain.Review) (*domain.Review, error)
}

// BookStore is the slice of book persistence the workflow needs.
type BookStore interface {
	GetByID(ctx context.Context, id int64) (*domain.Book, error)
	RecomputeAndStore(ctx context.Context, bookID int64, rating int) (*domain.Book, error)
}

// Notifier publishes a domain event after a fully successful run. Publish
// failures are logged and swallowed; eventing is best-effort.
type Notifier interface {
	ReviewCreated(ctx context.Context, review *domain.Review, book *domain.Book) error
}

// Input carries one review submission.
type Input struct {
	UserID  int64
	BookID  int64
	Rating  int
	Comment string
}

// Result is the outcome of a fully successful run: the persisted review and
// the book with its refreshed aggregate.
type Result struct {
	Review *domain.Review
	Book   *domain.Book
}

// Workflow orchestrates the review-then-aggregate sequence with its
// instrumentation contract.
type Workflow struct {
	reviews  ReviewStore
	books    BookStore
	runner   *tracing.SpanRunner
	metrics  Metrics
	notifier Notifier
	logger   *slog.Logger
}

// Option customizes a Workflow.
type Option func(*Workflow)

// WithNotifier attaches a post-success event publisher.
func WithNotifier(n Notifier) Option {
	return func(w *Workflow) { w.notifier = n }
}

// WithSpanRunner overrides the span runner; tests pass one bound to an
// in-memory exporter.
func WithSpanRunner(r *tracing.SpanRunner) Option {
	return func(w *Workflow) { w.runner = r }
}

// New creates a workflow over the given stores.
func New(reviews ReviewStore, books BookStore, m Metrics, log *slog.Logger, opts ...Option) *Workflow {
	w := &Workflow{
		reviews: reviews,
		books:   books,
		runner:  tracing.NewSpanRunner("bookshelf/workflow"),
		metrics: m,
		logger:  log,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Execute runs the workflow once. The request counter and duration histogram
// are recorded exactly once per call regardless of outcome; the error counter
// is recorded exactly once on failure, labeled with the failed stage. The
// returned error, when non-nil, is a *Error carrying the stage and, for
// partial successes, the id of the review that was persisted anyway.
func (w *Workflow) Execute(ctx context.Context, input Input) (result *Result, err error) {
	start := time.Now()
	defer func() {
		w.metrics.observe(time.Since(start), err)
	}()

	err = w.runner.Run(ctx, OperationName,
		[]attribute.KeyValue{
			attribute.Int64("bookId", input.BookID),
			attribute.Int64("userId", input.UserID),
		},
		func(ctx context.Context, root trace.Span) error {
			var runErr error
			result, runErr = w.run(ctx, root, input)
			return runErr
		},
	)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (w *Workflow) run(ctx context.Context, root trace.Span, input Input) (*Result, error) {
	log := logger.WithContext(ctx, w.logger).With(
		slog.Int64("book_id", input.BookID),
		slog.Int64("user_id", input.UserID),
	)

	review := &domain.Review{
		UserID:  input.UserID,
		BookID:  input.BookID,
		Rating:  input.Rating,
		Comment: input.Comment,
	}
	if err := review.Validate(); err != nil {
		return nil, &Error{
			Stage: StageCreateReview,
			Err:   fmt.Errorf("%w: %w", ErrReviewPersistFailed, apperrors.InvalidInput(err.Error())),
		}
	}

	// Precondition lookup runs inside the root span without a child span of
	// its own; the step spans are reserved for the two writes.
	if _, err := w.books.GetByID(ctx, input.BookID); err != nil {
		return nil, &Error{
			Stage: StageCreateReview,
			Err:   fmt.Errorf("%w: %w", ErrReviewPersistFailed, err),
		}
	}

	var created *domain.Review
	err := w.runner.Run(ctx, spanCreateReview,
		[]attribute.KeyValue{attribute.Int64("bookId", input.BookID)},
		func(ctx context.Context, _ trace.Span) error {
			var createErr error
			created, createErr = w.reviews.Create(ctx, review)
			return createErr
		},
	)
	if err != nil {
		log.ErrorContext(ctx, "review persistence failed", slog.String("error", err.Error()))
		return nil, &Error{
			Stage: StageCreateReview,
			Err:   fmt.Errorf("%w: %w", ErrReviewPersistFailed, err),
		}
	}

	var book *domain.Book
	err = w.runner.Run(ctx, spanRecomputeBook,
		[]attribute.KeyValue{
			attribute.Int64("bookId", input.BookID),
			attribute.Int("rating", input.Rating),
		},
		func(ctx context.Context, _ trace.Span) error {
			var updateErr error
			book, updateErr = w.books.RecomputeAndStore(ctx, input.BookID, input.Rating)
			return updateErr
		},
	)
	if err != nil {
		// The review stays; only the aggregate write is lost. Mark the root
		// span so trace tooling can find these runs.
		root.AddEvent(partialSuccessName, trace.WithAttributes(
			attribute.Int64("reviewId", created.ID),
		))
		log.ErrorContext(ctx, "book aggregate update failed after review was persisted",
			slog.Int64("review_id", created.ID),
			slog.String("error", err.Error()),
		)
		return nil, &Error{
			Stage:    StageUpdateBook,
			ReviewID: created.ID,
			Err:      fmt.Errorf("%w: %w", ErrAggregateUpdateFailed, err),
		}
	}

	if w.notifier != nil {
		if err := w.notifier.ReviewCreated(ctx, created, book); err != nil {
			log.WarnContext(ctx, "review created event not published",
				slog.Int64("review_id", created.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	log.InfoContext(ctx, "review created and book aggregate updated",
		slog.Int64("review_id", created.ID),
		slog.Float64("average_rating", book.AverageRating),
		slog.Int("review_count", book.ReviewCount),
	)

	return &Result{Review: created, Book: book}, nil
}
