package postgres

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bookshelf-labs/bookshelf/internal/domain"
	"github.com/bookshelf-labs/bookshelf/pkg/database"
	apperrors "github.com/bookshelf-labs/bookshelf/pkg/errors"
)

// ReviewRepository implements review persistence using PostgreSQL.
type ReviewRepository struct {
	pool database.DBTX
}

// NewReviewRepository creates a PostgreSQL-backed review repository.
func NewReviewRepository(pool database.DBTX) *ReviewRepository {
	return &ReviewRepository{pool: pool}
}

// Create inserts a review and returns it with the generated id and creation
// timestamp. Rating range is re-validated here as defense in depth; the
// database check constraint backs both up.
func (r *ReviewRepository) Create(ctx context.Context, review *domain.Review) (*domain.Review, error) {
	if err := review.Validate(); err != nil {
		return nil, apperrors.Constraint(err.Error())
	}

	query := `
		INSERT INTO reviews (user_id, book_id, rating, comment)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	ctx, end := database.TraceQuery(ctx, "CreateReview", query)

	created := *review
	err := r.pool.QueryRow(ctx, query,
		review.UserID,
		review.BookID,
		review.Rating,
		review.Comment,
	).Scan(&created.ID, &created.CreatedAt)

	end(err)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23503": // foreign_key_violation
				return nil, apperrors.Constraint("review references a missing book or user")
			case "23514": // check_violation
				return nil, apperrors.Constraint("review rating out of range")
			}
		}
		return nil, fmt.Errorf("insert review: %w", err)
	}

	return &created, nil
}

// ListByBookID returns a page of reviews for a book, newest first, with the
// total count.
func (r *ReviewRepository) ListByBookID(ctx context.Context, bookID int64, page, perPage int) ([]domain.Review, int, error) {
	limit := perPage
	if limit <= 0 {
		limit = 20
	}
	offset := 0
	if page > 1 {
		offset = (page - 1) * limit
	}

	query := `
		SELECT id, user_id, book_id, rating, comment, created_at,
		       count(*) OVER() AS total_count
		FROM reviews
		WHERE book_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	ctx, end := database.TraceQuery(ctx, "ListReviews", query)
	rows, err := r.pool.Query(ctx, query, bookID, limit, offset)
	if err != nil {
		end(err)
		return nil, 0, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	var (
		reviews    []domain.Review
		totalCount int
	)

	for rows.Next() {
		var rv domain.Review
		if err := rows.Scan(
			&rv.ID,
			&rv.UserID,
			&rv.BookID,
			&rv.Rating,
			&rv.Comment,
			&rv.CreatedAt,
			&totalCount,
		); err != nil {
			end(err)
			return nil, 0, fmt.Errorf("scan review row: %w", err)
		}
		reviews = append(reviews, rv)
	}

	err = rows.Err()
	end(err)
	if err != nil {
		return nil, 0, fmt.Errorf("iterate review rows: %w", err)
	}

	if reviews == nil {
		reviews = []domain.Review{}
	}

	return reviews, totalCount, nil
}

// GetSummary recomputes the aggregate from the review rows themselves. The
// workflow does not use this; it exists for the out-of-band reconciliation
// path that corrects a stale book aggregate after a partial failure.
func (r *ReviewRepository) GetSummary(ctx context.Context, bookID int64) (*domain.ReviewSummary, error) {
	query := `
		SELECT COALESCE(AVG(rating), 0), COUNT(*)
		FROM reviews
		WHERE book_id = $1`

	ctx, end := database.TraceQuery(ctx, "GetReviewSummary", query)

	var summary domain.ReviewSummary
	err := r.pool.QueryRow(ctx, query, bookID).Scan(
		&summary.AverageRating,
		&summary.TotalCount,
	)
	end(err)
	if err != nil {
		return nil, fmt.Errorf("get review summary: %w", err)
	}

	// Round to four decimal places for stable JSON output.
	summary.AverageRating = math.Round(summary.AverageRating*10000) / 10000

	return &summary, nil
}
