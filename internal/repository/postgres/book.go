package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bookshelf-labs/bookshelf/internal/domain"
	"github.com/bookshelf-labs/bookshelf/pkg/database"
	apperrors "github.com/bookshelf-labs/bookshelf/pkg/errors"
)

// aggregateUpdateRetries bounds the retry loop around the aggregate
// transaction. Only serialization/deadlock transients are retried.
const aggregateUpdateRetries = 3

// BookRepository implements book persistence using PostgreSQL.
type BookRepository struct {
	pool database.DBTX
}

// NewBookRepository creates a PostgreSQL-backed book repository.
func NewBookRepository(pool database.DBTX) *BookRepository {
	return &BookRepository{pool: pool}
}

const bookColumns = `id, title, author, average_rating, review_count, published_at, created_at, updated_at`

func scanBook(row pgx.Row) (*domain.Book, error) {
	var b domain.Book
	err := row.Scan(
		&b.ID,
		&b.Title,
		&b.Author,
		&b.AverageRating,
		&b.ReviewCount,
		&b.PublishedAt,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// GetByID retrieves a book by its identifier.
func (r *BookRepository) GetByID(ctx context.Context, id int64) (*domain.Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "GetBook", query)
	book, err := scanBook(r.pool.QueryRow(ctx, query, id))
	end(err)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("book", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("get book: %w", err)
	}

	return book, nil
}

// List returns a page of books ordered by title with the total count.
func (r *BookRepository) List(ctx context.Context, page, perPage int) ([]domain.Book, int, error) {
	limit := perPage
	if limit <= 0 {
		limit = 20
	}
	offset := 0
	if page > 1 {
		offset = (page - 1) * limit
	}

	query := `
		SELECT ` + bookColumns + `, count(*) OVER() AS total_count
		FROM books
		ORDER BY title
		LIMIT $1 OFFSET $2`

	ctx, end := database.TraceQuery(ctx, "ListBooks", query)
	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		end(err)
		return nil, 0, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	var (
		books      []domain.Book
		totalCount int
	)

	for rows.Next() {
		var b domain.Book
		if err := rows.Scan(
			&b.ID,
			&b.Title,
			&b.Author,
			&b.AverageRating,
			&b.ReviewCount,
			&b.PublishedAt,
			&b.CreatedAt,
			&b.UpdatedAt,
			&totalCount,
		); err != nil {
			end(err)
			return nil, 0, fmt.Errorf("scan book row: %w", err)
		}
		books = append(books, b)
	}

	err = rows.Err()
	end(err)
	if err != nil {
		return nil, 0, fmt.Errorf("iterate book rows: %w", err)
	}

	if books == nil {
		books = []domain.Book{}
	}

	return books, totalCount, nil
}

// RecomputeAndStore folds one new rating into the book's aggregate inside a
// single transaction holding a row lock on the book (SELECT ... FOR UPDATE),
// so concurrent recomputes for the same book serialize. Serialization and
// deadlock transients are retried up to aggregateUpdateRetries times; the
// exhausted budget maps to a conflict error.
func (r *BookRepository) RecomputeAndStore(ctx context.Context, bookID int64, rating int) (*domain.Book, error) {
	var lastErr error
	for attempt := 0; attempt < aggregateUpdateRetries; attempt++ {
		book, err := r.recomputeOnce(ctx, bookID, rating)
		if err == nil {
			return book, nil
		}
		if !isRetryableTxError(err) {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("recompute book aggregate after %d attempts (%v): %w",
		aggregateUpdateRetries, lastErr, apperrors.ErrConflict)
}

func (r *BookRepository) recomputeOnce(ctx context.Context, bookID int64, rating int) (*domain.Book, error) {
	selectQuery := `SELECT ` + bookColumns + ` FROM books WHERE id = $1 FOR UPDATE`
	updateQuery := `UPDATE books SET average_rating = $1, review_count = $2, updated_at = now() WHERE id = $3`

	ctx, end := database.TraceQuery(ctx, "RecomputeBookAggregate", selectQuery)

	book, err := func() (*domain.Book, error) {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return nil, fmt.Errorf("begin aggregate transaction: %w", err)
		}
		defer tx.Rollback(ctx)

		book, err := scanBook(tx.QueryRow(ctx, selectQuery, bookID))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NotFound("book", strconv.FormatInt(bookID, 10))
			}
			return nil, fmt.Errorf("lock book row: %w", err)
		}

		book.ApplyRating(rating)

		if _, err := tx.Exec(ctx, updateQuery, book.AverageRating, book.ReviewCount, bookID); err != nil {
			return nil, fmt.Errorf("store book aggregate: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("commit aggregate transaction: %w", err)
		}
		return book, nil
	}()

	end(err)
	return book, err
}

// isRetryableTxError reports whether the error is a serialization failure
// (40001) or deadlock (40P01) worth one more attempt.
func isRetryableTxError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}
