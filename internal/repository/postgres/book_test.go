package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookshelf-labs/bookshelf/pkg/database"
	apperrors "github.com/bookshelf-labs/bookshelf/pkg/errors"
)

var bookRowColumns = []string{
	"id", "title", "author", "average_rating", "review_count",
	"published_at", "created_at", "updated_at",
}

func bookRow(mock pgxmock.PgxPoolIface, average float64, count int) *pgxmock.Rows {
	now := time.Now()
	return mock.NewRows(bookRowColumns).
		AddRow(int64(1), "Ficciones", "Jorge Luis Borges", average, count, (*time.Time)(nil), now, now)
}

func newBookRepo(t *testing.T) (*BookRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewBookRepository(mock), mock
}

func TestBookGetByID(t *testing.T) {
	repo, mock := newBookRepo(t)

	mock.ExpectQuery(`SELECT .+ FROM books WHERE id = \$1`).
		WithArgs(int64(1)).
		WillReturnRows(bookRow(mock, 4.5, 2))

	book, err := repo.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), book.ID)
	assert.Equal(t, "Ficciones", book.Title)
	assert.InDelta(t, 4.5, book.AverageRating, 1e-9)
	assert.Equal(t, 2, book.ReviewCount)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookGetByIDNotFound(t *testing.T) {
	repo, mock := newBookRepo(t)

	mock.ExpectQuery(`SELECT .+ FROM books WHERE id = \$1`).
		WithArgs(int64(42)).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByID(context.Background(), 42)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestRecomputeAndStore(t *testing.T) {
	repo, mock := newBookRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM books WHERE id = \$1 FOR UPDATE`).
		WithArgs(int64(1)).
		WillReturnRows(bookRow(mock, 3.0, 2))
	mock.ExpectExec(`UPDATE books SET average_rating = \$1, review_count = \$2`).
		WithArgs(11.0/3.0, 3, int64(1)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	book, err := repo.RecomputeAndStore(context.Background(), 1, 5)
	require.NoError(t, err)
	assert.Equal(t, 3, book.ReviewCount)
	assert.InDelta(t, 11.0/3.0, book.AverageRating, 1e-9)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecomputeAndStoreBookMissing(t *testing.T) {
	repo, mock := newBookRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FOR UPDATE`).
		WithArgs(int64(42)).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.RecomputeAndStore(context.Background(), 42, 4)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestRecomputeAndStoreRetriesSerializationFailure(t *testing.T) {
	repo, mock := newBookRepo(t)

	// First attempt loses a serialization race; the second succeeds.
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FOR UPDATE`).
		WithArgs(int64(1)).
		WillReturnRows(bookRow(mock, 3.0, 2))
	mock.ExpectExec(`UPDATE books SET`).
		WithArgs(11.0/3.0, 3, int64(1)).
		WillReturnError(&pgconn.PgError{Code: "40001"})
	mock.ExpectRollback()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FOR UPDATE`).
		WithArgs(int64(1)).
		WillReturnRows(bookRow(mock, 3.0, 2))
	mock.ExpectExec(`UPDATE books SET`).
		WithArgs(11.0/3.0, 3, int64(1)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	book, err := repo.RecomputeAndStore(context.Background(), 1, 5)
	require.NoError(t, err)
	assert.Equal(t, 3, book.ReviewCount)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecomputeAndStoreRetryBudgetExhausted(t *testing.T) {
	repo, mock := newBookRepo(t)

	for i := 0; i < aggregateUpdateRetries; i++ {
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT .+ FOR UPDATE`).
			WithArgs(int64(1)).
			WillReturnRows(bookRow(mock, 3.0, 2))
		mock.ExpectExec(`UPDATE books SET`).
			WithArgs(11.0/3.0, 3, int64(1)).
			WillReturnError(&pgconn.PgError{Code: "40P01"})
		mock.ExpectRollback()
	}

	_, err := repo.RecomputeAndStore(context.Background(), 1, 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrConflict))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecomputeAndStoreDoesNotRetryPlainFailures(t *testing.T) {
	repo, mock := newBookRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FOR UPDATE`).
		WithArgs(int64(1)).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := repo.RecomputeAndStore(context.Background(), 1, 5)
	require.Error(t, err)
	assert.False(t, errors.Is(err, apperrors.ErrConflict))

	require.NoError(t, mock.ExpectationsWereMet())
}
