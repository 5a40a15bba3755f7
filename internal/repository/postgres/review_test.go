package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookshelf-labs/bookshelf/internal/domain"
	"github.com/bookshelf-labs/bookshelf/pkg/database"
	apperrors "github.com/bookshelf-labs/bookshelf/pkg/errors"
)

func newReviewRepo(t *testing.T) (*ReviewRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewReviewRepository(mock), mock
}

func TestReviewCreate(t *testing.T) {
	repo, mock := newReviewRepo(t)
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO reviews`).
		WithArgs(int64(7), int64(1), 5, "a quiet marvel").
		WillReturnRows(mock.NewRows([]string{"id", "created_at"}).AddRow(int64(3), now))

	created, err := repo.Create(context.Background(), &domain.Review{
		UserID:  7,
		BookID:  1,
		Rating:  5,
		Comment: "a quiet marvel",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), created.ID)
	assert.Equal(t, now, created.CreatedAt)
	assert.Equal(t, 5, created.Rating)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewCreateRejectsBadRating(t *testing.T) {
	repo, mock := newReviewRepo(t)

	_, err := repo.Create(context.Background(), &domain.Review{UserID: 7, BookID: 1, Rating: 9})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrConstraint))

	// Validation rejects before any SQL runs.
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewCreateForeignKeyViolation(t *testing.T) {
	repo, mock := newReviewRepo(t)

	mock.ExpectQuery(`INSERT INTO reviews`).
		WithArgs(int64(7), int64(99), 4, "").
		WillReturnError(&pgconn.PgError{Code: "23503"})

	_, err := repo.Create(context.Background(), &domain.Review{UserID: 7, BookID: 99, Rating: 4})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrConstraint))
}

func TestReviewCreateCheckViolation(t *testing.T) {
	repo, mock := newReviewRepo(t)

	mock.ExpectQuery(`INSERT INTO reviews`).
		WithArgs(int64(7), int64(1), 3, "").
		WillReturnError(&pgconn.PgError{Code: "23514"})

	_, err := repo.Create(context.Background(), &domain.Review{UserID: 7, BookID: 1, Rating: 3})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrConstraint))
}

func TestReviewListByBookID(t *testing.T) {
	repo, mock := newReviewRepo(t)
	now := time.Now()

	rows := mock.NewRows([]string{"id", "user_id", "book_id", "rating", "comment", "created_at", "total_count"}).
		AddRow(int64(2), int64(8), int64(1), 4, "", now, 5).
		AddRow(int64(1), int64(7), int64(1), 5, "superb", now.Add(-time.Hour), 5)

	mock.ExpectQuery(`FROM reviews\s+WHERE book_id = \$1`).
		WithArgs(int64(1), 2, 0).
		WillReturnRows(rows)

	reviews, total, err := repo.ListByBookID(context.Background(), 1, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, reviews, 2)
	assert.Equal(t, int64(2), reviews[0].ID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewGetSummary(t *testing.T) {
	repo, mock := newReviewRepo(t)

	mock.ExpectQuery(`SELECT COALESCE\(AVG\(rating\), 0\), COUNT\(\*\)`).
		WithArgs(int64(1)).
		WillReturnRows(mock.NewRows([]string{"avg", "count"}).AddRow(3.66666666, 3))

	summary, err := repo.GetSummary(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.TotalCount)
	assert.InDelta(t, 3.6667, summary.AverageRating, 1e-4)

	require.NoError(t, mock.ExpectationsWereMet())
}
