package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/bookshelf-labs/bookshelf/internal/repository"
	"github.com/bookshelf-labs/bookshelf/internal/service"
	apperrors "github.com/bookshelf-labs/bookshelf/pkg/errors"
	"github.com/bookshelf-labs/bookshelf/pkg/httputil"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// BookHandler serves the book read endpoints.
type BookHandler struct {
	books   *service.BookService
	reviews repository.ReviewRepository
	logger  *slog.Logger
}

// NewBookHandler creates a book handler.
func NewBookHandler(books *service.BookService, reviews repository.ReviewRepository, log *slog.Logger) *BookHandler {
	return &BookHandler{books: books, reviews: reviews, logger: log}
}

// List handles GET /api/v1/books.
func (h *BookHandler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := pagination(r)

	books, total, err := h.books.List(r.Context(), page, perPage)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(books, total, page, perPage))
}

// Get handles GET /api/v1/books/{bookID}.
func (h *BookHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := bookIDParam(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	book, err := h.books.GetByID(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: book})
}

// Summary handles GET /api/v1/books/{bookID}/summary. It recomputes the
// aggregate from the review rows, bypassing the stored book aggregate, so
// operators can spot drift left behind by partial workflow failures.
func (h *BookHandler) Summary(w http.ResponseWriter, r *http.Request) {
	id, err := bookIDParam(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	if _, err := h.books.GetByID(r.Context(), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	summary, err := h.reviews.GetSummary(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: summary})
}

// ListReviews handles GET /api/v1/books/{bookID}/reviews.
func (h *BookHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	id, err := bookIDParam(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	page, perPage := pagination(r)

	reviews, total, err := h.reviews.ListByBookID(r.Context(), id, page, perPage)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(reviews, total, page, perPage))
}

func bookIDParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "bookID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.InvalidInput("book id must be a positive integer")
	}
	return id, nil
}

func pagination(r *http.Request) (page, perPage int) {
	page = 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			page = v
		}
	}

	perPage = defaultPerPage
	if raw := r.URL.Query().Get("per_page"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			perPage = min(v, maxPerPage)
		}
	}
	return page, perPage
}
