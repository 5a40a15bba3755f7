package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/bookshelf-labs/bookshelf/internal/domain"
	"github.com/bookshelf-labs/bookshelf/internal/service"
	"github.com/bookshelf-labs/bookshelf/internal/workflow"
	apperrors "github.com/bookshelf-labs/bookshelf/pkg/errors"
	"github.com/bookshelf-labs/bookshelf/pkg/httputil"
	"github.com/bookshelf-labs/bookshelf/pkg/logger"
	"github.com/bookshelf-labs/bookshelf/pkg/validator"
)

// ReviewHandler serves review submission through the multi-step workflow.
type ReviewHandler struct {
	workflow *workflow.Workflow
	books    *service.BookService
	logger   *slog.Logger
}

// NewReviewHandler creates a review handler.
func NewReviewHandler(wf *workflow.Workflow, books *service.BookService, log *slog.Logger) *ReviewHandler {
	return &ReviewHandler{workflow: wf, books: books, logger: log}
}

// CreateReviewRequest is the POST body for a review submission.
type CreateReviewRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=2000"`
}

// CreateReviewResponse is returned on full success.
type CreateReviewResponse struct {
	Review *domain.Review `json:"review"`
	Book   *domain.Book   `json:"book"`
}

// Create handles POST /api/v1/books/{bookID}/reviews. The caller identifies
// itself with the X-User-ID header. A partial failure (review stored, book
// aggregate not updated) returns 500 with the persisted review id so clients
// and support tooling can trace what stuck.
func (h *ReviewHandler) Create(w http.ResponseWriter, r *http.Request) {
	bookID, err := bookIDParam(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	userID, err := userIDHeader(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	var req CreateReviewRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	result, err := h.workflow.Execute(r.Context(), workflow.Input{
		UserID:  userID,
		BookID:  bookID,
		Rating:  req.Rating,
		Comment: req.Comment,
	})
	if err != nil {
		h.writeWorkflowError(w, r, err)
		return
	}

	// The stored aggregate changed; evict the cached book.
	h.books.Invalidate(r.Context(), bookID)

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{
		Data: CreateReviewResponse{Review: result.Review, Book: result.Book},
	})
}

func (h *ReviewHandler) writeWorkflowError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, workflow.ErrAggregateUpdateFailed) {
		// The stored aggregate did not change, so the cached book stays
		// valid; only the persisted review id needs surfacing.
		if reviewID := workflow.PersistedReviewID(err); reviewID != 0 {
			httputil.WriteJSON(w, http.StatusInternalServerError, httputil.Response{
				Error: &httputil.ErrorResponse{
					Code:      "AGGREGATE_UPDATE_FAILED",
					Message:   "review was saved but the book rating could not be updated",
					RequestID: logger.CorrelationIDFromContext(r.Context()),
					Detail: map[string]any{
						"review_id": reviewID,
						"stage":     workflow.StageOf(err),
					},
				},
			})
			logger.WithContext(r.Context(), h.logger).ErrorContext(r.Context(),
				"partial review submission",
				slog.Int64("review_id", reviewID),
				slog.String("error", err.Error()),
			)
			return
		}
	}

	// Failures before the aggregate write surface their underlying cause:
	// unknown book as 404, constraint violations as 400, everything else
	// as 500.
	httputil.WriteError(w, r, err, h.logger)
}

func userIDHeader(r *http.Request) (int64, error) {
	raw := r.Header.Get("X-User-ID")
	if raw == "" {
		return 0, apperrors.InvalidInput("X-User-ID header is required")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.InvalidInput("X-User-ID header must be a positive integer")
	}
	return id, nil
}
