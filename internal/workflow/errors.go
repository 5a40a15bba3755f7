package workflow

import (
	"errors"
	"fmt"
)

// Stage labels identify which step of the review workflow failed. The set is
// fixed at two values so the error-counter label cardinality stays constant:
// everything up to and including review persistence maps to StageCreateReview,
// and only a failed aggregate write maps to StageUpdateBook.
const (
	StageCreateReview = "create_review"
	StageUpdateBook   = "update_book"
)

// Step outcome sentinels. Callers branch on these with errors.Is to decide
// the HTTP status and whether a partial-success payload applies.
var (
	// ErrReviewPersistFailed means the review was never stored; the system
	// state is unchanged.
	ErrReviewPersistFailed = errors.New("review persist failed")

	// ErrAggregateUpdateFailed means the review was stored but the book
	// aggregate was not updated. The review is kept; the aggregate is stale
	// until reconciliation catches up.
	ErrAggregateUpdateFailed = errors.New("book aggregate update failed")
)

// Error is the workflow's failure report. Stage is always set. ReviewID is
// non-zero only when the review outlived the failure, so callers can surface
// which persisted review the stale aggregate belongs to.
type Error struct {
	Stage    string
	ReviewID int64
	Err      error
}

func (e *Error) Error() string {
	if e.ReviewID != 0 {
		return fmt.Sprintf("review workflow stage %s failed (review %d persisted): %v", e.Stage, e.ReviewID, e.Err)
	}
	return fmt.Sprintf("review workflow stage %s failed: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StageOf returns the failed stage recorded in err, or the empty string when
// err does not carry one.
func StageOf(err error) string {
	var wErr *Error
	if errors.As(err, &wErr) {
		return wErr.Stage
	}
	return ""
}

// PersistedReviewID returns the id of the review that survived a partial
// failure, or zero when no review was persisted.
func PersistedReviewID(err error) int64 {
	var wErr *Error
	if errors.As(err, &wErr) {
		return wErr.ReviewID
	}
	return 0
}
