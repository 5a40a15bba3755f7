package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorUnwrapsToSentinel(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		status   int
	}{
		{"not found", NotFound("book", "7"), ErrNotFound, http.StatusNotFound},
		{"invalid input", InvalidInput("bad rating"), ErrInvalidInput, http.StatusBadRequest},
		{"conflict", Conflict("lost the race"), ErrConflict, http.StatusConflict},
		{"constraint", Constraint("fk violation"), ErrConstraint, http.StatusBadRequest},
		{"internal", Internal(ErrInternal), ErrInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.sentinel)
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
		})
	}
}

func TestHTTPStatusSeesThroughWrapping(t *testing.T) {
	err := fmt.Errorf("outer: %w", fmt.Errorf("inner: %w", ErrConflict))
	assert.Equal(t, http.StatusConflict, HTTPStatus(err))
}

func TestHTTPStatusDefaultsTo500(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(fmt.Errorf("mystery")))
}

func TestNotFoundMessage(t *testing.T) {
	err := NotFound("book", "42")
	assert.Contains(t, err.Error(), "book with id 42 not found")
	assert.Equal(t, "NOT_FOUND", err.Code)
}
