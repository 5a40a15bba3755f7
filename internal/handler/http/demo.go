package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	apperrors "github.com/bookshelf-labs/bookshelf/pkg/errors"
	"github.com/bookshelf-labs/bookshelf/pkg/httputil"
)

// maxDemoDelay caps /demo/slow so a stray query parameter cannot pin a
// worker for minutes.
const maxDemoDelay = 10 * time.Second

// DemoHandler exposes endpoints that generate known-bad telemetry on demand,
// used to verify dashboards and alert rules fire.
type DemoHandler struct {
	logger *slog.Logger
}

// NewDemoHandler creates a demo handler.
func NewDemoHandler(log *slog.Logger) *DemoHandler {
	return &DemoHandler{logger: log}
}

// Error handles GET /demo/error: always fails with a 500 so error-rate
// panels and alerts have a controllable signal source.
func (h *DemoHandler) Error(w http.ResponseWriter, r *http.Request) {
	httputil.WriteError(w, r, apperrors.Internal(apperrors.ErrInternal), h.logger)
}

// Slow handles GET /demo/slow?delay_ms=N: sleeps, then succeeds. Drives the
// latency histograms for p95 alert verification.
func (h *DemoHandler) Slow(w http.ResponseWriter, r *http.Request) {
	delay := 2 * time.Second
	if raw := r.URL.Query().Get("delay_ms"); raw != "" {
		ms, err := strconv.Atoi(raw)
		if err != nil || ms < 0 {
			httputil.WriteError(w, r, apperrors.InvalidInput("delay_ms must be a non-negative integer"), h.logger)
			return
		}
		delay = time.Duration(ms) * time.Millisecond
	}
	if delay > maxDemoDelay {
		delay = maxDemoDelay
	}

	select {
	case <-time.After(delay):
	case <-r.Context().Done():
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: map[string]any{"slept_ms": delay.Milliseconds()},
	})
}
