package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/manualqa/manualqa/internal/app"
	"github.com/manualqa/manualqa/internal/log"
	"github.com/manualqa/manualqa/internal/rag"
)

// maxQueryBodyBytes bounds the request body; questions are short.
const maxQueryBodyBytes = 16 * 1024

type queryRequest struct {
	Question string `json:"question"`
}

type querySource struct {
	Source  string `json:"source"`
	Page    int    `json:"page,omitempty"`
	Content string `json:"content"`
}

type queryResponse struct {
	Answer    string        `json:"answer"`
	Sources   []querySource `json:"sources"`
	Model     string        `json:"model"`
	Truncated bool          `json:"truncated,omitempty"`
}

// queryHandler answers questions over HTTP. Concurrency is bounded by a
// semaphore; each request runs under its own timeout.
type queryHandler struct {
	init    *app.Initializer
	baseCtx context.Context
	timeout time.Duration
	sem     chan struct{}
	logger  log.Logger
}

func (h *queryHandler) answer(w http.ResponseWriter, r *http.Request) {
	select {
	case h.sem <- struct{}{}:
		defer func() { <-h.sem }()
	default:
		w.Header().Set("Retry-After", "1")
		WriteError(w, http.StatusServiceUnavailable, "overloaded", "too many concurrent queries", h.logger)
		return
	}

	var req queryRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxQueryBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large", h.logger)
			return
		}
		WriteError(w, http.StatusBadRequest, "invalid_body", "request body must be JSON with a question field", h.logger)
		return
	}
	if req.Question == "" {
		WriteError(w, http.StatusBadRequest, "missing_question", "question must not be empty", h.logger)
		return
	}

	// Initialization runs on the server lifetime context so an impatient
	// first client cannot abort it for everyone.
	a, err := h.init.App(h.baseCtx)
	if err != nil {
		h.logger.Warn("query rejected, chain not initialized", "error", err)
		w.Header().Set("Retry-After", "5")
		WriteError(w, http.StatusServiceUnavailable, "not_ready", "service is not ready", h.logger)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	answer, err := a.Engine.Answer(ctx, req.Question)
	if err != nil {
		h.writeAnswerError(w, r, err)
		return
	}

	sources := make([]querySource, len(answer.Sources))
	for i, s := range answer.Sources {
		sources[i] = querySource{Source: s.SourcePath, Page: s.Page, Content: s.Excerpt}
	}

	WriteJSON(w, http.StatusOK, queryResponse{
		Answer:    answer.Text,
		Sources:   sources,
		Model:     answer.Model,
		Truncated: answer.Truncated,
	}, h.logger)
}

func (h *queryHandler) writeAnswerError(w http.ResponseWriter, r *http.Request, err error) {
	requestID, _ := requestIDFromContext(r.Context())

	switch {
	case errors.Is(err, rag.ErrInsufficientContext):
		WriteError(w, http.StatusUnprocessableEntity, "insufficient_context",
			"no relevant documentation found for this question", h.logger)
	case errors.Is(err, context.DeadlineExceeded):
		h.logger.Warn("query timed out", "request_id", requestID)
		WriteError(w, http.StatusGatewayTimeout, "timeout", "query timed out", h.logger)
	default:
		h.logger.Error("query failed", "error", err, "request_id", requestID)
		WriteError(w, http.StatusInternalServerError, "query_failed", "failed to answer question", h.logger)
	}
}
