package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pastportals/backend/internal/imagegen"
	"github.com/pastportals/backend/internal/jobs"
	"github.com/pastportals/backend/internal/prompt"
	"github.com/pastportals/backend/internal/search"
	"github.com/pastportals/backend/internal/wikipedia"
	"github.com/pastportals/backend/internal/yearsummary"
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	Success     bool   `json:"success"`
	Error       string `json:"error"`
	Details     string `json:"details,omitempty"`
	Suggestions string `json:"suggestions,omitempty"`
	JobID       string `json:"jobId,omitempty"`
}

// opError attaches the client-facing message used when err maps to a 500.
type opError struct {
	msg string
	err error
}

func (e *opError) Error() string { return e.msg + ": " + e.err.Error() }

func (e *opError) Unwrap() error { return e.err }

func fail(msg string, err error) error { return &opError{msg: msg, err: err} }

// jobError carries the id of a job whose submission failed.
type jobError struct {
	jobID string
	err   error
}

func (e *jobError) Error() string { return e.err.Error() }

func (e *jobError) Unwrap() error { return e.err }

var validationErrors = []error{
	yearsummary.ErrInvalidYear,
	search.ErrInvalidQuery,
	search.ErrInvalidDate,
	jobs.ErrEmptyPrompt,
	prompt.ErrEmptyText,
	imagegen.ErrEmptyPrompt,
}

var unavailableErrors = []error{
	jobs.ErrQueueFull,
	jobs.ErrClosed,
	prompt.ErrNotConfigured,
	errHistoryDisabled,
}

// classify maps an error to a status code and client message. Internal
// reports whether the message hides the underlying cause.
func classify(err error) (code int, msg string, internal bool) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg = http.StatusText(he.Code)
		if he.Code == http.StatusNotFound {
			msg = "Endpoint not found"
		} else if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
		return he.Code, msg, false
	}
	var ve *validationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest, ve.Error(), false
	}
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return http.StatusBadRequest, capitalize(unwrapMessage(err)), false
		}
	}

	switch {
	case errors.Is(err, wikipedia.ErrDisambiguation):
		return http.StatusBadRequest, "Query returned a disambiguation page. Please be more specific.", false
	case errors.Is(err, jobs.ErrNotFound):
		return http.StatusNotFound, "Job not found", false
	case errors.Is(err, jobs.ErrNotReady):
		return http.StatusNotFound, "Video not ready or job not found", false
	case errors.Is(err, wikipedia.ErrNotFound):
		return http.StatusNotFound, "Event or person not found. Please check your query and try again.", false
	}
	for _, target := range unavailableErrors {
		if errors.Is(err, target) {
			return http.StatusServiceUnavailable, capitalize(target.Error()), false
		}
	}

	if errors.Is(err, prompt.ErrUnavailable) {
		return http.StatusInternalServerError, capitalize(prompt.ErrUnavailable.Error()), true
	}

	var op *opError
	if errors.As(err, &op) {
		return http.StatusInternalServerError, op.msg, true
	}
	return http.StatusInternalServerError, "Internal server error", true
}

// unwrapMessage returns the message of the outermost non-opError error.
func unwrapMessage(err error) string {
	var op *opError
	if errors.As(err, &op) {
		return op.err.Error()
	}
	return err.Error()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// errorHandler replaces echo's default handler so every error uses the
// {"success": false, "error": ...} envelope.
func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code, msg, internal := classify(err)
	body := errorResponse{Error: msg}
	if internal && !s.production {
		body.Details = err.Error()
	}
	var dis *search.DisambiguationError
	if errors.As(err, &dis) {
		body.Suggestions = dis.Suggestions
	}
	var je *jobError
	if errors.As(err, &je) {
		body.JobID = je.jobID
	}

	req := c.Request()
	ev := s.logger.Info()
	if code >= http.StatusInternalServerError {
		ev = s.logger.Error()
	}
	ev.Err(err).Int("status", code).Str("method", req.Method).Str("path", req.URL.Path).Str("ip", c.RealIP()).Msg("request failed")

	if req.Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, body)
}
