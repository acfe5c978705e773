package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUpstreamError_Error(t *testing.T) {
	err := NewUpstream("kanban", 403, "forbidden")
	assert.Contains(t, err.Error(), "kanban")
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "forbidden")
}

func TestUpstreamError_WithWrapped(t *testing.T) {
	inner := errors.New("connection refused")
	err := &UpstreamError{Service: "jira", StatusCode: 500, Message: "fail", Err: inner}
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewUpstream("gh", 429, "rate limit")))
	assert.True(t, IsRetryable(NewUpstream("gh", 502, "bad gateway")))
	assert.True(t, IsRetryable(fmt.Errorf("wrapped: %w", NewUpstream("gh", 503, "unavailable"))))
	assert.True(t, IsRetryable(ErrTimeout))
	assert.True(t, IsRetryable(ErrRateLimit))

	assert.False(t, IsRetryable(NewUpstream("gh", 401, "unauth")))
	assert.False(t, IsRetryable(NewUpstream("gh", 404, "not found")))
	assert.False(t, IsRetryable(NewValidation("title", "required")))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"validation", NewValidation("status", "invalid"), http.StatusBadRequest},
		{"wrapped validation", fmt.Errorf("ctx: %w", NewValidation("", "bad")), http.StatusBadRequest},
		{"not found", NewNotFound("session", "session-1"), http.StatusNotFound},
		{"conflict", fmt.Errorf("run: %w", ErrConflict), http.StatusConflict},
		{"forbidden", ErrForbidden, http.StatusForbidden},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"queue full", fmt.Errorf("submit: %w", ErrUnavailable), http.StatusServiceUnavailable},
		{"rate limited", ErrRateLimit, http.StatusTooManyRequests},
		{"persistence", Persistence("insert run", errors.New("disk full")), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestPersistence_KeepsDomainErrors(t *testing.T) {
	nf := NewNotFound("item", "7")
	assert.Same(t, nf, Persistence("get item", nf))
	assert.Nil(t, Persistence("noop", nil))

	err := Persistence("insert", errors.New("locked"))
	var pe *PersistenceError
	assert.True(t, errors.As(err, &pe))
	assert.Equal(t, "insert", pe.Op)
}

func TestNotFoundError_Message(t *testing.T) {
	assert.Equal(t, `project "kanban" not found`, NewNotFound("project", "kanban").Error())
	assert.Equal(t, "checklist not found", NewNotFound("checklist", "").Error())
	assert.ErrorIs(t, NewValidation("x", "y"), ErrInvalidInput)
}
