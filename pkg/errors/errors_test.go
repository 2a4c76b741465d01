package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid input", fmt.Errorf("decoding: %w", ErrInvalidInput), http.StatusBadRequest},
		{"duplicate", fmt.Errorf("doc 7: %w", ErrDuplicateDocument), http.StatusConflict},
		{"not ready", ErrIndexNotReady, http.StatusServiceUnavailable},
		{"corpus", fmt.Errorf("loading: %w", ErrCorpusUnavailable), http.StatusServiceUnavailable},
		{"rate limited", ErrRateLimited, http.StatusTooManyRequests},
		{"app error wins", New(ErrInvalidInput, http.StatusTeapot, "short and stout"), http.StatusTeapot},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatusCode(tt.err))
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	err := InvalidInputf("limit must be positive, got %d", -1)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, "invalid input: limit must be positive, got -1", err.Error())
	assert.Equal(t, http.StatusBadRequest, err.StatusCode)
}
