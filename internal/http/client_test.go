package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "stitch-test", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"plan":[]}`))
	}))
	defer server.Close()

	opts := DefaultOptions()
	opts.UserAgent = "stitch-test"
	client := NewClient(opts)

	resp, err := client.Get(context.Background(), server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, `{"plan":[]}`, string(body))
	assert.Equal(t, "application/json", resp.ContentType)
}

func TestGetStatusErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"not found", http.StatusNotFound, ErrNotFound},
		{"forbidden", http.StatusForbidden, ErrForbidden},
		{"unauthorized", http.StatusUnauthorized, ErrUnauthorized},
		{"server error", http.StatusInternalServerError, ErrServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			_, err := NewClient(DefaultOptions()).Get(context.Background(), server.URL)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestGetUnexpectedStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer server.Close()

	_, err := NewClient(DefaultOptions()).Get(context.Background(), server.URL)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusTeapot, statusErr.Code)
}

func TestNoRetryByDefault(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewClient(DefaultOptions()).Get(context.Background(), server.URL)
	assert.ErrorIs(t, err, ErrServerError)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestRetryOnServerError(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	opts := DefaultOptions()
	opts.RetryAttempts = 5
	opts.RetryBackoff = 10 * time.Millisecond
	opts.RetryMaxBackoff = 50 * time.Millisecond

	resp, err := NewClient(opts).Get(context.Background(), server.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, int32(3), attempts.Load())
}

func TestNoRetryOnClientError(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	opts := DefaultOptions()
	opts.RetryAttempts = 3
	opts.RetryBackoff = time.Millisecond

	_, err := NewClient(opts).Get(context.Background(), server.URL)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestContextCancellation(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewClient(DefaultOptions()).Get(ctx, server.URL)
	assert.Error(t, err)
}
