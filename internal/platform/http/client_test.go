package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(ClientOptions{})

	assert.Equal(t, 30*time.Second, c.HTTPClient.Timeout)
	assert.Equal(t, 30*time.Second, c.maxRetryTimeout)
}

func TestNewClientRetryTimeoutOption(t *testing.T) {
	c := NewClient(ClientOptions{MaxRetryTimeout: 2 * time.Second})

	assert.Equal(t, 2*time.Second, c.maxRetryTimeout)
}

func TestDoRequestGivesUpWithinRetryTimeout(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(ClientOptions{RequestsPerSec: 100, MaxRetryTimeout: 100 * time.Millisecond})

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	start := time.Now()
	_, err = c.DoRequest(context.Background(), req)

	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second, "retries must stop at the configured budget")
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
}

func TestDoRequestReturnsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(ClientOptions{RequestsPerSec: 100, MaxRetryTimeout: 50 * time.Millisecond})

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	_, err = c.DoRequest(context.Background(), req)

	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
}
