package catalog

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper: create a pager against a test server with fast backoff
func newTestPager(t *testing.T, handler http.HandlerFunc) (*Pager, *httptest.Server) {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	config := PagerConfig{
		PageURL:        server.URL + "/gallery?page=%d",
		MaxAttempts:    5,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Timeout:        5 * time.Second,
		UserAgent:      "jwstascii-test",
	}
	return NewPager(config, nil, nil), server
}

// TestFetchPage_Success verifies the page number lands in the URL
func TestFetchPage_Success(t *testing.T) {
	var gotPage, gotAgent string
	pager, _ := newTestPager(t, func(w http.ResponseWriter, r *http.Request) {
		gotPage = r.URL.Query().Get("page")
		gotAgent = r.Header.Get("User-Agent")
		fmt.Fprint(w, "<html>page</html>")
	})

	body, err := pager.FetchPage(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "<html>page</html>", string(body))
	assert.Equal(t, "3", gotPage)
	assert.Equal(t, "jwstascii-test", gotAgent)
}

// TestFetchPage_InvalidPage verifies pages are 1-indexed
func TestFetchPage_InvalidPage(t *testing.T) {
	pager, _ := newTestPager(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	_, err := pager.FetchPage(context.Background(), 0)
	assert.ErrorIs(t, err, ErrInvalidPage)
}

// TestGet_RetriesTransient verifies 5xx responses are retried
func TestGet_RetriesTransient(t *testing.T) {
	var calls atomic.Int32
	pager, server := newTestPager(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, "ok")
	})

	body, err := pager.Get(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(3), calls.Load())
}

// TestGet_RetryExhausted verifies the attempt bound
func TestGet_RetryExhausted(t *testing.T) {
	var calls atomic.Int32
	pager, server := newTestPager(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := pager.Get(context.Background(), server.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRetryExhausted)
	assert.Equal(t, int32(5), calls.Load(), "should make exactly MaxAttempts requests")
}

// TestGet_NonTransientFailsImmediately verifies 404 is not retried
func TestGet_NonTransientFailsImmediately(t *testing.T) {
	var calls atomic.Int32
	pager, server := newTestPager(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := pager.Get(context.Background(), server.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRequestFailed)
	assert.NotErrorIs(t, err, ErrRetryExhausted)

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusNotFound, reqErr.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

// TestGet_ContextCancelled verifies cancellation stops retrying
func TestGet_ContextCancelled(t *testing.T) {
	pager, server := newTestPager(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pager.Get(ctx, server.URL)
	assert.ErrorIs(t, err, context.Canceled)
}

// TestRequestError_Transient verifies the transient status set
func TestRequestError_Transient(t *testing.T) {
	for _, code := range []int{429, 500, 502, 503, 504} {
		assert.True(t, (&RequestError{StatusCode: code}).Transient(), "%d should be transient", code)
	}
	for _, code := range []int{400, 401, 403, 404, 410} {
		assert.False(t, (&RequestError{StatusCode: code}).Transient(), "%d should not be transient", code)
	}
}

// TestDefaultPagerConfig verifies the gallery URL template
func TestDefaultPagerConfig(t *testing.T) {
	pager := NewPager(DefaultPagerConfig(), nil, nil)
	assert.Equal(t,
		"https://webbtelescope.org/resource-gallery/images?Type=Observations&itemsPerPage=100&page=1",
		pager.PageURL(1))
}
