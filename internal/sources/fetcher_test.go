package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/co-notam/pkg/logger"
)

func testFetcher(cfg FetcherConfig) *Fetcher {
	cfg.InitialBackoff = time.Millisecond
	return NewFetcher(cfg, logger.NewNop())
}

func TestFetcherRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	body, err := testFetcher(FetcherConfig{MaxRetries: 3}).Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetcherDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := testFetcher(FetcherConfig{MaxRetries: 3}).Get(context.Background(), srv.URL)
	var status *StatusError
	require.ErrorAs(t, err, &status)
	assert.Equal(t, http.StatusNotFound, status.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetcherCircuitBreakerOpens(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := testFetcher(FetcherConfig{MaxRetries: 0, BreakerFailures: 2, BreakerOpenTime: time.Hour})
	for i := 0; i < 2; i++ {
		_, err := f.Get(context.Background(), srv.URL)
		require.Error(t, err)
		assert.False(t, IsCircuitOpen(err))
	}

	_, err := f.Get(context.Background(), srv.URL)
	assert.True(t, IsCircuitOpen(err))
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetcherHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := testFetcher(FetcherConfig{MaxRetries: 5}).Get(ctx, srv.URL)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAPISource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "EGLL,EGKK", r.URL.Query().Get("locations"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[{"id":"A1/24","text":"RWY CLSD","location":"EGLL","effective_start":"2024-03-01T08:00:00Z"}]}`))
	}))
	defer srv.Close()

	src := NewAPISource(testFetcher(FetcherConfig{}), srv.URL+"/notams/", []string{"EGLL", "EGKK"})
	assert.Equal(t, "api", src.Name())

	records, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "A1/24", records[0].ID)
}

func TestHTMLSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(notamPage))
	}))
	defer srv.Close()

	records, err := NewHTMLSource(testFetcher(FetcherConfig{}), srv.URL).Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 2)
}
