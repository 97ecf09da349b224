package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qfeng2015/speech-harvester/internal/config"
	"github.com/qfeng2015/speech-harvester/internal/models"
	"github.com/qfeng2015/speech-harvester/pkg/logger"
)

func testRetryConfig(maxRetries int) config.RetryConfig {
	return config.RetryConfig{
		MaxRetries:        maxRetries,
		BaseDelay:         time.Millisecond,
		BackoffMultiplier: 2,
		Timeout:           5 * time.Second,
		HostRPS:           1000,
	}
}

func TestFetchRetriesTransientThenSucceeds(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("speech body"))
	}))
	defer srv.Close()

	c, err := NewClient(testRetryConfig(3), nil, nil, logger.Nop())
	require.NoError(t, err)

	body, err := c.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "speech body", string(body))
	assert.Equal(t, int32(3), hits.Load())
}

func TestFetchClientErrorIsPermanent(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c, err := NewClient(testRetryConfig(3), nil, nil, logger.Nop())
	require.NoError(t, err)

	_, err = c.Fetch(context.Background(), srv.URL)
	require.Error(t, err)

	var fe *models.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusNotFound, fe.StatusCode)
	assert.False(t, fe.Retryable)
	assert.Equal(t, 1, fe.Attempts, "4xx must not be retried")
	assert.Equal(t, int32(1), hits.Load())
}

func TestFetchExhaustionReturnsRetryableError(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c, err := NewClient(testRetryConfig(2), nil, nil, logger.Nop())
	require.NoError(t, err)

	_, err = c.Fetch(context.Background(), srv.URL)
	require.Error(t, err)

	var fe *models.FetchError
	require.True(t, errors.As(err, &fe))
	assert.True(t, fe.Retryable)
	assert.Equal(t, http.StatusBadGateway, fe.StatusCode)
	assert.Equal(t, int32(3), hits.Load(), "initial attempt plus two retries")
}

func TestFetchConnectionErrorRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	url := srv.URL
	srv.Close() // nothing listens anymore

	c, err := NewClient(testRetryConfig(1), nil, nil, logger.Nop())
	require.NoError(t, err)

	_, err = c.Fetch(context.Background(), url)
	require.Error(t, err)

	var fe *models.FetchError
	require.True(t, errors.As(err, &fe))
	assert.True(t, fe.Retryable)
	assert.Equal(t, 2, fe.Attempts)
}

func TestFetchHonorsCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testRetryConfig(10)
	cfg.BaseDelay = time.Second
	c, err := NewClient(cfg, nil, nil, logger.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = c.Fetch(ctx, srv.URL)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestFetchSendsUserAgent(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	c, err := NewClient(testRetryConfig(0), []string{"harvester-test/1.0"}, nil, logger.Nop())
	require.NoError(t, err)

	_, err = c.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "harvester-test/1.0", got)
}

func TestProbeGetClosesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4"))
	}))
	defer srv.Close()

	c, err := NewClient(testRetryConfig(0), nil, nil, logger.Nop())
	require.NoError(t, err)

	resp, err := c.ProbeGet(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
}
