// Package fetch is the single HTTP retrieval path for the whole pipeline:
// discovery listings, probe requests and document downloads all go through
// the same retry, backoff and rate-limit policy.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/qfeng2015/speech-harvester/internal/config"
	"github.com/qfeng2015/speech-harvester/internal/models"
	"github.com/qfeng2015/speech-harvester/pkg/logger"
	"github.com/qfeng2015/speech-harvester/pkg/metrics"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// Client performs HTTP retrieval with retry/backoff, per-host rate
// limiting and optional outbound identity rotation. Safe for concurrent
// use: all mutable state is the limiter map behind a mutex and a rotation
// counter.
type Client struct {
	cfg        config.RetryConfig
	clients    []*http.Client
	userAgents []string
	next       uint64
	logger     logger.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewClient builds a fetch client. One underlying http.Client is created
// per configured proxy; with no proxies a single direct client is used.
func NewClient(cfg config.RetryConfig, userAgents, proxies []string, log logger.Logger) (*Client, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BackoffMultiplier <= 1 {
		cfg.BackoffMultiplier = 2
	}
	if cfg.HostRPS <= 0 {
		cfg.HostRPS = 2
	}

	var clients []*http.Client
	for _, p := range proxies {
		proxyURL, err := url.Parse(p)
		if err != nil {
			return nil, fmt.Errorf("can't parse proxy %q: %w", p, err)
		}
		clients = append(clients, &http.Client{
			Timeout:   cfg.Timeout,
			Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)},
		})
	}
	if len(clients) == 0 {
		clients = []*http.Client{{Timeout: cfg.Timeout}}
	}
	if len(userAgents) == 0 {
		userAgents = []string{defaultUserAgent}
	}

	return &Client{
		cfg:        cfg,
		clients:    clients,
		userAgents: userAgents,
		logger:     log.Named("fetch"),
		limiters:   make(map[string]*rate.Limiter),
	}, nil
}

// Fetch retrieves url, retrying transient failures (connect errors, 5xx,
// timeouts) with exponential backoff. 4xx responses are permanent and
// returned immediately. On exhaustion the typed *models.FetchError is
// returned so callers can log and skip the item.
func (c *Client) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	var (
		body     []byte
		attempts int
		lastCode int
	)

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.cfg.BaseDelay
	policy.Multiplier = c.cfg.BackoffMultiplier
	policy.RandomizationFactor = 0
	policy.MaxElapsedTime = 0

	operation := func() error {
		if attempts > 0 {
			metrics.FetchRetries.Inc()
			c.logger.Warn("retrying fetch",
				logger.String("url", rawURL),
				logger.Int("attempt", attempts+1),
			)
		}
		attempts++
		metrics.FetchAttempts.Inc()

		if err := c.waitHost(ctx, rawURL); err != nil {
			return backoff.Permanent(err)
		}

		data, code, err := c.do(ctx, rawURL)
		lastCode = code
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err // connect error or timeout: retryable
		}

		switch {
		case code >= 200 && code < 300:
			body = data
			return nil
		case code >= 500:
			return fmt.Errorf("server error %d", code)
		default:
			// 4xx and friends never heal on retry.
			return backoff.Permanent(&models.FetchError{
				URL: rawURL, StatusCode: code, Attempts: attempts, Retryable: false,
			})
		}
	}

	err := backoff.Retry(operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.cfg.MaxRetries)), ctx))
	if err != nil {
		var fe *models.FetchError
		if errors.As(err, &fe) {
			return nil, fe
		}
		return nil, &models.FetchError{
			URL: rawURL, StatusCode: lastCode, Attempts: attempts, Retryable: true, Err: err,
		}
	}
	return body, nil
}

// Head issues a single HEAD request and returns the response; used by the
// classifier probe. No retries: the classifier degrades to a GET itself.
func (c *Client) Head(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent())
	resp, err := c.client().Do(req)
	if err != nil {
		return nil, err
	}
	resp.Body.Close()
	return resp, nil
}

// ProbeGet issues a GET but drains only the headers, closing the body
// immediately. Fallback for hosts that reject HEAD.
func (c *Client) ProbeGet(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent())
	resp, err := c.client().Do(req)
	if err != nil {
		return nil, err
	}
	resp.Body.Close()
	return resp, nil
}

func (c *Client) do(ctx context.Context, rawURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, backoff.Permanent(err)
	}
	req.Header.Set("User-Agent", c.userAgent())

	resp, err := c.client().Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return data, resp.StatusCode, nil
}

// client rotates across the configured outbound identities per call.
func (c *Client) client() *http.Client {
	n := atomic.AddUint64(&c.next, 1)
	return c.clients[n%uint64(len(c.clients))]
}

func (c *Client) userAgent() string {
	n := atomic.LoadUint64(&c.next)
	return c.userAgents[n%uint64(len(c.userAgents))]
}

func (c *Client) waitHost(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	c.mu.Lock()
	lim, ok := c.limiters[u.Host]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(c.cfg.HostRPS), 1)
		c.limiters[u.Host] = lim
	}
	c.mu.Unlock()
	return lim.Wait(ctx)
}
