// Package chain reads live validator data from a chain node's HTTP sidecar.
//
// Requests go to one endpoint at a time. An endpoint that errors, answers
// 5xx or throttles with 429 is skipped for the rest of the request, and after
// enough consecutive failures its breaker opens for a cooldown. When every
// endpoint is out the error wraps model.ErrEndpointsExhausted, plus
// model.ErrRateLimited if throttling was the last failure.
package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	"github.com/okian/otv/internal/domain/model"
	"github.com/okian/otv/pkg/logger"
	"github.com/okian/otv/pkg/metrics"
)

const cacheSize = 4096

// Client is an HTTP chain data provider with failover, a token bucket and a
// per-endpoint circuit breaker.
type Client struct {
	endpoints []string
	current   atomic.Int64
	client    *http.Client
	limiter   *rate.Limiter
	cache     *expirable.LRU[string, json.RawMessage]
	log       logger.Logger

	// circuit-breaker
	mu       sync.Mutex
	failures map[string]int
	opened   map[string]time.Time

	breakerThreshold int
	breakerCooldown  time.Duration
}

// Opts is the set of options for a new Client.
type Opts struct {
	Endpoints       []string
	Timeout         time.Duration
	RPS             int
	Burst           int
	BreakerFailures int
	BreakerCooldown time.Duration
	CacheTTL        time.Duration
	HTTPClient      *http.Client
	Logger          logger.Logger
}

// New creates a Client with the given options.
func New(o Opts) *Client {
	if o.RPS <= 0 {
		o.RPS = 20
	}
	if o.Burst <= 0 {
		o.Burst = 40
	}
	if o.Timeout <= 0 {
		o.Timeout = 15 * time.Second
	}
	if o.BreakerFailures <= 0 {
		o.BreakerFailures = 3
	}
	if o.BreakerCooldown <= 0 {
		o.BreakerCooldown = 30 * time.Second
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = time.Minute
	}
	if o.Logger == nil {
		o.Logger = logger.NewNop()
	}

	client := o.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: o.Timeout}
	} else if client.Timeout == 0 {
		client.Timeout = o.Timeout
	}

	// The first endpoint is the primary; duplicates keep their first position.
	seen := mapset.NewThreadUnsafeSet[string]()
	endpoints := make([]string, 0, len(o.Endpoints))
	for _, ep := range o.Endpoints {
		if ep == "" || !seen.Add(ep) {
			continue
		}
		endpoints = append(endpoints, ep)
	}

	return &Client{
		endpoints:        endpoints,
		client:           client,
		limiter:          rate.NewLimiter(rate.Limit(o.RPS), o.Burst),
		cache:            expirable.NewLRU[string, json.RawMessage](cacheSize, nil, o.CacheTTL),
		log:              o.Logger.Named("chain"),
		failures:         map[string]int{},
		opened:           map[string]time.Time{},
		breakerThreshold: o.BreakerFailures,
		breakerCooldown:  o.BreakerCooldown,
	}
}

// isOpen returns true if the endpoint's breaker is OPEN.
func (c *Client) isOpen(ep string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	until, ok := c.opened[ep]
	if !ok {
		return false
	}
	if time.Now().After(until) {
		delete(c.opened, ep)
		c.failures[ep] = 0
		return false
	}
	return true
}

// noteFailure counts a failure and opens the breaker at the threshold.
func (c *Client) noteFailure(ep string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[ep]++
	if c.failures[ep] >= c.breakerThreshold {
		c.opened[ep] = time.Now().Add(c.breakerCooldown)
	}
}

func (c *Client) noteSuccess(ep string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[ep] = 0
}

// getJSON fetches path and hands the body to decode, starting at the
// endpoint that last answered and failing over in order. A body that decode
// rejects counts as an endpoint failure.
func (c *Client) getJSON(ctx context.Context, path string, decode func([]byte) error) error {
	n := len(c.endpoints)
	if n == 0 {
		return ErrNoEndpoints
	}

	start := int(c.current.Load())
	var lastErr error
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		ep := c.endpoints[idx]
		if c.isOpen(ep) {
			continue
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		if i > 0 {
			metrics.RecordRPCFailover()
			c.log.Debug(ctx, "failing over", logger.String("endpoint", ep), logger.String("path", path))
		}

		retry, err := c.fetch(ctx, ep, path, decode)
		if err == nil {
			c.noteSuccess(ep)
			c.current.Store(int64(idx))
			return nil
		}
		if !retry {
			return err
		}
		lastErr = err
		c.noteFailure(ep)
		c.log.Warn(ctx, "chain endpoint failed", logger.String("endpoint", ep), logger.String("path", path), logger.Error(err))
	}

	if lastErr == nil {
		return fmt.Errorf("%w: all breakers open", model.ErrEndpointsExhausted)
	}
	return fmt.Errorf("%w: %w", model.ErrEndpointsExhausted, lastErr)
}

// fetch performs one request. retry reports whether another endpoint
// should be tried.
func (c *Client) fetch(ctx context.Context, ep, path string, decode func([]byte) error) (retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ep+path, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.RecordRPCRequest("transport_error")
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return true, err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		metrics.RecordRPCRequest("rate_limited")
		return true, fmt.Errorf("%w: %s", model.ErrRateLimited, ep)
	case resp.StatusCode >= 500:
		metrics.RecordRPCRequest("server_error")
		return true, fmt.Errorf("%w: %s answered %d", ErrUnexpectedStatus, ep, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		metrics.RecordRPCRequest("not_found")
		return false, fmt.Errorf("%s: %w", path, model.ErrNotFound)
	case resp.StatusCode >= 300:
		metrics.RecordRPCRequest("client_error")
		return false, fmt.Errorf("%w: %s answered %d", ErrUnexpectedStatus, path, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.RecordRPCRequest("transport_error")
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return true, fmt.Errorf("read %s: %w", path, err)
	}
	if err := decode(body); err != nil {
		metrics.RecordRPCRequest("decode_error")
		return true, fmt.Errorf("decode %s: %w", path, err)
	}
	metrics.RecordRPCRequest("ok")
	return false, nil
}

// query fetches path into a T. Every attempt decodes into a zero T, so a
// body rejected by one endpoint leaves nothing behind for the next.
func query[T any](ctx context.Context, c *Client, path string) (T, error) {
	var out T
	err := c.getJSON(ctx, path, func(body []byte) error {
		var v T
		if err := json.Unmarshal(body, &v); err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// cachedQuery is query behind the short-TTL cache. Only bodies that decode
// are cached.
func cachedQuery[T any](ctx context.Context, c *Client, path string) (T, error) {
	if raw, ok := c.cache.Get(path); ok {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, nil
		}
		c.cache.Remove(path)
	}
	var out T
	err := c.getJSON(ctx, path, func(body []byte) error {
		var v T
		if err := json.Unmarshal(body, &v); err != nil {
			return err
		}
		out = v
		c.cache.Add(path, json.RawMessage(body))
		return nil
	})
	return out, err
}
