// Package catalogclient talks to the catalog read API and keeps the
// browsing state (filters, sort, paging) on the client side.
package catalogclient

import (
	"bytes"
	"context"
	crand "crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"realty_catalog/internal/adapters/observability"
	"realty_catalog/internal/domain"
)

const (
	maxAttempts = 4
	// maxCachedBodies bounds the ETag cache; the oldest URL is evicted first.
	maxCachedBodies = 64
)

type Client struct {
	base string
	hc   *http.Client
	rl   *rate.Limiter

	mu    sync.Mutex
	etags map[string]cachedBody // url -> last 200 response
	order []string              // insertion order of etags keys
}

type cachedBody struct {
	etag string
	body []byte
}

func New(base string, rps int) (*Client, error) {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return nil, fmt.Errorf("catalog base URL is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("catalog base URL: %w", err)
	}
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		base:  base,
		hc:    &http.Client{Timeout: 20 * time.Second},
		rl:    rate.NewLimiter(rate.Limit(rps), rps),
		etags: make(map[string]cachedBody),
	}, nil
}

// ---- Public API ----

func (c *Client) ListProperties(ctx context.Context, st QueryState) (domain.PropertyPage, error) {
	var out domain.PropertyPage
	return out, c.get(ctx, "/api/properties", st.Values(), &out)
}

func (c *Client) ListComplexes(ctx context.Context, st QueryState) (domain.GroupPage, error) {
	var out domain.GroupPage
	return out, c.get(ctx, "/api/complexes", st.Values(), &out)
}

func (c *Client) Ranges(ctx context.Context, developer, complex string) (map[string]domain.Bounds, error) {
	var out map[string]domain.Bounds
	return out, c.get(ctx, "/api/properties/ranges", scopeValues(developer, complex), &out)
}

func (c *Client) FilterOptions(ctx context.Context, developer, complex string) (map[string][]domain.TagValue, error) {
	var out map[string][]domain.TagValue
	return out, c.get(ctx, "/api/properties/filter-options", scopeValues(developer, complex), &out)
}

func (c *Client) ComplexDetail(ctx context.Context, developer, complex string) (domain.ComplexDetail, error) {
	var out domain.ComplexDetail
	return out, c.get(ctx, "/api/complexes/details", scopeValues(developer, complex), &out)
}

func (c *Client) Developers(ctx context.Context) ([]domain.DeveloperSummary, error) {
	var out struct {
		Developers []domain.DeveloperSummary `json:"developers"`
	}
	err := c.get(ctx, "/api/developers", nil, &out)
	return out.Developers, err
}

func (c *Client) Developer(ctx context.Context, slug string) (domain.DeveloperDetail, error) {
	var out domain.DeveloperDetail
	return out, c.get(ctx, "/api/developers/"+url.PathEscape(slug), nil, &out)
}

func (c *Client) GetProperty(ctx context.Context, id string) (domain.Property, error) {
	var out domain.Property
	return out, c.get(ctx, "/api/properties/"+url.PathEscape(id), nil, &out)
}

func scopeValues(developer, complex string) url.Values {
	v := url.Values{}
	if developer != "" {
		v.Set("developer", developer)
	}
	if complex != "" {
		v.Set("complex", complex)
	}
	return v
}

// ---- Internals ----

type problem struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// remoteError maps a problem response onto the domain sentinels.
func remoteError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var p problem
	msg := strings.TrimSpace(string(b))
	if json.Unmarshal(b, &p) == nil && (p.Detail != "" || p.Title != "") {
		msg = p.Detail
		if msg == "" {
			msg = p.Title
		}
	}
	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("catalog: %s: %w", msg, domain.ErrNotFound)
	case http.StatusBadRequest:
		return fmt.Errorf("catalog: %s: %w", msg, domain.ErrInvalid)
	case http.StatusConflict:
		return fmt.Errorf("catalog: %s: %w", msg, domain.ErrConflict)
	}
	return fmt.Errorf("bad status %d: %s", resp.StatusCode, msg)
}

// endpointLabel folds ids and slugs out of the metrics label.
func endpointLabel(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/developers/"):
		return "/api/developers/{slug}"
	case strings.HasPrefix(path, "/api/properties/") &&
		path != "/api/properties/ranges" && path != "/api/properties/filter-options":
		return "/api/properties/{id}"
	}
	return path
}

// get performs a GET with client-side rate limiting, retries, and JSON decode into out.
// Retries on 429 and transient 5xx, honoring Retry-After when provided.
func (c *Client) remember(u string, b cachedBody) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.etags[u]; !ok {
		c.order = append(c.order, u)
		if len(c.order) > maxCachedBodies {
			delete(c.etags, c.order[0])
			c.order = c.order[1:]
		}
	}
	c.etags[u] = b
}

// A 304 reuses the body last seen for the same URL.
func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	u := c.base + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}

	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "realty-catalog-client/1.0")
		c.mu.Lock()
		prev, havePrev := c.etags[u]
		c.mu.Unlock()
		if havePrev {
			req.Header.Set("If-None-Match", prev.etag)
		}

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			if i < maxAttempts-1 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr
		}
		observability.ObserveExternal("catalog", endpointLabel(path), resp.StatusCode, time.Since(start))

		switch resp.StatusCode {
		case http.StatusOK:
			body, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				return err
			}
			if etag := resp.Header.Get("ETag"); etag != "" {
				c.remember(u, cachedBody{etag: etag, body: body})
			}
			return json.NewDecoder(bytes.NewReader(body)).Decode(out)

		case http.StatusNotModified:
			resp.Body.Close()
			if !havePrev {
				return errors.New("catalog: 304 without a cached body")
			}
			return json.Unmarshal(prev.body, out)

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			wait := retryAfter(resp)
			lastErr = remoteError(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			if i < maxAttempts-1 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr

		default:
			err := remoteError(resp)
			resp.Body.Close()
			return err
		}
	}
	return lastErr
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After header (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff doubles from 200ms per attempt with up to +50% jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	return base + time.Duration(0.5*f*float64(base))
}
