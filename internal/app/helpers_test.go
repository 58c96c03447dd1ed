package app_test

import (
	"context"
	"encoding/json"
	"sync"

	"realty_catalog/internal/domain"
)

// jsonCache is an in-process domain.Cache that round-trips values through
// JSON like the Redis adapter does.
type jsonCache struct {
	mu    sync.Mutex
	data  map[string][]byte
	gets  int
	hits  int
	incrs int
}

func newJSONCache() *jsonCache { return &jsonCache{data: map[string][]byte{}} }

func (c *jsonCache) Get(_ context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	b, ok := c.data[key]
	if !ok {
		return false, nil
	}
	c.hits++
	return true, json.Unmarshal(b, dst)
}

func (c *jsonCache) Set(_ context.Context, key string, v any, _ int) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = b
	return nil
}

func (c *jsonCache) Del(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *jsonCache) Incr(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.incrs++
	var n int64
	if b, ok := c.data[key]; ok {
		_ = json.Unmarshal(b, &n)
	}
	n++
	b, _ := json.Marshal(n)
	c.data[key] = b
	return n, nil
}

type countingInvalidator struct {
	mu sync.Mutex
	n  int
}

func (c *countingInvalidator) Invalidate(context.Context) {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (c *countingInvalidator) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func ptr[T any](v T) *T { return &v }

func tagsPtr(kv ...any) *domain.Tags {
	t := domain.Tags{}
	for i := 0; i+1 < len(kv); i += 2 {
		t[kv[i].(string)] = domain.TagFromAny(kv[i+1])
	}
	return &t
}
