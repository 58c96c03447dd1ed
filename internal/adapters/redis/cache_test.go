package redisad_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	redisad "realty_catalog/internal/adapters/redis"
	"realty_catalog/internal/domain"
)

func newCache(t *testing.T) (*redisad.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	return redisad.NewFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()})), mr
}

var _ domain.Cache = (*redisad.Cache)(nil)

func TestCache_SetGetDel(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()

	var got domain.PropertyPage
	if ok, err := c.Get(ctx, "k", &got); ok || err != nil {
		t.Fatalf("empty cache: ok=%v err=%v", ok, err)
	}

	want := domain.PropertyPage{Total: 2, Properties: []domain.Property{{ID: "a", Title: "A"}}}
	if err := c.Set(ctx, "k", want, 60); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if ttl := mr.TTL("k"); ttl.Seconds() != 60 {
		t.Fatalf("ttl = %v", ttl)
	}
	ok, err := c.Get(ctx, "k", &got)
	if !ok || err != nil {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if got.Total != 2 || len(got.Properties) != 1 || got.Properties[0].Title != "A" {
		t.Fatalf("round trip = %+v", got)
	}

	if err := c.Del(ctx, "k"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if mr.Exists("k") {
		t.Fatal("key should be gone")
	}
}

func TestCache_Incr(t *testing.T) {
	c, _ := newCache(t)
	ctx := context.Background()
	for want := int64(1); want <= 3; want++ {
		got, err := c.Incr(ctx, "catalog:gen")
		if err != nil || got != want {
			t.Fatalf("Incr = %d, %v; want %d", got, err, want)
		}
	}
}

func TestCache_CorruptEntryIsAMiss(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()
	if err := mr.Set("k", "{not json"); err != nil {
		t.Fatal(err)
	}
	var got domain.PropertyPage
	ok, err := c.Get(ctx, "k", &got)
	if ok || err != nil {
		t.Fatalf("corrupt entry: ok=%v err=%v", ok, err)
	}
	if mr.Exists("k") {
		t.Fatal("corrupt entry should be dropped")
	}
}

func TestCache_ZeroTTLPersists(t *testing.T) {
	c, mr := newCache(t)
	if err := c.Set(context.Background(), "k", 1, 0); err != nil {
		t.Fatal(err)
	}
	if ttl := mr.TTL("k"); ttl != 0 {
		t.Fatalf("ttl = %v", ttl)
	}
}

func TestCache_UnreachableIsAnError(t *testing.T) {
	c, mr := newCache(t)
	mr.Close()
	var n int
	if _, err := c.Get(context.Background(), "k", &n); err == nil {
		t.Fatal("expected an error from a closed server")
	}
}
