package catalogclient_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"realty_catalog/internal/adapters/catalogclient"
)

// numbers serves 0..n-1, or only even numbers when the "parity" set is "even".
func numbers(n int, calls *int32) catalogclient.Fetcher[int] {
	return func(ctx context.Context, st catalogclient.QueryState) (catalogclient.Page[int], error) {
		if calls != nil {
			atomic.AddInt32(calls, 1)
		}
		var all []int
		for i := 0; i < n; i++ {
			if vals := st.Sets["parity"]; len(vals) > 0 && vals[0] == "even" && i%2 != 0 {
				continue
			}
			all = append(all, i)
		}
		end := st.Skip + st.Limit
		if end > len(all) {
			end = len(all)
		}
		if st.Skip > len(all) {
			return catalogclient.Page[int]{Total: int64(len(all))}, nil
		}
		return catalogclient.Page[int]{Total: int64(len(all)), Items: all[st.Skip:end]}, nil
	}
}

func TestSession_ReplaceThenAppend(t *testing.T) {
	ctx := context.Background()
	s := catalogclient.NewSession(numbers(45, nil), catalogclient.QueryState{Limit: 20}, catalogclient.Options[int]{})
	defer s.Close()

	if err := s.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	for s.HasMore() {
		if err := s.LoadMore(ctx); err != nil {
			t.Fatal(err)
		}
	}
	v := s.Snapshot()
	if len(v.Items) != 45 || v.Total != 45 {
		t.Fatalf("accumulated %d of %d", len(v.Items), v.Total)
	}
	for i, n := range v.Items {
		if n != i {
			t.Fatalf("item %d = %d: pages overlap or skip", i, n)
		}
	}

	if err := s.Update(ctx, func(st catalogclient.QueryState) catalogclient.QueryState {
		return st.WithValues("parity", "even")
	}); err != nil {
		t.Fatal(err)
	}
	v = s.Snapshot()
	if v.Total != 23 || len(v.Items) != 20 || v.Items[1] != 2 {
		t.Fatalf("filter change must replace results: total=%d len=%d", v.Total, len(v.Items))
	}
}

func TestSession_DiscardsSupersededResponse(t *testing.T) {
	ctx := context.Background()
	started := make(chan struct{})
	release := make(chan struct{})
	base := numbers(10, nil)
	fetch := func(ctx context.Context, st catalogclient.QueryState) (catalogclient.Page[int], error) {
		if st.Sort == "slow" {
			close(started)
			<-release
			return catalogclient.Page[int]{Total: 99, Items: []int{99}}, nil
		}
		return base(ctx, st)
	}
	s := catalogclient.NewSession[int](fetch, catalogclient.QueryState{}, catalogclient.Options[int]{})
	defer s.Close()

	done := make(chan error, 1)
	go func() {
		done <- s.Update(ctx, func(st catalogclient.QueryState) catalogclient.QueryState { return st.WithSort("slow") })
	}()
	<-started

	if err := s.Update(ctx, func(st catalogclient.QueryState) catalogclient.QueryState { return st.WithSort("fast") }); err != nil {
		t.Fatal(err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("superseded update: %v", err)
	}

	v := s.Snapshot()
	if v.Total != 10 || v.State.Sort != "fast" || len(v.Items) != 10 {
		t.Fatalf("stale response applied: %+v", v)
	}
}

func TestSession_CollapsesOverlappingLoadMore(t *testing.T) {
	ctx := context.Background()
	var appendCalls int32
	started := make(chan struct{})
	release := make(chan struct{})
	base := numbers(100, nil)
	fetch := func(ctx context.Context, st catalogclient.QueryState) (catalogclient.Page[int], error) {
		if st.Skip > 0 {
			if atomic.AddInt32(&appendCalls, 1) == 1 {
				close(started)
				<-release
			}
		}
		return base(ctx, st)
	}
	s := catalogclient.NewSession[int](fetch, catalogclient.QueryState{Limit: 10}, catalogclient.Options[int]{})
	defer s.Close()
	if err := s.Refresh(ctx); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = s.LoadMore(ctx)
	}()
	<-started
	if err := s.LoadMore(ctx); err != nil {
		t.Fatal(err)
	}
	close(release)
	wg.Wait()

	if n := atomic.LoadInt32(&appendCalls); n != 1 {
		t.Fatalf("expected one page fetch, got %d", n)
	}
	if got := len(s.Snapshot().Items); got != 20 {
		t.Fatalf("items = %d", got)
	}
}

func TestSession_ErrorKeepsPreviousResults(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	base := numbers(5, nil)
	fetch := func(ctx context.Context, st catalogclient.QueryState) (catalogclient.Page[int], error) {
		if st.Sort == "broken" {
			return catalogclient.Page[int]{}, boom
		}
		return base(ctx, st)
	}
	s := catalogclient.NewSession[int](fetch, catalogclient.QueryState{}, catalogclient.Options[int]{})
	defer s.Close()
	if err := s.Refresh(ctx); err != nil {
		t.Fatal(err)
	}

	err := s.Update(ctx, func(st catalogclient.QueryState) catalogclient.QueryState { return st.WithSort("broken") })
	if !errors.Is(err, boom) {
		t.Fatalf("Update err = %v", err)
	}
	v := s.Snapshot()
	if !errors.Is(v.Err, boom) || len(v.Items) != 5 || v.Loading {
		t.Fatalf("view after error: %+v", v)
	}

	if err := s.Update(ctx, func(st catalogclient.QueryState) catalogclient.QueryState { return st.WithSort("") }); err != nil {
		t.Fatal(err)
	}
	if v := s.Snapshot(); v.Err != nil {
		t.Fatalf("retry should clear the error: %v", v.Err)
	}
}

func TestSession_DebounceFetchesOnce(t *testing.T) {
	var calls int32
	views := make(chan catalogclient.View[int], 64)
	s := catalogclient.NewSession(numbers(8, &calls), catalogclient.QueryState{}, catalogclient.Options[int]{
		Debounce: 20 * time.Millisecond,
		OnChange: func(v catalogclient.View[int]) {
			select {
			case views <- v:
			default:
			}
		},
	})
	defer s.Close()

	ctx := context.Background()
	for _, tok := range []string{"a", "b", "c"} {
		if err := s.Update(ctx, func(st catalogclient.QueryState) catalogclient.QueryState { return st.WithSort(tok) }); err != nil {
			t.Fatal(err)
		}
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case v := <-views:
			if !v.Loading && v.Generation == 3 && len(v.Items) == 8 {
				if n := atomic.LoadInt32(&calls); n != 1 {
					t.Fatalf("expected a single fetch, got %d", n)
				}
				if v.State.Sort != "c" {
					t.Fatalf("settled on %q", v.State.Sort)
				}
				return
			}
		case <-deadline:
			t.Fatalf("debounced fetch never landed: %+v", s.Snapshot())
		}
	}
}

func TestSession_Closed(t *testing.T) {
	s := catalogclient.NewSession(numbers(1, nil), catalogclient.QueryState{}, catalogclient.Options[int]{})
	s.Close()
	if err := s.Refresh(context.Background()); !errors.Is(err, catalogclient.ErrClosed) {
		t.Fatalf("Refresh after Close = %v", err)
	}
	if err := s.LoadMore(context.Background()); !errors.Is(err, catalogclient.ErrClosed) {
		t.Fatalf("LoadMore after Close = %v", err)
	}
}
