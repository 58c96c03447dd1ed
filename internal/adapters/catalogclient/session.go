package catalogclient

import (
	"context"
	"errors"
	"sync"
	"time"

	"realty_catalog/internal/domain"
)

var ErrClosed = errors.New("catalogclient: session closed")

// Page is one window of results.
type Page[T any] struct {
	Total int64
	Items []T
}

// Fetcher loads the page described by st (st.Skip, st.Limit).
type Fetcher[T any] func(ctx context.Context, st QueryState) (Page[T], error)

// View is a consistent snapshot of a session.
type View[T any] struct {
	State      QueryState
	Items      []T
	Total      int64
	Err        error
	Loading    bool
	Generation uint64
}

type Options[T any] struct {
	// Debounce delays the fetch after Update until the state has been
	// stable this long. Zero fetches synchronously inside Update.
	Debounce time.Duration
	// OnChange receives a snapshot after every state or result change.
	OnChange func(View[T])
}

// Session owns a QueryState and the results accumulated for it. Every
// filter or sort change starts a new generation; responses belonging to an
// older generation are dropped and their requests cancelled.
type Session[T any] struct {
	fetch Fetcher[T]
	opts  Options[T]

	mu          sync.Mutex
	state       QueryState
	items       []T
	total       int64
	err         error
	inflight    int
	gen         uint64
	loadedGen   uint64 // generation whose first page is in items
	genCtx      context.Context
	genCancel   context.CancelFunc
	loadingMore bool
	timer       *time.Timer
	closed      bool
}

func NewSession[T any](fetch Fetcher[T], initial QueryState, opts Options[T]) *Session[T] {
	s := &Session[T]{fetch: fetch, opts: opts, state: initial.clone()}
	s.genCtx, s.genCancel = context.WithCancel(context.Background())
	return s
}

// ListProperties adapts the client to a property session fetcher.
func ListProperties(c *Client) Fetcher[domain.Property] {
	return func(ctx context.Context, st QueryState) (Page[domain.Property], error) {
		p, err := c.ListProperties(ctx, st)
		return Page[domain.Property]{Total: p.Total, Items: p.Properties}, err
	}
}

// ListComplexes adapts the client to a grouped session fetcher.
func ListComplexes(c *Client) Fetcher[domain.GroupSummary] {
	return func(ctx context.Context, st QueryState) (Page[domain.GroupSummary], error) {
		p, err := c.ListComplexes(ctx, st)
		return Page[domain.GroupSummary]{Total: p.Total, Items: p.Complexes}, err
	}
}

// bump starts a new generation; the caller holds mu.
func (s *Session[T]) bump() uint64 {
	s.gen++
	s.genCancel()
	s.genCtx, s.genCancel = context.WithCancel(context.Background())
	s.loadingMore = false
	s.err = nil
	return s.gen
}

// Update applies fn to the state, resets paging and replaces the results.
// With a debounce configured the fetch happens later and errors surface in
// the View; otherwise Update returns the fetch error.
func (s *Session[T]) Update(ctx context.Context, fn func(QueryState) QueryState) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	next := fn(s.state.clone())
	next.Skip = 0
	s.state = next
	g := s.bump()

	if d := s.opts.Debounce; d > 0 {
		if s.timer != nil {
			s.timer.Stop()
		}
		s.timer = time.AfterFunc(d, func() { _ = s.load(context.Background(), g, false) })
		s.mu.Unlock()
		s.notify()
		return nil
	}
	s.mu.Unlock()
	s.notify()
	return s.load(ctx, g, false)
}

// Refresh re-fetches the first page of the current state, e.g. after an error.
func (s *Session[T]) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	g := s.bump()
	s.mu.Unlock()
	return s.load(ctx, g, false)
}

// LoadMore appends the next page. It does nothing until the first page of
// the current state has arrived, when everything is loaded, or while another
// LoadMore is in flight.
func (s *Session[T]) LoadMore(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.loadingMore || !s.hasMoreLocked() {
		s.mu.Unlock()
		return nil
	}
	s.loadingMore = true
	g := s.gen
	s.mu.Unlock()

	err := s.load(ctx, g, true)

	s.mu.Lock()
	if s.gen == g {
		s.loadingMore = false
	}
	s.mu.Unlock()
	return err
}

func (s *Session[T]) load(ctx context.Context, g uint64, appendPage bool) error {
	s.mu.Lock()
	if s.closed || s.gen != g {
		s.mu.Unlock()
		return nil
	}
	st := s.state.clone()
	st.Skip = 0
	if appendPage {
		st.Skip = len(s.items)
	}
	st.Limit = st.pageSize()
	fctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.genCtx, cancel)
	s.inflight++
	s.mu.Unlock()
	s.notify()

	page, err := s.fetch(fctx, st)
	stop()
	cancel()

	s.mu.Lock()
	s.inflight--
	if s.gen != g {
		// superseded while in flight
		s.mu.Unlock()
		s.notify()
		return nil
	}
	if err != nil {
		s.err = err
	} else {
		s.err = nil
		s.total = page.Total
		if appendPage {
			s.items = append(s.items, page.Items...)
		} else {
			s.items = append([]T(nil), page.Items...)
			s.loadedGen = g
		}
	}
	s.mu.Unlock()
	s.notify()
	return err
}

func (s *Session[T]) hasMoreLocked() bool {
	return s.loadedGen == s.gen && int64(len(s.items)) < s.total
}

func (s *Session[T]) HasMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasMoreLocked()
}

func (s *Session[T]) State() QueryState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

func (s *Session[T]) Snapshot() View[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return View[T]{
		State:      s.state.clone(),
		Items:      append([]T(nil), s.items...),
		Total:      s.total,
		Err:        s.err,
		Loading:    s.inflight > 0 || (s.loadedGen != s.gen && s.err == nil),
		Generation: s.gen,
	}
}

// Close cancels pending work; later calls return ErrClosed.
func (s *Session[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.genCancel()
}

func (s *Session[T]) notify() {
	if s.opts.OnChange != nil {
		s.opts.OnChange(s.Snapshot())
	}
}
