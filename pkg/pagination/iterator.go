package pagination

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/rs/zerolog"
)

// ErrCursorReused is returned when the server hands out a cursor that was
// already followed, which would otherwise loop forever.
var ErrCursorReused = errors.New("pagination: cursor reused")

// ErrPageLimit is returned when an iterator reaches its configured page cap.
var ErrPageLimit = errors.New("pagination: page limit reached")

// Page is one server page: its items and the cursor of the next page.
// A nil Next marks the last page.
type Page[T any] struct {
	Items []T
	Next  *string
}

// FetchFunc fetches the page at cursor. A nil cursor requests the first page.
type FetchFunc[T any] func(ctx context.Context, cursor *string) (Page[T], error)

type state int

const (
	stateFetching state = iota
	stateYielding
	stateExhausted
)

type options struct {
	logger   zerolog.Logger
	maxPages int
}

// Option configures an Iterator.
type Option func(*options)

// WithLogger logs page fetches at debug level.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMaxPages stops iteration with ErrPageLimit after n pages. Zero means
// no limit.
func WithMaxPages(n int) Option {
	return func(o *options) { o.maxPages = n }
}

// Iterator lazily walks a cursor-paginated collection. It starts fetching
// with a nil cursor, yields each page's items in order and stops after the
// page whose next cursor is nil or whose items are empty.
//
// An Iterator is not safe for concurrent use and cannot be restarted.
type Iterator[T any] struct {
	fetch FetchFunc[T]
	opts  options

	state  state
	cursor *string
	used   map[string]struct{}
	buf    []T
	item   T
	err    error
	pages  int
}

// New returns an Iterator over the pages produced by fetch. No request is
// made until the first call to Next.
func New[T any](fetch FetchFunc[T], opts ...Option) *Iterator[T] {
	o := options{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Iterator[T]{
		fetch: fetch,
		opts:  o,
		used:  make(map[string]struct{}),
	}
}

// Next advances to the next item, fetching a page when the buffer is empty.
// It returns false when the collection is exhausted or a fetch failed; Err
// tells the two apart.
func (it *Iterator[T]) Next(ctx context.Context) bool {
	for {
		switch it.state {
		case stateExhausted:
			return false

		case stateYielding:
			if len(it.buf) > 0 {
				var zero T
				it.item = it.buf[0]
				it.buf[0] = zero
				it.buf = it.buf[1:]
				return true
			}
			it.buf = nil
			if it.cursor == nil {
				it.finish(nil)
				return false
			}
			it.state = stateFetching

		case stateFetching:
			if it.opts.maxPages > 0 && it.pages >= it.opts.maxPages {
				it.finish(fmt.Errorf("%w (%d)", ErrPageLimit, it.opts.maxPages))
				return false
			}
			if it.cursor != nil {
				it.used[*it.cursor] = struct{}{}
			}

			page, err := it.fetch(ctx, it.cursor)
			it.pages++
			if err != nil {
				it.finish(err)
				return false
			}

			it.opts.logger.Debug().
				Int("page", it.pages).
				Int("items", len(page.Items)).
				Bool("has_next", page.Next != nil).
				Msg("Fetched page")

			if len(page.Items) == 0 {
				it.finish(nil)
				return false
			}

			next := page.Next
			if next != nil && *next == "" {
				next = nil
			}
			if next != nil {
				if _, seen := it.used[*next]; seen {
					it.finish(fmt.Errorf("%w: %q", ErrCursorReused, *next))
					return false
				}
				c := *next
				next = &c
			}

			it.buf = page.Items
			it.cursor = next
			it.state = stateYielding
		}
	}
}

// Item returns the current item. It is only valid after Next returned true.
func (it *Iterator[T]) Item() T {
	return it.item
}

// Err returns the error that ended iteration, if any.
func (it *Iterator[T]) Err() error {
	return it.err
}

// Pages returns the number of page fetches attempted.
func (it *Iterator[T]) Pages() int {
	return it.pages
}

// Stop releases buffered items and ends iteration without further requests.
func (it *Iterator[T]) Stop() {
	it.finish(nil)
}

// All returns the remaining items as a sequence. A fetch error is yielded
// once as the final pair. Breaking out of the loop stops the iterator.
func (it *Iterator[T]) All(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for it.Next(ctx) {
			if !yield(it.Item(), nil) {
				it.Stop()
				return
			}
		}
		if err := it.Err(); err != nil {
			var zero T
			yield(zero, err)
		}
	}
}

// Collect drains the iterator. On error it returns the items read so far.
func (it *Iterator[T]) Collect(ctx context.Context) ([]T, error) {
	var out []T
	for it.Next(ctx) {
		out = append(out, it.Item())
	}
	return out, it.Err()
}

func (it *Iterator[T]) finish(err error) {
	if it.err == nil {
		it.err = err
	}
	var zero T
	it.item = zero
	it.buf = nil
	it.cursor = nil
	it.state = stateExhausted
}
