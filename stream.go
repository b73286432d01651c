package booru

import (
	"context"
	"iter"
)

// Stream pages through all posts matching a query, fetching lazily one
// page at a time. It follows the scanner idiom:
//
//	stream := builder.PostStream()
//	for stream.Next(ctx) {
//	    post := stream.Post()
//	    ...
//	}
//	if err := stream.Err(); err != nil {
//	    ...
//	}
//
// A stream is single-use and not safe for concurrent use.
type Stream[P Post] struct {
	exec    *Executor
	adapter Adapter[P]
	query   *Query

	batch    []P
	idx      int
	page     int
	yielded  int
	maxPosts int
	maxPages int

	exhausted bool
	err       error
}

// NewStream creates a stream starting at the query's page. Most callers
// use Builder.PostStream instead.
func NewStream[P Post](e *Executor, adapter Adapter[P], q *Query) *Stream[P] {
	return &Stream[P]{
		exec:    e,
		adapter: adapter,
		query:   q,
		page:    q.Page(),
		idx:     -1,
	}
}

func failedStream[P Post](err error) *Stream[P] {
	return &Stream[P]{err: err, exhausted: true, idx: -1}
}

// MaxPosts caps the total number of posts yielded. Zero means unbounded.
func (s *Stream[P]) MaxPosts(n int) *Stream[P] {
	if n >= 0 {
		s.maxPosts = n
	}
	return s
}

// MaxPages caps the number of pages fetched. Zero means unbounded.
func (s *Stream[P]) MaxPages(n int) *Stream[P] {
	if n >= 0 {
		s.maxPages = n
	}
	return s
}

// Next advances to the next post, fetching a new page when the current
// one is consumed. It returns false when the stream is exhausted, capped,
// or failed; check Err afterwards to distinguish failure from exhaustion.
func (s *Stream[P]) Next(ctx context.Context) bool {
	if s.err != nil {
		return false
	}
	if s.maxPosts > 0 && s.yielded >= s.maxPosts {
		return false
	}

	if s.idx+1 < len(s.batch) {
		s.idx++
		s.yielded++
		return true
	}
	if s.exhausted {
		return false
	}
	if s.maxPages > 0 && s.page-s.query.Page() >= s.maxPages {
		s.exhausted = true
		return false
	}

	batch, err := Execute(ctx, s.exec, s.adapter, s.query.withPage(s.page))
	if err != nil {
		s.err = err
		s.exhausted = true
		return false
	}
	s.page++
	if len(batch) == 0 {
		s.exhausted = true
		return false
	}
	s.batch = batch
	s.idx = 0
	s.yielded++
	return true
}

// Post returns the current post. Valid only after a true Next.
func (s *Stream[P]) Post() P {
	return s.batch[s.idx]
}

// Err returns the error that terminated the stream, if any. Exhaustion is
// not an error.
func (s *Stream[P]) Err() error { return s.err }

// Yielded returns the number of posts yielded so far.
func (s *Stream[P]) Yielded() int { return s.yielded }

// Page returns the next page number to be fetched.
func (s *Stream[P]) Page() int { return s.page }

// Collect drains the stream into a slice. Posts yielded before a failure
// are returned alongside the error.
func (s *Stream[P]) Collect(ctx context.Context) ([]P, error) {
	var posts []P
	for s.Next(ctx) {
		posts = append(posts, s.Post())
	}
	return posts, s.Err()
}

// All returns an iterator over the remaining posts. Iteration stops on
// the first failure; check Err afterwards.
func (s *Stream[P]) All(ctx context.Context) iter.Seq[P] {
	return func(yield func(P) bool) {
		for s.Next(ctx) {
			if !yield(s.Post()) {
				return
			}
		}
	}
}
