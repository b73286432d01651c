package booru

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"

	"github.com/hikawa-dev/booru/tags"
)

// Query is a validated, frozen search. It is produced by Builder.Build and
// never mutated afterwards, so it may be shared across concurrent
// executions without synchronization.
type Query struct {
	site      string
	tags      []string
	rating    Rating
	sort      Sort
	blacklist []string
	page      int
	limit     int
	key       string
	user      string
}

// Site returns the name of the site the query was built for.
func (q *Query) Site() string { return q.site }

// Tags returns the search tags in insertion order.
func (q *Query) Tags() []string { return slices.Clone(q.tags) }

// Rating returns the rating filter, or nil if none was set.
func (q *Query) Rating() Rating { return q.rating }

// Sort returns the requested ordering, SortNone if unset.
func (q *Query) Sort() Sort { return q.sort }

// Blacklist returns the excluded tags.
func (q *Query) Blacklist() []string { return slices.Clone(q.blacklist) }

// Page returns the page number, starting at 0.
func (q *Query) Page() int { return q.page }

// Limit returns the page size.
func (q *Query) Limit() int { return q.limit }

// Credentials returns the API key and user ID, with ok false when none
// were provided.
func (q *Query) Credentials() (key, user string, ok bool) {
	return q.key, q.user, q.key != "" || q.user != ""
}

// TagExpression composes the full search string a site expects: tags in
// insertion order, the rating filter, blacklisted tags with a leading "-",
// and the sort directive under the site's prefix ("order:" or "sort:").
func (q *Query) TagExpression(sortPrefix string) string {
	parts := make([]string, 0, len(q.tags)+len(q.blacklist)+2)
	parts = append(parts, q.tags...)
	if q.rating != nil && q.rating.String() != "" {
		parts = append(parts, "rating:"+q.rating.String())
	}
	for _, t := range q.blacklist {
		parts = append(parts, "-"+t)
	}
	if q.sort != SortNone {
		parts = append(parts, sortPrefix+q.sort.String())
	}
	return strings.Join(parts, " ")
}

// CacheKey derives a content-addressed key from the frozen query.
// Tag insertion order is not significant: two queries with the same tag
// set and otherwise identical fields share a key. Authenticated queries
// are keyed separately from anonymous ones.
func (q *Query) CacheKey() string {
	sortedTags := slices.Clone(q.tags)
	slices.Sort(sortedTags)
	sortedBlacklist := slices.Clone(q.blacklist)
	slices.Sort(sortedBlacklist)

	rating := ""
	if q.rating != nil {
		rating = q.rating.String()
	}
	canonical := fmt.Sprintf("%s:%s:rating=%s:sort=%s:block=%s:limit=%d:page=%d",
		q.site,
		strings.Join(sortedTags, ","),
		rating,
		q.sort,
		strings.Join(sortedBlacklist, ","),
		q.limit,
		q.page,
	)
	if q.key != "" || q.user != "" {
		canonical += "|auth"
	}
	return hashKey(canonical)
}

// withPage returns a copy of the query on a different page. Used by
// Stream to advance without mutating the frozen base query.
func (q *Query) withPage(page int) *Query {
	cp := *q
	cp.page = page
	return &cp
}

func hashKey(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Option configures a Builder.
type Option func(*builderConfig)

type builderConfig struct {
	exec *Executor
}

// WithExecutor sets the executor a builder's fetches run through. Pass the
// same executor to several builders to share one rate limiter and cache.
func WithExecutor(e *Executor) Option {
	return func(c *builderConfig) { c.exec = e }
}

// Builder accumulates a search incrementally and freezes it into a Query.
//
// Tag additions fail fast: validation errors and site tag-limit overruns
// are reported by the Tag call itself rather than after an HTTP round trip.
type Builder[P Post] struct {
	adapter   Adapter[P]
	exec      *Executor
	tags      []string
	warnings  []tags.Warning
	rating    Rating
	sort      Sort
	blacklist []string
	page      int
	limit     int
	key       string
	user      string
}

// NewBuilder creates a builder for the given site adapter. Without
// WithExecutor, the builder constructs its own executor with default rate
// limiting and retry and no cache.
func NewBuilder[P Post](adapter Adapter[P], opts ...Option) *Builder[P] {
	cfg := &builderConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.exec == nil {
		cfg.exec = NewExecutor()
	}
	return &Builder[P]{
		adapter: adapter,
		exec:    cfg.exec,
		limit:   100,
	}
}

// Tag validates and adds a search tag. It fails with *InvalidTagError for
// unusable input and with *TagLimitError when the addition would exceed
// the site's tag limit. Non-fatal validation findings accumulate and are
// available from Warnings.
func (b *Builder[P]) Tag(name string) error {
	normalized, err := b.addTag(name)
	if err != nil {
		return err
	}
	b.tags = append(b.tags, normalized)
	return nil
}

// Tags adds several tags, short-circuiting on the first failure. Tags
// added before the failure remain in the builder.
func (b *Builder[P]) Tags(names ...string) error {
	for _, name := range names {
		if err := b.Tag(name); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder[P]) addTag(name string) (string, error) {
	v := tags.Validate(name)
	if !v.Valid {
		return "", &InvalidTagError{Tag: name, Reason: "empty tag"}
	}
	if max := b.adapter.MaxTags(); max > 0 && len(b.tags) >= max {
		return "", &TagLimitError{Site: b.adapter.Name(), Max: max, Actual: len(b.tags) + 1}
	}
	b.warnings = append(b.warnings, v.Warnings...)
	return v.Normalized, nil
}

// Warnings returns the non-fatal validation findings accumulated so far.
func (b *Builder[P]) Warnings() []tags.Warning {
	return slices.Clone(b.warnings)
}

// TagCount returns the number of search tags added so far.
func (b *Builder[P]) TagCount() int { return len(b.tags) }

// Rating restricts results to the given site-specific rating.
func (b *Builder[P]) Rating(r Rating) *Builder[P] {
	b.rating = r
	return b
}

// Sort orders results by the given mode.
func (b *Builder[P]) Sort(s Sort) *Builder[P] {
	b.sort = s
	return b
}

// Random orders results randomly. Shorthand for Sort(SortRandom).
func (b *Builder[P]) Random() *Builder[P] {
	return b.Sort(SortRandom)
}

// BlacklistTag excludes posts carrying the given tag. The tag is
// normalized the same way search tags are; unusable input is ignored.
func (b *Builder[P]) BlacklistTag(name string) *Builder[P] {
	if v := tags.Validate(name); v.Valid {
		b.blacklist = append(b.blacklist, v.Normalized)
	}
	return b
}

// BlacklistTags excludes several tags.
func (b *Builder[P]) BlacklistTags(names ...string) *Builder[P] {
	for _, name := range names {
		b.BlacklistTag(name)
	}
	return b
}

// Page sets the page number. Numbering starts at 0.
func (b *Builder[P]) Page(n int) *Builder[P] {
	if n >= 0 {
		b.page = n
	}
	return b
}

// Limit sets the page size. Default is 100, which is also the maximum on
// most sites.
func (b *Builder[P]) Limit(n int) *Builder[P] {
	if n > 0 {
		b.limit = n
	}
	return b
}

// SetCredentials sets the API key and user ID for authenticated requests.
// Missing credentials for a site that requires them are not an error here:
// they may be injected right up until the request, and the adapter reports
// ErrUnauthorized if the site rejects the call.
func (b *Builder[P]) SetCredentials(key, user string) *Builder[P] {
	b.key = key
	b.user = user
	return b
}

// Build validates and freezes the accumulated search into an immutable
// Query.
func (b *Builder[P]) Build() (*Query, error) {
	if max := b.adapter.MaxTags(); max > 0 && len(b.tags) > max {
		return nil, &TagLimitError{Site: b.adapter.Name(), Max: max, Actual: len(b.tags)}
	}
	return &Query{
		site:      b.adapter.Name(),
		tags:      slices.Clone(b.tags),
		rating:    b.rating,
		sort:      b.sort,
		blacklist: slices.Clone(b.blacklist),
		page:      b.page,
		limit:     b.limit,
		key:       b.key,
		user:      b.user,
	}, nil
}

// Get builds the query and fetches a single batch through the executor.
func (b *Builder[P]) Get(ctx context.Context) ([]P, error) {
	q, err := b.Build()
	if err != nil {
		return nil, err
	}
	return Execute(ctx, b.exec, b.adapter, q)
}

// GetByID fetches a single post by ID through the executor.
func (b *Builder[P]) GetByID(ctx context.Context, id uint64) (P, error) {
	return ExecuteByID(ctx, b.exec, b.adapter, id)
}

// PostStream builds the query and returns a stream that pages through all
// matching posts.
func (b *Builder[P]) PostStream() *Stream[P] {
	q, err := b.Build()
	if err != nil {
		return failedStream[P](err)
	}
	return NewStream(b.exec, b.adapter, q)
}
