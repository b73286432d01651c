// Package booru provides a unified client for querying booru-style image
// board APIs.
//
// Basic usage:
//
//	b := booru.NewBuilder(danbooru.New())
//	if err := b.Tags("cat_ears", "blue_eyes"); err != nil {
//	    log.Fatal(err)
//	}
//	posts, err := b.Rating(danbooru.RatingGeneral).Sort(booru.SortScore).Limit(10).Get(ctx)
//
// For sites requiring authentication (Gelbooru, Rule34):
//
//	b := booru.NewBuilder(gelbooru.New())
//	b.SetCredentials(os.Getenv("GELBOORU_API_KEY"), os.Getenv("GELBOORU_USER_ID"))
//
// Every fetch — single batch, by-ID, or streamed — flows through an
// Executor, which applies rate limiting, response caching, and
// retry-with-backoff uniformly across sites. Share one Executor across
// builders to share its rate limiter and cache:
//
//	store, _ := cache.New(5 * time.Minute)
//	exec := booru.NewExecutor(booru.WithCache(store))
//	b := booru.NewBuilder(danbooru.New(), booru.WithExecutor(exec))
//
// Pagination is handled by Stream:
//
//	s := b.PostStream().MaxPosts(500)
//	for s.Next(ctx) {
//	    fmt.Println(s.Post().ID())
//	}
//	if err := s.Err(); err != nil {
//	    log.Fatal(err)
//	}
package booru

import (
	"context"

	"github.com/hikawa-dev/booru/tags"
)

// InvalidTagError re-exports tags.InvalidTagError for convenience.
type InvalidTagError = tags.InvalidTagError

// Post is the common capability set shared by every site's post type.
// URL and MD5 accessors return "" when the site did not provide a value.
type Post interface {
	ID() uint64
	Width() int
	Height() int
	FileURL() string
	PreviewURL() string
	SampleURL() string
	Rating() string
	Tags() []string
	MD5() string
	Score() int
	Source() string
}

// Adapter is the per-site capability the orchestration layer calls through.
// Implementations perform the actual HTTP request and JSON decoding,
// translating site-specific status codes into the shared error taxonomy.
// Adapters must never be called directly by consumers; fetches go through
// an Executor so rate limiting and caching are never bypassed.
type Adapter[P Post] interface {
	// Name identifies the site, e.g. "danbooru". Used in cache keys and errors.
	Name() string
	// MaxTags is the site's per-query tag limit. 0 means unlimited.
	MaxTags() int
	// RequiresAuth reports whether the site rejects unauthenticated API calls.
	RequiresAuth() bool
	// Fetch retrieves one page of posts matching the frozen query.
	Fetch(ctx context.Context, q *Query) ([]P, error)
	// FetchByID retrieves a single post.
	FetchByID(ctx context.Context, id uint64) (P, error)
}

// Suggester is an optional per-site capability for tag autocomplete.
type Suggester interface {
	Suggest(ctx context.Context, prefix string, limit int) ([]TagSuggestion, error)
}

// TagSuggestion is a single autocomplete result.
type TagSuggestion struct {
	// Name is the tag itself, underscores included.
	Name string `json:"name"`
	// Label is the human-readable form, possibly with a post count.
	Label string `json:"label"`
	// PostCount is the number of posts carrying the tag, 0 if unknown.
	PostCount int `json:"post_count"`
	// Category is one of "general", "artist", "copyright", "character",
	// "meta", or "" when the site did not classify the tag.
	Category string `json:"category,omitempty"`
}

// Rating is a site-defined content classification. Each site package
// supplies its own closed set of values; the builder accepts any of them
// and the adapter renders the site's vocabulary on the wire.
type Rating interface {
	String() string
}

// Sort is a post ordering understood by most booru sites.
type Sort string

// Sort orders shared across sites. Adapters prepend their site's sort
// prefix ("order:" or "sort:") when composing the search string.
const (
	SortNone    Sort = ""
	SortID      Sort = "id"
	SortScore   Sort = "score"
	SortRating  Sort = "rating"
	SortUser    Sort = "user"
	SortHeight  Sort = "height"
	SortWidth   Sort = "width"
	SortSource  Sort = "source"
	SortUpdated Sort = "updated"
	SortRandom  Sort = "random"
)

func (s Sort) String() string { return string(s) }
