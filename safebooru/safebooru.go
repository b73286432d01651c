// Package safebooru fetches posts from safebooru.org, a SFW-only booru.
// No credentials are required and there is no tag limit.
package safebooru

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	booru "github.com/hikawa-dev/booru"
	"github.com/hikawa-dev/booru/api"
)

const (
	// Name identifies this site in cache keys and errors.
	Name = "safebooru"
	// BaseURL is the production API endpoint.
	BaseURL = "https://safebooru.org"

	sortPrefix = "sort:"
)

// Rating is Safebooru's content classification. The site is SFW, but
// deleted and hidden posts can carry other ratings.
type Rating string

// Safebooru ratings.
const (
	RatingSafe         Rating = "safe"
	RatingGeneral      Rating = "general"
	RatingQuestionable Rating = "questionable"
	RatingExplicit     Rating = "explicit"
)

func (r Rating) String() string { return string(r) }

// Post is a single Safebooru post. Safebooru has no created_at field;
// Change carries the last modification as a UNIX timestamp.
type Post struct {
	PostID      uint64 `json:"id"`
	PostScore   int    `json:"score"`
	ImageHeight int    `json:"height"`
	ImageWidth  int    `json:"width"`
	Hash        string `json:"hash"`
	TagString   string `json:"tags"`
	Image       string `json:"image"`
	Directory   int    `json:"directory"`
	File        string `json:"file_url"`
	Preview     string `json:"preview_url"`
	Sample      string `json:"sample_url"`
	SourceURL   string `json:"source"`
	Change      int64  `json:"change"`
	PostRating  Rating `json:"rating"`
}

func (p Post) ID() uint64         { return p.PostID }
func (p Post) Width() int         { return p.ImageWidth }
func (p Post) Height() int        { return p.ImageHeight }
func (p Post) FileURL() string    { return p.File }
func (p Post) PreviewURL() string { return p.Preview }
func (p Post) SampleURL() string  { return p.Sample }
func (p Post) Rating() string     { return string(p.PostRating) }
func (p Post) Tags() []string     { return strings.Fields(p.TagString) }
func (p Post) MD5() string        { return p.Hash }
func (p Post) Score() int         { return p.PostScore }
func (p Post) Source() string     { return p.SourceURL }

// Client is the Safebooru site adapter.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the production API endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(u, "/") }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a Safebooru client.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:    BaseURL,
		httpClient: api.NewHTTPClient(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns "safebooru".
func (*Client) Name() string { return Name }

// MaxTags returns 0; Safebooru has no tag limit.
func (*Client) MaxTags() int { return 0 }

// RequiresAuth returns false.
func (*Client) RequiresAuth() bool { return false }

// Builder returns a query builder bound to this client.
func (c *Client) Builder(opts ...booru.Option) *booru.Builder[Post] {
	return booru.NewBuilder[Post](c, opts...)
}

// Fetch retrieves one page of posts matching the query.
func (c *Client) Fetch(ctx context.Context, q *booru.Query) ([]Post, error) {
	params := dapiParams()
	params.Set("pid", strconv.Itoa(q.Page()))
	params.Set("limit", strconv.Itoa(q.Limit()))
	params.Set("tags", q.TagExpression(sortPrefix))

	var posts []Post
	u := c.baseURL + "/index.php?" + params.Encode()
	if err := api.GetJSON(ctx, c.httpClient, c.logger, Name, u, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// FetchByID retrieves a single post.
func (c *Client) FetchByID(ctx context.Context, id uint64) (Post, error) {
	params := dapiParams()
	params.Set("id", strconv.FormatUint(id, 10))

	var posts []Post
	u := c.baseURL + "/index.php?" + params.Encode()
	if err := api.GetJSON(ctx, c.httpClient, c.logger, Name, u, &posts); err != nil {
		return Post{}, err
	}
	if len(posts) == 0 {
		return Post{}, fmt.Errorf("%w: safebooru post %d", booru.ErrPostNotFound, id)
	}
	return posts[0], nil
}

type autocompleteItem struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Suggest returns tag completions from Safebooru's autocomplete endpoint.
// The endpoint takes no limit parameter, so results are truncated locally.
func (c *Client) Suggest(ctx context.Context, prefix string, limit int) ([]booru.TagSuggestion, error) {
	params := url.Values{}
	params.Set("q", prefix)

	var items []autocompleteItem
	u := c.baseURL + "/autocomplete.php?" + params.Encode()
	if err := api.GetJSON(ctx, c.httpClient, c.logger, Name, u, &items); err != nil {
		return nil, err
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}

	suggestions := make([]booru.TagSuggestion, 0, len(items))
	for _, item := range items {
		suggestions = append(suggestions, booru.TagSuggestion{
			Name:      item.Value,
			Label:     item.Label,
			PostCount: postCountFromLabel(item.Label),
		})
	}
	return suggestions, nil
}

func dapiParams() url.Values {
	params := url.Values{}
	params.Set("page", "dapi")
	params.Set("s", "post")
	params.Set("q", "index")
	params.Set("json", "1")
	return params
}

// postCountFromLabel pulls the count out of a label like "cat_ears (177448)".
func postCountFromLabel(label string) int {
	start := strings.LastIndex(label, "(")
	end := strings.LastIndex(label, ")")
	if start < 0 || end < 0 || start >= end {
		return 0
	}
	n, err := strconv.Atoi(label[start+1 : end])
	if err != nil {
		return 0
	}
	return n
}
