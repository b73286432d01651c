// Package rule34 fetches posts from api.rule34.xxx.
//
// Rule34 is an NSFW image board; nothing is filtered by default. The API
// requires credentials, and on some endpoints reports missing
// authentication as an HTTP 200 with an error message in the body rather
// than a 401. Both cases surface as booru.ErrUnauthorized.
package rule34

import (
	"bytes"
	"context"
	"encoding/json"
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
	Name = "rule34"
	// BaseURL is the production API endpoint.
	BaseURL = "https://api.rule34.xxx"

	sortPrefix = "sort:"
)

// Rating is Rule34's content classification.
type Rating string

// Rule34 ratings.
const (
	RatingExplicit     Rating = "explicit"
	RatingQuestionable Rating = "questionable"
	RatingSafe         Rating = "safe"
	RatingGeneral      Rating = "general"
	RatingSensitive    Rating = "sensitive"
)

func (r Rating) String() string { return string(r) }

// Post is a single Rule34 post.
type Post struct {
	PostID       uint64 `json:"id"`
	PostScore    int    `json:"score"`
	ImageWidth   int    `json:"width"`
	ImageHeight  int    `json:"height"`
	File         string `json:"file_url"`
	Preview      string `json:"preview_url"`
	Sample       string `json:"sample_url"`
	TagString    string `json:"tags"`
	PostRating   Rating `json:"rating"`
	SourceURL    string `json:"source"`
	HasNotes     bool   `json:"has_notes"`
	CommentCount int    `json:"comment_count"`
	Owner        string `json:"owner"`
	ParentID     uint64 `json:"parent_id"`
	Status       string `json:"status"`
	Change       int64  `json:"change"`
	Directory    int    `json:"directory"`
	Image        string `json:"image"`
	Hash         string `json:"hash"`
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

// Client is the Rule34 site adapter.
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

// New creates a Rule34 client.
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

// Name returns "rule34".
func (*Client) Name() string { return Name }

// MaxTags returns 0; Rule34 has no tag limit.
func (*Client) MaxTags() int { return 0 }

// RequiresAuth returns true.
func (*Client) RequiresAuth() bool { return true }

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
	addCredentials(params, q)

	body, err := api.GetBody(ctx, c.httpClient, c.logger, Name, c.baseURL+"/index.php?"+params.Encode())
	if err != nil {
		return nil, err
	}
	return decodePosts(body)
}

// FetchByID retrieves a single post.
func (c *Client) FetchByID(ctx context.Context, id uint64) (Post, error) {
	params := dapiParams()
	params.Set("id", strconv.FormatUint(id, 10))

	body, err := api.GetBody(ctx, c.httpClient, c.logger, Name, c.baseURL+"/index.php?"+params.Encode())
	if err != nil {
		return Post{}, err
	}
	posts, err := decodePosts(body)
	if err != nil {
		return Post{}, err
	}
	if len(posts) == 0 {
		return Post{}, fmt.Errorf("%w: rule34 post %d", booru.ErrPostNotFound, id)
	}
	return posts[0], nil
}

// decodePosts handles Rule34's soft failure modes: a "Missing
// authentication" message behind a 200, and an empty body when nothing
// matched.
func decodePosts(body []byte) ([]Post, error) {
	if bytes.Contains(body, []byte("Missing authentication")) {
		return nil, fmt.Errorf("%w: rule34 requires api_key and user_id credentials", booru.ErrUnauthorized)
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil
	}
	var posts []Post
	if err := json.Unmarshal(trimmed, &posts); err != nil {
		return nil, &booru.DecodeError{Site: Name, Err: err}
	}
	return posts, nil
}

type autocompleteItem struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Suggest returns tag completions from Rule34's autocomplete endpoint.
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

func addCredentials(params url.Values, q *booru.Query) {
	if key, user, ok := q.Credentials(); ok {
		params.Set("api_key", key)
		params.Set("user_id", user)
	}
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
