// Package gelbooru fetches posts from gelbooru.com.
//
// Gelbooru requires API credentials for API access. Obtain an API key and
// user ID from the account options page and pass them with
// Builder.SetCredentials; without them requests fail with
// booru.ErrUnauthorized.
package gelbooru

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
	Name = "gelbooru"
	// BaseURL is the production API endpoint.
	BaseURL = "https://gelbooru.com"

	sortPrefix = "sort:"
)

// Rating is Gelbooru's content classification.
type Rating string

// Gelbooru ratings.
const (
	RatingExplicit     Rating = "explicit"
	RatingQuestionable Rating = "questionable"
	RatingSensitive    Rating = "sensitive"
	RatingSafe         Rating = "safe"
	RatingGeneral      Rating = "general"
)

func (r Rating) String() string { return string(r) }

// Post is a single Gelbooru post.
type Post struct {
	PostID      uint64 `json:"id"`
	CreatedAt   string `json:"created_at"`
	PostScore   int    `json:"score"`
	ImageWidth  int    `json:"width"`
	ImageHeight int    `json:"height"`
	Hash        string `json:"md5"`
	File        string `json:"file_url"`
	Preview     string `json:"preview_url"`
	Sample      string `json:"sample_url"`
	TagString   string `json:"tags"`
	Image       string `json:"image"`
	SourceURL   string `json:"source"`
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

// response wraps the post list; Gelbooru nests it under "post".
type response struct {
	Posts []Post `json:"post"`
}

// Client is the Gelbooru site adapter.
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

// New creates a Gelbooru client.
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

// Name returns "gelbooru".
func (*Client) Name() string { return Name }

// MaxTags returns 0; Gelbooru has no tag limit.
func (*Client) MaxTags() int { return 0 }

// RequiresAuth returns true; Gelbooru rejects anonymous API calls.
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

	var resp response
	u := c.baseURL + "/index.php?" + params.Encode()
	if err := api.GetJSON(ctx, c.httpClient, c.logger, Name, u, &resp); err != nil {
		return nil, err
	}
	return resp.Posts, nil
}

// FetchByID retrieves a single post.
func (c *Client) FetchByID(ctx context.Context, id uint64) (Post, error) {
	params := dapiParams()
	params.Set("id", strconv.FormatUint(id, 10))

	var resp response
	u := c.baseURL + "/index.php?" + params.Encode()
	if err := api.GetJSON(ctx, c.httpClient, c.logger, Name, u, &resp); err != nil {
		return Post{}, err
	}
	if len(resp.Posts) == 0 {
		return Post{}, fmt.Errorf("%w: gelbooru post %d", booru.ErrPostNotFound, id)
	}
	return resp.Posts[0], nil
}

type autocompleteItem struct {
	Value     string `json:"value"`
	Label     string `json:"label"`
	Category  string `json:"category"`
	PostCount int    `json:"post_count"`
}

// Suggest returns tag completions from Gelbooru's autocomplete API.
func (c *Client) Suggest(ctx context.Context, prefix string, limit int) ([]booru.TagSuggestion, error) {
	params := url.Values{}
	params.Set("page", "autocomplete2")
	params.Set("term", prefix)
	params.Set("type", "tag_query")
	params.Set("limit", strconv.Itoa(limit))

	var items []autocompleteItem
	u := c.baseURL + "/index.php?" + params.Encode()
	if err := api.GetJSON(ctx, c.httpClient, c.logger, Name, u, &items); err != nil {
		return nil, err
	}

	suggestions := make([]booru.TagSuggestion, 0, len(items))
	for _, item := range items {
		count := item.PostCount
		if count == 0 {
			count = postCountFromLabel(item.Label)
		}
		suggestions = append(suggestions, booru.TagSuggestion{
			Name:      item.Value,
			Label:     item.Label,
			PostCount: count,
			Category:  normalizeCategory(item.Category),
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

// normalizeCategory maps Gelbooru's category vocabulary onto the shared
// names.
func normalizeCategory(cat string) string {
	switch strings.ToLower(cat) {
	case "general", "tag":
		return "general"
	case "artist":
		return "artist"
	case "copyright", "series":
		return "copyright"
	case "character":
		return "character"
	case "meta", "metadata":
		return "meta"
	default:
		return ""
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
