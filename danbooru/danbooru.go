// Package danbooru fetches posts from danbooru.donmai.us.
//
// Danbooru allows at most 2 tags per query for anonymous users. Requests
// work without credentials, but authenticated accounts get higher limits.
package danbooru

import (
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
	Name = "danbooru"
	// BaseURL is the production API endpoint.
	BaseURL = "https://danbooru.donmai.us"

	sortPrefix = "order:"
	maxTags    = 2
)

// Rating is Danbooru's four-tier content classification.
type Rating string

// Danbooru ratings, most to least explicit.
const (
	RatingExplicit     Rating = "explicit"
	RatingQuestionable Rating = "questionable"
	RatingSensitive    Rating = "sensitive"
	RatingGeneral      Rating = "general"
)

func (r Rating) String() string { return string(r) }

// UnmarshalJSON accepts both the single-letter form the post API returns
// ("g", "s", "q", "e") and the full word.
func (r *Rating) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "e":
		*r = RatingExplicit
	case "q":
		*r = RatingQuestionable
	case "s":
		*r = RatingSensitive
	case "g":
		*r = RatingGeneral
	default:
		*r = Rating(s)
	}
	return nil
}

// Post is a single Danbooru post. File URLs can be empty when the post is
// restricted or banned.
type Post struct {
	PostID             uint64 `json:"id"`
	CreatedAt          string `json:"created_at"`
	UpdatedAt          string `json:"updated_at"`
	UploaderID         uint64 `json:"uploader_id"`
	TagString          string `json:"tag_string"`
	TagStringGeneral   string `json:"tag_string_general"`
	TagStringArtist    string `json:"tag_string_artist"`
	TagStringCopyright string `json:"tag_string_copyright"`
	TagStringCharacter string `json:"tag_string_character"`
	TagStringMeta      string `json:"tag_string_meta"`
	PostRating         Rating `json:"rating"`
	ParentID           uint64 `json:"parent_id"`
	PixivID            uint64 `json:"pixiv_id"`
	SourceURL          string `json:"source"`
	Hash               string `json:"md5"`
	File               string `json:"file_url"`
	Sample             string `json:"large_file_url"`
	Preview            string `json:"preview_file_url"`
	FileExt            string `json:"file_ext"`
	FileSize           uint64 `json:"file_size"`
	ImageWidth         int    `json:"image_width"`
	ImageHeight        int    `json:"image_height"`
	PostScore          int    `json:"score"`
	UpScore            int    `json:"up_score"`
	DownScore          int    `json:"down_score"`
	FavCount           uint64 `json:"fav_count"`
	HasChildren        bool   `json:"has_children"`
	IsBanned           bool   `json:"is_banned"`
	IsDeleted          bool   `json:"is_deleted"`
	IsFlagged          bool   `json:"is_flagged"`
	IsPending          bool   `json:"is_pending"`
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

// Client is the Danbooru site adapter.
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

// New creates a Danbooru client.
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

// Name returns "danbooru".
func (*Client) Name() string { return Name }

// MaxTags returns the anonymous per-query tag limit.
func (*Client) MaxTags() int { return maxTags }

// RequiresAuth returns false; Danbooru serves anonymous requests.
func (*Client) RequiresAuth() bool { return false }

// Builder returns a query builder bound to this client.
func (c *Client) Builder(opts ...booru.Option) *booru.Builder[Post] {
	return booru.NewBuilder[Post](c, opts...)
}

// Fetch retrieves one page of posts matching the query.
func (c *Client) Fetch(ctx context.Context, q *booru.Query) ([]Post, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(q.Limit()))
	params.Set("page", strconv.Itoa(q.Page()))
	params.Set("tags", q.TagExpression(sortPrefix))
	if key, user, ok := q.Credentials(); ok {
		params.Set("api_key", key)
		params.Set("login", user)
	}

	var posts []Post
	u := c.baseURL + "/posts.json?" + params.Encode()
	if err := api.GetJSON(ctx, c.httpClient, c.logger, Name, u, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// FetchByID retrieves a single post.
func (c *Client) FetchByID(ctx context.Context, id uint64) (Post, error) {
	var post Post
	u := fmt.Sprintf("%s/posts/%d.json", c.baseURL, id)
	if err := api.GetJSON(ctx, c.httpClient, c.logger, Name, u, &post); err != nil {
		return Post{}, err
	}
	return post, nil
}

type autocompleteItem struct {
	Value     string `json:"value"`
	Label     string `json:"label"`
	Category  int    `json:"category"`
	PostCount int    `json:"post_count"`
}

// Suggest returns tag completions from Danbooru's autocomplete API.
func (c *Client) Suggest(ctx context.Context, prefix string, limit int) ([]booru.TagSuggestion, error) {
	params := url.Values{}
	params.Set("search[query]", prefix)
	params.Set("search[type]", "tag_query")
	params.Set("limit", strconv.Itoa(limit))

	var items []autocompleteItem
	u := c.baseURL + "/autocomplete.json?" + params.Encode()
	if err := api.GetJSON(ctx, c.httpClient, c.logger, Name, u, &items); err != nil {
		return nil, err
	}

	suggestions := make([]booru.TagSuggestion, 0, len(items))
	for _, item := range items {
		suggestions = append(suggestions, booru.TagSuggestion{
			Name:      item.Value,
			Label:     item.Label,
			PostCount: item.PostCount,
			Category:  categoryName(item.Category),
		})
	}
	return suggestions, nil
}

// categoryName maps Danbooru's numeric tag categories to names.
func categoryName(cat int) string {
	switch cat {
	case 0:
		return "general"
	case 1:
		return "artist"
	case 3:
		return "copyright"
	case 4:
		return "character"
	case 5:
		return "meta"
	default:
		return ""
	}
}
