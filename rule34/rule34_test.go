package rule34

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	booru "github.com/hikawa-dev/booru"
)

const postJSON = `{
	"id": 7700001,
	"score": 99,
	"width": 2048,
	"height": 1536,
	"file_url": "https://us.rule34.xxx/images/77/full.png",
	"preview_url": "https://us.rule34.xxx/thumbnails/77/thumb.jpg",
	"sample_url": "https://us.rule34.xxx/samples/77/sample.jpg",
	"tags": "tag_one tag_two",
	"rating": "explicit",
	"source": "",
	"owner": "someone",
	"hash": "aab1c2d3e4f5a6b7c8d9e0f1a2b3c4d5",
	"change": 1673900000
}`

func testQuery(t *testing.T, c *Client, configure func(*booru.Builder[Post])) *booru.Query {
	t.Helper()
	b := c.Builder()
	if configure != nil {
		configure(b)
	}
	q, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return q
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("api_key") != "secret" || q.Get("user_id") != "777" {
			t.Errorf("credentials missing from %q", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write([]byte("[" + postJSON + "]")); err != nil {
			t.Errorf("write response: %v", err)
		}
	}))
	defer srv.Close()

	c := New(WithBaseURL(srv.URL))
	q := testQuery(t, c, func(b *booru.Builder[Post]) {
		b.SetCredentials("secret", "777")
	})

	posts, err := c.Fetch(context.Background(), q)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(posts) != 1 {
		t.Fatalf("Fetch() returned %d posts, want 1", len(posts))
	}
	if posts[0].ID() != 7700001 {
		t.Errorf("ID() = %d, want 7700001", posts[0].ID())
	}
	if posts[0].Rating() != "explicit" {
		t.Errorf("Rating() = %q, want explicit", posts[0].Rating())
	}
}

func TestFetchMissingAuthBody(t *testing.T) {
	// Rule34 reports missing credentials as HTTP 200 with a message body.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if _, err := w.Write([]byte("Missing authentication. Go to api.rule34.xxx for more information")); err != nil {
			t.Errorf("write response: %v", err)
		}
	}))
	defer srv.Close()

	c := New(WithBaseURL(srv.URL))
	_, err := c.Fetch(context.Background(), testQuery(t, c, nil))
	if !errors.Is(err, booru.ErrUnauthorized) {
		t.Errorf("Fetch() error = %v, want ErrUnauthorized", err)
	}
}

func TestFetchEmptyBody(t *testing.T) {
	// No results can come back as a completely empty body.
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
	defer srv.Close()

	c := New(WithBaseURL(srv.URL))
	posts, err := c.Fetch(context.Background(), testQuery(t, c, nil))
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(posts) != 0 {
		t.Errorf("Fetch() returned %d posts, want 0", len(posts))
	}
}

func TestFetchByIDNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write([]byte("[]")); err != nil {
			t.Errorf("write response: %v", err)
		}
	}))
	defer srv.Close()

	c := New(WithBaseURL(srv.URL))
	_, err := c.FetchByID(context.Background(), 5)
	if !errors.Is(err, booru.ErrPostNotFound) {
		t.Errorf("FetchByID() error = %v, want ErrPostNotFound", err)
	}
}

func TestDecodePostsBadJSON(t *testing.T) {
	_, err := decodePosts([]byte("<html>cloudflare</html>"))
	var decodeErr *booru.DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("decodePosts() error = %v, want *DecodeError", err)
	}
}

func TestClientMetadata(t *testing.T) {
	c := New()
	if c.Name() != "rule34" {
		t.Errorf("Name() = %q, want rule34", c.Name())
	}
	if c.MaxTags() != 0 {
		t.Errorf("MaxTags() = %d, want 0 (unlimited)", c.MaxTags())
	}
	if !c.RequiresAuth() {
		t.Error("RequiresAuth() = false, want true")
	}
}
