package download

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	booru "github.com/hikawa-dev/booru"
)

type fakePost struct {
	id     uint64
	file   string
	md5    string
	rating string
}

func (p fakePost) ID() uint64         { return p.id }
func (p fakePost) Width() int         { return 0 }
func (p fakePost) Height() int        { return 0 }
func (p fakePost) FileURL() string    { return p.file }
func (p fakePost) PreviewURL() string { return "" }
func (p fakePost) SampleURL() string  { return "" }
func (p fakePost) Rating() string     { return p.rating }
func (p fakePost) Tags() []string     { return nil }
func (p fakePost) MD5() string        { return p.md5 }
func (p fakePost) Score() int         { return 0 }
func (p fakePost) Source() string     { return "" }

func imageServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if _, err := w.Write([]byte(body)); err != nil {
			t.Errorf("write response: %v", err)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPost(t *testing.T) {
	srv := imageServer(t, "fake image bytes")
	dir := t.TempDir()

	d := New()
	post := fakePost{id: 123, file: srv.URL + "/images/abc.jpg"}
	res, err := d.Post(context.Background(), post, dir)
	if err != nil {
		t.Fatalf("Post() error = %v", err)
	}

	wantPath := filepath.Join(dir, "123.jpg")
	if res.Path != wantPath {
		t.Errorf("Path = %q, want %q", res.Path, wantPath)
	}
	if res.Skipped {
		t.Error("Skipped = true, want false for a fresh download")
	}
	data, err := os.ReadFile(wantPath)
	if err != nil {
		t.Fatalf("reading downloaded file: %v", err)
	}
	if string(data) != "fake image bytes" {
		t.Errorf("file contents = %q", data)
	}
	if res.Size != int64(len(data)) {
		t.Errorf("Size = %d, want %d", res.Size, len(data))
	}
}

func TestPostSkipsExisting(t *testing.T) {
	srv := imageServer(t, "new bytes")
	dir := t.TempDir()

	existing := filepath.Join(dir, "123.jpg")
	if err := os.WriteFile(existing, []byte("old bytes"), 0o600); err != nil {
		t.Fatal(err)
	}

	d := New()
	post := fakePost{id: 123, file: srv.URL + "/images/abc.jpg"}
	res, err := d.Post(context.Background(), post, dir)
	if err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	if !res.Skipped {
		t.Error("Skipped = false, want true for an existing file")
	}

	data, _ := os.ReadFile(existing) //nolint:errcheck // checked above
	if string(data) != "old bytes" {
		t.Error("existing file was overwritten without WithOverwrite")
	}
}

func TestPostOverwrite(t *testing.T) {
	srv := imageServer(t, "new bytes")
	dir := t.TempDir()

	existing := filepath.Join(dir, "123.jpg")
	if err := os.WriteFile(existing, []byte("old bytes"), 0o600); err != nil {
		t.Fatal(err)
	}

	d := New(WithOverwrite())
	post := fakePost{id: 123, file: srv.URL + "/images/abc.jpg"}
	res, err := d.Post(context.Background(), post, dir)
	if err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	if res.Skipped {
		t.Error("Skipped = true, want false with WithOverwrite")
	}

	data, _ := os.ReadFile(existing) //nolint:errcheck // file just written
	if string(data) != "new bytes" {
		t.Error("file was not overwritten")
	}
}

func TestFilenameTemplate(t *testing.T) {
	srv := imageServer(t, "x")
	dir := t.TempDir()

	d := New(WithFilenameTemplate("{id}_{md5}.{ext}"))
	post := fakePost{id: 9, file: srv.URL + "/img/pic.png", md5: "abcdef"}
	res, err := d.Post(context.Background(), post, dir)
	if err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	if filepath.Base(res.Path) != "9_abcdef.png" {
		t.Errorf("filename = %q, want 9_abcdef.png", filepath.Base(res.Path))
	}
}

func TestRatingDirs(t *testing.T) {
	srv := imageServer(t, "x")
	dir := t.TempDir()

	d := New(WithRatingDirs())
	post := fakePost{id: 5, file: srv.URL + "/img/pic.jpg", rating: "general"}
	res, err := d.Post(context.Background(), post, dir)
	if err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	if filepath.Dir(res.Path) != filepath.Join(dir, "general") {
		t.Errorf("Path = %q, want a general/ subdirectory", res.Path)
	}
}

func TestPostNoFileURL(t *testing.T) {
	d := New()
	if _, err := d.Post(context.Background(), fakePost{id: 1}, t.TempDir()); err == nil {
		t.Error("Post() with no file URL should fail")
	}
}

func TestPosts(t *testing.T) {
	srv := imageServer(t, "batch bytes")
	dir := t.TempDir()

	posts := []booru.Post{
		fakePost{id: 1, file: srv.URL + "/a.jpg"},
		fakePost{id: 2, file: srv.URL + "/b.jpg"},
		fakePost{id: 3, file: srv.URL + "/c.jpg"},
	}

	d := New(WithConcurrency(2))
	results, err := d.Posts(context.Background(), posts, dir)
	if err != nil {
		t.Fatalf("Posts() error = %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("Posts() returned %d results, want 3", len(results))
	}
	for i, res := range results {
		if _, err := os.Stat(res.Path); err != nil {
			t.Errorf("result %d: missing file %q", i, res.Path)
		}
	}
}

func TestPostWithProgress(t *testing.T) {
	srv := imageServer(t, "0123456789")
	dir := t.TempDir()

	var last Progress
	d := New()
	post := fakePost{id: 77, file: srv.URL + "/img.gif"}
	_, err := d.PostWithProgress(context.Background(), post, dir, func(p Progress) {
		last = p
	})
	if err != nil {
		t.Fatalf("PostWithProgress() error = %v", err)
	}
	if last.PostID != 77 {
		t.Errorf("Progress.PostID = %d, want 77", last.PostID)
	}
	if last.Downloaded != 10 {
		t.Errorf("Progress.Downloaded = %d, want 10", last.Downloaded)
	}
}

func TestExtFromURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://cdn.example.com/img/full.png", "png"},
		{"https://cdn.example.com/img/full.jpg?auth=token", "jpg"},
		{"https://cdn.example.com/img/noext", "jpg"},
		{"https://cdn.example.com/v1.2/path", "jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			if got := extFromURL(tt.url); got != tt.want {
				t.Errorf("extFromURL(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}
