// Package download saves post images to disk.
//
// Files are skipped when they already exist unless WithOverwrite is set,
// so re-running a download over the same directory is cheap. Batch
// downloads run concurrently with a bounded worker count.
package download

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	booru "github.com/hikawa-dev/booru"
	"github.com/hikawa-dev/booru/api"
)

// Progress reports how far along a single download is. Total is 0 when
// the server did not send a Content-Length.
type Progress struct {
	PostID     uint64
	Downloaded int64
	Total      int64
}

// Result describes one finished download.
type Result struct {
	// Path is where the file landed.
	Path string
	// Size is the file size in bytes.
	Size int64
	// Skipped is true when the file already existed and was left alone.
	Skipped bool
}

// Downloader saves post images. The zero value is not usable; call New.
type Downloader struct {
	httpClient  *http.Client
	logger      *slog.Logger
	overwrite   bool
	template    string
	byRating    bool
	concurrency int
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithHTTPClient replaces the default HTTP client. The default allows
// five minutes per file.
func WithHTTPClient(hc *http.Client) Option {
	return func(d *Downloader) { d.httpClient = hc }
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Downloader) { d.logger = logger }
}

// WithOverwrite makes existing files be re-downloaded instead of skipped.
func WithOverwrite() Option {
	return func(d *Downloader) { d.overwrite = true }
}

// WithFilenameTemplate sets the filename pattern. Placeholders {id},
// {md5} and {ext} are substituted per post. The default is "{id}.{ext}".
func WithFilenameTemplate(template string) Option {
	return func(d *Downloader) { d.template = template }
}

// WithRatingDirs sorts files into a subdirectory per rating.
func WithRatingDirs() Option {
	return func(d *Downloader) { d.byRating = true }
}

// WithConcurrency bounds how many files a batch download fetches at
// once. The default is 4.
func WithConcurrency(n int) Option {
	return func(d *Downloader) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

// New creates a Downloader.
func New(opts ...Option) *Downloader {
	d := &Downloader{
		httpClient:  &http.Client{Timeout: 5 * time.Minute},
		logger:      slog.Default(),
		template:    "{id}.{ext}",
		concurrency: 4,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Post downloads a single post's full-size image into destDir.
// Posts with no file URL (restricted or banned content) return an error.
func (d *Downloader) Post(ctx context.Context, post booru.Post, destDir string) (*Result, error) {
	return d.PostWithProgress(ctx, post, destDir, nil)
}

// PostWithProgress downloads a single post, invoking onProgress after
// each chunk. onProgress may be nil.
func (d *Downloader) PostWithProgress(ctx context.Context, post booru.Post, destDir string, onProgress func(Progress)) (*Result, error) {
	url := post.FileURL()
	if url == "" {
		return nil, fmt.Errorf("post %d has no file URL", post.ID())
	}

	destPath := filepath.Join(d.destFor(post, destDir), d.filename(post, url))
	if !d.overwrite {
		if info, err := os.Stat(destPath); err == nil {
			d.logger.DebugContext(ctx, "skipping existing file", "path", destPath)
			return &Result{Path: destPath, Size: info.Size(), Skipped: true}, nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o750); err != nil {
		return nil, fmt.Errorf("creating download directory: %w", err)
	}

	size, err := d.fetch(ctx, url, destPath, post.ID(), onProgress)
	if err != nil {
		return nil, err
	}
	d.logger.InfoContext(ctx, "downloaded", "post", post.ID(), "path", destPath, "bytes", size)
	return &Result{Path: destPath, Size: size}, nil
}

// Posts downloads a batch concurrently. Results hold the same order as
// posts; the first error cancels the remaining downloads.
func (d *Downloader) Posts(ctx context.Context, posts []booru.Post, destDir string) ([]*Result, error) {
	results := make([]*Result, len(posts))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)
	for i, post := range posts {
		g.Go(func() error {
			res, err := d.Post(ctx, post, destDir)
			if err != nil {
				return fmt.Errorf("post %d: %w", post.ID(), err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (d *Downloader) fetch(ctx context.Context, url, destPath string, postID uint64, onProgress func(Progress)) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", api.UserAgent)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close() //nolint:errcheck // intentional

	if resp.StatusCode != http.StatusOK {
		return 0, &booru.HTTPError{URL: url, StatusCode: resp.StatusCode}
	}

	// Write to a temp name and rename so a cancelled download never
	// leaves a half-written file at the final path.
	tmp := destPath + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("creating file: %w", err)
	}

	var written int64
	body := io.Reader(resp.Body)
	if onProgress != nil {
		body = &progressReader{
			r:     resp.Body,
			total: resp.ContentLength,
			id:    postID,
			fn:    onProgress,
		}
	}
	written, err = io.Copy(f, body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp) //nolint:errcheck // best effort cleanup
		return 0, fmt.Errorf("writing %s: %w", destPath, err)
	}
	if err := os.Rename(tmp, destPath); err != nil {
		os.Remove(tmp) //nolint:errcheck // best effort cleanup
		return 0, fmt.Errorf("finalizing %s: %w", destPath, err)
	}
	return written, nil
}

func (d *Downloader) destFor(post booru.Post, destDir string) string {
	if d.byRating && post.Rating() != "" {
		return filepath.Join(destDir, post.Rating())
	}
	return destDir
}

func (d *Downloader) filename(post booru.Post, url string) string {
	md5 := post.MD5()
	if md5 == "" {
		md5 = "unknown"
	}
	name := d.template
	name = strings.ReplaceAll(name, "{id}", strconv.FormatUint(post.ID(), 10))
	name = strings.ReplaceAll(name, "{md5}", md5)
	name = strings.ReplaceAll(name, "{ext}", extFromURL(url))
	return name
}

// extFromURL pulls the extension out of a file URL, ignoring any query
// string. Falls back to jpg.
func extFromURL(url string) string {
	if i := strings.IndexByte(url, '?'); i >= 0 {
		url = url[:i]
	}
	if i := strings.LastIndexByte(url, '.'); i >= 0 && i < len(url)-1 {
		ext := url[i+1:]
		if !strings.ContainsAny(ext, "/\\") {
			return ext
		}
	}
	return "jpg"
}

type progressReader struct {
	r     io.Reader
	total int64
	id    uint64
	done  int64
	fn    func(Progress)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.done += int64(n)
		total := p.total
		if total < 0 {
			total = 0
		}
		p.fn(Progress{PostID: p.id, Downloaded: p.done, Total: total})
	}
	return n, err
}
