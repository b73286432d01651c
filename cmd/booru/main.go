// Command booru searches booru-style image boards from the terminal.
//
// Usage:
//
//	booru -site danbooru cat_ears blue_eyes
//	booru -site gelbooru -rating general -max 50 landscape   # needs GELBOORU_* env vars
//	booru -site safebooru -suggest land
//	booru -site danbooru -id 12345
//	booru -site safebooru -download ./images -max 20 cat_ears
//
// Credentials are read from the environment (or a .env file):
// GELBOORU_API_KEY / GELBOORU_USER_ID and RULE34_API_KEY / RULE34_USER_ID.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	booru "github.com/hikawa-dev/booru"
	"github.com/hikawa-dev/booru/cache"
	"github.com/hikawa-dev/booru/danbooru"
	"github.com/hikawa-dev/booru/download"
	"github.com/hikawa-dev/booru/gelbooru"
	"github.com/hikawa-dev/booru/ratelimit"
	"github.com/hikawa-dev/booru/rule34"
	"github.com/hikawa-dev/booru/safebooru"
)

type config struct {
	tags        []string
	rating      string
	sort        string
	blacklist   string
	limit       int
	page        int
	maxPosts    int
	id          uint64
	suggest     string
	downloadDir string
	logger      *slog.Logger
}

func main() {
	site := flag.String("site", "danbooru", "site to query: danbooru, gelbooru, safebooru, rule34")
	rating := flag.String("rating", "", "restrict results to a rating (e.g. general, safe, explicit)")
	sortBy := flag.String("sort", "", "sort order: id, score, rating, height, width, random, ...")
	blacklist := flag.String("blacklist", "", "comma-separated tags to exclude")
	limit := flag.Int("limit", 100, "posts per page")
	page := flag.Int("page", 0, "page number to start at")
	maxPosts := flag.Int("max", 0, "stop after this many posts (0 fetches a single page)")
	id := flag.Uint64("id", 0, "fetch a single post by ID instead of searching")
	suggest := flag.String("suggest", "", "print tag completions for a prefix instead of searching")
	downloadDir := flag.String("download", "", "download matching images into this directory")
	rps := flag.Int("rps", 2, "max requests per second")
	noCache := flag.Bool("no-cache", false, "disable response caching")
	cacheTTL := flag.Duration("cache-ttl", 10*time.Minute, "cache time-to-live")
	cacheDir := flag.String("cache-dir", "", "persist the cache to this directory (memory only when empty)")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	// Best effort; credentials can also come from the real environment.
	if err := godotenv.Load(); err == nil {
		logger.Debug("loaded .env file")
	}

	execOpts := []booru.ExecOption{
		booru.WithLogger(logger),
		booru.WithRateLimiter(ratelimit.New(*rps, time.Second)),
	}
	if !*noCache {
		store, err := newStore(*cacheTTL, *cacheDir)
		if err != nil {
			logger.Warn("failed to initialize cache, continuing without cache", "error", err)
		} else {
			defer func() {
				if err := store.Close(); err != nil {
					logger.Warn("failed to close cache", "error", err)
				}
			}()
			execOpts = append(execOpts, booru.WithCache(store))
		}
	}
	exec := booru.NewExecutor(execOpts...)

	cfg := config{
		tags:        flag.Args(),
		rating:      *rating,
		sort:        *sortBy,
		blacklist:   *blacklist,
		limit:       *limit,
		page:        *page,
		maxPosts:    *maxPosts,
		id:          *id,
		suggest:     *suggest,
		downloadDir: *downloadDir,
		logger:      logger,
	}

	ctx := context.Background()
	var err error
	switch *site {
	case "danbooru":
		err = run(ctx, cfg, danbooru.New(danbooru.WithLogger(logger)), exec, "", "")
	case "gelbooru":
		err = run(ctx, cfg, gelbooru.New(gelbooru.WithLogger(logger)), exec,
			os.Getenv("GELBOORU_API_KEY"), os.Getenv("GELBOORU_USER_ID"))
	case "safebooru":
		err = run(ctx, cfg, safebooru.New(safebooru.WithLogger(logger)), exec, "", "")
	case "rule34":
		err = run(ctx, cfg, rule34.New(rule34.WithLogger(logger)), exec,
			os.Getenv("RULE34_API_KEY"), os.Getenv("RULE34_USER_ID"))
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown site %q (want danbooru, gelbooru, safebooru or rule34)\n", *site)
		os.Exit(1) //nolint:gocritic // exitAfterDefer is acceptable in main
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newStore(ttl time.Duration, dir string) (*cache.Store, error) {
	if dir != "" {
		return cache.NewWithPath(ttl, dir)
	}
	return cache.New(ttl)
}

// ratingArg adapts the -rating flag to the builder's Rating interface.
// Each site defines its own vocabulary; the flag takes the word verbatim.
type ratingArg string

func (r ratingArg) String() string { return string(r) }

func run[P booru.Post](ctx context.Context, cfg config, adapter booru.Adapter[P], exec *booru.Executor, apiKey, userID string) error {
	if cfg.suggest != "" {
		suggester, ok := any(adapter).(booru.Suggester)
		if !ok {
			return fmt.Errorf("%s does not support tag suggestions", adapter.Name())
		}
		suggestions, err := suggester.Suggest(ctx, cfg.suggest, 10)
		if err != nil {
			return err
		}
		return outputJSON(suggestions)
	}

	b := booru.NewBuilder[P](adapter, booru.WithExecutor(exec))
	if apiKey != "" || userID != "" {
		b.SetCredentials(apiKey, userID)
	}

	if cfg.id != 0 {
		post, err := b.GetByID(ctx, cfg.id)
		if err != nil {
			return err
		}
		return outputJSON(post)
	}

	if err := b.Tags(cfg.tags...); err != nil {
		return err
	}
	for _, w := range b.Warnings() {
		cfg.logger.Warn("tag warning", "message", w.Message)
	}
	if cfg.rating != "" {
		b.Rating(ratingArg(cfg.rating))
	}
	if cfg.sort != "" {
		b.Sort(booru.Sort(cfg.sort))
	}
	if cfg.blacklist != "" {
		b.BlacklistTags(strings.Split(cfg.blacklist, ",")...)
	}
	b.Limit(cfg.limit).Page(cfg.page)

	var posts []P
	if cfg.maxPosts > 0 {
		stream := b.PostStream().MaxPosts(cfg.maxPosts)
		collected, err := stream.Collect(ctx)
		if err != nil {
			return err
		}
		posts = collected
	} else {
		fetched, err := b.Get(ctx)
		if err != nil {
			return err
		}
		posts = fetched
	}

	if cfg.downloadDir != "" {
		return downloadPosts(ctx, cfg, posts)
	}
	return outputJSON(posts)
}

func downloadPosts[P booru.Post](ctx context.Context, cfg config, posts []P) error {
	generic := make([]booru.Post, len(posts))
	for i, p := range posts {
		generic[i] = p
	}
	d := download.New(download.WithLogger(cfg.logger))
	results, err := d.Posts(ctx, generic, cfg.downloadDir)
	if err != nil {
		return err
	}
	var fresh, skipped int
	for _, r := range results {
		if r.Skipped {
			skipped++
		} else {
			fresh++
		}
	}
	cfg.logger.Info("download complete", "downloaded", fresh, "skipped", skipped)
	return nil
}

func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
