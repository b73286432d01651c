// Package main demonstrates basic usage of the booru library.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	booru "github.com/hikawa-dev/booru"
	"github.com/hikawa-dev/booru/cache"
	"github.com/hikawa-dev/booru/safebooru"
)

func main() {
	flag.Parse()

	tags := flag.Args()
	if len(tags) == 0 {
		tags = []string{"landscape"}
	}

	ctx := context.Background()

	store, err := cache.New(5 * time.Minute)
	if err != nil {
		log.Fatalf("Failed to create cache: %v", err)
	}
	defer store.Close() //nolint:errcheck // process exits right after

	exec := booru.NewExecutor(booru.WithCache(store))
	b := safebooru.New().Builder(booru.WithExecutor(exec))
	if err := b.Tags(tags...); err != nil {
		log.Fatalf("Invalid tags: %v", err)
	}

	posts, err := b.Sort(booru.SortScore).Limit(10).Get(ctx)
	if err != nil {
		log.Fatalf("Failed to fetch posts: %v", err)
	}

	for _, p := range posts {
		fmt.Printf("#%-10d %4dx%-4d score=%-5d %s\n",
			p.ID(), p.Width(), p.Height(), p.Score(), p.FileURL())
	}
}
