// Command snapshot-check validates a snapshot export directory without
// starting the server: schema, types, and cross-file consistency. Exits
// non-zero on the first invalid file so it can gate exports in CI.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	applog "chartscope/internal/log"
	"chartscope/internal/snapshot/memory"
)

func main() {
	_ = godotenv.Load()

	dir := flag.String("dir", "", "snapshot directory (defaults to SNAPSHOT_DIR or ./data)")
	flag.Parse()

	logger := applog.New(applog.Config{
		Level:     applog.DefaultConfig().Level,
		Component: applog.ComponentSnapshot,
	})
	applog.SetDefault(logger)

	path := *dir
	if path == "" {
		path = os.Getenv("SNAPSHOT_DIR")
	}
	if path == "" {
		path = "./data"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := memory.NewFromFiles(ctx, path)
	if err != nil {
		logger.Error("Snapshot validation failed", applog.FieldError, err, "dir", path)
		os.Exit(1)
	}

	sums, tracks, points := store.Counts()
	countries, err := store.Countries(ctx)
	if err != nil {
		logger.Error("Snapshot validation failed", applog.FieldError, err, "dir", path)
		os.Exit(1)
	}

	logger.Info("Snapshot directory is valid",
		"dir", path,
		"summaries", sums,
		"tracks", tracks,
		"trend_points", points,
		"countries", len(countries))
	fmt.Printf("ok: %d summaries, %d tracks, %d trend points, %d countries\n",
		sums, tracks, points, len(countries))
}
