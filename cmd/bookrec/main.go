// Copyright 2025 The bookrec Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/mfederowicz/bookrec"
	"github.com/mfederowicz/bookrec/ai"
	"github.com/mfederowicz/bookrec/config"
	"github.com/mfederowicz/bookrec/indexsync"
	"github.com/mfederowicz/bookrec/recommend"
	"github.com/mfederowicz/bookrec/search"
	"github.com/mfederowicz/bookrec/vectorstore"
	"github.com/mfederowicz/bookrec/vectorstore/qdrant"
)

func main() {
	app := &cli.App{
		Name:  "bookrec",
		Usage: "Semantic book recommendation system",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML config file",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "embed",
				Usage:  "Compute embeddings for catalog books that lack one",
				Action: embedCommand,
			},
			{
				Name:   "sync",
				Usage:  "Deliver unsynced embeddings into the vector index",
				Action: syncCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of records per index upsert",
					},
					&cli.IntFlag{
						Name:  "max-batches",
						Usage: "Stop after N batches (0 = no cap)",
					},
				},
			},
			{
				Name:   "sync-all",
				Usage:  "Rebuild the vector index from every stored embedding",
				Action: syncAllCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of records per index upsert",
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Search the catalog for books similar to a query",
				Action:    searchCommand,
				ArgsUsage: "<query>",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of results",
						Value: 10,
					},
					&cli.BoolFlag{
						Name:  "verbose",
						Usage: "Print search stages as they run",
					},
				},
			},
			{
				Name:      "recommend",
				Usage:     "Store a recommendation request and fill it with results",
				Action:    recommendCommand,
				ArgsUsage: "<request text>",
				Flags: []cli.Flag{
					&cli.Uint64Flag{
						Name:     "user",
						Aliases:  []string{"u"},
						Usage:    "User the recommendation belongs to",
						Required: true,
					},
					&cli.StringSliceFlag{
						Name:    "tag",
						Aliases: []string{"t"},
						Usage:   "Tag to attach (repeatable; replaces previous tags)",
					},
				},
			},
			{
				Name:   "refresh",
				Usage:  "Re-run searches for empty or outdated recommendations",
				Action: refreshCommand,
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "window",
						Usage: "Age after which a recommendation is outdated",
						Value: recommend.DefaultStaleWindow,
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum recommendations to refresh (0 = all)",
					},
				},
			},
			{
				Name:   "seed",
				Usage:  "Load sample books into the catalog",
				Action: seedCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "src",
						Usage: "JSON file of books (uses built-in samples if omitted)",
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// loadConfig reads the config file named by --config, or the default
// locations when the flag is unset.
func loadConfig(c *cli.Context) (*config.AppConfig, error) {
	if path := c.String("config"); path != "" {
		return config.Load(path)
	}
	cfg, _, err := config.LoadDefault()
	return cfg, err
}

// openDatabase wires the database from the loaded configuration.
func openDatabase(c *cli.Context) (*bookrec.Database, *config.AppConfig, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	aiConfig := ai.NewConfig(
		ai.WithHost(cfg.Embedder.Host),
		ai.WithModel(cfg.Embedder.Model),
		ai.WithAPIKey(cfg.APIKey()),
		ai.WithDimension(cfg.Embedder.Dimension),
		ai.WithBatchLimit(cfg.Embedder.BatchSize),
		ai.WithTimeout(time.Duration(cfg.Embedder.TimeoutSecs)*time.Second),
	)
	if err := aiConfig.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid embedder configuration: %w", err)
	}

	opts := []bookrec.DatabaseOption{
		bookrec.WithAIConfig(aiConfig),
		bookrec.WithCollection(cfg.Index.Collection),
	}
	if cfg.Storage.InMemory {
		opts = append(opts, bookrec.WithInMemoryStorage())
	}
	if index := buildIndex(cfg); index != nil {
		opts = append(opts, bookrec.WithIndex(index))
	}

	db, err := bookrec.NewDatabase(cfg.Storage.Path, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, cfg, nil
}

// buildIndex returns the configured vector index, or nil to let the
// database fall back to its in-process default.
func buildIndex(cfg *config.AppConfig) vectorstore.Index {
	if cfg.Index.Type != "qdrant" || cfg.Index.Qdrant == nil {
		return nil
	}
	return qdrant.NewIndex(qdrant.Config{
		URL:     cfg.Index.Qdrant.URL,
		APIKey:  cfg.Index.Qdrant.APIKey,
		Timeout: time.Duration(cfg.Index.Qdrant.TimeoutSecs) * time.Second,
	})
}

func embedCommand(c *cli.Context) error {
	db, _, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	feeder, err := db.NewFeeder()
	if err != nil {
		return fmt.Errorf("failed to create feeder: %w", err)
	}

	result, err := feeder.Run(context.Background())
	if err != nil {
		return fmt.Errorf("embedding failed: %w", err)
	}

	fmt.Printf("Pending: %d, embedded: %d, errors: %d\n",
		result.Total, result.Embedded, result.Errors)
	return nil
}

func syncCommand(c *cli.Context) error {
	return runSync(c, false)
}

func syncAllCommand(c *cli.Context) error {
	return runSync(c, true)
}

func runSync(c *cli.Context, full bool) error {
	db, cfg, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	syncConfig := indexsync.DefaultConfig()
	syncConfig.BatchSize = cfg.Sync.BatchSize
	syncConfig.ReportInterval = cfg.Sync.ReportInterval
	if v := c.Int("batch-size"); v > 0 {
		syncConfig.BatchSize = v
	}
	if v := c.Int("max-batches"); v > 0 {
		syncConfig.MaxBatches = v
	}

	engine, err := db.NewSyncEngine(syncConfig, os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to create sync engine: %w", err)
	}

	ctx := context.Background()
	var result *indexsync.Result
	if full {
		result, err = engine.RunFull(ctx)
	} else {
		result, err = engine.Run(ctx)
	}
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	fmt.Printf("Total: %d, synced: %d, skipped: %d, errors: %d\n",
		result.Total, result.Synced, result.Skipped, result.Errors)
	return nil
}

func searchCommand(c *cli.Context) error {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return fmt.Errorf("query is required")
	}

	db, _, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	searcher, err := db.NewSearcher()
	if err != nil {
		return fmt.Errorf("failed to create searcher: %w", err)
	}

	var monitor search.SearchMonitor
	if c.Bool("verbose") {
		monitor = &stderrMonitor{}
	}

	hits, err := searcher.FindSimilarWithMonitor(context.Background(), query, c.Int("limit"), monitor)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if len(hits) == 0 {
		fmt.Println("No matches.")
		return nil
	}
	for i, hit := range hits {
		fmt.Printf("%2d. [%.3f] %s - %s (%s)\n",
			i+1, hit.Score, hit.Ebook.Title, hit.Ebook.Author, hit.Ebook.ISBN)
	}
	return nil
}

func recommendCommand(c *cli.Context) error {
	text := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if text == "" {
		return fmt.Errorf("request text is required")
	}

	db, cfg, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	service, err := db.NewRecommendService(
		recommend.WithTopK(cfg.Recommend.TopK),
	)
	if err != nil {
		return fmt.Errorf("failed to create recommendation service: %w", err)
	}
	defer service.Release()

	rec, results, err := service.Process(context.Background(), c.Uint64("user"), text, c.StringSlice("tag"))
	if err != nil {
		if rec != nil {
			return fmt.Errorf("request %d saved but search failed: %w", rec.Id, err)
		}
		return err
	}

	fmt.Printf("Recommendation %d for user %d (%d books)\n", rec.Id, rec.UserID, rec.FoundBooksCount)
	for _, result := range results {
		fmt.Printf("%2d. [%.3f] %s\n", result.Rank, result.Score, result.ISBN)
	}
	return nil
}

func refreshCommand(c *cli.Context) error {
	db, cfg, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	service, err := db.NewRecommendService(
		recommend.WithTopK(cfg.Recommend.TopK),
	)
	if err != nil {
		return fmt.Errorf("failed to create recommendation service: %w", err)
	}
	defer service.Release()

	window := c.Duration("window")
	refreshed, err := service.RefreshStale(context.Background(), window, c.Int("limit"))
	if err != nil {
		return fmt.Errorf("refresh failed: %w", err)
	}

	fmt.Printf("Refreshed %d recommendations\n", refreshed)
	return nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
