package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/readora/internal/cli"
	"github.com/hyperjump/readora/internal/collection"
	"github.com/hyperjump/readora/internal/keyword"
	"github.com/hyperjump/readora/internal/models"
	"github.com/hyperjump/readora/internal/ranking"
	"github.com/hyperjump/readora/internal/storage"
	"github.com/hyperjump/readora/pkg/utils"
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runList(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	common := addCommonFlags(fs)
	views := addViewFlags(fs)
	offline := fs.Bool("offline", false, "read the local snapshot")
	_ = fs.Parse(args)

	a := common.open()
	defer a.close()
	ctx, cancel := signalContext()
	defer cancel()

	books, err := views.books(ctx, a, *offline)
	if err != nil {
		fatalf("List failed: %v", describeErr(err))
	}
	if err := cli.WriteBooks(os.Stdout, books, a.format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runGenres(args []string) {
	fs := flag.NewFlagSet("genres", flag.ExitOnError)
	common := addCommonFlags(fs)
	viewName := fs.String("view", "all", "all, public or personal")
	offline := fs.Bool("offline", false, "read the local snapshot")
	_ = fs.Parse(args)

	view, err := models.ParseView(*viewName)
	if err != nil {
		fatalf("%v", err)
	}
	a := common.open()
	defer a.close()
	ctx, cancel := signalContext()
	defer cancel()

	books, err := a.fetchBooks(ctx, *offline)
	if err != nil {
		fatalf("Genres failed: %v", describeErr(err))
	}
	groups := collection.GroupByGenre(collection.Select(books, view))
	if err := cli.WriteGroups(os.Stdout, groups, a.format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runFeatured(args []string) {
	fs := flag.NewFlagSet("featured", flag.ExitOnError)
	common := addCommonFlags(fs)
	offline := fs.Bool("offline", false, "read the local snapshot")
	_ = fs.Parse(args)

	a := common.open()
	defer a.close()
	ctx, cancel := signalContext()
	defer cancel()

	books, err := a.fetchBooks(ctx, *offline)
	if err != nil {
		fatalf("Featured failed: %v", describeErr(err))
	}
	if err := cli.WriteBooks(os.Stdout, collection.Featured(books), a.format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

// runStats prints backend statistics. When /stats fails the failure is only
// logged and the counts are computed from the collection instead.
func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	common := addCommonFlags(fs)
	offline := fs.Bool("offline", false, "compute from the local snapshot")
	_ = fs.Parse(args)

	a := common.open()
	defer a.close()
	ctx, cancel := signalContext()
	defer cancel()

	var stats *models.Stats
	if !*offline {
		s, err := a.client().Stats(ctx)
		if err != nil {
			a.logger.Debug("stats endpoint failed; computing locally", zap.Error(err))
		} else {
			stats = s
		}
	}
	if stats == nil {
		books, err := a.fetchBooks(ctx, *offline)
		if err != nil {
			fatalf("Stats failed: %v", describeErr(err))
		}
		s := collection.Summarize(books)
		stats = &s
	}
	if err := cli.WriteStats(os.Stdout, stats, a.format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

// runSync fetches the full collection and replaces the snapshot and keyword index.
func runSync(args []string) {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	common := addCommonFlags(fs)
	_ = fs.Parse(args)

	a := common.open()
	defer a.close()
	ctx, cancel := signalContext()
	defer cancel()

	start := time.Now()
	books, err := a.client().ListBooks(ctx)
	if err != nil {
		fatalf("Sync failed: %v", describeErr(err))
	}
	if err := a.newIndexer(nil).Sync(ctx, books); err != nil {
		fatalf("Sync failed: %v", err)
	}
	p := collection.Partition(books)
	fmt.Printf("Synced %d book(s) (%d public, %d personal) in %s\n",
		len(books), len(p.Public), len(p.Personal), time.Since(start).Round(time.Millisecond))
}

// runFind searches the local keyword index. The index is rebuilt from the
// snapshot when it is empty.
func runFind(args []string) {
	fs := flag.NewFlagSet("find", flag.ExitOnError)
	common := addCommonFlags(fs)
	limit := fs.Int("limit", 10, "number of results")
	fuzzy := fs.Bool("fuzzy", false, "enable fuzzy matching for typo tolerance")
	_ = fs.Parse(argsReorder(args))

	query := joinArgs(fs.Args())
	if query == "" {
		fatalf("Usage: readora find [flags] <query>")
	}
	a := common.open()
	defer a.close()
	ctx, cancel := signalContext()
	defer cancel()

	index := a.openIndex()
	speller := keyword.NewSpellChecker(index)
	books, err := a.newIndexer(speller).Restore(ctx)
	if err != nil {
		fatalf("Find failed: %v", err)
	}
	if len(books) == 0 {
		fatalf("Find failed: %v", errNoSnapshot)
	}
	byID := make(map[models.BookID]models.BookRecord, len(books))
	for _, b := range books {
		byID[b.ID] = b
	}

	results, err := index.Search(ctx, query, *limit, &keyword.SearchOptions{TitleBoost: 2, Fuzzy: *fuzzy})
	if err != nil {
		fatalf("Find failed: %v", err)
	}
	hits := make([]ranking.Hit, 0, len(results))
	for _, r := range results {
		if b, ok := byID[r.ID]; ok {
			hits = append(hits, ranking.Hit{Score: r.Score, Book: b})
		}
	}
	hits = ranking.NewRanker(nil).ReRank(query, hits)
	suggestion := ""
	if corrected, ok := speller.SuggestQuery(query); ok {
		suggestion = corrected
	}
	if err := cli.WriteFindResults(os.Stdout, query, hits, suggestion, a.format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

type statusResponse struct {
	APIBaseURL     string     `json:"api_base_url"`
	SnapshotBooks  int64      `json:"snapshot_books"`
	LastSynced     *time.Time `json:"last_synced,omitempty"`
	IndexedBooks   uint64     `json:"indexed_books"`
	DiskUsageBytes *int64     `json:"disk_usage_bytes,omitempty"`
	DatabasePath   string     `json:"database_path"`
	BleveIndexPath string     `json:"bleve_index_path"`
	ConfigPath     string     `json:"config_path,omitempty"`
}

func runStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	common := addCommonFlags(fs)
	_ = fs.Parse(args)

	a := common.open()
	defer a.close()
	ctx := context.Background()

	st := a.openStorage()
	count, err := st.CountBooks(ctx)
	if err != nil {
		fatalf("Count books failed: %v", err)
	}
	status := statusResponse{
		APIBaseURL:     a.cfg.API.BaseURL,
		SnapshotBooks:  count,
		DatabasePath:   a.cfg.Storage.DatabasePath,
		BleveIndexPath: a.cfg.Storage.BleveIndexPath,
		ConfigPath:     a.configPath,
	}
	if t, ok, err := st.LastSynced(ctx); err == nil && ok {
		status.LastSynced = &t
	}
	if n, err := a.openIndex().DocCount(); err == nil {
		status.IndexedBooks = n
	}
	paths := append(storage.SnapshotFiles(a.cfg.Storage.DatabasePath), a.cfg.Storage.BleveIndexPath)
	if diskBytes, err := storage.DiskUsageBytes(paths...); err == nil {
		status.DiskUsageBytes = &diskBytes
	}

	if a.format == cli.OutputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fatalf("Output failed: %v", err)
		}
		return
	}
	fmt.Printf("api_base_url:       %s\n", status.APIBaseURL)
	fmt.Printf("snapshot_books:     %d   # records in the local snapshot\n", status.SnapshotBooks)
	if status.LastSynced != nil {
		fmt.Printf("last_synced:        %s\n", status.LastSynced.Local().Format(time.RFC3339))
	} else {
		fmt.Println("last_synced:        never")
	}
	fmt.Printf("indexed_books:      %d   # records in the keyword index\n", status.IndexedBooks)
	if status.DiskUsageBytes != nil {
		fmt.Printf("disk_usage:         %s   # snapshot + index on disk\n", utils.FormatBytes(*status.DiskUsageBytes))
	}
	fmt.Println()
	fmt.Println("# configuration")
	if status.ConfigPath != "" {
		fmt.Printf("config_path:        %s\n", status.ConfigPath)
	}
	fmt.Printf("database_path:      %s\n", status.DatabasePath)
	fmt.Printf("bleve_index_path:   %s\n", status.BleveIndexPath)
}
