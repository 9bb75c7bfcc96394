package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/hyperjump/readora/internal/cli"
	"github.com/hyperjump/readora/internal/client"
	"github.com/hyperjump/readora/internal/collection"
	"github.com/hyperjump/readora/internal/config"
	"github.com/hyperjump/readora/internal/indexer"
	"github.com/hyperjump/readora/internal/keyword"
	"github.com/hyperjump/readora/internal/models"
	"github.com/hyperjump/readora/internal/storage"
	"github.com/hyperjump/readora/pkg/utils"
)

// commonFlags are accepted by every command that talks to the backend.
type commonFlags struct {
	configPath *string
	debug      *bool
	output     *string
}

func addCommonFlags(fs *flag.FlagSet) *commonFlags {
	return &commonFlags{
		configPath: fs.String("config", defaultConfigPath, "config file path"),
		debug:      fs.Bool("debug", false, "enable debug logging"),
		output:     fs.String("output", "text", "output format: text, compact or json"),
	}
}

// app holds what a command run needs. Storage and index are opened on demand
// and closed by close.
type app struct {
	cfg        *config.Config
	configPath string
	debug      bool
	format     cli.OutputFormat
	logger     *zap.Logger

	api     *client.Client
	storage *storage.SQLiteStorage
	index   *keyword.BookIndex
}

func (f *commonFlags) open() *app {
	format, err := cli.ParseFormat(*f.output)
	if err != nil {
		fatalf("%v", err)
	}
	cfg, resolved, err := loadConfig(*f.configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	debugMode := cfg.Debug || *f.debug
	logger := utils.MustLogger(debugMode)
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debugMode))
	return &app{cfg: cfg, configPath: resolved, debug: debugMode, format: format, logger: logger}
}

func (a *app) close() {
	if a.index != nil {
		_ = a.index.Close()
	}
	if a.storage != nil {
		_ = a.storage.Close()
	}
	_ = a.logger.Sync()
}

func (a *app) client() *client.Client {
	if a.api == nil {
		c, err := client.NewFromConfig(&a.cfg.API, client.WithLogger(a.logger))
		if err != nil {
			fatalf("Invalid API configuration: %v", err)
		}
		a.api = c
	}
	return a.api
}

func (a *app) openStorage() *storage.SQLiteStorage {
	if a.storage == nil {
		st, err := storage.NewSQLiteStorage(a.cfg.Storage.DatabasePath)
		if err != nil {
			fatalf("Failed to open snapshot: %v", err)
		}
		a.storage = st
	}
	return a.storage
}

func (a *app) openIndex() *keyword.BookIndex {
	if a.index == nil {
		path := a.cfg.Storage.BleveIndexPath
		if path != "" {
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				fatalf("Failed to create index directory: %v", err)
			}
		}
		idx, err := keyword.NewBookIndex(path)
		if err != nil {
			fatalf("Failed to open keyword index: %v", err)
		}
		a.index = idx
	}
	return a.index
}

func (a *app) newIndexer(speller *keyword.SpellChecker) *indexer.Indexer {
	opts := []indexer.IndexerOption{}
	if a.debug {
		opts = append(opts, indexer.WithLogger(a.logger))
	}
	return indexer.NewIndexer(a.openStorage(), a.openIndex(), speller, opts...)
}

var errNoSnapshot = errors.New("no local snapshot; run 'readora sync' first")

// snapshot returns the stored collection, or errNoSnapshot if nothing was synced yet.
func (a *app) snapshot(ctx context.Context) ([]models.BookRecord, error) {
	st := a.openStorage()
	if _, ok, err := st.LastSynced(ctx); err != nil {
		return nil, err
	} else if !ok {
		return nil, errNoSnapshot
	}
	return st.ListBooks(ctx)
}

// fetchBooks loads the collection from the API, or from the snapshot when offline.
func (a *app) fetchBooks(ctx context.Context, offline bool) ([]models.BookRecord, error) {
	if offline {
		return a.snapshot(ctx)
	}
	return a.client().ListBooks(ctx)
}

// viewFlags select a derived view of the collection.
type viewFlags struct {
	view  *string
	q     *string
	genre *string
	sort  *string
	limit *int
}

func addViewFlags(fs *flag.FlagSet) *viewFlags {
	return &viewFlags{
		view:  fs.String("view", "all", "all, public or personal"),
		q:     fs.String("q", "", "search text"),
		genre: fs.String("genre", models.AllGenres, "genre label or \"all\""),
		sort:  fs.String("sort", "", "recent, title, author or size"),
		limit: fs.Int("limit", 0, "with --view public, fetch at most this many records from the public endpoint"),
	}
}

// params validates the flags. An empty sort takes the configured default.
func (v *viewFlags) params(cfg *config.Config) (models.View, models.QueryParams, error) {
	view, err := models.ParseView(*v.view)
	if err != nil {
		return "", models.QueryParams{}, err
	}
	sortValue := *v.sort
	if sortValue == "" {
		sortValue = cfg.Collection.DefaultSort
	}
	sortKey, err := models.ParseSortKey(sortValue)
	if err != nil {
		return "", models.QueryParams{}, err
	}
	return view, models.QueryParams{Search: *v.q, Genre: *v.genre, Sort: sortKey}, nil
}

// books fetches and derives the view selected by v.
func (v *viewFlags) books(ctx context.Context, a *app, offline bool) ([]models.BookRecord, error) {
	view, params, err := v.params(a.cfg)
	if err != nil {
		return nil, err
	}
	var books []models.BookRecord
	if view == models.ViewPublic && *v.limit > 0 && !offline {
		books, err = a.client().ListPublicBooks(ctx, *v.limit)
	} else {
		books, err = a.fetchBooks(ctx, offline)
	}
	if err != nil {
		return nil, err
	}
	engine := collection.NewEngineForLocale(a.cfg.Collection.Locale)
	return engine.Query(collection.Select(books, view), params), nil
}

func describeErr(err error) string {
	var verr *models.ValidationError
	var mutErr *models.MutationError
	switch {
	case errors.As(err, &verr):
		return verr.Error()
	case errors.As(err, &mutErr):
		return mutErr.Message
	default:
		return fmt.Sprint(err)
	}
}
