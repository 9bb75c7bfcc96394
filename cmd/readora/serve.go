package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/readora/internal/collection"
	"github.com/hyperjump/readora/internal/intake"
	"github.com/hyperjump/readora/internal/keyword"
	"github.com/hyperjump/readora/internal/models"
	"github.com/hyperjump/readora/internal/server"
	"github.com/hyperjump/readora/internal/watcher"
)

// startDropFolder watches the configured directories and uploads new files
// once. onUploaded is called after each successful upload and may be nil.
// It returns nil when no directories are configured.
func startDropFolder(ctx context.Context, a *app, onUploaded func(*models.BookRecord)) (*watcher.Watcher, error) {
	if len(a.cfg.Watch.Directories) == 0 {
		return nil, nil
	}
	in := intake.New(a.client(), a.openStorage(), intake.OptionsFromConfig(a.cfg), intake.WithLogger(a.logger))
	watchOpts := []watcher.WatcherOption{}
	if a.debug {
		watchOpts = append(watchOpts, watcher.WithLogger(a.logger))
	}
	w := watcher.NewWatcher(
		a.cfg.Watch.Directories,
		a.cfg.Watch.Extensions,
		a.cfg.Watch.RecursiveOrDefault(),
		func(path string) {
			outcome, book, err := in.HandleFile(ctx, path)
			if err != nil {
				a.logger.Warn("drop-folder upload failed", zap.String("path", path), zap.String("error", describeErr(err)))
				return
			}
			a.logger.Debug("drop-folder file handled", zap.String("path", path), zap.String("outcome", string(outcome)))
			if outcome == intake.Uploaded && onUploaded != nil {
				onUploaded(book)
			}
		},
		func(path string) {
			// uploads are never deleted because a local file went away
			a.logger.Info("drop-folder file removed; uploaded copy kept", zap.String("path", path))
		},
		watchOpts...,
	)
	if err := w.Start(ctx); err != nil {
		return nil, err
	}
	w.SyncExisting()
	return w, nil
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	common := addCommonFlags(fs)
	_ = fs.Parse(args)

	a := common.open()
	defer a.close()
	logger := a.logger
	logger.Info("config loaded", zap.String("config_path", a.configPath), zap.Bool("debug", a.debug))

	storeOpts := []collection.StoreOption{}
	if a.debug {
		storeOpts = append(storeOpts, collection.WithLogger(logger))
	}
	store := collection.NewStore(storeOpts...)
	index := a.openIndex()
	speller := keyword.NewSpellChecker(index)
	srv := server.NewServer(a.client(), store, a.newIndexer(speller), index, speller, a.cfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w, err := startDropFolder(ctx, a, func(*models.BookRecord) {
		if err := srv.Refresh(ctx); err != nil {
			logger.Warn("refresh after upload failed", zap.Error(err))
		}
	})
	if err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	if w != nil {
		defer w.Stop()
		logger.Info("watching drop folders", zap.Strings("directories", w.Directories()))
	}

	go func() {
		if err := srv.Start(ctx); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

// runWatch uploads files dropped into the configured directories until interrupted.
func runWatch(args []string) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	common := addCommonFlags(fs)
	var dirs stringList
	fs.Var(&dirs, "dir", "directory to watch (repeatable; overrides config)")
	public := fs.Bool("public", false, "upload dropped files to the public library")
	_ = fs.Parse(args)

	a := common.open()
	defer a.close()
	if len(dirs) > 0 {
		a.cfg.Watch.Directories = dirs
	}
	if *public {
		a.cfg.Watch.Public = true
	}
	if len(a.cfg.Watch.Directories) == 0 {
		fatalf("No directories to watch; set watch.directories in the config or pass --dir")
	}

	ctx, cancel := signalContext()
	defer cancel()
	w, err := startDropFolder(ctx, a, func(b *models.BookRecord) {
		fmt.Printf("uploaded %q as %s\n", b.Title, b.ID)
	})
	if err != nil {
		fatalf("Failed to start watcher: %v", err)
	}
	defer w.Stop()
	fmt.Printf("Watching %d director(ies); press Ctrl+C to stop\n", len(w.Directories()))
	<-ctx.Done()
}

// stringList is a repeatable string flag.
type stringList []string

func (s *stringList) String() string { return fmt.Sprint([]string(*s)) }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}
