package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/readora/internal/intake"
	"github.com/hyperjump/readora/internal/manifest"
	"github.com/hyperjump/readora/internal/models"
)

func (a *app) intake() *intake.Intake {
	return intake.New(a.client(), nil, intake.OptionsFromConfig(a.cfg), intake.WithLogger(a.logger))
}

func runUpload(args []string) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	common := addCommonFlags(fs)
	title := fs.String("title", "", "title (default: derived from the file name)")
	author := fs.String("author", "", "author")
	description := fs.String("description", "", "description (default: taken from the file's text)")
	genre := fs.String("genre", "", "genre")
	language := fs.String("language", "", "language (default from config)")
	copyright := fs.String("copyright", "", "copyright status (default from config)")
	public := fs.Bool("public", false, "upload to the public library")
	_ = fs.Parse(argsReorder(args))

	if fs.NArg() < 1 {
		fatalf("Usage: readora upload [flags] <file>")
	}
	a := common.open()
	defer a.close()
	ctx, cancel := signalContext()
	defer cancel()

	meta := &models.UploadInput{
		Title:           *title,
		Author:          *author,
		Description:     *description,
		Genre:           *genre,
		Language:        *language,
		CopyrightStatus: *copyright,
		IsPublic:        *public,
	}
	book, err := a.intake().Upload(ctx, fs.Arg(0), meta)
	if err != nil {
		fatalf("Upload failed: %v", describeErr(err))
	}
	fmt.Printf("Uploaded %q as %s\n", book.Title, book.ID)
}

// runImport uploads every valid row of a spreadsheet manifest. Rows that fail
// are reported and do not stop the import.
func runImport(args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	common := addCommonFlags(fs)
	dryRun := fs.Bool("dry-run", false, "validate the manifest without uploading")
	_ = fs.Parse(argsReorder(args))

	if fs.NArg() < 1 {
		fatalf("Usage: readora import [flags] <manifest.xlsx>")
	}
	a := common.open()
	defer a.close()
	ctx, cancel := signalContext()
	defer cancel()

	m, err := manifest.Read(fs.Arg(0))
	if err != nil {
		fatalf("Import failed: %v", err)
	}
	for _, rowErr := range m.Invalid {
		fmt.Fprintf(os.Stderr, "skipped: %v\n", rowErr)
	}
	if *dryRun {
		fmt.Printf("%d row(s) ready to upload from sheet %q, %d skipped\n", len(m.Entries), m.Sheet, len(m.Invalid))
		return
	}

	in := a.intake()
	uploaded, failed := 0, 0
	for i := range m.Entries {
		e := &m.Entries[i]
		book, err := in.Upload(ctx, e.File, e.UploadInput(nil))
		if err != nil {
			if ctx.Err() != nil {
				fatalf("Import interrupted after %d upload(s)", uploaded)
			}
			failed++
			fmt.Fprintf(os.Stderr, "row %d: %s\n", e.Row, describeErr(err))
			continue
		}
		uploaded++
		a.logger.Debug("imported row", zap.Int("row", e.Row), zap.String("id", book.ID.String()))
		fmt.Printf("row %d: uploaded %q as %s\n", e.Row, book.Title, book.ID)
	}
	fmt.Printf("Imported %d of %d row(s); %d failed, %d skipped\n", uploaded, len(m.Entries), failed, len(m.Invalid))
	if failed > 0 {
		os.Exit(1)
	}
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	common := addCommonFlags(fs)
	views := addViewFlags(fs)
	offline := fs.Bool("offline", false, "read the local snapshot")
	_ = fs.Parse(argsReorder(args))

	if fs.NArg() < 1 {
		fatalf("Usage: readora export [flags] <out.xlsx>")
	}
	a := common.open()
	defer a.close()
	ctx, cancel := signalContext()
	defer cancel()

	books, err := views.books(ctx, a, *offline)
	if err != nil {
		fatalf("Export failed: %v", describeErr(err))
	}
	out := fs.Arg(0)
	f, err := os.Create(out)
	if err != nil {
		fatalf("Export failed: %v", err)
	}
	if err := manifest.WriteCatalog(f, books); err != nil {
		_ = f.Close()
		fatalf("Export failed: %v", err)
	}
	if err := f.Close(); err != nil {
		fatalf("Export failed: %v", err)
	}
	fmt.Printf("Exported %d book(s) to %s\n", len(books), out)
}

// confirm asks a yes/no question on stdin; anything but y/yes is no.
func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N] ", question)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

// runDelete deletes a record on the backend and, once confirmed, drops it from
// the local snapshot and index.
func runDelete(args []string) {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	common := addCommonFlags(fs)
	yes := fs.Bool("yes", false, "do not ask for confirmation")
	_ = fs.Parse(argsReorder(args))

	if fs.NArg() < 1 {
		fatalf("Usage: readora delete [flags] <id>")
	}
	id := models.BookID(fs.Arg(0))
	a := common.open()
	defer a.close()
	ctx, cancel := signalContext()
	defer cancel()

	label := id.String()
	if b, err := a.openStorage().GetBook(ctx, id); err == nil {
		label = fmt.Sprintf("%s (%q)", id, b.Title)
	}
	if !*yes && !confirm(os.Stdin, os.Stdout, "Delete "+label+"?") {
		fmt.Println("Cancelled.")
		return
	}
	if err := a.client().DeleteBook(ctx, id); err != nil {
		fatalf("Delete failed: %v", describeErr(err))
	}
	if err := a.newIndexer(nil).Remove(ctx, id); err != nil {
		a.logger.Warn("failed to drop deleted book locally", zap.String("id", id.String()), zap.Error(err))
	}
	fmt.Printf("Deleted: %s\n", label)
}

func runDownload(args []string) {
	fs := flag.NewFlagSet("download", flag.ExitOnError)
	common := addCommonFlags(fs)
	output := fs.String("o", "", "output file (default: the stored filename)")
	printURL := fs.Bool("url", false, "print the inline viewing URL instead of downloading")
	_ = fs.Parse(argsReorder(args))

	if fs.NArg() < 1 {
		fatalf("Usage: readora download [flags] <id>")
	}
	id := models.BookID(fs.Arg(0))
	a := common.open()
	defer a.close()
	if *printURL {
		fmt.Println(a.client().InlineURL(id))
		return
	}
	ctx, cancel := signalContext()
	defer cancel()

	out := *output
	if out == "" {
		out = id.String()
		if b, err := a.openStorage().GetBook(ctx, id); err == nil && b.Filename != "" {
			out = filepath.Base(b.Filename)
		}
	}
	f, err := os.Create(out)
	if err != nil {
		fatalf("Download failed: %v", err)
	}
	n, err := a.client().Download(ctx, id, f)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(out)
		var fetchErr *models.FetchError
		if errors.As(err, &fetchErr) && fetchErr.Status == http.StatusNotFound {
			fatalf("Download failed: book %s not found", id)
		}
		fatalf("Download failed: %v", err)
	}
	fmt.Printf("Downloaded %s (%d bytes) to %s\n", id, n, out)
}
