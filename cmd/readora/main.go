// Package main is the Readora CLI entry point.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/readora/internal/config"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/readora/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development). A missing file at the
// default path yields the default configuration.
// Returns the config and the path that was actually loaded ("" for defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); errors.Is(statErr, fs.ErrNotExist) {
			cfg, err := config.Default()
			if err != nil {
				return nil, "", err
			}
			return cfg, "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	args := os.Args[2:]
	switch command {
	case "list":
		runList(args)
	case "genres":
		runGenres(args)
	case "featured":
		runFeatured(args)
	case "stats":
		runStats(args)
	case "find":
		runFind(args)
	case "sync":
		runSync(args)
	case "status":
		runStatus(args)
	case "upload":
		runUpload(args)
	case "import":
		runImport(args)
	case "export":
		runExport(args)
	case "delete":
		runDelete(args)
	case "download":
		runDownload(args)
	case "serve", "server":
		runServe(args)
	case "watch":
		runWatch(args)
	case "version", "--version", "-v":
		fmt.Printf("readora version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// fatalf prints to stderr and exits with status 1.
func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// joinArgs joins all positional args with spaces so multi-word queries work
// the same with or without shell quoting.
func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// argsReorder moves any flags (and their values) that appear after the
// positional arguments to the front so that flag.Parse() sees them. Go's flag
// package stops at the first non-flag argument, so "readora find walden -limit 5"
// would otherwise leave -limit unparsed.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func printUsage() {
	fmt.Println(`readora - personal and public library client

Usage:
  readora list [flags]                 List books (derived view)
  readora genres [flags]               Group books by genre
  readora featured [flags]             List featured books
  readora stats [flags]                Show collection statistics
  readora find [flags] <query>         Ranked search over the local snapshot
  readora sync [flags]                 Fetch the collection into the local snapshot
  readora status [flags]               Show snapshot/index status
  readora upload [flags] <file>        Upload a book or personal document
  readora import [flags] <manifest>    Upload every row of an .xlsx manifest
  readora export [flags] <out.xlsx>    Export a view as an .xlsx catalog
  readora delete [flags] <id>          Delete a book
  readora download [flags] <id>        Download a book's file
  readora serve [flags]                Start the local view API
  readora watch [flags]                Upload files dropped into watched directories
  readora version                      Show version
  readora help                         Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/readora/config.yaml)
  --debug            Enable debug logging
  --output string    Output format: text, compact or json (default: text)
  --offline          Read the local snapshot instead of the live API (list, genres, featured, stats, export)

View Flags (list, export):
  --view string      all, public or personal (default: all)
  --q string         Case-insensitive search in title, author, description and filename
  --genre string     Genre label, or "all" (default: all)
  --sort string      recent, title, author or size (default from config: recent)
  --limit int        With --view public, fetch at most this many records from /books/public

Find Flags:
  --limit int        Number of results (default: 10)
  --fuzzy            Enable typo tolerance

Upload Flags:
  --title, --author, --description, --genre, --language, --copyright string
  --public           Upload to the public library (default: personal document)

Delete Flags:
  --yes              Do not ask for confirmation

Download Flags:
  -o string          Output file (default: the stored filename)
  --url              Print the inline viewing URL instead of downloading

Examples:
  readora list --view public --sort title
  readora list --q "old man" --output compact
  readora genres --view personal
  readora find --fuzzy hemingwya
  readora upload --title "Field Notes" --public notes.pdf
  readora import manifest.xlsx
  readora export --view public catalog.xlsx
  readora delete --yes 42
  readora serve`)
}
