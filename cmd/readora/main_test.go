package main

import (
	"errors"
	"flag"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/hyperjump/readora/internal/config"
	"github.com/hyperjump/readora/internal/models"
)

func TestArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after query are moved first",
			args:     []string{"old man", "-limit", "5"},
			expected: []string{"-limit", "5", "old man"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"-fuzzy", "old man"},
			expected: []string{"-fuzzy", "old man"},
		},
		{
			name:     "query only returns unchanged",
			args:     []string{"walden"},
			expected: []string{"walden"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
		{
			name:     "multiple positionals then flags",
			args:     []string{"one", "two", "--limit", "5"},
			expected: []string{"--limit", "5", "one", "two"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := argsReorder(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("argsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestJoinArgs(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"walden"}, "walden"},
		{"multiple words", []string{"old", "man"}, "old man"},
		{"quoted phrase", []string{"old man"}, "old man"},
		{"empty args", []string{}, ""},
		{"blank args", []string{"  ", "  "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := joinArgs(tt.args); got != tt.expected {
				t.Errorf("joinArgs(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func TestViewFlagsParams(t *testing.T) {
	cfg := &config.Config{}
	cfg.Collection.DefaultSort = "title"

	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	v := addViewFlags(fs)
	if err := fs.Parse([]string{"-view", "personal", "-genre", "Work", "-q", "notes"}); err != nil {
		t.Fatal(err)
	}
	view, params, err := v.params(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if view != models.ViewPersonal || params.Genre != "Work" || params.Search != "notes" || params.Sort != models.SortTitle {
		t.Errorf("got view=%s params=%+v", view, params)
	}

	fs = flag.NewFlagSet("list", flag.ContinueOnError)
	v = addViewFlags(fs)
	_ = fs.Parse([]string{"-sort", "rating"})
	var verr *models.ValidationError
	if _, _, err := v.params(cfg); !errors.As(err, &verr) || verr.Field != "sort" {
		t.Errorf("expected sort validation error, got %v", err)
	}
}

func TestConfirm(t *testing.T) {
	tests := map[string]bool{
		"y\n":     true,
		"YES\n":   true,
		" yes ":   true,
		"n\n":     false,
		"\n":      false,
		"":        false,
		"maybe\n": false,
	}
	for input, want := range tests {
		var out strings.Builder
		if got := confirm(strings.NewReader(input), &out, "Delete 1?"); got != want {
			t.Errorf("confirm(%q) = %v, want %v", input, got, want)
		}
		if out.String() != "Delete 1? [y/N] " {
			t.Errorf("prompt = %q", out.String())
		}
	}
}

func TestStringList(t *testing.T) {
	var s stringList
	_ = s.Set("/a")
	_ = s.Set("/b")
	if !reflect.DeepEqual([]string(s), []string{"/a", "/b"}) {
		t.Errorf("stringList = %v", s)
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
api:
  base_url: "http://books.local:8000/"
storage:
  database_path: "./test.db"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(config.EnvAPIURL, "")
	chdir(t, dir)

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while configPath from t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if !cfg.Debug {
		t.Error("debug should be true from cwd config.yaml")
	}
	if cfg.API.BaseURL != "http://books.local:8000" {
		t.Errorf("base url = %q", cfg.API.BaseURL)
	}
}

func TestLoadConfig_defaultsWithoutFile(t *testing.T) {
	if _, err := os.Stat(defaultConfigPath); !errors.Is(err, fs.ErrNotExist) {
		t.Skip("a system config exists")
	}
	t.Setenv(config.EnvAPIURL, "")
	chdir(t, t.TempDir())

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != "" {
		t.Errorf("resolved = %q, want empty for defaults", resolved)
	}
	if cfg.API.BaseURL == "" || cfg.Server.Port == 0 {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
}

func TestLoadConfig_missingExplicitPath(t *testing.T) {
	if _, _, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for a missing explicit config")
	}
}

// chdir changes the working directory for the duration of the test,
// mirroring testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}
