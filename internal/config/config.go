// Package config provides configuration loading and structs for Readora.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the config file.
const (
	EnvAPIURL     = "READORA_API_URL"
	EnvAPITimeout = "READORA_API_TIMEOUT"
	EnvAdminToken = "READORA_ADMIN_TOKEN"
	EnvDebug      = "READORA_DEBUG"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	API        APIConfig        `yaml:"api"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Collection CollectionConfig `yaml:"collection"`
	Upload     UploadConfig     `yaml:"upload"`
	Watch      WatchConfig      `yaml:"watch"`
}

// APIConfig describes the Readora backend.
type APIConfig struct {
	BaseURL     string        `yaml:"base_url"`
	Timeout     time.Duration `yaml:"timeout"`
	PublicLimit int           `yaml:"public_limit"`
	UserAgent   string        `yaml:"user_agent"`
}

// ServerConfig holds settings of the local view API.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	// AdminToken enables DELETE on the local API for callers presenting it.
	// Empty disables deletes entirely.
	AdminToken string `yaml:"admin_token"`
}

// StorageConfig holds paths of the offline snapshot and search index.
type StorageConfig struct {
	DatabasePath   string `yaml:"database_path"`
	BleveIndexPath string `yaml:"bleve_index_path"`
}

// CollectionConfig controls derived views.
type CollectionConfig struct {
	Locale      string `yaml:"locale"`
	DefaultSort string `yaml:"default_sort"`
}

// UploadConfig holds defaults for create calls.
type UploadConfig struct {
	Extensions             []string `yaml:"extensions"`
	DefaultLanguage        string   `yaml:"default_language"`
	DefaultCopyrightStatus string   `yaml:"default_copyright_status"`
	// DescribeChars is the length of descriptions generated from file text; 0 disables them.
	DescribeChars int `yaml:"describe_chars"`
}

// WatchConfig holds drop-folder settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Recursive   *bool    `yaml:"recursive"`
	// Public uploads dropped files to the public library instead of as personal documents.
	Public bool `yaml:"public"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// Addr returns host:port.
func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Load reads and parses the config file at path, applies defaults, expands
// paths and applies environment overrides (including a .env file in the
// working directory, if present).
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := finish(&cfg, filepath.Dir(path)); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no config file exists.
func Default() (*Config, error) {
	var cfg Config
	dir, err := os.Getwd()
	if err != nil {
		dir = "."
	}
	if err := finish(&cfg, dir); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func finish(cfg *Config, configDir string) error {
	// A missing .env is normal.
	_ = godotenv.Load()
	if err := ApplyEnv(cfg); err != nil {
		return err
	}
	ApplyDefaults(cfg)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.BleveIndexPath = expandPath(cfg.Storage.BleveIndexPath, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}
	cfg.API.BaseURL = strings.TrimRight(cfg.API.BaseURL, "/")
	return nil
}

// ApplyEnv overrides cfg with READORA_* environment variables.
func ApplyEnv(cfg *Config) error {
	if v := os.Getenv(EnvAPIURL); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv(EnvAPITimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvAPITimeout, err)
		}
		cfg.API.Timeout = d
	}
	if v := os.Getenv(EnvAdminToken); v != "" {
		cfg.Server.AdminToken = v
	}
	if v := os.Getenv(EnvDebug); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvDebug, err)
		}
		cfg.Debug = b
	}
	return nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
