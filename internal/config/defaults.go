package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = "http://localhost:8000"
	}
	if cfg.API.Timeout == 0 {
		cfg.API.Timeout = 30 * time.Second
	}
	if cfg.API.PublicLimit == 0 {
		cfg.API.PublicLimit = 100
	}
	if cfg.API.UserAgent == "" {
		cfg.API.UserAgent = "readora-cli"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RefreshInterval == 0 {
		cfg.Server.RefreshInterval = 5 * time.Minute
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/readora/data/db/books.db"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = "/usr/local/var/readora/data/indices/bleve"
	}
	if cfg.Collection.Locale == "" {
		cfg.Collection.Locale = "en"
	}
	if cfg.Collection.DefaultSort == "" {
		cfg.Collection.DefaultSort = "recent"
	}
	if cfg.Upload.Extensions == nil {
		cfg.Upload.Extensions = []string{".pdf", ".epub", ".txt", ".md", ".docx", ".odt", ".rtf"}
	}
	if cfg.Upload.DefaultLanguage == "" {
		cfg.Upload.DefaultLanguage = "English"
	}
	if cfg.Upload.DefaultCopyrightStatus == "" {
		cfg.Upload.DefaultCopyrightStatus = "unknown"
	}
	if cfg.Upload.DescribeChars == 0 {
		cfg.Upload.DescribeChars = 280
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".pdf"}
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
