package models

// Stats are the aggregate counts served by GET /stats, or computed locally when that call fails.
// Field names follow the backend payload.
type Stats struct {
	TotalBooks      int            `json:"total_books"`
	PublicBooks     int            `json:"public_library_books"`
	PersonalBooks   int            `json:"user_uploaded_books"`
	FeaturedBooks   int            `json:"featured_books"`
	TotalSize       int64          `json:"total_size,omitempty"`
	AvailableGenres []string       `json:"available_genres,omitempty"`
	Genres          map[string]int `json:"genre_distribution,omitempty"`
	LastUpdated     string         `json:"last_updated,omitempty"`
	// Local is true when the stats were derived from the in-memory collection.
	Local bool `json:"local,omitempty"`
}
