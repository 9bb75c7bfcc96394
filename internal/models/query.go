package models

import (
	"fmt"
	"strings"
)

// AllGenres is the genre selector value that matches every record.
const AllGenres = "all"

// SortKey selects the ordering of a query result.
type SortKey string

const (
	SortRecent SortKey = "recent"
	SortTitle  SortKey = "title"
	SortAuthor SortKey = "author"
	SortSize   SortKey = "size"
)

// ParseSortKey validates s. An empty string selects SortRecent.
func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return SortRecent, nil
	case SortRecent, SortTitle, SortAuthor, SortSize:
		return k, nil
	default:
		return "", &ValidationError{Field: "sort", Message: fmt.Sprintf("unknown sort key %q (use recent, title, author or size)", s)}
	}
}

// View selects which partition of the collection a caller is looking at.
type View string

const (
	ViewAll      View = "all"
	ViewPublic   View = "public"
	ViewPersonal View = "personal"
)

// ParseView validates s. An empty string selects ViewAll.
func ParseView(s string) (View, error) {
	switch v := View(strings.ToLower(strings.TrimSpace(s))); v {
	case "":
		return ViewAll, nil
	case ViewAll, ViewPublic, ViewPersonal:
		return v, nil
	default:
		return "", &ValidationError{Field: "view", Message: fmt.Sprintf("unknown view %q (use all, public or personal)", s)}
	}
}

// QueryParams are the inputs of a derived collection view.
type QueryParams struct {
	Search string  `json:"search,omitempty"`
	Genre  string  `json:"genre,omitempty"`
	Sort   SortKey `json:"sort,omitempty"`
}

// Normalize fills in defaults: an empty genre means AllGenres and an empty sort means SortRecent.
func (p QueryParams) Normalize() QueryParams {
	if p.Genre == "" {
		p.Genre = AllGenres
	}
	if p.Sort == "" {
		p.Sort = SortRecent
	}
	return p
}
