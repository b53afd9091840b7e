package session

import (
	"maps"

	"github.com/getmockd/netpanel/pkg/normalize"
)

// Settings is the category filter state. At most one category is selected;
// no selection means all categories are shown.
type Settings struct {
	Filters map[normalize.Category]bool `json:"filters"`
}

// DefaultSettings returns settings with every category toggle off.
func DefaultSettings() Settings {
	s := Settings{Filters: make(map[normalize.Category]bool, len(normalize.Categories))}
	for _, c := range normalize.Categories {
		s.Filters[c] = false
	}
	return s
}

// Selected returns the selected category, if any.
func (s Settings) Selected() (normalize.Category, bool) {
	for _, c := range normalize.Categories {
		if s.Filters[c] {
			return c, true
		}
	}
	return "", false
}

// Allows reports whether an item of category c passes the filter.
func (s Settings) Allows(c normalize.Category) bool {
	selected, ok := s.Selected()
	return !ok || selected == c
}

func (s Settings) clone() Settings {
	return Settings{Filters: maps.Clone(s.Filters)}
}
