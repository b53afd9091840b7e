// Package flags provides reusable flag types for CLI commands.
package flags

import (
	"fmt"
	"strings"

	"github.com/getmockd/netpanel/pkg/normalize"
)

// StringSlice implements pflag.Value for repeatable string flags.
type StringSlice []string

// String returns the string representation of the flag value.
func (s *StringSlice) String() string {
	return strings.Join(*s, ",")
}

// Set appends a value to the slice.
func (s *StringSlice) Set(value string) error {
	*s = append(*s, value)
	return nil
}

// Type specifies the type label for Cobra flags.
func (s *StringSlice) Type() string {
	return "stringSlice"
}

// All is the Category flag value that disables category filtering.
const All = "All"

// Category is a display category flag. The zero value and All mean no filter.
type Category struct {
	value normalize.Category
	set   bool
}

// String returns the canonical category name, or All.
func (c *Category) String() string {
	if !c.set {
		return All
	}
	return string(c.value)
}

// Set parses a category name case-insensitively.
func (c *Category) Set(value string) error {
	if strings.EqualFold(value, All) {
		*c = Category{}
		return nil
	}
	cat, ok := normalize.ParseCategory(value)
	if !ok {
		return fmt.Errorf("unknown category %q (want %s)", value, choices())
	}
	*c = Category{value: cat, set: true}
	return nil
}

// Type specifies the type label for Cobra flags.
func (c *Category) Type() string {
	return "category"
}

// Selected returns the chosen category, or false when no filter applies.
func (c *Category) Selected() (normalize.Category, bool) {
	return c.value, c.set
}

func choices() string {
	names := []string{All}
	for _, cat := range normalize.Categories {
		names = append(names, string(cat))
	}
	return strings.Join(names, ", ")
}
