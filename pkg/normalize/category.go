package normalize

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/getmockd/netpanel/pkg/classify"
)

// Category is the display bucket of a RequestItem.
type Category string

// Display categories. CategoryXML also holds text/html responses.
const (
	CategoryGQL   Category = "GQL"
	CategoryJSON  Category = "JSON"
	CategoryXML   Category = "XML"
	CategorySVG   Category = "SVG"
	CategoryIMG   Category = "IMG"
	CategoryOther Category = "Other"
)

// Categories lists every category in filter order.
var Categories = []Category{CategoryGQL, CategoryJSON, CategoryXML, CategorySVG, CategoryIMG, CategoryOther}

// ParseCategory resolves a category name case-insensitively. "Img" is accepted
// for CategoryIMG.
func ParseCategory(s string) (Category, bool) {
	for _, c := range Categories {
		if strings.EqualFold(string(c), s) {
			return c, true
		}
	}
	return "", false
}

// mimeCategories is matched in order; the first hit wins.
var mimeCategories = []struct {
	pattern  string
	category Category
}{
	{"application/json", CategoryJSON},
	{"text/html", CategoryXML},
	{"text/xml", CategoryXML},
	{"image/svg+xml", CategorySVG},
	{"image/*", CategoryIMG},
}

// CategoryOf maps a response MIME type to a Category. GraphQL entries are
// always CategoryGQL; anything unmatched is CategoryOther.
func CategoryOf(mimeType string, kind classify.Kind) Category {
	if kind == classify.KindGraphQL {
		return CategoryGQL
	}
	mt := classify.MediaType(mimeType)
	for _, m := range mimeCategories {
		if ok, _ := doublestar.Match(m.pattern, mt); ok {
			return m.category
		}
	}
	return CategoryOther
}
