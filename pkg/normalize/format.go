package normalize

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/beevik/etree"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/formatter"
	"github.com/vektah/gqlparser/v2/parser"
)

// DefaultIndent is the indentation used by the formatters.
const DefaultIndent = "  "

var errNoRoot = errors.New("document has no root element")

// FormatJSON re-indents a JSON document without reordering keys.
func FormatJSON(text, indent string) (string, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(strings.TrimSpace(text)), "", indent); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// FormatGraphQL pretty-prints a GraphQL executable document.
func FormatGraphQL(query, indent string) (string, error) {
	doc, err := parser.ParseQuery(&ast.Source{Input: query})
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	formatter.NewFormatter(&buf, formatter.WithIndent(indent)).FormatQueryDocument(doc)
	return strings.TrimRight(buf.String(), "\n"), nil
}

// FormatXML pretty-prints an XML document. HTML is accepted as long as it is
// well-formed enough for a permissive XML reader.
func FormatXML(text, indent string) (string, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.Permissive = true
	if err := doc.ReadFromString(text); err != nil {
		return "", err
	}
	if doc.Root() == nil {
		return "", errNoRoot
	}
	doc.Indent(len(indent))
	out, err := doc.WriteToString()
	if err != nil {
		return "", err
	}
	return strings.TrimRight(out, "\n"), nil
}
