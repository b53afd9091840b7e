// Package normalize turns parsed entries into display-ready RequestItems.
//
// Normalization resolves the deferred response body, maps the response MIME
// type to a display Category, and pretty-prints payloads: JSON with stable
// indentation, GraphQL documents with gqlparser's formatter, XML with etree.
// Every step degrades to a placeholder or to the raw text; Normalize always
// returns a well-formed RequestItem.
package normalize
