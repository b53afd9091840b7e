// Package entry turns classified captures into typed, display-agnostic entries.
//
// An Entry is a tagged union over two variants selected by Entry.Kind: GQL for
// a single GraphQL operation and HTTP for a plain exchange. Exactly one of
// Entry.GQL and Entry.HTTP is set. Consumers switch on Kind rather than testing
// pointers.
//
// Parsing never performs I/O. The response body stays behind the capture's
// BodyFetcher until normalization.
package entry
