// Package id provides unique identifier generation for netpanel.
//
// Entry identifiers are ULIDs: 26-character, Crockford base32, time-sortable
// strings. Two entries parsed from the same capture (a GraphQL batch) are
// produced within the same millisecond, so the generator keeps a per-millisecond
// counter to keep them distinct and ordered.
//
// Session identifiers use UUID v4 from github.com/google/uuid.
package id
