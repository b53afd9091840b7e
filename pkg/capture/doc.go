// Package capture defines the raw network capture record consumed by the
// netpanel pipeline.
//
// An Entry mirrors a HAR 1.2 entry as delivered by a host (a browser devtools
// network stream, a Chrome DevTools Protocol session, or a HAR file). The
// response body is not part of the record: it is resolved later through the
// entry's BodyFetcher, which may fail or never be available at all.
//
// Entries are immutable once delivered. Nothing downstream writes to them.
package capture
