// Package session holds the captured requests of one inspection session.
//
// A Store is the single mutation point for normalized items and the
// category filter settings. It is safe for concurrent use: capture callbacks
// and panel API handlers may run on any goroutine. Readers observe changes
// by subscribing to Events.
package session
