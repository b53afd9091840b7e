// Package pipeline connects the capture stages of a session:
//
//	capture → classify (admit) → parse → normalize → session store
//
// Process handles one capture synchronously. Run consumes a stream of
// captures, normalizing several at once while committing their items to the
// store in the order the captures arrived.
package pipeline
