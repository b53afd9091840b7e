// Package classify decides whether a capture carries GraphQL operations or a
// plain HTTP exchange, and whether it is admitted into a session at all.
//
// Classification is a pure function of the capture: classifying the same
// entry twice always yields the same Kind. Malformed bodies never fail
// classification; they classify as KindHTTP so the request stays visible.
package classify
