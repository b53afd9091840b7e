// Package view derives what a panel shows from session state: the filtered,
// newest-first item list, JSONPath projections of response payloads and
// expression filters over items.
package view
