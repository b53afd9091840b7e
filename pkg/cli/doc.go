// Package cli provides the command-line interface for netpanel.
//
// Commands:
//   - inspect: Run a HAR file through the pipeline and print the visible entries
//   - watch: Attach to Chromium over the DevTools protocol and stream entries,
//     optionally serving the panel API with --listen
//   - config: Display the effective configuration and where each value came from
//   - version: Show netpanel version
//
// Every command except version resolves its configuration before running:
// defaults, the global and local config files, NETPANEL_* environment
// variables and finally flags. See package config.
package cli
