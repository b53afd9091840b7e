// Package config provides configuration types and loading for the netpanel CLI.
//
// It implements a layered configuration system with the following precedence
// (highest to lowest):
//
//  1. Command-line flags
//  2. Environment variables (NETPANEL_* prefix, optionally from a .env file)
//  3. Local config file (.netpanelrc.yaml in the current directory)
//  4. Global config file ($XDG_CONFIG_HOME/netpanel/config.yaml)
//  5. Default values
//
// The source of every value is tracked for `netpanel config`.
package config
