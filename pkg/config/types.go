package config

import "time"

// Config is the complete configuration of the netpanel CLI.
type Config struct {
	// Capture source
	CDPURL    string `yaml:"cdpUrl" json:"cdpUrl"`
	TabFilter string `yaml:"tabFilter,omitempty" json:"tabFilter,omitempty"`

	// Panel API address; empty disables the server.
	Listen string `yaml:"listen,omitempty" json:"listen,omitempty"`

	// Classification
	GraphQLPaths         []string `yaml:"graphqlPaths,omitempty" json:"graphqlPaths,omitempty"`
	RequireEndpointMatch bool     `yaml:"requireEndpointMatch" json:"requireEndpointMatch"`
	MIMEPolicy           string   `yaml:"mimePolicy" json:"mimePolicy"`

	// Normalization
	FetchTimeout time.Duration `yaml:"fetchTimeout" json:"fetchTimeout"`
	Concurrency  int           `yaml:"concurrency" json:"concurrency"`

	// Logging
	LogLevel  string `yaml:"logLevel" json:"logLevel"`
	LogFormat string `yaml:"logFormat" json:"logFormat"`
	LogFile   string `yaml:"logFile,omitempty" json:"logFile,omitempty"`

	// Output
	JSON bool `yaml:"json" json:"json"`

	// Sources tracks where each value came from, keyed by YAML name.
	Sources map[string]string `yaml:"-" json:"-"`

	// SetFields records the keys present in a loaded file, so that an
	// explicit false or zero can override an earlier layer.
	SetFields map[string]bool `yaml:"-" json:"-"`
}

// Value sources.
const (
	SourceDefault = "default"
	SourceGlobal  = "global"
	SourceLocal   = "local"
	SourceFile    = "file"
	SourceEnv     = "env"
	SourceFlag    = "flag"
)
