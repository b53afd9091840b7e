package config

import (
	"time"

	"github.com/getmockd/netpanel/pkg/cdpsource"
	"github.com/getmockd/netpanel/pkg/classify"
	"github.com/getmockd/netpanel/pkg/normalize"
	"github.com/getmockd/netpanel/pkg/pipeline"
)

// Defaults.
const (
	DefaultCDPURL       = cdpsource.DefaultURL
	DefaultMIMEPolicy   = string(classify.MIMECategorize)
	DefaultFetchTimeout = normalize.DefaultFetchTimeout
	DefaultConcurrency  = pipeline.DefaultConcurrency
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "text"
)

// MaxConcurrency bounds Config.Concurrency.
const MaxConcurrency = 256

// MaxFetchTimeout bounds Config.FetchTimeout.
const MaxFetchTimeout = 10 * time.Minute

// NewDefault creates a Config with default values.
func NewDefault() *Config {
	cfg := &Config{
		CDPURL:       DefaultCDPURL,
		GraphQLPaths: append([]string(nil), classify.DefaultGraphQLPaths...),
		MIMEPolicy:   DefaultMIMEPolicy,
		FetchTimeout: DefaultFetchTimeout,
		Concurrency:  DefaultConcurrency,
		LogLevel:     DefaultLogLevel,
		LogFormat:    DefaultLogFormat,
		Sources:      make(map[string]string),
	}
	for _, key := range []string{
		"cdpUrl", "graphqlPaths", "requireEndpointMatch", "mimePolicy",
		"fetchTimeout", "concurrency", "logLevel", "logFormat", "json",
	} {
		cfg.Sources[key] = SourceDefault
	}
	return cfg
}
