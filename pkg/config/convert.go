package config

import (
	"io"

	"github.com/getmockd/netpanel/pkg/cdpsource"
	"github.com/getmockd/netpanel/pkg/classify"
	"github.com/getmockd/netpanel/pkg/logging"
	"github.com/getmockd/netpanel/pkg/normalize"
	"github.com/getmockd/netpanel/pkg/pipeline"
)

// ClassifyOptions returns the classifier options described by c.
func (c *Config) ClassifyOptions() classify.Options {
	return classify.Options{
		GraphQLPaths:         c.GraphQLPaths,
		RequireEndpointMatch: c.RequireEndpointMatch,
		MIMEPolicy:           classify.MIMEPolicy(c.MIMEPolicy),
	}
}

// NormalizeOptions returns the normalizer options described by c.
func (c *Config) NormalizeOptions() normalize.Options {
	return normalize.Options{
		FetchTimeout: c.FetchTimeout,
		Indent:       normalize.DefaultIndent,
	}
}

// PipelineOptions returns the pipeline options described by c.
func (c *Config) PipelineOptions() pipeline.Options {
	return pipeline.Options{Concurrency: c.Concurrency}
}

// CDPOptions returns the CDP source options described by c.
func (c *Config) CDPOptions() cdpsource.Options {
	return cdpsource.Options{URL: c.CDPURL, TabFilter: c.TabFilter}
}

// LoggingConfig returns the logger configuration described by c, writing to out.
func (c *Config) LoggingConfig(out io.Writer) logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.ParseLevel(c.LogLevel)
	cfg.Format = logging.ParseFormat(c.LogFormat)
	cfg.File = c.LogFile
	if out != nil {
		cfg.Output = out
	}
	return cfg
}
