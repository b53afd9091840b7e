package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/getmockd/netpanel/pkg/classify"
)

// Validate checks cfg and returns every problem found, joined.
func (c *Config) Validate() error {
	var errs []error

	if c.CDPURL != "" {
		u, err := url.Parse(c.CDPURL)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("cdpUrl %q is invalid: %w", c.CDPURL, err))
		case u.Host == "" || !isOneOf(u.Scheme, "http", "https", "ws", "wss"):
			errs = append(errs, fmt.Errorf("cdpUrl %q must be an http(s) or ws(s) URL", c.CDPURL))
		}
	}

	if c.Listen != "" {
		if _, _, err := net.SplitHostPort(c.Listen); err != nil {
			errs = append(errs, fmt.Errorf("listen %q is not host:port: %w", c.Listen, err))
		}
	}

	for _, p := range c.GraphQLPaths {
		if !doublestar.ValidatePattern(p) {
			errs = append(errs, fmt.Errorf("graphqlPaths: invalid pattern %q", p))
		}
	}

	switch classify.MIMEPolicy(c.MIMEPolicy) {
	case "", classify.MIMECategorize, classify.MIMEDrop:
	default:
		errs = append(errs, fmt.Errorf("mimePolicy %q is invalid (valid: %s, %s)", c.MIMEPolicy, classify.MIMECategorize, classify.MIMEDrop))
	}

	if c.FetchTimeout < 0 || c.FetchTimeout > MaxFetchTimeout {
		errs = append(errs, fmt.Errorf("fetchTimeout %s is out of range (0-%s)", c.FetchTimeout, MaxFetchTimeout))
	}
	if c.Concurrency < 0 || c.Concurrency > MaxConcurrency {
		errs = append(errs, fmt.Errorf("concurrency %d is out of range (0-%d)", c.Concurrency, MaxConcurrency))
	}

	if c.LogLevel != "" && !isOneOf(strings.ToLower(c.LogLevel), "debug", "info", "warn", "warning", "error") {
		errs = append(errs, fmt.Errorf("logLevel %q is invalid", c.LogLevel))
	}
	if c.LogFormat != "" && !isOneOf(strings.ToLower(c.LogFormat), "text", "json") {
		errs = append(errs, fmt.Errorf("logFormat %q is invalid (valid: text, json)", c.LogFormat))
	}

	return errors.Join(errs...)
}

func isOneOf(s string, options ...string) bool {
	for _, o := range options {
		if s == o {
			return true
		}
	}
	return false
}
