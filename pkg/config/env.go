package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variable names.
const (
	EnvConfig               = "NETPANEL_CONFIG"
	EnvCDPURL               = "NETPANEL_CDP_URL"
	EnvTabFilter            = "NETPANEL_TAB_FILTER"
	EnvListen               = "NETPANEL_LISTEN"
	EnvGraphQLPaths         = "NETPANEL_GRAPHQL_PATHS"
	EnvRequireEndpointMatch = "NETPANEL_REQUIRE_ENDPOINT_MATCH"
	EnvMIMEPolicy           = "NETPANEL_MIME_POLICY"
	EnvFetchTimeout         = "NETPANEL_FETCH_TIMEOUT"
	EnvConcurrency          = "NETPANEL_CONCURRENCY"
	EnvLogLevel             = "NETPANEL_LOG_LEVEL"
	EnvLogFormat            = "NETPANEL_LOG_FORMAT"
	EnvLogFile              = "NETPANEL_LOG_FILE"
)

// LoadEnvConfig applies NETPANEL_* environment variables to cfg. Only
// variables that are set are applied; malformed numbers and durations are
// reported as errors.
func LoadEnvConfig(cfg *Config) error {
	if cfg.Sources == nil {
		cfg.Sources = make(map[string]string)
	}
	set := func(key string) { cfg.Sources[key] = SourceEnv }

	if v := os.Getenv(EnvCDPURL); v != "" {
		cfg.CDPURL = v
		set("cdpUrl")
	}
	if v := os.Getenv(EnvTabFilter); v != "" {
		cfg.TabFilter = v
		set("tabFilter")
	}
	if v := os.Getenv(EnvListen); v != "" {
		cfg.Listen = v
		set("listen")
	}
	if v := os.Getenv(EnvGraphQLPaths); v != "" {
		cfg.GraphQLPaths = splitList(v)
		set("graphqlPaths")
	}
	if v := os.Getenv(EnvRequireEndpointMatch); v != "" {
		cfg.RequireEndpointMatch = parseBool(v)
		set("requireEndpointMatch")
	}
	if v := os.Getenv(EnvMIMEPolicy); v != "" {
		cfg.MIMEPolicy = v
		set("mimePolicy")
	}
	if v := os.Getenv(EnvFetchTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvFetchTimeout, err)
		}
		cfg.FetchTimeout = d
		set("fetchTimeout")
	}
	if v := os.Getenv(EnvConcurrency); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvConcurrency, err)
		}
		cfg.Concurrency = n
		set("concurrency")
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
		set("logLevel")
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		cfg.LogFormat = v
		set("logFormat")
	}
	if v := os.Getenv(EnvLogFile); v != "" {
		cfg.LogFile = v
		set("logFile")
	}
	return nil
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
