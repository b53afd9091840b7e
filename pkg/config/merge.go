package config

// MergeConfig merges source into target and records sourceType for every
// value taken. Strings, slices and numbers are taken when non-zero; booleans
// and zero durations only when the key was present in the source file.
func MergeConfig(target, source *Config, sourceType string) {
	if source == nil {
		return
	}
	if target.Sources == nil {
		target.Sources = make(map[string]string)
	}
	take := func(key string) { target.Sources[key] = sourceType }

	if source.CDPURL != "" {
		target.CDPURL = source.CDPURL
		take("cdpUrl")
	}
	if source.TabFilter != "" {
		target.TabFilter = source.TabFilter
		take("tabFilter")
	}
	if source.Listen != "" {
		target.Listen = source.Listen
		take("listen")
	}
	if len(source.GraphQLPaths) > 0 {
		target.GraphQLPaths = append([]string(nil), source.GraphQLPaths...)
		take("graphqlPaths")
	}
	if isSet(source, "requireEndpointMatch", source.RequireEndpointMatch) {
		target.RequireEndpointMatch = source.RequireEndpointMatch
		take("requireEndpointMatch")
	}
	if source.MIMEPolicy != "" {
		target.MIMEPolicy = source.MIMEPolicy
		take("mimePolicy")
	}
	if isSet(source, "fetchTimeout", source.FetchTimeout != 0) {
		target.FetchTimeout = source.FetchTimeout
		take("fetchTimeout")
	}
	if source.Concurrency != 0 {
		target.Concurrency = source.Concurrency
		take("concurrency")
	}
	if source.LogLevel != "" {
		target.LogLevel = source.LogLevel
		take("logLevel")
	}
	if source.LogFormat != "" {
		target.LogFormat = source.LogFormat
		take("logFormat")
	}
	if source.LogFile != "" {
		target.LogFile = source.LogFile
		take("logFile")
	}
	if isSet(source, "json", source.JSON) {
		target.JSON = source.JSON
		take("json")
	}
}

// isSet reports whether a field whose zero value is meaningful was given in
// cfg. Without SetFields (a config built in code) only non-zero values count.
func isSet(cfg *Config, yamlKey string, nonZero bool) bool {
	if cfg.SetFields != nil {
		return cfg.SetFields[yamlKey]
	}
	return nonZero
}
