package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/getmockd/netpanel/pkg/cli/internal/flags"
	"github.com/getmockd/netpanel/pkg/config"
	"github.com/getmockd/netpanel/pkg/logging"
)

var (
	// Version is injected during build
	Version = "dev"
	// Commit is injected during build
	Commit = "none"
	// BuildDate is injected during build
	BuildDate = "unknown"
)

// app holds the persistent flags and the state resolved before a subcommand runs.
type app struct {
	configPath string
	jsonOutput bool

	cfg    *config.Config
	logger *slog.Logger
}

// NewRootCommand builds the netpanel command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "netpanel",
		Short: "netpanel inspects the network traffic of a browser session",
		Long: `netpanel captures completed HTTP transactions from a Chromium tab or a HAR
file, classifies them as GraphQL or plain HTTP, and keeps a normalized,
filterable list of requests and responses.

Configuration can be provided via flags, NETPANEL_* environment variables
(optionally from a .env file), .netpanelrc.yaml in the working directory,
or $XDG_CONFIG_HOME/netpanel/config.yaml.`,
		PersistentPreRunE: a.load,
		SilenceUsage:      true,
		SilenceErrors:     true, // We handle errors in Execute()
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "Config file path (default: .netpanelrc.yaml, then the global config)")
	pf.BoolVar(&a.jsonOutput, "json", false, "Output command results in JSON format")
	pf.String("log-level", config.DefaultLogLevel, "Log level (debug, info, warn, error)")
	pf.String("log-format", config.DefaultLogFormat, "Log format (text, json)")
	pf.String("log-file", "", "Also write logs to this file, rotated")

	rootCmd.AddCommand(
		newInspectCmd(a),
		newWatchCmd(a),
		newConfigCmd(a),
		newVersionCmd(a),
	)
	return rootCmd
}

// Execute runs the netpanel command tree.
// This is called by main.main().
func Execute() {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// load resolves the configuration and logger for the command about to run.
func (a *app) load(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadAll(a.configPath, nil)
	if err != nil {
		return err
	}
	if err := applyFlags(cmd.Flags(), cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}

	a.cfg = cfg
	a.logger = logging.New(cfg.LoggingConfig(cmd.ErrOrStderr()))
	a.logger.Debug("configuration loaded", "sources", cfg.Sources)
	return nil
}

// addPipelineFlags registers the classification and normalization flags
// shared by commands that run captures through the pipeline.
func addPipelineFlags(fs *pflag.FlagSet) {
	fs.Var(&flags.StringSlice{}, "graphql-path", "GraphQL endpoint path glob (repeatable, replaces the configured list)")
	fs.Bool("require-endpoint-match", false, "Only treat requests to a GraphQL path as GraphQL")
	fs.String("mime-policy", config.DefaultMIMEPolicy, "Handling of non-inspectable response types (categorize, drop)")
	fs.Duration("fetch-timeout", config.DefaultFetchTimeout, "Response body fetch timeout (0 disables)")
	fs.Int("concurrency", config.DefaultConcurrency, "Captures normalized at once")
}

// applyFlags copies every flag the user set onto cfg, overriding all other sources.
func applyFlags(fs *pflag.FlagSet, cfg *config.Config) error {
	var err error
	apply := func(name, key string, set func() error) {
		f := fs.Lookup(name)
		if err != nil || f == nil || !f.Changed {
			return
		}
		if err = set(); err != nil {
			err = fmt.Errorf("--%s: %w", name, err)
			return
		}
		cfg.Sources[key] = config.SourceFlag
	}

	apply("json", "json", func() (e error) {
		cfg.JSON, e = fs.GetBool("json")
		return e
	})
	apply("log-level", "logLevel", func() (e error) {
		cfg.LogLevel, e = fs.GetString("log-level")
		return e
	})
	apply("log-format", "logFormat", func() (e error) {
		cfg.LogFormat, e = fs.GetString("log-format")
		return e
	})
	apply("log-file", "logFile", func() (e error) {
		cfg.LogFile, e = fs.GetString("log-file")
		return e
	})
	apply("cdp-url", "cdpUrl", func() (e error) {
		cfg.CDPURL, e = fs.GetString("cdp-url")
		return e
	})
	apply("tab-filter", "tabFilter", func() (e error) {
		cfg.TabFilter, e = fs.GetString("tab-filter")
		return e
	})
	apply("listen", "listen", func() (e error) {
		cfg.Listen, e = fs.GetString("listen")
		return e
	})
	apply("graphql-path", "graphqlPaths", func() error {
		paths, ok := fs.Lookup("graphql-path").Value.(*flags.StringSlice)
		if !ok {
			return fmt.Errorf("unexpected flag type")
		}
		cfg.GraphQLPaths = append([]string(nil), (*paths)...)
		return nil
	})
	apply("require-endpoint-match", "requireEndpointMatch", func() (e error) {
		cfg.RequireEndpointMatch, e = fs.GetBool("require-endpoint-match")
		return e
	})
	apply("mime-policy", "mimePolicy", func() (e error) {
		cfg.MIMEPolicy, e = fs.GetString("mime-policy")
		return e
	})
	apply("fetch-timeout", "fetchTimeout", func() (e error) {
		cfg.FetchTimeout, e = fs.GetDuration("fetch-timeout")
		return e
	})
	apply("concurrency", "concurrency", func() (e error) {
		cfg.Concurrency, e = fs.GetInt("concurrency")
		return e
	})
	return err
}
