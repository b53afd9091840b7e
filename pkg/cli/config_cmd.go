package cli

import (
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/getmockd/netpanel/pkg/cli/internal/output"
	"github.com/getmockd/netpanel/pkg/config"
)

// ConfigOutput is the JSON output of the config command.
type ConfigOutput struct {
	Config  *config.Config    `json:"config"`
	Sources map[string]string `json:"sources"`
}

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the resolved configuration",
		Long: `Display the effective configuration after merging defaults, config files,
environment variables and flags, followed by the source of every value.

Examples:
  # Show resolved config as YAML
  netpanel config

  # Show what watch would use with a flag override
  netpanel config --mime-policy drop --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.JSON {
				return output.JSON(cmd.OutOrStdout(), ConfigOutput{Config: a.cfg, Sources: a.cfg.Sources})
			}
			return printConfigAsYAML(cmd.OutOrStdout(), a.cfg)
		},
	}

	cmd.Flags().String("cdp-url", config.DefaultCDPURL, "Chromium DevTools endpoint")
	cmd.Flags().String("tab-filter", "", "Only capture tabs whose URL contains this text")
	cmd.Flags().String("listen", "", "Panel API address")
	addPipelineFlags(cmd.Flags())
	return cmd
}

// printConfigAsYAML outputs the config as YAML with a trailing sources comment.
func printConfigAsYAML(w io.Writer, cfg *config.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	fmt.Fprintln(w, "# Resolved netpanel configuration")
	fmt.Fprint(w, string(data))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "# Sources:")
	for _, key := range slices.Sorted(maps.Keys(cfg.Sources)) {
		fmt.Fprintf(w, "#   %s: %s\n", key, cfg.Sources[key])
	}
	return nil
}
