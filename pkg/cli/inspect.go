package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/getmockd/netpanel/pkg/capture"
	"github.com/getmockd/netpanel/pkg/classify"
	"github.com/getmockd/netpanel/pkg/cli/internal/flags"
	"github.com/getmockd/netpanel/pkg/cli/internal/output"
	"github.com/getmockd/netpanel/pkg/entry"
	"github.com/getmockd/netpanel/pkg/metrics"
	"github.com/getmockd/netpanel/pkg/normalize"
	"github.com/getmockd/netpanel/pkg/pipeline"
	"github.com/getmockd/netpanel/pkg/session"
	"github.com/getmockd/netpanel/pkg/view"
)

// InspectOutput is the JSON output of the inspect command.
type InspectOutput struct {
	Entries []normalize.RequestItem `json:"entries"`
	Count   int                     `json:"count"`
	Total   int                     `json:"total"`
	Stats   pipeline.Stats          `json:"stats"`
}

type inspectFlags struct {
	filter   flags.Category
	where    string
	jsonPath string
	payload  bool
}

func newInspectCmd(a *app) *cobra.Command {
	f := &inspectFlags{}

	cmd := &cobra.Command{
		Use:   "inspect <file.har>",
		Short: "Run a HAR file through the capture pipeline",
		Long: `Classify and normalize every entry of a HAR file, then print the visible
requests newest first.

Examples:
  # Show every captured request
  netpanel inspect session.har

  # Only GraphQL operations, with their response payloads
  netpanel inspect session.har --filter GQL --payload

  # Failed JSON calls, narrowed with JSONPath
  netpanel inspect session.har --where 'responseStatusCode >= 400 && type == "JSON"' --jsonpath '$.errors'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runInspect(cmd, args[0], f)
		},
	}

	cmd.Flags().Var(&f.filter, "filter", "Show one category (All, GQL, JSON, XML, SVG, IMG, Other)")
	cmd.Flags().StringVar(&f.where, "where", "", `Boolean expression over entry fields, e.g. 'method == "POST"'`)
	cmd.Flags().StringVar(&f.jsonPath, "jsonpath", "", "JSONPath applied to JSON and GraphQL response payloads")
	cmd.Flags().BoolVar(&f.payload, "payload", false, "Print response payloads")
	addPipelineFlags(cmd.Flags())
	return cmd
}

func (a *app) runInspect(cmd *cobra.Command, path string, f *inspectFlags) error {
	captures, err := capture.ReadHARFile(path)
	if err != nil {
		return err
	}

	store := session.New(a.logger)
	defer store.Close()
	if cat, ok := f.filter.Selected(); ok {
		if err := store.Select(cat); err != nil {
			return err
		}
	}

	p := a.newPipeline(store, nil)
	if err := p.Run(cmd.Context(), feed(captures)); err != nil {
		return err
	}

	items := view.Visible(store.Items(), store.Settings())
	if items, err = view.Where(items, f.where); err != nil {
		return fmt.Errorf("--where: %w", err)
	}
	if f.jsonPath != "" {
		if items, err = applyJSONPath(items, f.jsonPath); err != nil {
			return err
		}
	}

	stats := p.Stats()
	a.logger.Debug("inspect complete",
		"path", path,
		"received", stats.Received,
		"dropped", stats.Dropped,
		"appended", stats.Appended,
	)

	out := cmd.OutOrStdout()
	if a.cfg.JSON {
		return output.JSON(out, InspectOutput{
			Entries: items,
			Count:   len(items),
			Total:   store.Len(),
			Stats:   stats,
		})
	}
	if len(items) == 0 {
		fmt.Fprintln(out, "No entries")
		return nil
	}
	if f.payload || f.jsonPath != "" {
		return printPayloads(out, items)
	}
	return printItems(out, items)
}

func (a *app) newPipeline(store *session.Store, m *metrics.Set) *pipeline.Pipeline {
	opts := a.cfg.PipelineOptions()
	opts.Metrics = m
	return pipeline.New(
		opts,
		classify.New(a.cfg.ClassifyOptions()),
		entry.NewParser(a.logger),
		normalize.New(a.cfg.NormalizeOptions(), a.logger),
		store,
		a.logger,
	)
}

// feed returns a closed channel holding captures.
func feed(captures []*capture.Entry) <-chan *capture.Entry {
	ch := make(chan *capture.Entry, len(captures))
	for _, c := range captures {
		ch <- c
	}
	close(ch)
	return ch
}

// applyJSONPath narrows the payload of every JSON and GraphQL item. Payloads
// that are not JSON, such as "No response", are left as they are.
func applyJSONPath(items []normalize.RequestItem, expression string) ([]normalize.RequestItem, error) {
	out := make([]normalize.RequestItem, len(items))
	for i, it := range items {
		out[i] = it
		if it.Category != normalize.CategoryJSON && it.Category != normalize.CategoryGQL {
			continue
		}
		filtered, err := view.JSONPath(it.ResponsePayload, expression)
		if errors.Is(err, view.ErrNotJSON) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[i].ResponsePayload = filtered
	}
	return out, nil
}

func printItems(w io.Writer, items []normalize.RequestItem) error {
	tw := output.Table(w)
	fmt.Fprintln(tw, "TYPE\tMETHOD\tSTATUS\tNAME\tDOMAIN\tTIME")
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			it.Category, it.Method, status(it), it.Name, it.RequestDomain, elapsed(it.Time))
	}
	return tw.Flush()
}

func printPayloads(w io.Writer, items []normalize.RequestItem) error {
	for i, it := range items {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s %s %s %s (%s)\n", it.Category, it.Method, status(it), it.Name, elapsed(it.Time))
		payload := strings.TrimRight(it.ResponsePayload, "\n")
		if payload == "" {
			continue
		}
		if _, err := fmt.Fprintln(w, payload); err != nil {
			return err
		}
	}
	return nil
}

func status(it normalize.RequestItem) string {
	if it.ResponseStatusMessage == "" {
		return fmt.Sprintf("%d", it.ResponseStatusCode)
	}
	return fmt.Sprintf("%d %s", it.ResponseStatusCode, it.ResponseStatusMessage)
}

func elapsed(ms float64) string {
	if ms >= 1000 {
		return fmt.Sprintf("%.2fs", ms/1000)
	}
	return fmt.Sprintf("%.0fms", ms)
}
