package normalize

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/getmockd/netpanel/pkg/capture"
	"github.com/getmockd/netpanel/pkg/classify"
	"github.com/getmockd/netpanel/pkg/entry"
	"github.com/getmockd/netpanel/pkg/logging"
)

// DefaultFetchTimeout bounds a body fetch when Options come from DefaultOptions.
const DefaultFetchTimeout = 10 * time.Second

// Options configures a Normalizer.
type Options struct {
	// FetchTimeout bounds each body fetch. Zero means no timeout.
	FetchTimeout time.Duration

	// Indent is the indentation unit for formatted payloads.
	Indent string
}

// DefaultOptions returns the default normalizer options.
func DefaultOptions() Options {
	return Options{
		FetchTimeout: DefaultFetchTimeout,
		Indent:       DefaultIndent,
	}
}

// Normalizer builds RequestItems from entries. It is safe for concurrent use.
type Normalizer struct {
	opts   Options
	logger *slog.Logger
}

// New creates a Normalizer. A nil logger discards output.
func New(opts Options, logger *slog.Logger) *Normalizer {
	if opts.Indent == "" {
		opts.Indent = DefaultIndent
	}
	return &Normalizer{opts: opts, logger: logging.OrNop(logger)}
}

// Normalize resolves e's response body and returns its display form. It never
// fails: a missing body becomes NoResponse and unformattable text is shown raw.
func (n *Normalizer) Normalize(ctx context.Context, e *entry.Entry) (item RequestItem) {
	if e == nil {
		return RequestItem{Category: CategoryOther, ResponsePayload: NoResponse}
	}

	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("normalization panicked", "entry_id", e.ID, "panic", r)
			item.ID = e.ID
			if item.Category == "" {
				item.Category = CategoryOther
			}
			item.ResponsePayload = NoResponse
		}
	}()

	category := CategoryOf(e.Response.MimeType, e.Kind)
	item = RequestItem{
		ID:                    e.ID,
		Timestamp:             e.Timestamp,
		Time:                  float64(e.Elapsed) / float64(time.Millisecond),
		Category:              category,
		Method:                e.Method,
		URL:                   e.URL,
		RequestDomain:         RequestDomain(e.URL),
		Headers:               e.Headers,
		ResponseStatusCode:    e.Response.Status,
		ResponseStatusMessage: e.Response.StatusText,
		ResponseMimeType:      e.Response.MimeType,
	}

	switch e.Kind {
	case classify.KindGraphQL:
		n.fillGraphQL(&item, e)
	default:
		n.fillHTTP(&item, e)
	}

	body, err := n.fetch(ctx, e.Body)
	if err != nil {
		n.logger.Warn("response body unavailable", "entry_id", e.ID, "url", e.URL, "error", err)
		item.ResponsePayload = NoResponse
		return item
	}
	item.ResponsePayload = n.formatPayload(e.ID, category, body)
	return item
}

func (n *Normalizer) fillGraphQL(item *RequestItem, e *entry.Entry) {
	op := e.GQL
	if op == nil {
		op = &entry.GQL{OperationType: entry.OperationQuery}
	}
	item.OperationType = string(op.OperationType)
	item.OperationName = op.OperationName
	item.Name = strings.TrimSpace(string(op.OperationType) + " " + op.OperationName)

	item.RequestGQLQuery = op.Query
	if formatted, err := FormatGraphQL(op.Query, n.opts.Indent); err == nil {
		item.RequestGQLQuery = formatted
	} else {
		n.logger.Debug("GraphQL query left unformatted", "entry_id", e.ID, "error", err)
	}

	if len(op.Variables) > 0 {
		item.RequestGQLVariables = n.formatJSONOrRaw(e.ID, string(op.Variables))
	}
}

func (n *Normalizer) fillHTTP(item *RequestItem, e *entry.Entry) {
	h := e.HTTP
	if h == nil {
		h = &entry.HTTP{Path: "/"}
	}
	item.Name = requestName(e.URL, h.Path)

	if h.PostData != "" {
		item.RequestPostData = n.formatJSONOrRaw(e.ID, h.PostData)
		return
	}

	query := h.Query
	if query == nil {
		query = []capture.Query{}
	}
	b, err := json.MarshalIndent(query, "", n.opts.Indent)
	if err != nil {
		item.RequestQueryString = "[]"
		return
	}
	item.RequestQueryString = string(b)
}

// fetch resolves the body under the configured timeout. A fetcher that ignores
// its context is abandoned when the deadline passes.
func (n *Normalizer) fetch(ctx context.Context, f capture.BodyFetcher) (capture.Body, error) {
	if f == nil {
		return capture.Body{}, capture.ErrBodyUnavailable
	}
	if n.opts.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.opts.FetchTimeout)
		defer cancel()
	}

	type result struct {
		body capture.Body
		err  error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("body fetcher panicked: %v", r)}
			}
		}()
		body, err := f.FetchBody(ctx)
		done <- result{body: body, err: err}
	}()

	select {
	case r := <-done:
		return r.body, r.err
	case <-ctx.Done():
		return capture.Body{}, ctx.Err()
	}
}

func (n *Normalizer) formatPayload(entryID string, category Category, body capture.Body) string {
	if category == CategoryIMG {
		if body.Base64 {
			return body.Text
		}
		return base64.StdEncoding.EncodeToString([]byte(body.Text))
	}

	text := body.Text
	if body.Base64 {
		decoded, err := base64.StdEncoding.DecodeString(text)
		if err != nil {
			n.logger.Debug("base64 body left encoded", "entry_id", entryID, "error", err)
		} else {
			text = string(decoded)
		}
	}

	switch category {
	case CategoryJSON, CategoryGQL:
		return n.formatJSONOrRaw(entryID, text)
	case CategoryXML:
		formatted, err := FormatXML(text, n.opts.Indent)
		if err != nil {
			n.logger.Debug("XML payload left unformatted", "entry_id", entryID, "error", err)
			return text
		}
		return formatted
	default:
		return text
	}
}

func (n *Normalizer) formatJSONOrRaw(entryID, text string) string {
	formatted, err := FormatJSON(text, n.opts.Indent)
	if err != nil {
		n.logger.Debug("JSON payload left unformatted", "entry_id", entryID, "error", err)
		return text
	}
	return formatted
}

// RequestDomain strips the path and everything after it from rawURL,
// e.g. "http://localhost:3000/user?x=1" becomes "http://localhost:3000".
func RequestDomain(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		return u.Scheme + "://" + u.Host
	}
	rest := rawURL
	prefix := ""
	if i := strings.Index(rest, "://"); i >= 0 {
		prefix, rest = rest[:i+3], rest[i+3:]
	}
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		rest = rest[:i]
	}
	return prefix + rest
}

// requestName is the last path segment plus the query string, or "/" for the root.
func requestName(rawURL, p string) string {
	name := path.Base(p)
	if name == "." || name == "/" || name == "" {
		name = "/"
	}
	if u, err := url.Parse(rawURL); err == nil && u.RawQuery != "" {
		name += "?" + u.RawQuery
	}
	return name
}
