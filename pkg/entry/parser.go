package entry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/getmockd/netpanel/internal/id"
	"github.com/getmockd/netpanel/pkg/capture"
	"github.com/getmockd/netpanel/pkg/classify"
	"github.com/getmockd/netpanel/pkg/logging"
)

// Parse errors.
var (
	// ErrNoOperations means a GraphQL capture yielded no usable operation.
	ErrNoOperations = errors.New("no valid GraphQL operations in request")
	// ErrNilCapture is returned for a nil capture.
	ErrNilCapture = errors.New("nil capture entry")
)

// Parser converts captures into entries. It is safe for concurrent use.
type Parser struct {
	logger *slog.Logger
	newID  func() string
}

// NewParser creates a Parser. A nil logger discards output.
func NewParser(logger *slog.Logger) *Parser {
	return &Parser{
		logger: logging.OrNop(logger),
		newID:  id.ULID,
	}
}

// Parse produces the entries of a capture classified as kind.
//
// A GraphQL batch yields one entry per valid operation, in batch order.
// Invalid batch elements are skipped; if none remain Parse returns
// ErrNoOperations. HTTP captures always yield exactly one entry.
func (p *Parser) Parse(e *capture.Entry, kind classify.Kind) ([]*Entry, error) {
	if e == nil {
		return nil, ErrNilCapture
	}

	switch kind {
	case classify.KindGraphQL:
		ops, err := p.graphQLOperations(e)
		if err != nil {
			return nil, err
		}
		entries := make([]*Entry, 0, len(ops))
		for _, op := range ops {
			ent := p.base(e, classify.KindGraphQL)
			ent.GQL = op
			entries = append(entries, ent)
		}
		return entries, nil
	default:
		ent := p.base(e, classify.KindHTTP)
		ent.HTTP = parseHTTP(e)
		return []*Entry{ent}, nil
	}
}

func (p *Parser) base(e *capture.Entry, kind classify.Kind) *Entry {
	headers := make([]capture.Header, len(e.Request.Headers))
	copy(headers, e.Request.Headers)

	return &Entry{
		ID:        p.newID(),
		Kind:      kind,
		Timestamp: e.StartedDateTime,
		Elapsed:   time.Duration(e.Time * float64(time.Millisecond)),
		Method:    e.Request.Method,
		URL:       e.Request.URL,
		Headers:   headers,
		Response: Response{
			Status:     e.Response.Status,
			StatusText: e.Response.StatusText,
			MimeType:   e.Response.Content.MimeType,
		},
		Body: e.Body,
	}
}

func (p *Parser) graphQLOperations(e *capture.Entry) ([]*GQL, error) {
	body := bytes.TrimSpace([]byte(e.Request.PostText()))
	if len(body) == 0 {
		op, err := operationFromQuery(e.Request)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoOperations, err)
		}
		return []*GQL{op}, nil
	}

	if body[0] != '[' {
		op, err := parseOperation(body)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoOperations, err)
		}
		return []*GQL{op}, nil
	}

	var batch []json.RawMessage
	if err := json.Unmarshal(body, &batch); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoOperations, err)
	}

	ops := make([]*GQL, 0, len(batch))
	for i, raw := range batch {
		op, err := parseOperation(raw)
		if err != nil {
			p.logger.Warn("skipping batched GraphQL operation",
				"url", e.Request.URL, "index", i, "error", err)
			continue
		}
		ops = append(ops, op)
	}
	if len(ops) == 0 {
		return nil, ErrNoOperations
	}
	return ops, nil
}

type wireOperation struct {
	Query         *string         `json:"query"`
	OperationName json.RawMessage `json:"operationName"`
	Variables     json.RawMessage `json:"variables"`
}

func parseOperation(raw []byte) (*GQL, error) {
	var w wireOperation
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("invalid operation: %w", err)
	}
	if w.Query == nil {
		return nil, errors.New("operation has no query")
	}

	var name string
	// non-string names are treated as absent
	_ = json.Unmarshal(w.OperationName, &name)

	return newOperation(*w.Query, name, normalizeVariables(w.Variables)), nil
}

func operationFromQuery(r capture.Request) (*GQL, error) {
	params := queryParams(r)
	var (
		query, name, vars string
		found             bool
	)
	for _, q := range params {
		switch q.Name {
		case "query":
			query, found = q.Value, true
		case "operationName":
			name = q.Value
		case "variables":
			vars = q.Value
		}
	}
	if !found {
		return nil, errors.New("no query parameter")
	}

	var variables json.RawMessage
	if vars != "" {
		variables = normalizeVariables(quote(vars))
	}
	return newOperation(query, name, variables), nil
}

func newOperation(query, name string, variables json.RawMessage) *GQL {
	opType, declared := describeOperation(query, name)
	if name == "" {
		name = declared
	}
	return &GQL{
		OperationType: opType,
		OperationName: name,
		Query:         query,
		Variables:     variables,
	}
}

// normalizeVariables unwraps variables sent as a JSON-encoded string. A string
// that does not hold valid JSON is returned unchanged.
func normalizeVariables(raw json.RawMessage) json.RawMessage {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if raw[0] != '"' {
		return raw
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return raw
	}
	inner := bytes.TrimSpace([]byte(s))
	if len(inner) > 0 && json.Valid(inner) {
		return inner
	}
	return raw
}

func quote(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}

// describeOperation returns the type of the selected operation and the name
// declared in the document.
func describeOperation(query, name string) (OperationType, string) {
	doc, err := parser.ParseQuery(&ast.Source{Input: query})
	if err == nil && doc != nil && len(doc.Operations) > 0 {
		op := doc.Operations[0]
		if name != "" {
			for _, candidate := range doc.Operations {
				if candidate.Name == name {
					op = candidate
					break
				}
			}
		}
		return operationType(string(op.Operation)), op.Name
	}
	return scanOperation(query)
}

// scanOperation reads the leading keyword and name of a document that the
// GraphQL parser rejected.
func scanOperation(query string) (OperationType, string) {
	rest := skipIgnored(query)
	if strings.HasPrefix(rest, "{") {
		return OperationQuery, ""
	}
	keyword, rest := readName(rest)
	opType := operationType(keyword)
	if keyword != string(opType) {
		return OperationQuery, ""
	}
	name, _ := readName(skipIgnored(rest))
	return opType, name
}

func operationType(s string) OperationType {
	switch OperationType(s) {
	case OperationMutation:
		return OperationMutation
	case OperationSubscription:
		return OperationSubscription
	default:
		return OperationQuery
	}
}

func skipIgnored(s string) string {
	for {
		s = strings.TrimLeft(s, " \t\r\n,\ufeff")
		if !strings.HasPrefix(s, "#") {
			return s
		}
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = s[i+1:]
		} else {
			return ""
		}
	}
}

func readName(s string) (string, string) {
	i := 0
	for i < len(s) {
		c := s[i]
		if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (i > 0 && c >= '0' && c <= '9') {
			i++
			continue
		}
		break
	}
	return s[:i], s[i:]
}

func parseHTTP(e *capture.Entry) *HTTP {
	h := &HTTP{
		Path:     e.Request.URL,
		Query:    queryParams(e.Request),
		PostData: e.Request.PostText(),
	}
	if u, err := url.Parse(e.Request.URL); err == nil {
		h.Path = u.Path
		if h.Path == "" {
			h.Path = "/"
		}
	}
	return h
}

// queryParams returns the request's query parameters in order, preferring the
// host-provided list and falling back to the raw URL.
func queryParams(r capture.Request) []capture.Query {
	if len(r.QueryString) > 0 {
		out := make([]capture.Query, len(r.QueryString))
		copy(out, r.QueryString)
		return out
	}
	u, err := url.Parse(r.URL)
	if err != nil || u.RawQuery == "" {
		return []capture.Query{}
	}

	// url.Values is a map and loses parameter order
	parts := strings.Split(u.RawQuery, "&")
	out := make([]capture.Query, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		name, value, _ := strings.Cut(part, "=")
		out = append(out, capture.Query{Name: unescape(name), Value: unescape(value)})
	}
	return out
}

func unescape(s string) string {
	if v, err := url.QueryUnescape(s); err == nil {
		return v
	}
	return s
}
