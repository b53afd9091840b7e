package classify

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime"
	"net/url"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/getmockd/netpanel/pkg/capture"
)

// Kind is the classification of a capture.
type Kind int

// Capture kinds.
const (
	KindHTTP Kind = iota
	KindGraphQL
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindGraphQL:
		return "graphql"
	default:
		return "http"
	}
}

// MIMEPolicy controls what happens to captures whose response MIME type is
// outside the inspectable set (application/json, text/*, image/*).
type MIMEPolicy string

// MIME policies.
const (
	// MIMECategorize keeps such captures; they are categorized Other.
	MIMECategorize MIMEPolicy = "categorize"
	// MIMEDrop discards such captures before parsing.
	MIMEDrop MIMEPolicy = "drop"
)

// Admission errors.
var (
	ErrPreflight    = errors.New("CORS preflight request")
	ErrMIMEFiltered = errors.New("response MIME type filtered by policy")
)

// DefaultGraphQLPaths are the endpoint globs used when none are configured.
var DefaultGraphQLPaths = []string{"**/graphql", "**/graphql/**", "**/gql"}

// inspectableMIME are the response media types admitted under MIMEDrop.
var inspectableMIME = []string{"application/json", "text/*", "image/*"}

// Options configures a Classifier.
type Options struct {
	// GraphQLPaths are doublestar globs matched against the URL path.
	GraphQLPaths []string

	// RequireEndpointMatch makes body signatures count only on GraphQL paths.
	RequireEndpointMatch bool

	// MIMEPolicy defaults to MIMECategorize.
	MIMEPolicy MIMEPolicy
}

// Classifier classifies and admits captures. It is safe for concurrent use.
type Classifier struct {
	paths       []string
	requirePath bool
	mimePolicy  MIMEPolicy
}

// New creates a Classifier. Invalid glob patterns are ignored.
func New(opts Options) *Classifier {
	paths := opts.GraphQLPaths
	if len(paths) == 0 {
		paths = DefaultGraphQLPaths
	}
	valid := make([]string, 0, len(paths))
	for _, p := range paths {
		if doublestar.ValidatePattern(p) {
			valid = append(valid, p)
		}
	}
	policy := opts.MIMEPolicy
	if policy == "" {
		policy = MIMECategorize
	}
	return &Classifier{
		paths:       valid,
		requirePath: opts.RequireEndpointMatch,
		mimePolicy:  policy,
	}
}

// Classify returns the Kind of e.
func (c *Classifier) Classify(e *capture.Entry) Kind {
	if e == nil {
		return KindHTTP
	}
	onEndpoint := c.IsGraphQLEndpoint(e.Request.URL)

	if body := e.Request.PostText(); body != "" {
		if HasGraphQLSignature([]byte(body)) && (onEndpoint || !c.requirePath) {
			return KindGraphQL
		}
		return KindHTTP
	}

	if strings.EqualFold(e.Request.Method, "GET") && onEndpoint && hasQueryParam(e.Request, "query") {
		return KindGraphQL
	}
	return KindHTTP
}

// Admit reports whether a capture of the given kind may enter a session.
// It returns ErrPreflight or ErrMIMEFiltered for rejected captures.
func (c *Classifier) Admit(e *capture.Entry, kind Kind) error {
	if strings.EqualFold(e.Request.Method, "OPTIONS") {
		return ErrPreflight
	}
	if c.mimePolicy == MIMEDrop && kind != KindGraphQL && !IsInspectableMIME(e.Response.Content.MimeType) {
		return ErrMIMEFiltered
	}
	return nil
}

// IsGraphQLEndpoint reports whether the path of rawURL matches a configured
// GraphQL endpoint glob.
func (c *Classifier) IsGraphQLEndpoint(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	p := u.Path
	if p == "" {
		p = "/"
	}
	for _, pattern := range c.paths {
		if ok, _ := doublestar.Match(pattern, strings.TrimPrefix(p, "/")); ok {
			return true
		}
		if ok, _ := doublestar.Match(pattern, p); ok {
			return true
		}
	}
	return false
}

// HasGraphQLSignature reports whether body is a JSON object with a string
// "query" field, or a JSON array containing at least one such object.
func HasGraphQLSignature(body []byte) bool {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return false
	}
	switch body[0] {
	case '{':
		var op operationProbe
		if err := json.Unmarshal(body, &op); err != nil {
			return false
		}
		return op.isOperation()
	case '[':
		var batch []json.RawMessage
		if err := json.Unmarshal(body, &batch); err != nil {
			return false
		}
		for _, raw := range batch {
			var op operationProbe
			if json.Unmarshal(raw, &op) == nil && op.isOperation() {
				return true
			}
		}
	}
	return false
}

type operationProbe struct {
	Query json.RawMessage `json:"query"`
}

func (p operationProbe) isOperation() bool {
	var s string
	return len(p.Query) > 0 && json.Unmarshal(p.Query, &s) == nil
}

// MediaType lowercases a MIME string and strips parameters.
func MediaType(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(s); err == nil {
		return mt
	}
	if i := strings.IndexByte(s, ';'); i >= 0 {
		s = s[:i]
	}
	return strings.ToLower(strings.TrimSpace(s))
}

// IsInspectableMIME reports whether mimeType is application/json, text/* or image/*.
func IsInspectableMIME(mimeType string) bool {
	mt := MediaType(mimeType)
	for _, pattern := range inspectableMIME {
		if ok, _ := doublestar.Match(pattern, mt); ok {
			return true
		}
	}
	return false
}

func hasQueryParam(r capture.Request, name string) bool {
	for _, q := range r.QueryString {
		if q.Name == name {
			return true
		}
	}
	if u, err := url.Parse(r.URL); err == nil {
		return u.Query().Has(name)
	}
	return false
}
