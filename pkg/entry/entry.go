package entry

import (
	"encoding/json"
	"time"

	"github.com/getmockd/netpanel/pkg/capture"
	"github.com/getmockd/netpanel/pkg/classify"
)

// Entry is a parsed capture ready for normalization.
type Entry struct {
	ID        string
	Kind      classify.Kind
	Timestamp time.Time
	Elapsed   time.Duration
	Method    string
	URL       string
	Headers   []capture.Header
	Response  Response

	// Body resolves the transport response body. Entries from one GraphQL
	// batch share the same fetcher.
	Body capture.BodyFetcher

	GQL  *GQL
	HTTP *HTTP
}

// Response is the response metadata known before the body is fetched.
type Response struct {
	Status     int
	StatusText string
	MimeType   string
}

// OperationType is a GraphQL operation type.
type OperationType string

// GraphQL operation types.
const (
	OperationQuery        OperationType = "query"
	OperationMutation     OperationType = "mutation"
	OperationSubscription OperationType = "subscription"
)

// GQL holds a single GraphQL operation.
type GQL struct {
	OperationType OperationType
	OperationName string
	Query         string
	// Variables is the raw variables JSON. A variables string that is not
	// valid JSON is kept as a JSON string literal.
	Variables json.RawMessage
}

// HTTP holds a plain HTTP exchange.
type HTTP struct {
	Path     string
	Query    []capture.Query
	PostData string
}
