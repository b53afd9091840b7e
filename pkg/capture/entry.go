package capture

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrBodyUnavailable is returned by a BodyFetcher when the host has no body
// for the response.
var ErrBodyUnavailable = errors.New("response body unavailable")

// Entry is a single completed network transaction.
type Entry struct {
	StartedDateTime time.Time `json:"startedDateTime"`
	// Time is the total elapsed time of the request in milliseconds.
	Time     float64  `json:"time"`
	Request  Request  `json:"request"`
	Response Response `json:"response"`
	Timings  Timings  `json:"timings"`

	// Body resolves the response content. May be nil.
	Body BodyFetcher `json:"-"`
}

// Request is the request half of an Entry.
type Request struct {
	Method      string    `json:"method"`
	URL         string    `json:"url"`
	HTTPVersion string    `json:"httpVersion"`
	Headers     []Header  `json:"headers"`
	QueryString []Query   `json:"queryString"`
	PostData    *PostData `json:"postData,omitempty"`
	HeadersSize int       `json:"headersSize"`
	BodySize    int       `json:"bodySize"`
}

// Response is the response half of an Entry.
type Response struct {
	Status      int      `json:"status"`
	StatusText  string   `json:"statusText"`
	HTTPVersion string   `json:"httpVersion"`
	Headers     []Header `json:"headers"`
	Content     Content  `json:"content"`
	RedirectURL string   `json:"redirectURL"`
	HeadersSize int      `json:"headersSize"`
	BodySize    int      `json:"bodySize"`
}

// Header is a single name/value header pair. Order is preserved.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Query is a single query string parameter. Order is preserved.
type Query struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// PostData is the request body.
type PostData struct {
	MimeType string  `json:"mimeType"`
	Text     string  `json:"text"`
	Params   []Param `json:"params,omitempty"`
}

// Param is a form parameter of a posted body.
type Param struct {
	Name        string `json:"name"`
	Value       string `json:"value,omitempty"`
	FileName    string `json:"fileName,omitempty"`
	ContentType string `json:"contentType,omitempty"`
}

// Content describes the response body. Text is only populated for HAR files
// that embed bodies; live captures resolve the body through Entry.Body.
type Content struct {
	Size     int    `json:"size"`
	MimeType string `json:"mimeType"`
	Text     string `json:"text,omitempty"`
	Encoding string `json:"encoding,omitempty"`
	Comment  string `json:"comment,omitempty"`
}

// Timings holds HAR phase timings in milliseconds (-1 when not applicable).
type Timings struct {
	Blocked float64 `json:"blocked"`
	DNS     float64 `json:"dns"`
	Connect float64 `json:"connect"`
	Send    float64 `json:"send"`
	Wait    float64 `json:"wait"`
	Receive float64 `json:"receive"`
	SSL     float64 `json:"ssl"`
}

// PostText returns the request body text, or "" when there is none.
func (r *Request) PostText() string {
	if r.PostData == nil {
		return ""
	}
	return r.PostData.Text
}

// Header returns the first request header matching name, case-insensitively.
func (r *Request) Header(name string) (string, bool) {
	for _, h := range r.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

// Body is a resolved response body.
type Body struct {
	// Text is the body content. When Base64 is true it holds base64-encoded bytes.
	Text   string
	Base64 bool
}

// BodyFetcher resolves a response body on demand. Implementations must honor
// ctx cancellation where they can.
type BodyFetcher interface {
	FetchBody(ctx context.Context) (Body, error)
}

// BodyFunc adapts a function to BodyFetcher.
type BodyFunc func(ctx context.Context) (Body, error)

// FetchBody calls f(ctx).
func (f BodyFunc) FetchBody(ctx context.Context) (Body, error) {
	return f(ctx)
}

// StaticBody returns a BodyFetcher for content already held in memory.
// Empty text yields ErrBodyUnavailable.
func StaticBody(text string, base64 bool) BodyFetcher {
	return BodyFunc(func(ctx context.Context) (Body, error) {
		if err := ctx.Err(); err != nil {
			return Body{}, err
		}
		if text == "" {
			return Body{}, ErrBodyUnavailable
		}
		return Body{Text: text, Base64: base64}, nil
	})
}
