package cdpsource

import (
	"context"
	"encoding/base64"
	"maps"
	"slices"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/chromedp/cdproto/network"

	"github.com/getmockd/netpanel/pkg/capture"
)

// staleAfter is how long an unfinished request is kept before it is forgotten.
const staleAfter = 5 * time.Minute

// fetchFunc fetches the raw response body of a finished request.
type fetchFunc func(ctx context.Context, id network.RequestID) ([]byte, error)

type pendingRequest struct {
	entry   *capture.Entry
	started time.Time
	seen    time.Time
	hasResp bool
}

// correlator joins the network events of one target into capture entries.
type correlator struct {
	mu      sync.Mutex
	pending map[network.RequestID]*pendingRequest
	now     func() time.Time
}

func newCorrelator() *correlator {
	return &correlator{
		pending: make(map[network.RequestID]*pendingRequest),
		now:     time.Now,
	}
}

func (c *correlator) onRequestWillBeSent(ev *network.EventRequestWillBeSent) {
	if ev == nil || ev.Request == nil {
		return
	}
	now := c.now()
	started := now
	if ev.WallTime != nil {
		started = ev.WallTime.Time()
	}

	e := &capture.Entry{
		StartedDateTime: started,
		Request: capture.Request{
			Method:  ev.Request.Method,
			URL:     ev.Request.URL + ev.Request.URLFragment,
			Headers: headerList(ev.Request.Headers),
		},
	}
	if text := postData(ev.Request); text != "" {
		e.Request.PostData = &capture.PostData{Text: text}
		if mt, ok := e.Request.Header("Content-Type"); ok {
			e.Request.PostData.MimeType = mt
		}
		e.Request.BodySize = len(text)
	}

	p := &pendingRequest{entry: e, seen: now}
	if ev.Timestamp != nil {
		p.started = ev.Timestamp.Time()
	}

	c.mu.Lock()
	c.pending[ev.RequestID] = p
	c.mu.Unlock()
}

func (c *correlator) onResponseReceived(ev *network.EventResponseReceived) {
	if ev == nil || ev.Response == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.pending[ev.RequestID]
	if !ok {
		return
	}
	p.hasResp = true
	p.seen = c.now()
	p.entry.Response = capture.Response{
		Status:      int(ev.Response.Status),
		StatusText:  ev.Response.StatusText,
		HTTPVersion: ev.Response.Protocol,
		Headers:     headerList(ev.Response.Headers),
		Content:     capture.Content{MimeType: ev.Response.MimeType},
	}
}

// onLoadingFinished completes a request. It returns nil for requests that
// never received a response.
func (c *correlator) onLoadingFinished(ev *network.EventLoadingFinished, fetch fetchFunc) *capture.Entry {
	if ev == nil {
		return nil
	}
	c.mu.Lock()
	p, ok := c.pending[ev.RequestID]
	delete(c.pending, ev.RequestID)
	c.mu.Unlock()

	if !ok || !p.hasResp {
		return nil
	}

	e := p.entry
	if ev.Timestamp != nil && !p.started.IsZero() {
		e.Time = float64(ev.Timestamp.Time().Sub(p.started)) / float64(time.Millisecond)
	}
	e.Response.BodySize = int(ev.EncodedDataLength)
	e.Response.Content.Size = int(ev.EncodedDataLength)
	if fetch != nil {
		e.Body = bodyFetcher(ev.RequestID, fetch)
	}
	return e
}

func (c *correlator) onLoadingFailed(ev *network.EventLoadingFailed) {
	if ev == nil {
		return
	}
	c.mu.Lock()
	delete(c.pending, ev.RequestID)
	c.mu.Unlock()
}

// sweep forgets requests not seen for staleAfter and returns how many were dropped.
func (c *correlator) sweep() int {
	threshold := c.now().Add(-staleAfter)

	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for id, p := range c.pending {
		if p.seen.Before(threshold) {
			delete(c.pending, id)
			n++
		}
	}
	return n
}

func (c *correlator) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func bodyFetcher(id network.RequestID, fetch fetchFunc) capture.BodyFetcher {
	return capture.BodyFunc(func(ctx context.Context) (capture.Body, error) {
		raw, err := fetch(ctx, id)
		if err != nil {
			return capture.Body{}, err
		}
		if len(raw) == 0 {
			return capture.Body{}, capture.ErrBodyUnavailable
		}
		if utf8.Valid(raw) {
			return capture.Body{Text: string(raw)}, nil
		}
		return capture.Body{Text: base64.StdEncoding.EncodeToString(raw), Base64: true}, nil
	})
}

// postData joins the request's post data entries. Entry bytes are base64
// encoded on the wire; undecodable entries are used as-is.
func postData(r *network.Request) string {
	if !r.HasPostData || len(r.PostDataEntries) == 0 {
		return ""
	}
	var out []byte
	for _, pe := range r.PostDataEntries {
		if pe == nil || pe.Bytes == "" {
			continue
		}
		decoded, err := base64.StdEncoding.DecodeString(pe.Bytes)
		if err != nil {
			out = append(out, pe.Bytes...)
			continue
		}
		out = append(out, decoded...)
	}
	return string(out)
}

// headerList flattens CDP headers sorted by name. Non-string values are skipped.
func headerList(h network.Headers) []capture.Header {
	names := slices.Sorted(maps.Keys(h))
	out := make([]capture.Header, 0, len(names))
	for _, name := range names {
		if v, ok := h[name].(string); ok {
			out = append(out, capture.Header{Name: name, Value: v})
		}
	}
	return out
}
