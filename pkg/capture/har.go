package capture

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// HAR represents an HTTP Archive document.
type HAR struct {
	Log HARLog `json:"log"`
}

// HARLog contains the HAR log data.
type HARLog struct {
	Version string     `json:"version"`
	Creator HARCreator `json:"creator"`
	Entries []*Entry   `json:"entries"`
}

// HARCreator contains tool information.
type HARCreator struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// HARError reports a HAR document that could not be read.
type HARError struct {
	Source  string
	Message string
	Cause   error
}

func (e *HARError) Error() string {
	msg := e.Message
	if e.Source != "" {
		msg = e.Source + ": " + msg
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *HARError) Unwrap() error {
	return e.Cause
}

// ReadHAR decodes a HAR document and returns its entries in file order, each
// with a BodyFetcher over the embedded response content.
func ReadHAR(r io.Reader) ([]*Entry, error) {
	var har HAR
	if err := json.NewDecoder(r).Decode(&har); err != nil {
		return nil, &HARError{Message: "failed to parse HAR", Cause: err}
	}
	if har.Log.Version == "" {
		return nil, &HARError{Message: "not a valid HAR file (missing log.version)"}
	}

	entries := make([]*Entry, 0, len(har.Log.Entries))
	for _, e := range har.Log.Entries {
		if e == nil {
			continue
		}
		e.Body = StaticBody(e.Response.Content.Text, e.Response.Content.Encoding == "base64")
		entries = append(entries, e)
	}
	return entries, nil
}

// ReadHARFile reads a HAR document from path.
func ReadHARFile(path string) ([]*Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to open HAR file: %w", err)
	}
	defer f.Close()

	entries, err := ReadHAR(f)
	if err != nil {
		var harErr *HARError
		if errors.As(err, &harErr) {
			harErr.Source = path
		}
		return nil, err
	}
	return entries, nil
}
