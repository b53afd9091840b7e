package normalize

import (
	"time"

	"github.com/getmockd/netpanel/pkg/capture"
)

// NoResponse is the payload of an item whose response body could not be fetched.
const NoResponse = "No response"

// RequestItem is a normalized, display-ready entry. It is immutable once
// created; the session store owns it.
//
// Exactly one request payload group is populated: RequestQueryString,
// RequestGQLQuery with RequestGQLVariables, or RequestPostData.
type RequestItem struct {
	ID            string           `json:"id"`
	Timestamp     time.Time        `json:"timestamp"`
	Time          float64          `json:"time"`
	Name          string           `json:"name"`
	Category      Category         `json:"type"`
	Method        string           `json:"method"`
	URL           string           `json:"url"`
	RequestDomain string           `json:"requestDomain"`
	Headers       []capture.Header `json:"headers"`

	OperationType string `json:"operationType,omitempty"`
	OperationName string `json:"operationName,omitempty"`

	RequestQueryString  string `json:"requestQueryString,omitempty"`
	RequestGQLQuery     string `json:"requestGQLQuery,omitempty"`
	RequestGQLVariables string `json:"requestGQLVariables,omitempty"`
	RequestPostData     string `json:"requestPostData,omitempty"`

	ResponseStatusCode    int    `json:"responseStatusCode"`
	ResponseStatusMessage string `json:"responseStatusMessage"`
	ResponseMimeType      string `json:"responseMimeType"`
	ResponsePayload       string `json:"responsePayload"`
}

// Clone returns a copy that shares no slices with it.
func (it RequestItem) Clone() RequestItem {
	if it.Headers != nil {
		h := make([]capture.Header, len(it.Headers))
		copy(h, it.Headers)
		it.Headers = h
	}
	return it
}
