package view

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"

	"github.com/getmockd/netpanel/pkg/normalize"
	"github.com/getmockd/netpanel/pkg/session"
)

// ErrNotJSON is returned by JSONPath for a payload that is not JSON.
var ErrNotJSON = errors.New("payload is not JSON")

// Visible returns the items allowed by settings, newest first. Items with
// equal timestamps keep reverse arrival order.
func Visible(items []normalize.RequestItem, settings session.Settings) []normalize.RequestItem {
	out := make([]normalize.RequestItem, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		if settings.Allows(items[i].Category) {
			out = append(out, items[i])
		}
	}
	slices.SortStableFunc(out, func(a, b normalize.RequestItem) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	return out
}

// JSONPath applies a JSONPath expression to a JSON payload and returns the
// matches as an indented JSON array. An empty expression returns the payload
// unchanged.
func JSONPath(payload, expression string) (string, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return payload, nil
	}

	x, err := jp.ParseString(expression)
	if err != nil {
		return "", fmt.Errorf("invalid JSONPath %q: %w", expression, err)
	}
	if strings.TrimSpace(payload) == "" {
		return "", ErrNotJSON
	}
	data, err := oj.ParseString(payload)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotJSON, err)
	}

	results := x.Get(data)
	if results == nil {
		results = []any{}
	}
	return oj.JSON(results, &oj.Options{Indent: 2, Sort: true}), nil
}

// Filter is a compiled boolean expression over item fields. Fields use the
// item's JSON names, e.g. `responseStatusCode >= 400 && type == "JSON"`.
// Header values are available as headers["name"] with lowercase names.
type Filter struct {
	source  string
	program *vm.Program
}

// Compile compiles a filter expression.
func Compile(expression string) (*Filter, error) {
	program, err := expr.Compile(expression, expr.Env(env(normalize.RequestItem{})), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", expression, err)
	}
	return &Filter{source: expression, program: program}, nil
}

// String returns the expression source.
func (f *Filter) String() string { return f.source }

// Match reports whether item satisfies the filter.
func (f *Filter) Match(item normalize.RequestItem) (bool, error) {
	out, err := expr.Run(f.program, env(item))
	if err != nil {
		return false, fmt.Errorf("eval %q: %w", f.source, err)
	}
	ok, _ := out.(bool)
	return ok, nil
}

// Where returns the items that satisfy expression, in their original order.
// An empty expression returns items unchanged.
func Where(items []normalize.RequestItem, expression string) ([]normalize.RequestItem, error) {
	if strings.TrimSpace(expression) == "" {
		return items, nil
	}
	f, err := Compile(expression)
	if err != nil {
		return nil, err
	}
	out := make([]normalize.RequestItem, 0, len(items))
	for _, it := range items {
		ok, err := f.Match(it)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, it)
		}
	}
	return out, nil
}

func env(it normalize.RequestItem) map[string]any {
	headers := make(map[string]string, len(it.Headers))
	for _, h := range it.Headers {
		headers[strings.ToLower(h.Name)] = h.Value
	}
	return map[string]any{
		"id":                    it.ID,
		"timestamp":             it.Timestamp,
		"time":                  it.Time,
		"name":                  it.Name,
		"type":                  string(it.Category),
		"method":                it.Method,
		"url":                   it.URL,
		"requestDomain":         it.RequestDomain,
		"headers":               headers,
		"operationType":         it.OperationType,
		"operationName":         it.OperationName,
		"requestQueryString":    it.RequestQueryString,
		"requestGQLQuery":       it.RequestGQLQuery,
		"requestGQLVariables":   it.RequestGQLVariables,
		"requestPostData":       it.RequestPostData,
		"responseStatusCode":    it.ResponseStatusCode,
		"responseStatusMessage": it.ResponseStatusMessage,
		"responseMimeType":      it.ResponseMimeType,
		"responsePayload":       it.ResponsePayload,
	}
}
