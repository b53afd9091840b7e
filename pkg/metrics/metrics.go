package metrics

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"maps"
	"math"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// ErrLabelCountMismatch is returned when the number of label values doesn't match the defined labels.
var ErrLabelCountMismatch = errors.New("label count mismatch")

// ErrNegativeCounterValue is returned when attempting to add a negative value to a counter.
var ErrNegativeCounterValue = errors.New("counter cannot be decreased")

// ErrDuplicateMetric is returned when registering a metric with a name that is already registered.
var ErrDuplicateMetric = errors.New("duplicate metric name")

// atomicFloat64 stores the bits of a float64 for atomic access.
type atomicFloat64 struct {
	bits atomic.Uint64
}

func (a *atomicFloat64) Load() float64 {
	return math.Float64frombits(a.bits.Load())
}

func (a *atomicFloat64) Store(val float64) {
	a.bits.Store(math.Float64bits(val))
}

func (a *atomicFloat64) Add(delta float64) {
	for {
		old := a.bits.Load()
		if a.bits.CompareAndSwap(old, math.Float64bits(math.Float64frombits(old)+delta)) {
			return
		}
	}
}

// MetricType represents the type of a metric.
type MetricType string

const (
	MetricTypeCounter   MetricType = "counter"
	MetricTypeGauge     MetricType = "gauge"
	MetricTypeHistogram MetricType = "histogram"
)

// Metric is the interface implemented by all metric types.
type Metric interface {
	Name() string
	Help() string
	Type() MetricType
	// Collect returns all samples, ordered by label values.
	Collect() []Sample
}

// Sample represents a single metric sample with labels.
type Sample struct {
	Name   string
	Labels map[string]string
	Value  float64
}

// family holds one value per combination of label values.
type family[V any] struct {
	name       string
	help       string
	labelNames []string

	mu       sync.RWMutex
	children map[string]*child[V]
	newValue func() *V
}

type child[V any] struct {
	labels map[string]string
	value  *V
}

func newFamily[V any](name, help string, labelNames []string, newValue func() *V) family[V] {
	return family[V]{
		name:       name,
		help:       help,
		labelNames: labelNames,
		children:   make(map[string]*child[V]),
		newValue:   newValue,
	}
}

func (f *family[V]) Name() string { return f.name }
func (f *family[V]) Help() string { return f.help }

func (f *family[V]) with(kind MetricType, values []string) (*V, error) {
	if len(values) != len(f.labelNames) {
		return nil, fmt.Errorf("%w: %s %s expected %d labels, got %d", ErrLabelCountMismatch, kind, f.name, len(f.labelNames), len(values))
	}

	key := strings.Join(values, "\x00")
	f.mu.RLock()
	c, ok := f.children[key]
	f.mu.RUnlock()
	if ok {
		return c.value, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.children[key]; ok {
		return c.value, nil
	}
	labels := make(map[string]string, len(values))
	for i, name := range f.labelNames {
		labels[name] = values[i]
	}
	c = &child[V]{labels: labels, value: f.newValue()}
	f.children[key] = c
	return c.value, nil
}

// each calls fn for every child in label-value order.
func (f *family[V]) each(fn func(labels map[string]string, v *V)) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, key := range slices.Sorted(maps.Keys(f.children)) {
		c := f.children[key]
		fn(c.labels, c.value)
	}
}

// Counter is a monotonically increasing metric.
type Counter struct {
	family[atomicFloat64]
}

func newCounter(name, help string, labelNames []string) *Counter {
	return &Counter{newFamily(name, help, labelNames, func() *atomicFloat64 { return new(atomicFloat64) })}
}

// Type returns MetricTypeCounter.
func (c *Counter) Type() MetricType { return MetricTypeCounter }

// WithLabels returns the child counter for the given label values.
func (c *Counter) WithLabels(values ...string) (*CounterVec, error) {
	v, err := c.with(MetricTypeCounter, values)
	if err != nil {
		return nil, err
	}
	return &CounterVec{v: v, name: c.name}, nil
}

// Inc increments a counter without labels by 1.
func (c *Counter) Inc() error {
	return c.Add(1)
}

// Add adds delta to a counter without labels.
func (c *Counter) Add(delta float64) error {
	vec, err := c.WithLabels()
	if err != nil {
		return err
	}
	return vec.Add(delta)
}

// Collect returns all metric samples.
func (c *Counter) Collect() []Sample {
	var samples []Sample
	c.each(func(labels map[string]string, v *atomicFloat64) {
		samples = append(samples, Sample{Name: c.name, Labels: labels, Value: v.Load()})
	})
	return samples
}

// CounterVec is a counter for one label combination.
type CounterVec struct {
	v    *atomicFloat64
	name string
}

// Inc increments the counter by 1.
func (v *CounterVec) Inc() error {
	return v.Add(1)
}

// Add adds delta to the counter. Negative deltas are rejected.
func (v *CounterVec) Add(delta float64) error {
	if delta < 0 {
		return fmt.Errorf("%w: counter %s", ErrNegativeCounterValue, v.name)
	}
	v.v.Add(delta)
	return nil
}

// Gauge is a metric that can arbitrarily go up and down.
type Gauge struct {
	family[atomicFloat64]
}

func newGauge(name, help string, labelNames []string) *Gauge {
	return &Gauge{newFamily(name, help, labelNames, func() *atomicFloat64 { return new(atomicFloat64) })}
}

// Type returns MetricTypeGauge.
func (g *Gauge) Type() MetricType { return MetricTypeGauge }

// WithLabels returns the child gauge for the given label values.
func (g *Gauge) WithLabels(values ...string) (*GaugeVec, error) {
	v, err := g.with(MetricTypeGauge, values)
	if err != nil {
		return nil, err
	}
	return &GaugeVec{v: v}, nil
}

// Set sets a gauge without labels.
func (g *Gauge) Set(value float64) error {
	vec, err := g.WithLabels()
	if err != nil {
		return err
	}
	vec.Set(value)
	return nil
}

// Add adds delta to a gauge without labels.
func (g *Gauge) Add(delta float64) error {
	vec, err := g.WithLabels()
	if err != nil {
		return err
	}
	vec.Add(delta)
	return nil
}

// Collect returns all metric samples.
func (g *Gauge) Collect() []Sample {
	var samples []Sample
	g.each(func(labels map[string]string, v *atomicFloat64) {
		samples = append(samples, Sample{Name: g.name, Labels: labels, Value: v.Load()})
	})
	return samples
}

// GaugeVec is a gauge for one label combination.
type GaugeVec struct {
	v *atomicFloat64
}

func (v *GaugeVec) Set(value float64) { v.v.Store(value) }
func (v *GaugeVec) Inc() { v.v.Add(1) }
func (v *GaugeVec) Dec() { v.v.Add(-1) }
func (v *GaugeVec) Add(delta float64) { v.v.Add(delta) }

// Histogram tracks the distribution of observed values.
type Histogram struct {
	family[histogramValue]
	buckets []float64
}

type histogramValue struct {
	counts []atomic.Uint64 // per bucket, not cumulative
	sum    atomicFloat64
	count  atomic.Uint64
}

// newHistogram sorts buckets and appends +Inf when missing.
func newHistogram(name, help string, buckets []float64, labelNames []string) *Histogram {
	sorted := slices.Clone(buckets)
	slices.Sort(sorted)
	if len(sorted) == 0 || !math.IsInf(sorted[len(sorted)-1], 1) {
		sorted = append(sorted, math.Inf(1))
	}
	h := &Histogram{buckets: sorted}
	h.family = newFamily(name, help, labelNames, func() *histogramValue {
		return &histogramValue{counts: make([]atomic.Uint64, len(sorted))}
	})
	return h
}

// Type returns MetricTypeHistogram.
func (h *Histogram) Type() MetricType { return MetricTypeHistogram }

// WithLabels returns the child histogram for the given label values.
func (h *Histogram) WithLabels(values ...string) (*HistogramVec, error) {
	v, err := h.with(MetricTypeHistogram, values)
	if err != nil {
		return nil, err
	}
	return &HistogramVec{v: v, buckets: h.buckets}, nil
}

// Observe records a value in a histogram without labels.
func (h *Histogram) Observe(value float64) error {
	vec, err := h.WithLabels()
	if err != nil {
		return err
	}
	vec.Observe(value)
	return nil
}

// Collect returns the cumulative _bucket samples followed by _sum and _count
// for every label combination.
func (h *Histogram) Collect() []Sample {
	var samples []Sample
	h.each(func(labels map[string]string, v *histogramValue) {
		var cumulative uint64
		for i, bound := range h.buckets {
			cumulative += v.counts[i].Load()
			bucketLabels := make(map[string]string, len(labels)+1)
			for k, val := range labels {
				bucketLabels[k] = val
			}
			bucketLabels["le"] = formatFloat(bound)
			samples = append(samples, Sample{Name: h.name + "_bucket", Labels: bucketLabels, Value: float64(cumulative)})
		}
		samples = append(samples,
			Sample{Name: h.name + "_sum", Labels: labels, Value: v.sum.Load()},
			Sample{Name: h.name + "_count", Labels: labels, Value: float64(v.count.Load())},
		)
	})
	return samples
}

// HistogramVec is a histogram for one label combination.
type HistogramVec struct {
	v       *histogramValue
	buckets []float64
}

// Observe records a value.
func (v *HistogramVec) Observe(value float64) {
	i, _ := slices.BinarySearch(v.buckets, value)
	if i < len(v.buckets) {
		v.v.counts[i].Add(1)
	}
	v.v.sum.Add(value)
	v.v.count.Add(1)
}

// Registry holds all registered metrics.
type Registry struct {
	mu       sync.RWMutex
	metrics  []Metric
	names    map[string]struct{}
	onScrape []func()
}

// NewRegistry creates a new metric registry.
func NewRegistry() *Registry {
	return &Registry{names: make(map[string]struct{})}
}

// NewCounter creates and registers a new counter.
func (r *Registry) NewCounter(name, help string, labels ...string) *Counter {
	c := newCounter(name, help, labels)
	r.register(c)
	return c
}

// NewGauge creates and registers a new gauge.
func (r *Registry) NewGauge(name, help string, labels ...string) *Gauge {
	g := newGauge(name, help, labels)
	r.register(g)
	return g
}

// NewHistogram creates and registers a new histogram with the given buckets.
func (r *Registry) NewHistogram(name, help string, buckets []float64, labels ...string) *Histogram {
	h := newHistogram(name, help, buckets, labels)
	r.register(h)
	return h
}

// OnScrape registers fn to run before every exposition, for gauges that are
// sampled rather than updated.
func (r *Registry) OnScrape(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onScrape = append(r.onScrape, fn)
}

// register panics on a duplicate name, since it would produce invalid exposition output.
func (r *Registry) register(m Metric) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.names[m.Name()]; exists {
		panic(fmt.Sprintf("%s: %s", ErrDuplicateMetric, m.Name()))
	}
	r.names[m.Name()] = struct{}{}
	r.metrics = append(r.metrics, m)
}

// WriteText writes every metric with samples in the Prometheus text
// exposition format, in registration order.
func (r *Registry) WriteText(w io.Writer) error {
	r.mu.RLock()
	hooks := slices.Clone(r.onScrape)
	metrics := slices.Clone(r.metrics)
	r.mu.RUnlock()

	for _, fn := range hooks {
		fn()
	}

	bw := bufio.NewWriter(w)
	for _, m := range metrics {
		samples := m.Collect()
		if len(samples) == 0 {
			continue
		}
		fmt.Fprintf(bw, "# HELP %s %s\n", m.Name(), escapeHelp(m.Help()))
		fmt.Fprintf(bw, "# TYPE %s %s\n", m.Name(), m.Type())
		for _, s := range samples {
			if len(s.Labels) == 0 {
				fmt.Fprintf(bw, "%s %s\n", s.Name, formatFloat(s.Value))
			} else {
				fmt.Fprintf(bw, "%s{%s} %s\n", s.Name, formatLabels(s.Labels), formatFloat(s.Value))
			}
		}
	}
	return bw.Flush()
}

// Handler returns an http.Handler that serves the registry.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_ = r.WriteText(w)
	})
}

// formatLabels formats labels as key="value" pairs sorted by key.
func formatLabels(labels map[string]string) string {
	keys := slices.Sorted(maps.Keys(labels))
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + `="` + escapeLabelValue(labels[k]) + `"`
	}
	return strings.Join(parts, ",")
}

func formatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "+Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func escapeHelp(s string) string {
	return strings.NewReplacer(`\`, `\\`, "\n", `\n`).Replace(s)
}

func escapeLabelValue(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`).Replace(s)
}

// DurationBuckets are histogram buckets in seconds, from 1ms to 10s.
var DurationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
