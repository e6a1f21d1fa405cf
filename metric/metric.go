// Package metric implements the small subset of github.com/One-com/gone/metric
// this module needs: named Counters and Gauges registered against a Client,
// each change forwarded immediately to an optional pluggable Sink. Unlike the full gone/metric
// package (which supports meters, histograms and timers), this is trimmed
// to what the session pool and session manager actually emit.
package metric

import (
	"sync"
	"sync/atomic"
)

// Sink receives flushed metric values. A statsd or Prometheus pushgateway
// sink would implement this; the default Client has no Sink and simply
// accumulates values in memory, which is enough for the counters this
// module cares about (they're also readable directly for tests).
type Sink interface {
	EmitCounter(name string, delta int64)
	EmitGauge(name string, value int64)
}

// Counter is a named integer adjusted by deltas, safe for concurrent use.
type Counter struct {
	name  string
	value int64
	c     *Client
}

// Add adds delta (may be negative) to the counter and forwards the delta to
// the owning Client's Sink, if any.
func (c *Counter) Add(delta int64) {
	atomic.AddInt64(&c.value, delta)
	c.c.emitCounter(c.name, delta)
}

// Inc is shorthand for Add(1).
func (c *Counter) Inc() { c.Add(1) }

// Value returns the current accumulated value.
func (c *Counter) Value() int64 { return atomic.LoadInt64(&c.value) }

// Gauge is a named integer that can move up or down, safe for concurrent use.
type Gauge struct {
	name  string
	value int64
	c     *Client
}

// Inc increments the gauge by one.
func (g *Gauge) Inc() { g.Add(1) }

// Dec decrements the gauge by one.
func (g *Gauge) Dec() { g.Add(-1) }

// Add adjusts the gauge by delta (may be negative).
func (g *Gauge) Add(delta int64) {
	v := atomic.AddInt64(&g.value, delta)
	g.c.emitGauge(g.name, v)
}

// Value returns the current gauge value.
func (g *Gauge) Value() int64 { return atomic.LoadInt64(&g.value) }

// Client owns a registry of Counters and Gauges and an optional Sink they
// report to. A single process-wide DefaultClient mirrors gone/metric's
// package-level default.
type Client struct {
	mu       sync.Mutex
	sink     Sink
	counters map[string]*Counter
	gauges   map[string]*Gauge
}

// NewClient returns a Client with no Sink configured; SetSink attaches one
// later without disturbing already-registered Counters/Gauges.
func NewClient() *Client {
	return &Client{
		counters: make(map[string]*Counter),
		gauges:   make(map[string]*Gauge),
	}
}

// SetSink installs (or replaces) the Sink metrics are flushed to.
func (c *Client) SetSink(s Sink) {
	c.mu.Lock()
	c.sink = s
	c.mu.Unlock()
}

// Counter returns the named Counter, creating it at zero on first use.
func (c *Client) Counter(name string) *Counter {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ctr, ok := c.counters[name]; ok {
		return ctr
	}
	ctr := &Counter{name: name, c: c}
	c.counters[name] = ctr
	return ctr
}

// Gauge returns the named Gauge, creating it at zero on first use.
func (c *Client) Gauge(name string) *Gauge {
	c.mu.Lock()
	defer c.mu.Unlock()
	if g, ok := c.gauges[name]; ok {
		return g
	}
	g := &Gauge{name: name, c: c}
	c.gauges[name] = g
	return g
}

func (c *Client) emitCounter(name string, delta int64) {
	c.mu.Lock()
	s := c.sink
	c.mu.Unlock()
	if s != nil {
		s.EmitCounter(name, delta)
	}
}

func (c *Client) emitGauge(name string, value int64) {
	c.mu.Lock()
	s := c.sink
	c.mu.Unlock()
	if s != nil {
		s.EmitGauge(name, value)
	}
}

// DefaultClient is the process-wide metric client used by the session and
// sessionmanager packages when the caller doesn't supply their own.
var DefaultClient = NewClient()
