package metric

import "testing"

type recordingSink struct {
	counters map[string]int64
	gauges   map[string]int64
}

func newRecordingSink() *recordingSink {
	return &recordingSink{counters: map[string]int64{}, gauges: map[string]int64{}}
}

func (r *recordingSink) EmitCounter(name string, delta int64) { r.counters[name] += delta }
func (r *recordingSink) EmitGauge(name string, value int64)   { r.gauges[name] = value }

func TestCounterAddsAndEmits(t *testing.T) {
	c := NewClient()
	sink := newRecordingSink()
	c.SetSink(sink)

	ctr := c.Counter("origin_shutdown_migration_failure")
	ctr.Inc()
	ctr.Add(2)

	if got := ctr.Value(); got != 3 {
		t.Fatalf("Value() = %d, want 3", got)
	}
	if sink.counters["origin_shutdown_migration_failure"] != 3 {
		t.Fatalf("sink recorded %d, want 3", sink.counters["origin_shutdown_migration_failure"])
	}
}

func TestGaugeTracksCurrentValue(t *testing.T) {
	c := NewClient()
	sink := newRecordingSink()
	c.SetSink(sink)

	g := c.Gauge("pooled_server_connections")
	g.Inc()
	g.Inc()
	g.Dec()

	if got := g.Value(); got != 1 {
		t.Fatalf("Value() = %d, want 1", got)
	}
	if sink.gauges["pooled_server_connections"] != 1 {
		t.Fatalf("sink recorded %d, want 1", sink.gauges["pooled_server_connections"])
	}
}

func TestRegistryReturnsSameInstance(t *testing.T) {
	c := NewClient()
	if c.Counter("a") != c.Counter("a") {
		t.Fatal("expected same *Counter instance for repeated name")
	}
	if c.Gauge("b") != c.Gauge("b") {
		t.Fatal("expected same *Gauge instance for repeated name")
	}
}
