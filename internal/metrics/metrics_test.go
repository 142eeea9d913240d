package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.ObserveCycle(CyclePartial, 3, 1500*time.Millisecond)
	c.ObservePipeline("", time.Unix(1700000000, 0))
	c.ObservePipeline("fetch", time.Now())
	c.ObservePublish(nil)
	c.ObservePublish(errors.New("channel closed"))
	c.ObservePublish(nil)

	if got := testutil.ToFloat64(c.cycles.WithLabelValues(CyclePartial)); got != 1 {
		t.Fatalf("expected 1 partial cycle, got %v", got)
	}
	if got := testutil.ToFloat64(c.locationsResolved); got != 3 {
		t.Fatalf("expected 3 resolved locations, got %v", got)
	}
	if got := testutil.ToFloat64(c.pipeline.WithLabelValues("fetch", "failure")); got != 1 {
		t.Fatalf("expected 1 fetch failure, got %v", got)
	}
	if got := testutil.ToFloat64(c.publish.WithLabelValues("success")); got != 2 {
		t.Fatalf("expected 2 successful publishes, got %v", got)
	}
	if got := testutil.ToFloat64(c.lastSuccess); got != 1700000000 {
		t.Fatalf("unexpected last success timestamp %v", got)
	}

	expected := `
# HELP weather_collector_publish_total Broker publish attempts by result.
# TYPE weather_collector_publish_total counter
weather_collector_publish_total{result="failure"} 1
weather_collector_publish_total{result="success"} 2
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "weather_collector_publish_total"); err != nil {
		t.Fatalf("unexpected exposition: %v", err)
	}
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	c.ObserveCycle(CycleFailed, 0, time.Second)
	c.ObservePipeline("publish", time.Now())
	c.ObservePublish(nil)
}
