package telemetry

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var errBoom = errors.New("boom")

// =============================================================================
// Monitor Tests
// =============================================================================

func TestMonitorCounters(t *testing.T) {
	m := NewMonitor()

	m.RecordPublish(10*time.Millisecond, nil)
	m.RecordPublish(30*time.Millisecond, nil)
	m.RecordPublish(time.Second, errBoom)
	m.RecordReceived()
	m.RecordProcessing(5*time.Millisecond, nil)
	m.RecordProcessing(5*time.Millisecond, errBoom)
	m.RecordConnect(nil)
	m.RecordConnect(errBoom)
	m.RecordReconnectAttempt(1)

	s := m.Snapshot()

	if s.Published != 2 || s.PublishFailures != 1 {
		t.Errorf("published/failures = %d/%d, want 2/1", s.Published, s.PublishFailures)
	}
	if s.Received != 1 {
		t.Errorf("Received = %d, want 1", s.Received)
	}
	if s.ProcessingFailures != 1 {
		t.Errorf("ProcessingFailures = %d, want 1", s.ProcessingFailures)
	}
	if s.ConnectAttempts != 2 || s.ConnectFailures != 1 {
		t.Errorf("connect attempts/failures = %d/%d, want 2/1", s.ConnectAttempts, s.ConnectFailures)
	}
	if s.ReconnectAttempts != 1 {
		t.Errorf("ReconnectAttempts = %d, want 1", s.ReconnectAttempts)
	}

	// Failed attempts count toward latency too.
	if s.PublishLatency.Count != 3 {
		t.Errorf("PublishLatency.Count = %d, want 3", s.PublishLatency.Count)
	}
	if want := 1040 * time.Millisecond / 3; s.PublishLatency.Mean != want {
		t.Errorf("PublishLatency.Mean = %v, want %v", s.PublishLatency.Mean, want)
	}
	if s.PublishLatency.Max != time.Second {
		t.Errorf("PublishLatency.Max = %v, want 1s", s.PublishLatency.Max)
	}
	if s.ProcessingLatency.Count != 2 {
		t.Errorf("ProcessingLatency.Count = %d, want 2", s.ProcessingLatency.Count)
	}
}

func TestNilMonitor(t *testing.T) {
	var m *Monitor
	m.RecordPublish(time.Millisecond, nil)
	m.RecordReceived()
	m.RecordProcessing(time.Millisecond, nil)
	m.RecordConnect(nil)
	m.RecordReconnectAttempt(1)
	m.AddSink(nil)

	if s := m.Snapshot(); s.Published != 0 {
		t.Errorf("nil Snapshot().Published = %d, want 0", s.Published)
	}
}

type countingSink struct {
	mu sync.Mutex

	publish    int
	receive    int
	processing int
	connect    int
	reconnect  int
}

func (c *countingSink) ObservePublish(time.Duration, error) {
	c.mu.Lock()
	c.publish++
	c.mu.Unlock()
}
func (c *countingSink) ObserveReceive() {
	c.mu.Lock()
	c.receive++
	c.mu.Unlock()
}
func (c *countingSink) ObserveProcessing(time.Duration, error) {
	c.mu.Lock()
	c.processing++
	c.mu.Unlock()
}
func (c *countingSink) ObserveConnect(error) {
	c.mu.Lock()
	c.connect++
	c.mu.Unlock()
}
func (c *countingSink) ObserveReconnectAttempt(int) {
	c.mu.Lock()
	c.reconnect++
	c.mu.Unlock()
}

func TestMonitorFanOut(t *testing.T) {
	a, b := &countingSink{}, &countingSink{}
	m := NewMonitor(a)
	m.AddSink(b)

	m.RecordPublish(time.Millisecond, nil)
	m.RecordReceived()
	m.RecordProcessing(time.Millisecond, nil)
	m.RecordConnect(nil)
	m.RecordReconnectAttempt(2)

	for name, s := range map[string]*countingSink{"a": a, "b": b} {
		if s.publish != 1 || s.receive != 1 || s.processing != 1 || s.connect != 1 || s.reconnect != 1 {
			t.Errorf("sink %s counts = %+v, want one of each", name, s)
		}
	}
}

func TestMonitorConcurrent(t *testing.T) {
	m := NewMonitor()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordPublish(time.Millisecond, nil)
			m.RecordReceived()
		}()
	}
	wg.Wait()

	s := m.Snapshot()
	if s.Published != 50 || s.Received != 50 {
		t.Errorf("published/received = %d/%d, want 50/50", s.Published, s.Received)
	}
}

// =============================================================================
// Prometheus Sink Tests
// =============================================================================

func TestPrometheusSink(t *testing.T) {
	reg := prometheus.NewRegistry()
	s, err := NewPrometheusSink(reg, "mqttclient")
	if err != nil {
		t.Fatalf("NewPrometheusSink() error = %v", err)
	}

	s.ObservePublish(2*time.Millisecond, nil)
	s.ObservePublish(0, errBoom)
	s.ObserveReceive()
	s.ObserveReceive()
	s.ObserveProcessing(time.Millisecond, nil)
	s.ObserveConnect(nil)
	s.ObserveConnect(errBoom)
	s.ObserveReconnectAttempt(1)

	if got := testutil.ToFloat64(s.published.WithLabelValues("success")); got != 1 {
		t.Errorf("published{success} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(s.published.WithLabelValues("error")); got != 1 {
		t.Errorf("published{error} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(s.received); got != 2 {
		t.Errorf("received = %v, want 2", got)
	}
	if got := testutil.ToFloat64(s.connects.WithLabelValues("error")); got != 1 {
		t.Errorf("connects{error} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(s.reconnectAttempts); got != 1 {
		t.Errorf("reconnect attempts = %v, want 1", got)
	}

	expected := `
# HELP mqttclient_messages_received_total Inbound messages accepted from the broker.
# TYPE mqttclient_messages_received_total counter
mqttclient_messages_received_total 2
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "mqttclient_messages_received_total"); err != nil {
		t.Errorf("GatherAndCompare() error = %v", err)
	}

	if n := testutil.CollectAndCount(s.publishLatency); n != 1 {
		t.Errorf("publish latency series = %d, want 1", n)
	}

	// Both publishes, failed one included, land in the histogram.
	latency := `
# HELP mqttclient_publish_latency_seconds Time from publish call to broker acknowledgement or failure.
# TYPE mqttclient_publish_latency_seconds histogram
mqttclient_publish_latency_seconds_bucket{le="0.0005"} 1
mqttclient_publish_latency_seconds_bucket{le="0.001"} 1
mqttclient_publish_latency_seconds_bucket{le="0.002"} 2
mqttclient_publish_latency_seconds_bucket{le="0.004"} 2
mqttclient_publish_latency_seconds_bucket{le="0.008"} 2
mqttclient_publish_latency_seconds_bucket{le="0.016"} 2
mqttclient_publish_latency_seconds_bucket{le="0.032"} 2
mqttclient_publish_latency_seconds_bucket{le="0.064"} 2
mqttclient_publish_latency_seconds_bucket{le="0.128"} 2
mqttclient_publish_latency_seconds_bucket{le="0.256"} 2
mqttclient_publish_latency_seconds_bucket{le="0.512"} 2
mqttclient_publish_latency_seconds_bucket{le="1.024"} 2
mqttclient_publish_latency_seconds_bucket{le="2.048"} 2
mqttclient_publish_latency_seconds_bucket{le="4.096"} 2
mqttclient_publish_latency_seconds_bucket{le="+Inf"} 2
mqttclient_publish_latency_seconds_sum 0.002
mqttclient_publish_latency_seconds_count 2
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(latency), "mqttclient_publish_latency_seconds"); err != nil {
		t.Errorf("GatherAndCompare(publish latency) error = %v", err)
	}
}

func TestPrometheusSinkRegisterTwice(t *testing.T) {
	reg := prometheus.NewRegistry()

	first, err := NewPrometheusSink(reg, "mqttclient")
	if err != nil {
		t.Fatalf("NewPrometheusSink() error = %v", err)
	}
	second, err := NewPrometheusSink(reg, "mqttclient")
	if err != nil {
		t.Fatalf("second NewPrometheusSink() error = %v", err)
	}

	first.ObserveReceive()
	second.ObserveReceive()

	if got := testutil.ToFloat64(first.received); got != 2 {
		t.Errorf("shared received = %v, want 2", got)
	}
}

// =============================================================================
// Influx Sink Tests
// =============================================================================

type recordedPoint struct {
	measurement string
	tags        map[string]string
	fields      map[string]interface{}
}

type fakeWriter struct {
	points []recordedPoint
}

func (f *fakeWriter) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	f.points = append(f.points, recordedPoint{measurement, tags, fields})
}

func TestInfluxSink(t *testing.T) {
	w := &fakeWriter{}
	s := NewInfluxSink(w, "client_abc")

	s.ObservePublish(1500*time.Microsecond, nil)
	s.ObserveReceive()
	s.ObserveProcessing(time.Millisecond, errBoom)
	s.ObserveConnect(nil)
	s.ObserveReconnectAttempt(3)

	want := []string{MeasurementPublish, MeasurementReceive, MeasurementProcessing, MeasurementConnect, MeasurementReconnect}
	if len(w.points) != len(want) {
		t.Fatalf("points = %d, want %d", len(w.points), len(want))
	}
	for i, m := range want {
		if w.points[i].measurement != m {
			t.Errorf("points[%d].measurement = %q, want %q", i, w.points[i].measurement, m)
		}
		if w.points[i].tags["client_id"] != "client_abc" {
			t.Errorf("points[%d] client_id = %q, want client_abc", i, w.points[i].tags["client_id"])
		}
	}

	if got := w.points[0].fields["latency_ms"]; got != 1.5 {
		t.Errorf("publish latency_ms = %v, want 1.5", got)
	}
	if got := w.points[2].fields["ok"]; got != false {
		t.Errorf("processing ok = %v, want false", got)
	}
	if got := w.points[4].fields["attempt"]; got != 3 {
		t.Errorf("reconnect attempt = %v, want 3", got)
	}
}
