package telemetry

import (
	"time"
)

// PointWriter writes a single time-series point. influxdb.Client satisfies it.
type PointWriter interface {
	WritePoint(measurement string, tags map[string]string, fields map[string]interface{})
}

// Measurement names written by InfluxSink.
const (
	MeasurementPublish    = "mqtt_publish"
	MeasurementReceive    = "mqtt_receive"
	MeasurementProcessing = "mqtt_processing"
	MeasurementConnect    = "mqtt_connect"
	MeasurementReconnect  = "mqtt_reconnect"
)

// InfluxSink writes one point per observation, tagged with the client id.
// Writes are expected to be non-blocking and batched by the writer.
type InfluxSink struct {
	w    PointWriter
	tags map[string]string
}

// NewInfluxSink creates a sink writing through w.
func NewInfluxSink(w PointWriter, clientID string) *InfluxSink {
	return &InfluxSink{
		w:    w,
		tags: map[string]string{"client_id": clientID},
	}
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func (s *InfluxSink) ObservePublish(d time.Duration, err error) {
	s.w.WritePoint(MeasurementPublish, s.tags, map[string]interface{}{
		"latency_ms": millis(d),
		"ok":         err == nil,
	})
}

func (s *InfluxSink) ObserveReceive() {
	s.w.WritePoint(MeasurementReceive, s.tags, map[string]interface{}{
		"count": 1,
	})
}

func (s *InfluxSink) ObserveProcessing(d time.Duration, err error) {
	s.w.WritePoint(MeasurementProcessing, s.tags, map[string]interface{}{
		"latency_ms": millis(d),
		"ok":         err == nil,
	})
}

func (s *InfluxSink) ObserveConnect(err error) {
	s.w.WritePoint(MeasurementConnect, s.tags, map[string]interface{}{
		"ok": err == nil,
	})
}

func (s *InfluxSink) ObserveReconnectAttempt(attempt int) {
	s.w.WritePoint(MeasurementReconnect, s.tags, map[string]interface{}{
		"attempt": attempt,
	})
}

var _ Sink = (*InfluxSink)(nil)
