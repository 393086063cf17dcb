// Package telemetry counts what the client does and forwards each
// observation to pluggable sinks.
//
// Monitor keeps in-process counters and latency statistics that back
// client.Stats and the diagnostics endpoint. Sinks (Prometheus, InfluxDB)
// receive the same observations as they happen; the client depends only on
// the Sink interface.
package telemetry

import (
	"sync"
	"sync/atomic"
	"time"
)

// Sink receives every observation recorded by a Monitor.
// Implementations must be safe for concurrent use and must not block.
type Sink interface {
	ObservePublish(latency time.Duration, err error)
	ObserveReceive()
	ObserveProcessing(latency time.Duration, err error)
	ObserveConnect(err error)
	ObserveReconnectAttempt(attempt int)
}

// LatencyStats summarises a latency series.
type LatencyStats struct {
	Count uint64        `json:"count"`
	Mean  time.Duration `json:"mean_ns"`
	Max   time.Duration `json:"max_ns"`
}

// Snapshot is a point-in-time copy of the monitor's counters.
type Snapshot struct {
	Published          uint64       `json:"published"`
	PublishFailures    uint64       `json:"publish_failures"`
	Received           uint64       `json:"received"`
	ProcessingFailures uint64       `json:"processing_failures"`
	ConnectAttempts    uint64       `json:"connect_attempts"`
	ConnectFailures    uint64       `json:"connect_failures"`
	ReconnectAttempts  uint64       `json:"reconnect_attempts"`
	PublishLatency     LatencyStats `json:"publish_latency"`
	ProcessingLatency  LatencyStats `json:"processing_latency"`
	Since              time.Time    `json:"since"`
}

// latency accumulates count, sum and max under a mutex.
type latency struct {
	mu    sync.Mutex
	count uint64
	sum   time.Duration
	max   time.Duration
}

func (l *latency) record(d time.Duration) {
	l.mu.Lock()
	l.count++
	l.sum += d
	if d > l.max {
		l.max = d
	}
	l.mu.Unlock()
}

func (l *latency) stats() LatencyStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := LatencyStats{Count: l.count, Max: l.max}
	if l.count > 0 {
		s.Mean = l.sum / time.Duration(l.count)
	}
	return s
}

// Monitor records client activity.
//
// Thread Safety: all methods are safe for concurrent use. A nil *Monitor is
// valid and records nothing.
type Monitor struct {
	published          atomic.Uint64
	publishFailures    atomic.Uint64
	received           atomic.Uint64
	processingFailures atomic.Uint64
	connectAttempts    atomic.Uint64
	connectFailures    atomic.Uint64
	reconnectAttempts  atomic.Uint64

	publishLatency    latency
	processingLatency latency

	sinksMu sync.RWMutex
	sinks   []Sink

	since time.Time
}

// NewMonitor creates a Monitor forwarding to sinks.
func NewMonitor(sinks ...Sink) *Monitor {
	return &Monitor{
		sinks: sinks,
		since: time.Now(),
	}
}

// AddSink registers an additional sink.
func (m *Monitor) AddSink(s Sink) {
	if m == nil || s == nil {
		return
	}
	m.sinksMu.Lock()
	m.sinks = append(m.sinks, s)
	m.sinksMu.Unlock()
}

func (m *Monitor) each(fn func(Sink)) {
	m.sinksMu.RLock()
	sinks := m.sinks
	m.sinksMu.RUnlock()
	for _, s := range sinks {
		fn(s)
	}
}

// RecordPublish records one publish attempt and its latency.
func (m *Monitor) RecordPublish(d time.Duration, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.publishFailures.Add(1)
	} else {
		m.published.Add(1)
	}
	m.publishLatency.record(d)
	m.each(func(s Sink) { s.ObservePublish(d, err) })
}

// RecordReceived records one inbound message accepted from the transport.
func (m *Monitor) RecordReceived() {
	if m == nil {
		return
	}
	m.received.Add(1)
	m.each(func(s Sink) { s.ObserveReceive() })
}

// RecordProcessing records one handler invocation and its latency.
func (m *Monitor) RecordProcessing(d time.Duration, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.processingFailures.Add(1)
	}
	m.processingLatency.record(d)
	m.each(func(s Sink) { s.ObserveProcessing(d, err) })
}

// RecordConnect records one connect attempt.
func (m *Monitor) RecordConnect(err error) {
	if m == nil {
		return
	}
	m.connectAttempts.Add(1)
	if err != nil {
		m.connectFailures.Add(1)
	}
	m.each(func(s Sink) { s.ObserveConnect(err) })
}

// RecordReconnectAttempt records one supervisor attempt.
func (m *Monitor) RecordReconnectAttempt(attempt int) {
	if m == nil {
		return
	}
	m.reconnectAttempts.Add(1)
	m.each(func(s Sink) { s.ObserveReconnectAttempt(attempt) })
}

// Snapshot returns the current counters.
func (m *Monitor) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	return Snapshot{
		Published:          m.published.Load(),
		PublishFailures:    m.publishFailures.Load(),
		Received:           m.received.Load(),
		ProcessingFailures: m.processingFailures.Load(),
		ConnectAttempts:    m.connectAttempts.Load(),
		ConnectFailures:    m.connectFailures.Load(),
		ReconnectAttempts:  m.reconnectAttempts.Load(),
		PublishLatency:     m.publishLatency.stats(),
		ProcessingLatency:  m.processingLatency.stats(),
		Since:              m.since,
	}
}
