package telemetry

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink exports observations as Prometheus metrics.
type PrometheusSink struct {
	published         *prometheus.CounterVec
	received          prometheus.Counter
	processed         *prometheus.CounterVec
	connects          *prometheus.CounterVec
	reconnectAttempts prometheus.Counter
	publishLatency    prometheus.Histogram
	processLatency    prometheus.Histogram
}

// NewPrometheusSink creates the collectors under namespace and registers
// them with reg. Registering twice on the same registry reuses the existing
// collectors.
func NewPrometheusSink(reg prometheus.Registerer, namespace string) (*PrometheusSink, error) {
	s := &PrometheusSink{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_published_total",
			Help:      "Publish attempts by result.",
		}, []string{"result"}),
		received: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Inbound messages accepted from the broker.",
		}),
		processed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_processed_total",
			Help:      "Inbound messages handled by result.",
		}, []string{"result"}),
		connects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connect_attempts_total",
			Help:      "Broker connect attempts by result.",
		}, []string{"result"}),
		reconnectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnect_attempts_total",
			Help:      "Attempts made by the reconnect supervisor.",
		}),
		publishLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "publish_latency_seconds",
			Help:      "Time from publish call to broker acknowledgement or failure.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		processLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "process_latency_seconds",
			Help:      "Time spent in the inbound message handler.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
	}

	if err := s.register(reg); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PrometheusSink) register(reg prometheus.Registerer) error {
	var err error
	s.published, err = registerOrReuse(reg, s.published)
	if err != nil {
		return err
	}
	s.received, err = registerOrReuse(reg, s.received)
	if err != nil {
		return err
	}
	s.processed, err = registerOrReuse(reg, s.processed)
	if err != nil {
		return err
	}
	s.connects, err = registerOrReuse(reg, s.connects)
	if err != nil {
		return err
	}
	s.reconnectAttempts, err = registerOrReuse(reg, s.reconnectAttempts)
	if err != nil {
		return err
	}
	s.publishLatency, err = registerOrReuse(reg, s.publishLatency)
	if err != nil {
		return err
	}
	s.processLatency, err = registerOrReuse(reg, s.processLatency)
	return err
}

func registerOrReuse[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (s *PrometheusSink) ObservePublish(d time.Duration, err error) {
	s.published.WithLabelValues(result(err)).Inc()
	s.publishLatency.Observe(d.Seconds())
}

func (s *PrometheusSink) ObserveReceive() {
	s.received.Inc()
}

func (s *PrometheusSink) ObserveProcessing(d time.Duration, err error) {
	s.processed.WithLabelValues(result(err)).Inc()
	s.processLatency.Observe(d.Seconds())
}

func (s *PrometheusSink) ObserveConnect(err error) {
	s.connects.WithLabelValues(result(err)).Inc()
}

func (s *PrometheusSink) ObserveReconnectAttempt(int) {
	s.reconnectAttempts.Inc()
}

var _ Sink = (*PrometheusSink)(nil)
