// Package message defines the application message carried between the
// transport, the publish path, and the inbound pipeline.
package message

import (
	"fmt"
	"time"
)

// QoS is the MQTT delivery guarantee level.
type QoS byte

// QoS levels.
const (
	// AtMostOnce is fire-and-forget delivery (QoS 0).
	AtMostOnce QoS = 0

	// AtLeastOnce is acknowledged delivery that may duplicate (QoS 1).
	AtLeastOnce QoS = 1

	// ExactlyOnce is the four-step handshake delivery (QoS 2).
	ExactlyOnce QoS = 2
)

// Valid reports whether q is one of the three defined levels.
func (q QoS) Valid() bool {
	return q <= ExactlyOnce
}

// String returns a short human-readable name for the level.
func (q QoS) String() string {
	switch q {
	case AtMostOnce:
		return "at-most-once"
	case AtLeastOnce:
		return "at-least-once"
	case ExactlyOnce:
		return "exactly-once"
	default:
		return fmt.Sprintf("qos(%d)", byte(q))
	}
}

// Message is a single publish/subscribe message.
//
// A Message is owned by exactly one stage at a time (transport callback,
// inbound queue, worker, or publish call) and must not be mutated by two
// stages concurrently.
type Message struct {
	Topic     string
	Payload   []byte
	QoS       QoS
	Retain    bool
	Timestamp time.Time
}

// Reset clears every field so the instance can be reused without leaking
// data from a previous use.
func (m *Message) Reset() {
	m.Topic = ""
	m.Payload = nil
	m.QoS = AtMostOnce
	m.Retain = false
	m.Timestamp = time.Time{}
}

// PayloadString returns the payload interpreted as UTF-8 text.
func (m *Message) PayloadString() string {
	return string(m.Payload)
}
