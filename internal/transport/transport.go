// Package transport defines the contract between the connection manager and
// the component that speaks the broker's wire protocol.
//
// The manager never touches sockets or packets. It builds a Transport
// through a Factory, hands it one Handlers set, and from then on only calls
// the methods below and reacts to the events delivered through the handlers.
// A Transport instance is single-use: once Close has been called a new one
// is built for the next connection.
package transport

import (
	"context"
	"fmt"

	"github.com/aGit2048/virtual-debugger/internal/message"
)

// Transport is one connection's worth of broker protocol.
//
// Implementations must be safe for concurrent use. Handler callbacks may be
// invoked from any goroutine and must not be invoked after Close returns.
type Transport interface {
	// Connect opens the session. It must honour ctx cancellation.
	Connect(ctx context.Context) error

	// Disconnect closes the session gracefully and reports ReasonNormal.
	Disconnect(ctx context.Context) error

	// Publish sends m and returns the broker's reason code.
	Publish(ctx context.Context, m *message.Message) (ReasonCode, error)

	// Subscribe registers interest in topic and returns the granted code.
	Subscribe(ctx context.Context, topic string, qos message.QoS) (SubscribeCode, error)

	// Unsubscribe removes interest in topic.
	Unsubscribe(ctx context.Context, topic string) error

	// IsConnected reports the transport's own view of the session.
	IsConnected() bool

	// Close detaches the handlers and releases resources. Calling it more
	// than once is a no-op.
	Close() error
}

// Handlers is the event set a Transport reports through. Nil fields are
// skipped.
type Handlers struct {
	OnConnected    func()
	OnDisconnected func(reason DisconnectReason, err error)
	OnMessage      func(topic string, payload []byte, qos message.QoS, retain bool)
}

// Factory builds a Transport bound to opts and h. The returned instance is
// not yet connected.
type Factory func(opts Options, h Handlers) (Transport, error)

// ReasonCode is the acknowledgement code of a publish.
type ReasonCode byte

// Publish reason codes (MQTT 5 numbering; MQTT 3.1.1 transports report
// Success or UnspecifiedError).
const (
	Success            ReasonCode = 0x00
	NoMatchingSubs     ReasonCode = 0x10
	UnspecifiedError   ReasonCode = 0x80
	NotAuthorized      ReasonCode = 0x87
	TopicNameInvalid   ReasonCode = 0x90
	QuotaExceeded      ReasonCode = 0x97
	PayloadFormatError ReasonCode = 0x99
)

// OK reports whether the publish was acknowledged with Success. Any other
// code, including NoMatchingSubs, counts as a failed publish.
func (r ReasonCode) OK() bool {
	return r == Success
}

func (r ReasonCode) String() string {
	switch r {
	case Success:
		return "success"
	case NoMatchingSubs:
		return "no matching subscribers"
	case UnspecifiedError:
		return "unspecified error"
	case NotAuthorized:
		return "not authorized"
	case TopicNameInvalid:
		return "topic name invalid"
	case QuotaExceeded:
		return "quota exceeded"
	case PayloadFormatError:
		return "payload format invalid"
	default:
		return fmt.Sprintf("reason(0x%02x)", byte(r))
	}
}

// SubscribeCode is the code granted by the broker for one subscription.
// Values 0-2 are the granted QoS; 0x80 and above are refusals.
type SubscribeCode byte

// SubscribeFailure is the MQTT 3.1.1 refusal code.
const SubscribeFailure SubscribeCode = 0x80

// Refused reports whether the broker rejected the subscription.
func (c SubscribeCode) Refused() bool {
	return c >= 0x80
}

// GrantedQoS returns the QoS granted for an accepted subscription.
func (c SubscribeCode) GrantedQoS() message.QoS {
	return message.QoS(c)
}

// DisconnectReason classifies why a session ended.
type DisconnectReason int

// Disconnect reasons.
const (
	// ReasonNormal is a disconnect requested by the client itself.
	ReasonNormal DisconnectReason = iota

	// ReasonConnectionLost is an unexpected drop (network, keep-alive).
	ReasonConnectionLost

	// ReasonServerShutdown is a broker-initiated disconnect.
	ReasonServerShutdown

	// ReasonProtocolError is a protocol violation detected by either side.
	ReasonProtocolError
)

// UserInitiated reports whether the reason was a client-requested disconnect.
func (r DisconnectReason) UserInitiated() bool {
	return r == ReasonNormal
}

func (r DisconnectReason) String() string {
	switch r {
	case ReasonNormal:
		return "normal"
	case ReasonConnectionLost:
		return "connection lost"
	case ReasonServerShutdown:
		return "server shutdown"
	case ReasonProtocolError:
		return "protocol error"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}
