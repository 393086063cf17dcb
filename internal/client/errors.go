package client

import (
	"errors"
	"fmt"

	"github.com/aGit2048/virtual-debugger/internal/transport"
)

// Sentinel errors returned by Client operations. Check with errors.Is.
var (
	// ErrInvalidOptions is returned by New when the options fail validation.
	ErrInvalidOptions = transport.ErrInvalidOptions

	// ErrConnectFailed wraps the cause of a failed connect attempt.
	ErrConnectFailed = errors.New("client: connect failed")

	// ErrNotConnected is returned by operations that need a live session.
	ErrNotConnected = errors.New("client: not connected")

	// ErrDisposed is returned by every operation after Close.
	ErrDisposed = errors.New("client: disposed")

	// ErrPublishFailed wraps a transport error or a non-success reason code.
	ErrPublishFailed = errors.New("client: publish failed")

	// ErrSubscribeFailed wraps a transport error during subscribe.
	ErrSubscribeFailed = errors.New("client: subscribe failed")

	// ErrUnsubscribeFailed wraps a transport error during unsubscribe.
	ErrUnsubscribeFailed = errors.New("client: unsubscribe failed")

	// ErrSubscriptionRefused matches any *SubscriptionRefusedError.
	ErrSubscriptionRefused = errors.New("client: subscription refused")

	// ErrInvalidTopic is returned for a malformed topic name or filter.
	ErrInvalidTopic = errors.New("client: invalid topic")

	// ErrInvalidQoS is returned for a QoS outside 0-2.
	ErrInvalidQoS = errors.New("client: invalid qos")

	// ErrPayloadTooLarge is returned when a payload exceeds MaxPayloadSize.
	ErrPayloadTooLarge = errors.New("client: payload too large")
)

// SubscriptionRefusedError reports a subscription the broker rejected.
type SubscriptionRefusedError struct {
	Topic string
	Code  transport.SubscribeCode
}

func (e *SubscriptionRefusedError) Error() string {
	return fmt.Sprintf("client: subscription to %q refused (code 0x%02x)", e.Topic, byte(e.Code))
}

// Is makes errors.Is(err, ErrSubscriptionRefused) true.
func (e *SubscriptionRefusedError) Is(target error) bool {
	return target == ErrSubscriptionRefused
}
