package mqtt

import (
	"context"
	"fmt"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/aGit2048/virtual-debugger/internal/message"
	"github.com/aGit2048/virtual-debugger/internal/transport"
)

// Publish sends m and waits for the broker acknowledgement (QoS 1/2) or for
// the packet to be written (QoS 0).
//
// MQTT 3.1.1 has no publish reason codes, so the result is Success or
// UnspecifiedError together with the underlying error.
func (t *Transport) Publish(ctx context.Context, m *message.Message) (transport.ReasonCode, error) {
	if !t.IsConnected() {
		return transport.UnspecifiedError, ErrNotConnected
	}

	token := t.client.Publish(m.Topic, byte(m.QoS), m.Retain, m.Payload)
	if err := waitToken(ctx, token); err != nil {
		return transport.UnspecifiedError, fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return transport.Success, nil
}

// waitToken blocks until token completes or ctx is done.
func waitToken(ctx context.Context, token pahomqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
