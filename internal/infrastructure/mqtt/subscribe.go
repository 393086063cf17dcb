package mqtt

import (
	"context"
	"fmt"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/aGit2048/virtual-debugger/internal/message"
	"github.com/aGit2048/virtual-debugger/internal/transport"
)

// Subscribe registers interest in topic and returns the code the broker
// granted. A refusal (0x80) is returned as a code, not an error; errors are
// reserved for transport failures.
//
// Messages for the subscription arrive through Handlers.OnMessage.
func (t *Transport) Subscribe(ctx context.Context, topic string, qos message.QoS) (transport.SubscribeCode, error) {
	if !t.IsConnected() {
		return transport.SubscribeFailure, ErrNotConnected
	}

	token := t.client.Subscribe(topic, byte(qos), nil)
	err := waitToken(ctx, token)

	if st, ok := token.(*pahomqtt.SubscribeToken); ok {
		if code, found := st.Result()[topic]; found {
			granted := transport.SubscribeCode(code)
			if granted.Refused() {
				return granted, nil
			}
			if err == nil {
				return granted, nil
			}
		}
	}

	if err != nil {
		return transport.SubscribeFailure, fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}
	return transport.SubscribeCode(qos), nil
}

// Unsubscribe removes interest in topic.
func (t *Transport) Unsubscribe(ctx context.Context, topic string) error {
	if !t.IsConnected() {
		return ErrNotConnected
	}

	token := t.client.Unsubscribe(topic)
	if err := waitToken(ctx, token); err != nil {
		return fmt.Errorf("%w: %w", ErrUnsubscribeFailed, err)
	}
	return nil
}
