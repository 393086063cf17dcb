package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/aGit2048/virtual-debugger/internal/message"
	"github.com/aGit2048/virtual-debugger/internal/msgpool"
)

// Publish sends payload to topic. It returns nil only when the broker
// acknowledges with reason code Success.
func (c *Client) Publish(ctx context.Context, topic string, payload []byte, qos message.QoS) error {
	return c.publish(ctx, topic, payload, qos, false)
}

// PublishRetained is Publish with the retain flag set.
func (c *Client) PublishRetained(ctx context.Context, topic string, payload []byte, qos message.QoS) error {
	return c.publish(ctx, topic, payload, qos, true)
}

func validatePublish(topic string, payload []byte, qos message.QoS) error {
	if err := message.ValidateTopicName(topic); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTopic, err)
	}
	if !qos.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidQoS, byte(qos))
	}
	if len(payload) > MaxPayloadSize {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLarge, len(payload), MaxPayloadSize)
	}
	return nil
}

func (c *Client) publish(ctx context.Context, topic string, payload []byte, qos message.QoS, retain bool) error {
	if c.disposed.Load() {
		return ErrDisposed
	}
	if err := validatePublish(topic, payload, qos); err != nil {
		return err
	}

	b := c.conn.Load()
	if b == nil || c.State() != StateConnected {
		return ErrNotConnected
	}

	guard, err := c.publishMu.Lock(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	defer guard.Release()

	m, err := c.pool.Rent()
	if err != nil {
		if errors.Is(err, msgpool.ErrClosed) {
			return ErrDisposed
		}
		return err
	}
	defer c.pool.Return(m)

	m.Topic = topic
	m.Payload = payload
	m.QoS = qos
	m.Retain = retain
	m.Timestamp = c.clock.Now()

	publishCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	start := c.clock.Now()
	rc, err := b.tr.Publish(publishCtx, m)
	switch {
	case err != nil:
		err = fmt.Errorf("%w: %w", ErrPublishFailed, err)
	case !rc.OK():
		err = fmt.Errorf("%w: %s", ErrPublishFailed, rc)
	}
	c.monitor.RecordPublish(c.clock.Since(start), err)

	if err != nil {
		c.logger.Debug("publish failed", "topic", topic, "qos", qos, "error", err)
	}
	return err
}
