package client

import (
	"context"
	"fmt"
	"sort"

	"github.com/aGit2048/virtual-debugger/internal/message"
	"github.com/aGit2048/virtual-debugger/internal/transport"
)

// Subscribe registers interest in filter. A broker refusal is returned as
// a *SubscriptionRefusedError. Accepted subscriptions are restored after
// every reconnect.
func (c *Client) Subscribe(ctx context.Context, filter string, qos message.QoS) error {
	if c.disposed.Load() {
		return ErrDisposed
	}
	if err := message.ValidateTopicFilter(filter); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTopic, err)
	}
	if !qos.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidQoS, byte(qos))
	}

	tr, err := c.connectedTransport()
	if err != nil {
		return err
	}

	subCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	code, err := tr.Subscribe(subCtx, filter, qos)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}
	if code.Refused() {
		return &SubscriptionRefusedError{Topic: filter, Code: code}
	}

	c.subs.Store(filter, qos)
	c.logger.Debug("subscribed", "topic", filter, "granted_qos", code.GrantedQoS())
	return nil
}

// Unsubscribe removes interest in filter and stops restoring it.
func (c *Client) Unsubscribe(ctx context.Context, filter string) error {
	if c.disposed.Load() {
		return ErrDisposed
	}
	if err := message.ValidateTopicFilter(filter); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTopic, err)
	}

	tr, err := c.connectedTransport()
	if err != nil {
		return err
	}

	unsubCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	if err := tr.Unsubscribe(unsubCtx, filter); err != nil {
		return fmt.Errorf("%w: %w", ErrUnsubscribeFailed, err)
	}
	c.subs.Delete(filter)
	return nil
}

// Subscriptions returns the tracked filters, sorted.
func (c *Client) Subscriptions() []string {
	filters := make([]string, 0, c.subs.Size())
	c.subs.Range(func(filter string, _ message.QoS) bool {
		filters = append(filters, filter)
		return true
	})
	sort.Strings(filters)
	return filters
}

func (c *Client) connectedTransport() (transport.Transport, error) {
	b := c.conn.Load()
	if b == nil || c.State() != StateConnected {
		return nil, ErrNotConnected
	}
	return b.tr, nil
}

// restoreSubscriptions re-subscribes tracked filters on a fresh session.
// Failures are logged; the connect itself has already succeeded.
func (c *Client) restoreSubscriptions(ctx context.Context, tr transport.Transport) {
	c.subs.Range(func(filter string, qos message.QoS) bool {
		subCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
		code, err := tr.Subscribe(subCtx, filter, qos)
		cancel()

		switch {
		case err != nil:
			c.logger.Warn("restoring subscription failed", "topic", filter, "error", err)
		case code.Refused():
			c.logger.Warn("restored subscription refused", "topic", filter, "code", byte(code))
		default:
			c.logger.Debug("subscription restored", "topic", filter)
		}
		return true
	})
}
