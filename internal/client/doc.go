// Package client is the caller-facing MQTT connection manager.
//
// A Client owns one logical broker session. It builds transports through
// an injected transport.Factory, serialises connect and disconnect behind a
// context-aware mutex, publishes through a pooled message buffer and hands
// inbound messages to a bounded worker pipeline.
//
// Reconnection:
//
// When the transport reports a drop that the caller did not ask for, the
// client starts a reconnect episode in its own goroutine. The episode
// retries Connect up to MaxReconnectAttempts times, doubling
// ReconnectDelay after each failure. Only one episode runs at a time;
// Disconnect and Close cancel it.
//
// Lock order:
//
// The connect mutex is never acquired while holding the publish or
// reconnect mutex. Connection state is written only under the connect
// mutex and read as an atomic snapshot everywhere else.
//
// Usage:
//
//	c, err := client.New(client.Deps{
//	    Options:   client.DefaultConnectOptions(),
//	    Transport: mqtt.NewFactory(log),
//	    Handler: func(ctx context.Context, m message.Message) error {
//	        log.Info("received", "topic", m.Topic)
//	        return nil
//	    },
//	})
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	if err := c.Connect(ctx); err != nil {
//	    return err
//	}
//	err = c.Publish(ctx, "sensors/temp", []byte("21.5"), message.AtLeastOnce)
package client
