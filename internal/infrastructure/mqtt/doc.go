// Package mqtt provides the broker transport built on paho.mqtt.golang.
//
// It implements transport.Transport so the connection manager in
// internal/client can drive a real broker session:
//   - Session setup (tcp:// or ssl://, credentials, keep-alive, LWT)
//   - Publish with acknowledgement wait
//   - Subscribe/unsubscribe with granted-code reporting
//   - Connection events delivered through transport.Handlers
//
// # Reconnection
//
// paho's own auto-reconnect and connect-retry are switched off. A lost
// session is reported as transport.ReasonConnectionLost and the client's
// reconnect supervisor decides what happens next, building a fresh
// Transport for every attempt.
//
// # Security Considerations
//
//   - TLS uses a minimum of TLS 1.2
//   - InsecureSkipVerify is for development brokers with self-signed certs
//   - Credentials are never logged
//
// # Usage
//
//	factory := mqtt.NewFactory(logger)
//	tr, err := factory(opts, transport.Handlers{
//	    OnMessage: func(topic string, payload []byte, qos message.QoS, retain bool) {
//	        ...
//	    },
//	})
//	if err != nil {
//	    return err
//	}
//	defer tr.Close()
//
//	if err := tr.Connect(ctx); err != nil {
//	    return err
//	}
package mqtt
