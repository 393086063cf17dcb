package mqtt

import (
	"crypto/tls"
	"fmt"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/aGit2048/virtual-debugger/internal/transport"
)

// Connection constants.
const (
	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 250 // milliseconds

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// brokerURL returns the paho broker URL for opts.
func brokerURL(opts transport.Options) string {
	scheme := "tcp"
	if opts.UseTLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, opts.BrokerAddress, opts.Port)
}

// buildClientOptions creates paho options from transport options.
//
// This configures:
//   - Broker URL (tcp:// or ssl:// based on TLS setting)
//   - Client ID and credentials (if provided)
//   - Clean session, keep-alive and connect timeout
//   - TLS configuration (if enabled)
//   - Last Will and Testament (if provided)
//
// Auto-reconnect is disabled; reconnection belongs to the caller.
func buildClientOptions(opts transport.Options) *pahomqtt.ClientOptions {
	po := pahomqtt.NewClientOptions()

	po.AddBroker(brokerURL(opts))
	po.SetClientID(opts.ClientID)

	if opts.Username != "" {
		po.SetUsername(opts.Username)
		po.SetPassword(opts.Password)
	}

	po.SetCleanSession(opts.CleanSession)
	po.SetKeepAlive(opts.KeepAlive)
	po.SetConnectTimeout(opts.Timeout)
	po.SetWriteTimeout(opts.Timeout)

	po.SetAutoReconnect(false)
	po.SetConnectRetry(false)

	if opts.UseTLS {
		po.SetTLSConfig(&tls.Config{
			MinVersion:         tlsMinVersion,
			InsecureSkipVerify: opts.InsecureSkipVerify, //nolint:gosec // opt-in for development brokers
		})
	}

	if w := opts.Will; w != nil {
		po.SetBinaryWill(w.Topic, w.Payload, byte(w.QoS), w.Retain)
	}

	return po
}
