package client

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aGit2048/virtual-debugger/internal/infrastructure/config"
	"github.com/aGit2048/virtual-debugger/internal/message"
	"github.com/aGit2048/virtual-debugger/internal/transport"
)

// Reconnect defaults.
const (
	DefaultReconnectDelay       = 5 * time.Second
	DefaultMaxReconnectAttempts = 10
)

// MaxPayloadSize is the largest payload Publish accepts (1 MiB).
const MaxPayloadSize = 1 << 20

// ConnectOptions configures a Client. It is copied into the client by New
// and cannot be changed afterwards.
type ConnectOptions struct {
	transport.Options

	// AutoReconnect starts a reconnect episode after an unexpected drop.
	AutoReconnect bool

	// ReconnectDelay is the delay after the first failed attempt; each
	// further failure doubles it.
	ReconnectDelay time.Duration

	// MaxReconnectAttempts caps the attempts in one episode.
	MaxReconnectAttempts int
}

// NewClientID returns a fresh client_<uuid> identifier.
func NewClientID() string {
	return "client_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// DefaultConnectOptions returns options for a local plaintext broker.
func DefaultConnectOptions() ConnectOptions {
	return ConnectOptions{
		Options: transport.Options{
			BrokerAddress: transport.DefaultBrokerAddress,
			Port:          transport.DefaultPort,
			ClientID:      NewClientID(),
			CleanSession:  true,
			KeepAlive:     transport.DefaultKeepAlive,
			Timeout:       transport.DefaultTimeout,
		},
		AutoReconnect:        true,
		ReconnectDelay:       DefaultReconnectDelay,
		MaxReconnectAttempts: DefaultMaxReconnectAttempts,
	}
}

// DevelopmentOptions targets a local broker and accepts self-signed
// certificates if TLS is switched on.
func DevelopmentOptions() ConnectOptions {
	o := DefaultConnectOptions()
	o.InsecureSkipVerify = true
	return o
}

// ProductionOptions targets the given broker over TLS with strict certificate
// checks and a persistent session.
func ProductionOptions(broker string) ConnectOptions {
	o := DefaultConnectOptions()
	o.BrokerAddress = broker
	o.Port = transport.DefaultTLSPort
	o.UseTLS = true
	o.InsecureSkipVerify = false
	o.CleanSession = false
	o.KeepAlive = 60 * time.Second
	o.Timeout = 15 * time.Second
	return o
}

// OptionsFromConfig maps the mqtt section of the configuration file.
func OptionsFromConfig(cfg config.MQTTConfig) ConnectOptions {
	o := ConnectOptions{
		Options: transport.Options{
			BrokerAddress:      cfg.Broker.Host,
			Port:               cfg.Broker.Port,
			ClientID:           cfg.Broker.ClientID,
			Username:           cfg.Auth.Username,
			Password:           cfg.Auth.Password,
			UseTLS:             cfg.Broker.TLS,
			InsecureSkipVerify: cfg.Broker.InsecureSkipVerify,
			CleanSession:       cfg.Session.CleanSession,
			KeepAlive:          cfg.Session.KeepAlive,
			Timeout:            cfg.Session.Timeout,
		},
		AutoReconnect:        cfg.Reconnect.Enabled,
		ReconnectDelay:       cfg.Reconnect.Delay,
		MaxReconnectAttempts: cfg.Reconnect.MaxAttempts,
	}
	if o.ClientID == "" {
		o.ClientID = NewClientID()
	}
	if cfg.Will != nil {
		o.Will = &transport.Will{
			Topic:   cfg.Will.Topic,
			Payload: []byte(cfg.Will.Payload),
			QoS:     message.QoS(cfg.Will.QoS), //nolint:gosec // validated by Validate
			Retain:  cfg.Will.Retain,
		}
	}
	return o
}

// Validate checks transport and reconnect settings together.
func (o ConnectOptions) Validate() error {
	errs := []error{o.Options.Validate()}

	if o.AutoReconnect {
		if o.ReconnectDelay <= 0 {
			errs = append(errs, fmt.Errorf("%w: reconnect delay must be positive", ErrInvalidOptions))
		}
		if o.MaxReconnectAttempts < 1 {
			errs = append(errs, fmt.Errorf("%w: max reconnect attempts must be at least 1", ErrInvalidOptions))
		}
	}
	return errors.Join(errs...)
}
