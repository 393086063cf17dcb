package transport

import (
	"errors"
	"fmt"
	"time"

	"github.com/aGit2048/virtual-debugger/internal/message"
)

// Defaults for Options.
const (
	DefaultBrokerAddress = "127.0.0.1"
	DefaultPort          = 1883
	DefaultTLSPort       = 8883
	DefaultKeepAlive     = 30 * time.Second
	DefaultTimeout       = 10 * time.Second
)

// ErrInvalidOptions is the base error for option validation failures.
var ErrInvalidOptions = errors.New("transport: invalid options")

// Will is the last-will message the broker publishes if the session drops
// without a clean disconnect.
type Will struct {
	Topic   string
	Payload []byte
	QoS     message.QoS
	Retain  bool
}

// Options carries everything a Transport needs to open a session.
type Options struct {
	BrokerAddress string
	Port          int
	ClientID      string
	Username      string
	Password      string

	UseTLS bool
	// InsecureSkipVerify disables broker certificate verification.
	// Development only.
	InsecureSkipVerify bool

	CleanSession bool
	KeepAlive    time.Duration

	// Timeout bounds connect and per-operation acknowledgement waits.
	Timeout time.Duration

	Will *Will
}

// Validate checks the options and returns every problem found, joined.
func (o Options) Validate() error {
	var errs []error

	if o.BrokerAddress == "" {
		errs = append(errs, fmt.Errorf("%w: broker address is required", ErrInvalidOptions))
	}
	if o.Port < 1 || o.Port > 65535 {
		errs = append(errs, fmt.Errorf("%w: port %d out of range", ErrInvalidOptions, o.Port))
	}
	if o.ClientID == "" {
		errs = append(errs, fmt.Errorf("%w: client id is required", ErrInvalidOptions))
	}
	if o.Password != "" && o.Username == "" {
		errs = append(errs, fmt.Errorf("%w: password set without username", ErrInvalidOptions))
	}
	if o.KeepAlive < 0 {
		errs = append(errs, fmt.Errorf("%w: keep-alive must not be negative", ErrInvalidOptions))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("%w: timeout must be positive", ErrInvalidOptions))
	}
	if o.Will != nil {
		if o.Will.Topic == "" {
			errs = append(errs, fmt.Errorf("%w: will topic is required", ErrInvalidOptions))
		}
		if !o.Will.QoS.Valid() {
			errs = append(errs, fmt.Errorf("%w: will qos %d", ErrInvalidOptions, byte(o.Will.QoS)))
		}
	}

	return errors.Join(errs...)
}

// Address returns host:port.
func (o Options) Address() string {
	return fmt.Sprintf("%s:%d", o.BrokerAddress, o.Port)
}

// String describes the options without credentials.
func (o Options) String() string {
	return fmt.Sprintf("broker=%s client_id=%s tls=%t clean_session=%t",
		o.Address(), o.ClientID, o.UseTLS, o.CleanSession)
}
