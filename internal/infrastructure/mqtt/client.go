package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/aGit2048/virtual-debugger/internal/message"
	"github.com/aGit2048/virtual-debugger/internal/transport"
)

// Transport is a single broker session backed by a paho client.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Handlers are detached by Close; no event is delivered afterwards.
type Transport struct {
	client pahomqtt.Client
	opts   transport.Options

	handlers   transport.Handlers
	handlersMu sync.RWMutex

	// pending is the in-flight connect token, if any.
	pending   pahomqtt.Token
	pendingMu sync.Mutex

	closed    atomic.Bool
	closeOnce sync.Once

	logger Logger
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// NewFactory returns a transport.Factory producing paho-backed transports.
// A nil logger discards log output.
func NewFactory(logger Logger) transport.Factory {
	return func(opts transport.Options, h transport.Handlers) (transport.Transport, error) {
		return New(opts, h, logger)
	}
}

// New creates an unconnected Transport.
//
// Parameters:
//   - opts: Session options; validated here
//   - h: Event handlers, registered exactly once for this instance
//   - logger: Optional logger (nil discards)
//
// Returns:
//   - *Transport: Ready for Connect
//   - error: If opts are invalid
func New(opts transport.Options, h transport.Handlers, logger Logger) (*Transport, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = noopLogger{}
	}

	t := &Transport{
		opts:     opts,
		handlers: h,
		logger:   logger,
	}

	po := buildClientOptions(opts)
	po.SetOnConnectHandler(func(_ pahomqtt.Client) {
		t.handleConnect()
	})
	po.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		t.handleConnectionLost(err)
	})
	po.SetDefaultPublishHandler(func(_ pahomqtt.Client, msg pahomqtt.Message) {
		t.handleMessage(msg)
	})

	t.client = pahomqtt.NewClient(po)
	return t, nil
}

// Connect opens the session and waits for the broker's CONNACK or ctx.
func (t *Transport) Connect(ctx context.Context) error {
	if t.closed.Load() {
		return ErrClosed
	}

	token := t.client.Connect()
	t.pendingMu.Lock()
	t.pending = token
	t.pendingMu.Unlock()

	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrConnectionFailed, ctx.Err())
	}

	t.pendingMu.Lock()
	t.pending = nil
	t.pendingMu.Unlock()

	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return nil
}

// Disconnect closes the session gracefully and reports ReasonNormal.
func (t *Transport) Disconnect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !t.client.IsConnectionOpen() {
		return ErrNotConnected
	}

	t.client.Disconnect(defaultDisconnectQuiesce)

	if h := t.handler().OnDisconnected; h != nil && !t.closed.Load() {
		h(transport.ReasonNormal, nil)
	}
	return nil
}

// IsConnected reports whether the paho session is open.
func (t *Transport) IsConnected() bool {
	return !t.closed.Load() && t.client.IsConnectionOpen()
}

// Close detaches the handlers and drops the session. Idempotent.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		t.closed.Store(true)

		t.handlersMu.Lock()
		t.handlers = transport.Handlers{}
		t.handlersMu.Unlock()

		if t.client.IsConnectionOpen() {
			t.client.Disconnect(0)
		}

		// A connect abandoned by its caller may still complete; make sure
		// that session does not outlive the transport.
		t.pendingMu.Lock()
		pending := t.pending
		t.pendingMu.Unlock()
		if pending != nil {
			go func() {
				pending.WaitTimeout(t.opts.Timeout)
				if t.client.IsConnectionOpen() {
					t.client.Disconnect(0)
				}
			}()
		}
	})
	return nil
}

func (t *Transport) handler() transport.Handlers {
	t.handlersMu.RLock()
	defer t.handlersMu.RUnlock()
	return t.handlers
}

func (t *Transport) handleConnect() {
	if t.closed.Load() {
		return
	}
	t.logger.Debug("mqtt session established", "broker", t.opts.Address(), "client_id", t.opts.ClientID)
	if h := t.handler().OnConnected; h != nil {
		h()
	}
}

func (t *Transport) handleConnectionLost(err error) {
	if t.closed.Load() {
		return
	}
	t.logger.Warn("mqtt connection lost", "broker", t.opts.Address(), "error", err)
	if h := t.handler().OnDisconnected; h != nil {
		h(transport.ReasonConnectionLost, err)
	}
}

// handleMessage forwards an inbound message, recovering handler panics.
func (t *Transport) handleMessage(msg pahomqtt.Message) {
	if t.closed.Load() {
		return
	}
	h := t.handler().OnMessage
	if h == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("mqtt message handler panic recovered",
				"topic", msg.Topic(),
				"panic", r,
			)
		}
	}()

	h(msg.Topic(), msg.Payload(), message.QoS(msg.Qos()), msg.Retained())
}

var _ transport.Transport = (*Transport)(nil)
