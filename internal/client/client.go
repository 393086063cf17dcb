package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/aGit2048/virtual-debugger/internal/asynclock"
	"github.com/aGit2048/virtual-debugger/internal/journal"
	"github.com/aGit2048/virtual-debugger/internal/message"
	"github.com/aGit2048/virtual-debugger/internal/msgpool"
	"github.com/aGit2048/virtual-debugger/internal/pipeline"
	"github.com/aGit2048/virtual-debugger/internal/telemetry"
	"github.com/aGit2048/virtual-debugger/internal/transport"
)

const (
	// closeTimeout bounds how long Close waits for the connect mutex and for
	// background goroutines.
	closeTimeout = 5 * time.Second

	// journalTimeout bounds a single journal write.
	journalTimeout = 2 * time.Second
)

// MessageHandler processes one inbound message on a pipeline worker. ctx is
// cancelled when the client closes.
type MessageHandler func(ctx context.Context, msg message.Message) error

// ErrorHandler is told about every handler failure, including panics.
type ErrorHandler func(msg message.Message, err error)

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Deps is everything New needs. Only Options and Transport are required.
type Deps struct {
	Options   ConnectOptions
	Transport transport.Factory

	Handler MessageHandler
	OnError ErrorHandler

	Logger  Logger
	Monitor *telemetry.Monitor
	Journal journal.Recorder
	Clock   clock.Clock
	Hooks   Hooks

	// Inbound sizes the receive pipeline. Zero values select its defaults.
	Inbound pipeline.Config

	// PoolCapacity sizes the outbound message pool (default 1000).
	PoolCapacity int
}

// binding is the transport currently owned by the client. gen increases on
// every construction so events from a torn-down transport can be told apart.
type binding struct {
	tr  transport.Transport
	gen uint64
}

// Client manages one broker session.
//
// Thread Safety: all methods are safe for concurrent use.
type Client struct {
	opts    ConnectOptions
	factory transport.Factory
	logger  Logger
	monitor *telemetry.Monitor
	journal journal.Recorder
	clock   clock.Clock

	connectMu *asynclock.Mutex
	publishMu *asynclock.Mutex

	state atomic.Int32
	conn  atomic.Pointer[binding]
	gen   atomic.Uint64

	handler atomic.Pointer[MessageHandler]
	onError atomic.Pointer[ErrorHandler]

	subs    *xsync.MapOf[string, message.QoS]
	inbound *pipeline.Pipeline[message.Message]
	pool    *msgpool.Pool
	sup     *supervisor

	ctx    context.Context
	cancel context.CancelFunc

	// lifeMu orders goroutine spawns against Close.
	lifeMu    sync.Mutex
	wg        sync.WaitGroup
	disposed  atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// New validates deps and starts the inbound workers. The client starts
// disconnected.
func New(deps Deps) (*Client, error) {
	if err := deps.Options.Validate(); err != nil {
		return nil, err
	}
	if deps.Transport == nil {
		return nil, fmt.Errorf("%w: transport factory is required", ErrInvalidOptions)
	}

	logger := deps.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	clk := deps.Clock
	if clk == nil {
		clk = clock.New()
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		opts:      deps.Options,
		factory:   deps.Transport,
		logger:    logger,
		monitor:   deps.Monitor,
		journal:   deps.Journal,
		clock:     clk,
		connectMu: asynclock.New(),
		publishMu: asynclock.New(),
		subs:      xsync.NewMapOf[string, message.QoS](),
		pool:      msgpool.New(deps.PoolCapacity),
		ctx:       ctx,
		cancel:    cancel,
	}
	c.state.Store(int32(StateDisconnected))

	c.sup = &supervisor{
		connect:     func(ctx context.Context) error { return c.connect(ctx, true) },
		onAttempt:   c.monitor.RecordReconnectAttempt,
		clock:       clk,
		delay:       deps.Options.ReconnectDelay,
		maxAttempts: deps.Options.MaxReconnectAttempts,
		hooks:       deps.Hooks,
		logger:      logger,
		mu:          asynclock.New(),
	}

	if deps.Handler != nil {
		c.SetMessageHandler(deps.Handler)
	}
	if deps.OnError != nil {
		c.SetErrorHandler(deps.OnError)
	}
	c.inbound = pipeline.New(deps.Inbound, c.process, c.processFailed)

	return c, nil
}

// SetMessageHandler replaces the inbound message handler. A nil handler
// discards messages.
func (c *Client) SetMessageHandler(h MessageHandler) {
	if h == nil {
		c.handler.Store(nil)
		return
	}
	c.handler.Store(&h)
}

// SetErrorHandler replaces the handler-failure hook.
func (c *Client) SetErrorHandler(h ErrorHandler) {
	if h == nil {
		c.onError.Store(nil)
		return
	}
	c.onError.Store(&h)
}

// Options returns a copy of the client's options.
func (c *Client) Options() ConnectOptions {
	return c.opts
}

// State returns a snapshot of the connection state.
func (c *Client) State() ConnectionState {
	return ConnectionState(c.state.Load())
}

func (c *Client) setState(s ConnectionState) {
	c.state.Store(int32(s))
}

// IsConnected reports whether the session is up as far as the client and
// its transport both know.
func (c *Client) IsConnected() bool {
	if c.State() != StateConnected {
		return false
	}
	b := c.conn.Load()
	return b != nil && b.tr.IsConnected()
}

// ReconnectAttempts is the attempt number of the running reconnect
// episode, or 0 after a successful connect.
func (c *Client) ReconnectAttempts() int {
	return c.sup.Attempts()
}

// Connect opens the session. It returns nil at once if already connected.
func (c *Client) Connect(ctx context.Context) error {
	return c.connect(ctx, false)
}

func (c *Client) connect(ctx context.Context, reconnecting bool) error {
	if c.disposed.Load() {
		return ErrDisposed
	}

	guard, err := c.connectMu.Lock(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}
	defer guard.Release()

	if c.disposed.Load() {
		return ErrDisposed
	}
	return c.connectLocked(ctx, reconnecting)
}

// connectLocked must be called with connectMu held.
func (c *Client) connectLocked(ctx context.Context, reconnecting bool) error {
	if c.State() == StateConnected {
		if b := c.conn.Load(); b != nil && b.tr.IsConnected() {
			return nil
		}
	}

	c.teardown()

	failedState := StateDisconnected
	if reconnecting {
		failedState = StateReconnecting
		c.setState(StateReconnecting)
	} else {
		c.setState(StateConnecting)
	}

	gen := c.gen.Add(1)
	tr, err := c.factory(c.opts.Options, c.handlersFor(gen))
	if err != nil {
		c.setState(failedState)
		return c.connectFailed(err)
	}
	c.conn.Store(&binding{tr: tr, gen: gen})

	connectCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	if err := tr.Connect(connectCtx); err != nil {
		c.teardown()
		c.setState(failedState)
		return c.connectFailed(err)
	}

	c.setState(StateConnected)
	c.sup.resetAttempts()
	c.monitor.RecordConnect(nil)
	c.record(journal.KindConnected, 0, c.opts.Address())
	c.logger.Info("connected to broker",
		"broker", c.opts.Address(),
		"client_id", c.opts.ClientID,
	)

	c.restoreSubscriptions(ctx, tr)
	return nil
}

func (c *Client) connectFailed(err error) error {
	c.monitor.RecordConnect(err)
	c.record(journal.KindConnectFailed, c.sup.Attempts(), err.Error())
	c.logger.Warn("connect failed",
		"broker", c.opts.Address(),
		"error", err,
	)
	return fmt.Errorf("%w: %w", ErrConnectFailed, err)
}

// teardown closes and forgets the bound transport. Close detaches its
// handlers, so nothing it reports afterwards reaches the client.
func (c *Client) teardown() {
	b := c.conn.Swap(nil)
	if b == nil {
		return
	}
	if err := b.tr.Close(); err != nil {
		c.logger.Debug("closing stale transport", "error", err)
	}
}

// Disconnect ends the session and cancels any reconnect episode. Connected
// is cleared even if the transport reports an error.
func (c *Client) Disconnect(ctx context.Context) error {
	if c.disposed.Load() {
		return ErrDisposed
	}
	c.sup.Cancel()

	guard, err := c.connectMu.Lock(ctx)
	if err != nil {
		return err
	}
	defer guard.Release()

	if c.disposed.Load() {
		return ErrDisposed
	}

	if b := c.conn.Load(); b != nil && b.tr.IsConnected() {
		if err := b.tr.Disconnect(ctx); err != nil {
			c.logger.Warn("transport disconnect failed", "error", err)
		}
	}
	c.teardown()
	c.setState(StateDisconnected)
	c.logger.Info("disconnected from broker", "broker", c.opts.Address())
	return nil
}

func (c *Client) handlersFor(gen uint64) transport.Handlers {
	return transport.Handlers{
		OnConnected: func() {
			if c.current(gen) {
				c.logger.Debug("transport connected", "generation", gen)
			}
		},
		OnDisconnected: func(reason transport.DisconnectReason, err error) {
			c.handleDisconnected(gen, reason, err)
		},
		OnMessage: func(topic string, payload []byte, qos message.QoS, retain bool) {
			c.handleMessage(gen, topic, payload, qos, retain)
		},
	}
}

// current reports whether gen is the transport bound right now.
func (c *Client) current(gen uint64) bool {
	b := c.conn.Load()
	return b != nil && b.gen == gen
}

// handleDisconnected runs on the transport's goroutine and must not block.
func (c *Client) handleDisconnected(gen uint64, reason transport.DisconnectReason, err error) {
	if !c.current(gen) || c.disposed.Load() {
		return
	}

	detail := reason.String()
	if err != nil {
		detail = fmt.Sprintf("%s: %v", reason, err)
	}
	c.record(journal.KindDisconnected, 0, detail)

	if reason.UserInitiated() {
		return
	}
	c.logger.Warn("connection lost", "reason", reason, "error", err)
	c.spawn(func() { c.connectionLost(gen) })
}

// connectionLost clears Connected and, if enabled, runs a reconnect
// episode.
func (c *Client) connectionLost(gen uint64) {
	guard, err := c.connectMu.Lock(c.ctx)
	if err != nil {
		return
	}
	if !c.current(gen) {
		// A newer transport is already bound.
		guard.Release()
		return
	}
	c.setState(StateDisconnected)
	guard.Release()

	if !c.opts.AutoReconnect {
		return
	}
	c.reconnect()
}

func (c *Client) reconnect() {
	if c.sup.InProgress() {
		return
	}
	c.record(journal.KindReconnectStarted, 0, "")

	outcome := c.sup.TryReconnect(c.ctx)
	switch outcome {
	case ReconnectSucceeded:
		c.record(journal.KindReconnectSucceeded, 0, "")
		c.logger.Info("reconnected to broker", "broker", c.opts.Address())
		return
	case ReconnectExhausted:
		c.record(journal.KindReconnectExhausted, c.opts.MaxReconnectAttempts, "")
	case ReconnectSkipped:
		return
	}
	c.finishReconnect()
}

// finishReconnect leaves the client Disconnected after a failed or aborted
// episode.
func (c *Client) finishReconnect() {
	guard, err := c.connectMu.Lock(c.ctx)
	if err != nil {
		return
	}
	defer guard.Release()
	if c.State() == StateReconnecting {
		c.setState(StateDisconnected)
	}
}

// handleMessage runs on the transport's goroutine. It only enqueues; a full
// queue makes it wait for a worker.
func (c *Client) handleMessage(gen uint64, topic string, payload []byte, qos message.QoS, retain bool) {
	if !c.current(gen) || c.disposed.Load() {
		return
	}

	msg := message.Message{
		Topic:     topic,
		Payload:   payload,
		QoS:       qos,
		Retain:    retain,
		Timestamp: c.clock.Now(),
	}
	c.monitor.RecordReceived()

	if err := c.inbound.Enqueue(c.ctx, msg); err != nil {
		c.logger.Debug("inbound message not queued", "topic", topic, "error", err)
	}
}

func (c *Client) process(ctx context.Context, msg message.Message) error {
	h := c.handler.Load()
	if h == nil {
		return nil
	}
	start := time.Now()
	err := (*h)(ctx, msg)
	c.monitor.RecordProcessing(time.Since(start), err)
	return err
}

func (c *Client) processFailed(msg message.Message, err *pipeline.ProcessingError) {
	c.logger.Warn("message handler failed",
		"topic", msg.Topic,
		"worker", err.Worker,
		"error", err.Err,
	)
	if h := c.onError.Load(); h != nil {
		(*h)(msg, err)
	}
}

// spawn runs fn on a tracked goroutine unless the client is disposed.
func (c *Client) spawn(fn func()) bool {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()
	if c.disposed.Load() {
		return false
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fn()
	}()
	return true
}

func (c *Client) record(kind journal.Kind, attempt int, detail string) {
	if c.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()

	ev := &journal.Event{
		Kind:     kind,
		ClientID: c.opts.ClientID,
		Attempt:  attempt,
		Detail:   detail,
	}
	if err := c.journal.Record(ctx, ev); err != nil {
		c.logger.Warn("journal write failed", "kind", kind, "error", err)
	}
}

// Stats is a point-in-time view of the client.
type Stats struct {
	State             ConnectionState    `json:"state"`
	ReconnectAttempts int                `json:"reconnect_attempts"`
	Subscriptions     int                `json:"subscriptions"`
	QueueDepth        int                `json:"queue_depth"`
	QueueCapacity     int                `json:"queue_capacity"`
	Workers           int                `json:"workers"`
	Processed         uint64             `json:"processed"`
	Failed            uint64             `json:"failed"`
	Pool              msgpool.Stats      `json:"pool"`
	Telemetry         telemetry.Snapshot `json:"telemetry"`
}

// Stats returns the current counters.
func (c *Client) Stats() Stats {
	return Stats{
		State:             c.State(),
		ReconnectAttempts: c.ReconnectAttempts(),
		Subscriptions:     c.subs.Size(),
		QueueDepth:        c.inbound.Len(),
		QueueCapacity:     c.inbound.Cap(),
		Workers:           c.inbound.Workers(),
		Processed:         c.inbound.Processed(),
		Failed:            c.inbound.Failed(),
		Pool:              c.pool.Stats(),
		Telemetry:         c.monitor.Snapshot(),
	}
}

// HealthCheck returns nil while the session is up.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.disposed.Load() {
		return ErrDisposed
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// Close disposes the client: it stops the inbound workers, cancels any
// reconnect episode, disconnects and releases the transport. Every later
// call returns ErrDisposed; calling Close again returns the first result.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.dispose()
	})
	return c.closeErr
}

func (c *Client) dispose() error {
	c.lifeMu.Lock()
	c.disposed.Store(true)
	c.lifeMu.Unlock()

	c.sup.stop()
	pipelineErr := c.inbound.Close()
	c.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	guard, lockErr := c.connectMu.Lock(ctx)
	if lockErr != nil {
		c.logger.Warn("close proceeding without connect lock", "error", lockErr)
	}
	if b := c.conn.Load(); b != nil && b.tr.IsConnected() {
		if err := b.tr.Disconnect(ctx); err != nil {
			c.logger.Debug("transport disconnect on close", "error", err)
		}
	}
	c.teardown()
	c.setState(StateDisposed)
	guard.Release()

	c.pool.Close()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		c.logger.Warn("background goroutines still running after close")
	}

	if errors.Is(pipelineErr, pipeline.ErrShutdownTimeout) {
		return pipelineErr
	}
	return nil
}
