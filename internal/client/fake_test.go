package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aGit2048/virtual-debugger/internal/journal"
	"github.com/aGit2048/virtual-debugger/internal/message"
	"github.com/aGit2048/virtual-debugger/internal/transport"
)

var errRefused = errors.New("connection refused")

// fakeTransport is a scriptable transport.Transport.
type fakeTransport struct {
	mu sync.Mutex

	h        transport.Handlers
	original transport.Handlers

	connectErr  error
	publishCode transport.ReasonCode
	publishErr  error
	subCode     transport.SubscribeCode
	subErr      error

	connected       bool
	closed          bool
	closeCalls      int
	disconnectCalls int
	subscribed      []string
	unsubscribed    []string
	published       []message.Message

	inFlight map[*message.Message]bool
	overlaps int
}

func (f *fakeTransport) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	err := f.connectErr
	if err == nil {
		f.connected = true
	}
	h := f.h
	f.mu.Unlock()

	if err == nil && h.OnConnected != nil {
		h.OnConnected()
	}
	return err
}

func (f *fakeTransport) Disconnect(context.Context) error {
	f.mu.Lock()
	f.disconnectCalls++
	f.connected = false
	h := f.h
	f.mu.Unlock()

	if h.OnDisconnected != nil {
		h.OnDisconnected(transport.ReasonNormal, nil)
	}
	return nil
}

func (f *fakeTransport) Publish(_ context.Context, m *message.Message) (transport.ReasonCode, error) {
	f.mu.Lock()
	if f.inFlight == nil {
		f.inFlight = make(map[*message.Message]bool)
	}
	if f.inFlight[m] {
		f.overlaps++
	}
	f.inFlight[m] = true
	f.published = append(f.published, *m)
	code, err := f.publishCode, f.publishErr
	f.mu.Unlock()

	time.Sleep(time.Millisecond)

	f.mu.Lock()
	delete(f.inFlight, m)
	f.mu.Unlock()
	return code, err
}

func (f *fakeTransport) Subscribe(_ context.Context, topic string, _ message.QoS) (transport.SubscribeCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subErr != nil {
		return 0, f.subErr
	}
	if !f.subCode.Refused() {
		f.subscribed = append(f.subscribed, topic)
	}
	return f.subCode, nil
}

func (f *fakeTransport) Unsubscribe(_ context.Context, topic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribed = append(f.unsubscribed, topic)
	return nil
}

func (f *fakeTransport) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	f.closed = true
	f.connected = false
	f.h = transport.Handlers{}
	return nil
}

// drop simulates an unexpected loss of the session.
func (f *fakeTransport) drop(reason transport.DisconnectReason) {
	f.mu.Lock()
	f.connected = false
	h := f.h
	f.mu.Unlock()

	if h.OnDisconnected != nil {
		h.OnDisconnected(reason, errors.New("EOF"))
	}
}

// deliver simulates an inbound message.
func (f *fakeTransport) deliver(topic, payload string) {
	f.mu.Lock()
	h := f.h
	f.mu.Unlock()

	if h.OnMessage != nil {
		h.OnMessage(topic, []byte(payload), message.AtLeastOnce, false)
	}
}

func (f *fakeTransport) subscriptions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.subscribed...)
}

// fakeFactory builds fakeTransports. connectResults are handed to the
// transports in construction order; once exhausted, connects succeed.
type fakeFactory struct {
	mu             sync.Mutex
	built          []*fakeTransport
	connectResults []error
	configure      func(*fakeTransport)
}

func (f *fakeFactory) New(_ transport.Options, h transport.Handlers) (transport.Transport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	tr := &fakeTransport{h: h, original: h}
	if len(f.connectResults) > 0 {
		tr.connectErr = f.connectResults[0]
		f.connectResults = f.connectResults[1:]
	}
	if f.configure != nil {
		f.configure(tr)
	}
	f.built = append(f.built, tr)
	return tr, nil
}

func (f *fakeFactory) script(results ...error) {
	f.mu.Lock()
	f.connectResults = append(f.connectResults, results...)
	f.mu.Unlock()
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.built)
}

func (f *fakeFactory) last() *fakeTransport {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.built) == 0 {
		return nil
	}
	return f.built[len(f.built)-1]
}

// recordingJournal captures journal events in memory.
type recordingJournal struct {
	mu    sync.Mutex
	kinds []journal.Kind
}

func (r *recordingJournal) Record(_ context.Context, ev *journal.Event) error {
	r.mu.Lock()
	r.kinds = append(r.kinds, ev.Kind)
	r.mu.Unlock()
	return nil
}

func (r *recordingJournal) has(k journal.Kind) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, got := range r.kinds {
		if got == k {
			return true
		}
	}
	return false
}

func testOptions() ConnectOptions {
	o := DefaultConnectOptions()
	o.ClientID = "client_test"
	o.Timeout = time.Second
	o.ReconnectDelay = time.Second
	o.MaxReconnectAttempts = 3
	return o
}

func newTestClient(t *testing.T, f *fakeFactory, mutate func(*Deps)) *Client {
	t.Helper()

	deps := Deps{
		Options:   testOptions(),
		Transport: f.New,
	}
	deps.Inbound.Workers = 1
	if mutate != nil {
		mutate(&deps)
	}

	c, err := New(deps)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { c.Close() }) //nolint:errcheck // Test cleanup
	return c
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
